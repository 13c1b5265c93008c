// Package websocket provides the live state stream for game sessions.
//
// A central Hub owns every connection. Clients join a session with
// /ws?session=<id> (optionally &token=<session token>) and receive a
// state_update message carrying the full engine snapshot after every change
// to that session, whichever transport caused it.
//
// Message Protocol:
//
//   - Outgoing: {"session_id": "ab12", "event": "state_update", "game_state": {...}}
//   - Incoming: {"action": "rotate_cw"}, {"actions": ["left", "drop"]} or {"reset": true}
//
// Incoming messages are passed to the ActionHandler installed by the HTTP
// server. Failures are reported to the sending client only, as an "error"
// event whose data is the error text.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//	hub.SetActionHandler(handler)
//	hub.BroadcastToSession(sessionID, snapshot)
//
// Each connection runs a read pump and a write pump. Writes time out after
// 10 seconds, pings are sent every 54 seconds and the peer must answer within
// 60 seconds. Inbound frames are limited to 512 bytes.
package websocket
