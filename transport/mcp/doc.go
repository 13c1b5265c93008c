// Package mcp exposes the game to AI agents over the Model Context Protocol.
//
// The Client is a thin proxy: every tool call becomes a request to the REST
// API, and the JSON answer is rendered as plain text an agent can read.
//
// MCP Tools:
//   - create_session: new session with an optional preset (config_id)
//   - list_sessions, get_session: session overview and details
//   - game_state: score line, current/next/held piece and the ASCII board
//   - act: one action (left, right, down, rotate_cw, rotate_ccw, hold, drop, tick)
//   - bulk_act: up to 50 actions in order
//   - reset_game: start a new game in the session
//   - action_history: paginated history, or only the current game
//   - suggest_placement: best rotation and column with the actions to reach it
//   - describe_cell: what occupies a visible cell
//   - list_configs: available presets
//   - game_instructions: rules and board legend
//
// Tokens:
//
// When the API issues session tokens, the token returned by create_session is
// remembered per session and sent as a bearer token on later calls for that
// session.
//
// Transport Modes:
//
//	// Stdio mode
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode: POST JSON-RPC bodies to /mcp
//	response := client.GetMCPServer().HandleMessage(ctx, body)
package mcp
