// Package api provides the HTTP REST API for game sessions.
//
// Endpoints:
//
// Sessions:
//   - POST   /api/sessions                  create a session, body {"config_id": "sprint"} (optional)
//   - GET    /api/sessions                  list sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET    /api/sessions/{id}             session info with its current snapshot
//   - DELETE /api/sessions/{id}             delete a session and its saved file
//
// Game operations:
//   - GET  /api/sessions/{id}/state         current snapshot
//   - POST /api/sessions/{id}/action        {"action": "rotate_cw", "reset": false}
//   - POST /api/sessions/{id}/bulk-action   {"actions": ["left", "left", "drop"]}
//   - POST /api/sessions/{id}/reset         start a new game in the session
//   - GET  /api/sessions/{id}/history       paginated action history (?page=1&limit=20&order=desc)
//   - GET  /api/sessions/{id}/suggest       best placement for the current piece
//
// Configuration:
//   - GET  /api/configs                     list presets
//   - POST /api/configs                     save a preset
//   - GET  /api/configs/{name}              load a preset
//
// Other:
//   - GET /api/health
//   - GET /ws?session={id}&token={token}    websocket state stream
//
// Session tokens:
//
// When a Tokenizer is installed with SetTokenizer, POST /api/sessions returns
// a "token" and the mutating session routes (delete, action, bulk-action and
// reset) require it as "Authorization: Bearer <token>" or in the
// X-Session-Token header. Reads stay open.
//
// Every mutation, REST or websocket, broadcasts the resulting snapshot to
// the session's websocket clients.
//
// Errors are returned as {"error": "message"} with a status derived from the
// underlying error: 404 for unknown sessions and configs, 400 for unknown
// actions and invalid presets, 401 for bad tokens, 409 when no placement
// exists and 500 otherwise.
package api
