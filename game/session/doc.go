// Package session provides session storage for the game server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Case-insensitive 4-character session IDs
//   - File persistence of engine snapshots
//   - Signed session ownership tokens
//
// Core Types:
//
// Manager keeps sessions in memory and, when given a SessionPersistence,
// writes every created or touched session through to it. Sessions evicted
// by CleanupExpiredSessions stay on disk and are reloaded on the next Get.
//
// FilePersistence stores one JSON document per session holding the preset
// ID, timestamps and the engine snapshot. The snapshot carries the random
// generator state, so a restored game deals the same upcoming pieces.
//
// Tokenizer issues HS256 JWTs whose subject is the session ID. The API uses
// them to restrict mutating calls to the client that created a session.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions", configManager)
//	manager := session.NewManagerWithPersistence(persistence)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Printf("Warning: %v", err)
//	}
//
//	sess, err := manager.Create("", "classic", preset)
package session
