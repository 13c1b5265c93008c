// Package service provides the business logic layer for the puzzle game.
//
// The service package implements:
//   - Multi-session game management
//   - Action parsing, application and event reporting
//   - Paginated action history
//   - Placement hints for the current piece
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages preset loading and validation.
//
// Architecture:
//
// The service layer sits between the transports (HTTP, WebSocket, MCP) and
// the game engine. Each session owns an independent engine guarded by the
// session lock, so background persistence can snapshot a session while
// another request is playing it.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr)
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.Act(ctx, info.ID, "rotate_cw", false)
//
// Every mutating call saves the session through the SessionManager when
// persistence is configured.
package service
