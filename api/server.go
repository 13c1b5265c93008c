package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wricardo/tetris-engine/game/config"
	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
	"github.com/wricardo/tetris-engine/game/session"
	"github.com/wricardo/tetris-engine/game/strategy"
	"github.com/wricardo/tetris-engine/transport/websocket"
)

// TokenHeader carries a session token as an alternative to a bearer token.
const TokenHeader = "X-Session-Token"

// Tokenizer issues and checks session ownership tokens.
type Tokenizer interface {
	Create(sessionID string) (string, error)
	Verify(tokenString, sessionID string) error
}

// Logger is the logging dependency of the server. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Server represents the REST API server
type Server struct {
	service   service.GameService
	hub       *websocket.Hub
	router    *mux.Router
	tokenizer Tokenizer
	log       Logger
	started   time.Time
}

// NewServer creates a new API server. When hub is not nil the server also
// applies actions that arrive over websocket connections.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     log.Default(),
		started: time.Now(),
	}

	s.setupRoutes()
	if hub != nil {
		hub.SetActionHandler(s.handleSocketAction)
	}
	return s
}

// SetTokenizer enables session tokens: created sessions carry a token and
// mutating session routes require it.
func (s *Server) SetTokenizer(t Tokenizer) {
	s.tokenizer = t
}

// SetLogger replaces the request logger
func (s *Server) SetLogger(l Logger) {
	s.log = l
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.owned(s.handleDeleteSession)).Methods("DELETE")

	// Game operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/action", s.owned(s.handleAction)).Methods("POST")
	api.HandleFunc("/sessions/{id}/bulk-action", s.owned(s.handleBulkAction)).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.owned(s.handleReset)).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")
	api.HandleFunc("/sessions/{id}/suggest", s.handleSuggest).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrInvalidSessionID),
		errors.Is(err, config.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnknownAction),
		errors.Is(err, engine.ErrInvalidConfig),
		errors.Is(err, engine.ErrInvalidDimensions),
		errors.Is(err, config.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, strategy.ErrNoPlacement),
		errors.Is(err, session.ErrSessionAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

// requestToken reads a session token from the Authorization or X-Session-Token header
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.Header.Get(TokenHeader)
}

// owned requires the session token when a tokenizer is configured
func (s *Server) owned(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.tokenizer != nil {
			if err := s.tokenizer.Verify(requestToken(r), mux.Vars(r)["id"]); err != nil {
				respondServiceError(w, err)
				return
			}
		}
		next(w, r)
	}
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := s.service.CreateSession(r.Context(), req.ConfigID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if s.tokenizer != nil {
		token, err := s.tokenizer.Create(info.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to issue session token: %v", err))
			return
		}
		info.Token = token
	}

	s.log.Printf("[SESSION] created session=%s config=%s", info.ID, info.ConfigID)
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy != "created" {
		sortBy = "accessed"
	}
	if order != "asc" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Action string `json:"action"`
		Reset  bool   `json:"reset,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.act(r.Context(), sessionID, req.Action, req.Reset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkAction(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Actions []string `json:"actions"`
		Reset   bool     `json:"reset,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.bulkAct(r.Context(), sessionID, req.Actions, req.Reset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.reset(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Game reset successfully",
		"state":   state,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetMoveHistory(r.Context(), sessionID, opts)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	suggestion, err := s.service.Suggest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, suggestion)
}

// act, bulkAct and reset apply a mutation, broadcast the new state and log
// it. They are shared by the REST handlers and the websocket handler.

func (s *Server) act(ctx context.Context, sessionID, action string, reset bool) (*service.ActionResult, error) {
	result, err := s.service.Act(ctx, sessionID, action, reset)
	if err != nil {
		return nil, err
	}

	s.broadcast(sessionID, result.GameState)

	if step := result.Step; step != nil && result.GameState != nil {
		status := "OK"
		if !result.Success {
			status = "NOOP"
		}
		s.log.Printf("[ACTION] session=%s %s kind=%s lines=%d score=%d level=%d status=%s",
			sessionID, step.Action, step.Kind, step.LinesCleared, result.GameState.Score, result.GameState.Level, status)
	}
	return result, nil
}

func (s *Server) bulkAct(ctx context.Context, sessionID string, actions []string, reset bool) (*service.BulkActionResult, error) {
	result, err := s.service.BulkAct(ctx, sessionID, actions, reset)
	if err != nil {
		return nil, err
	}

	s.broadcast(sessionID, result.GameState)

	stop := result.StopReasonCode
	if stop == "" {
		stop = "none"
	}
	s.log.Printf("[BULK] session=%s exec=%d/%d stop=%s lines=%d score=%d scoreΔ=%d",
		sessionID, result.ActionsExecuted, result.RequestedActions, stop, result.LinesCleared, result.EndScore, result.ScoreDelta)
	return result, nil
}

func (s *Server) reset(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	state, err := s.service.Reset(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.broadcast(sessionID, state)
	s.log.Printf("[RESET] session=%s", sessionID)
	return state, nil
}

func (s *Server) broadcast(sessionID string, state *engine.Snapshot) {
	if s.hub != nil && state != nil {
		s.hub.BroadcastToSession(sessionID, state)
	}
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configID := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	cfg, err := s.service.LoadConfig(r.Context(), configID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id"`
		engine.GameConfig
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Config name is required")
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(req.Name)), " ", "_")
	}

	gameConfig := req.GameConfig
	if err := s.service.SaveConfig(r.Context(), configID, &gameConfig); err != nil {
		respondServiceError(w, fmt.Errorf("failed to save config: %w", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

// WebSocket Handlers

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if s.hub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}

	info, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, info.ID)
}

// handleSocketAction applies an action received over a websocket connection.
// The resulting state reaches the caller through the session broadcast.
func (s *Server) handleSocketAction(ctx context.Context, req websocket.ActionRequest) error {
	if s.tokenizer != nil {
		if err := s.tokenizer.Verify(req.Token, req.SessionID); err != nil {
			return err
		}
	}

	var err error
	switch {
	case len(req.Actions) > 0:
		_, err = s.bulkAct(ctx, req.SessionID, req.Actions, req.Reset)
	case req.Action != "":
		_, err = s.act(ctx, req.SessionID, req.Action, req.Reset)
	case req.Reset:
		_, err = s.reset(ctx, req.SessionID)
	}
	return err
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"auth":       s.tokenizer != nil,
		"websockets": s.hub != nil,
	})
}
