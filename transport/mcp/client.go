package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer

	// Session tokens returned by create_session, by lower-case session ID
	tokens   map[string]string
	tokensMu sync.RWMutex
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		tokens: make(map[string]string),
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Falling Block Puzzle",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Falling Block Puzzle - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Steer falling pieces into complete rows. Full rows clear and score points; every 1000 points
raises the level. The game ends when a new piece cannot spawn.

AVAILABLE TOOLS:
- create_session: Create a new game session (remembers its token)
- list_sessions / get_session: Inspect sessions
- game_state: Board, active piece, next/held piece, score
- act: One action (left, right, down, rotate_cw, rotate_ccw, hold, drop, tick)
- bulk_act: Several actions in order (max 50)
- reset_game: Start over in the same session
- action_history: Past actions
- suggest_placement: Best rotation/column for the current piece and the actions to get there
- describe_cell: What occupies a grid cell
- list_configs: Available presets
- game_instructions: Full rules

NOTE: The 'intent' parameter on act/bulk_act serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID",
	}
}

func intentProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Brief explanation of the intent behind this action (serves as a rubber duck to help explain your reasoning)",
	}
}

func actionNames() []string {
	names := make([]string, 0, len(engine.AllActions))
	for _, a := range engine.AllActions {
		names = append(names, string(a))
	}
	return names
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional preset selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"config_id": map[string]any{
					"type":        "string",
					"description": "Preset to use, see list_configs (optional, defaults to classic)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List game sessions, most recently used first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"limit": map[string]any{
					"type":        "number",
					"description": "Maximum sessions to return (optional)",
				},
			},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current board, active piece, next and held pieces, score, level and lines",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "act",
		Description: "Apply one action to the active piece",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"action": map[string]any{
					"type":        "string",
					"enum":        actionNames(),
					"description": "Action to apply",
				},
				"intent": intentProperty(),
				"reset": map[string]any{
					"type":        "boolean",
					"description": "Reset the game before acting",
				},
			},
			Required: []string{"session_id", "action"},
		},
	}, c.handleAct)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "bulk_act",
		Description: fmt.Sprintf("Apply several actions in order (max %d). Stops early if the game ends.", engine.MaxBulkActions),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"actions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "string",
						"enum": actionNames(),
					},
					"description": "Actions to apply, e.g. [\"rotate_cw\", \"left\", \"drop\"]",
				},
				"intent": intentProperty(),
				"reset": map[string]any{
					"type":        "boolean",
					"description": "Reset the game before acting",
				},
			},
			Required: []string{"session_id", "actions"},
		},
	}, c.handleBulkAct)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Start a new game in the session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "action_history",
		Description: "Get the session's action history. Use current_game to list only the actions since the last reset.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"page": map[string]any{
					"type":        "number",
					"description": "Page number (default 1)",
				},
				"limit": map[string]any{
					"type":        "number",
					"description": "Entries per page (default 20, max 100)",
				},
				"order": map[string]any{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Sort order (default desc)",
				},
				"current_game": map[string]any{
					"type":        "boolean",
					"description": "Only the actions of the current game",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleActionHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "suggest_placement",
		Description: "Suggest the best rotation and column for the current piece and the actions that reach it",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleSuggest)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe what occupies a grid cell. Row 0 is the top visible row, column 0 the leftmost.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"row": map[string]any{
					"type":        "number",
					"description": "Visible row, 0 at the top",
				},
				"col": map[string]any{
					"type":        "number",
					"description": "Column, 0 at the left",
				},
			},
			Required: []string{"session_id", "row", "col"},
		},
	}, c.handleDescribeCell)

	// Configuration
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available game presets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get comprehensive game instructions and rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// rememberToken stores the token issued for a session
func (c *Client) rememberToken(sessionID, token string) {
	if token == "" {
		return
	}
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()
	c.tokens[strings.ToLower(sessionID)] = token
}

// tokenFor returns the remembered token of a session, if any
func (c *Client) tokenFor(sessionID string) string {
	c.tokensMu.RLock()
	defer c.tokensMu.RUnlock()
	return c.tokens[strings.ToLower(sessionID)]
}

// apiCall makes an HTTP request to the REST API. A non-empty token is sent
// as a bearer token.
func (c *Client) apiCall(ctx context.Context, method, path, token string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// sessionCall calls a route under /api/sessions/{id} with the session's token
func (c *Client) sessionCall(ctx context.Context, method, sessionID, suffix string, body any, result any) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	path := "/api/sessions/" + url.PathEscape(sessionID) + suffix
	return c.apiCall(ctx, method, path, c.tokenFor(sessionID), body, result)
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]any{}
	if configID := request.GetString("config_id", ""); configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", "", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c.rememberToken(session.ID, session.Token)

	result := formatSessionInfo(&session)
	if session.GameConfig != nil && session.GameConfig.Messages.Welcome != "" {
		result += "\n" + session.GameConfig.Messages.Welcome + "\n"
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/sessions"
	if limit := request.GetInt("limit", 0); limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var response struct {
		Count    int                    `json:"count"`
		Total    int                    `json:"total"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", path, "", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sessions (%d of %d):\n", response.Count, response.Total)
	for _, s := range response.Sessions {
		score, status := 0, engine.StatusActive
		if s.GameState != nil {
			score, status = s.GameState.Score, s.GameState.Status
		}
		fmt.Fprintf(&b, "- %s (config %s) score %d, %s, last used %s\n",
			s.ID, s.ConfigID, score, status, s.LastAccessedAt.Format(time.RFC3339))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var session service.SessionInfo
	if err := c.sessionCall(ctx, "GET", request.GetString("session_id", ""), "", nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatSessionInfo(&session)
	if session.GameState != nil {
		result += "\n" + formatGameState(session.GameState)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var state engine.Snapshot
	if err := c.sessionCall(ctx, "GET", request.GetString("session_id", ""), "/state", nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleAct(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// intent is for the agent's own benefit and is not sent to the API
	_ = request.GetString("intent", "")

	body := map[string]any{
		"action": request.GetString("action", ""),
		"reset":  request.GetBool("reset", false),
	}

	var result service.ActionResult
	if err := c.sessionCall(ctx, "POST", request.GetString("session_id", ""), "/action", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleBulkAct(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_ = request.GetString("intent", "")

	actions := request.GetStringSlice("actions", nil)
	if len(actions) == 0 {
		return mcp.NewToolResultError("actions must be a non-empty list"), nil
	}

	body := map[string]any{
		"actions": actions,
		"reset":   request.GetBool("reset", false),
	}

	var result service.BulkActionResult
	if err := c.sessionCall(ctx, "POST", request.GetString("session_id", ""), "/bulk-action", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBulkActionResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Message string           `json:"message"`
		State   *engine.Snapshot `json:"state"`
	}
	if err := c.sessionCall(ctx, "POST", request.GetString("session_id", ""), "/reset", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message + "\n\n" + formatGameState(response.State)), nil
}

func (c *Client) handleActionHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	if request.GetBool("current_game", false) {
		var session service.SessionInfo
		if err := c.sessionCall(ctx, "GET", sessionID, "", nil, &session); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatCurrentGame(session.GameState)), nil
	}

	query := url.Values{}
	if page := request.GetInt("page", 0); page > 0 {
		query.Set("page", fmt.Sprint(page))
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	if order := request.GetString("order", ""); order != "" {
		query.Set("order", order)
	}
	suffix := "/history"
	if len(query) > 0 {
		suffix += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.sessionCall(ctx, "GET", sessionID, suffix, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleSuggest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var suggestion service.SuggestResult
	if err := c.sessionCall(ctx, "GET", request.GetString("session_id", ""), "/suggest", nil, &suggestion); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSuggestion(&suggestion)), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	row := request.GetInt("row", -1)
	col := request.GetInt("col", -1)

	var state engine.Snapshot
	if err := c.sessionCall(ctx, "GET", request.GetString("session_id", ""), "/state", nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	visible := state.Rows - state.HiddenRows
	if row < 0 || row >= visible || col < 0 || col >= state.Columns {
		return mcp.NewToolResultError(fmt.Sprintf("Cell (%d, %d) is out of bounds. Rows are 0-%d and columns 0-%d",
			row, col, visible-1, state.Columns-1)), nil
	}

	return mcp.NewToolResultText(describeCell(&state, row, col)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []*service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", "", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available presets:\n")
	for _, cfg := range configs {
		seeded := ""
		if cfg.Seeded {
			seeded = ", fixed piece order"
		}
		fmt.Fprintf(&b, "- %s: %s (%dx%d%s) - %s\n", cfg.ConfigID, cfg.Name, cfg.Rows, cfg.Columns, seeded, cfg.Description)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `FALLING BLOCK PUZZLE - RULES

BOARD
- The grid has two hidden rows at the top where pieces spawn. Tools show only the visible rows;
  row 0 is the top visible row and column 0 the leftmost column.
- Pieces are the seven tetrominoes I, J, L, O, S, T and Z. Each is drawn uniformly at random;
  some presets use a fixed seed so the order repeats.

ACTIONS
- left / right: shift the active piece one column
- down: move one row down; if it cannot, the piece locks
- tick: gravity step, same effect as down
- rotate_cw / rotate_ccw: rotate around the piece's box; blocked rotations do nothing (no wall kicks)
- drop: hard drop to the lowest free position and lock immediately
- hold: swap the active piece with the held one (once per piece)

LOCKING AND CLEARING
- A locked piece becomes part of the board, full rows clear and everything above shifts down.
- The next piece spawns at the top. If it overlaps the stack the game is over.

SCORING (multiplied by level + 1)
- 1 line: 40   2 lines: 100   3 lines: 300   4 lines: 1200
- Level = score / 1000. Higher levels make gravity faster for real-time clients.

BOARD LEGEND (game_state)
- '.' empty, '@' active piece, '+' ghost (where drop would land), letters are locked pieces

TIPS
- suggest_placement returns a good rotation and column plus the exact actions; pass them to bulk_act.
- Keep the stack flat and avoid covering holes.`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	result := fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n",
		session.ID, session.ConfigID, session.CreatedAt.Format(time.RFC3339))
	if session.Token != "" {
		result += "Token: remembered for this session\n"
	}
	return result
}

func formatGameState(state *engine.Snapshot) string {
	if state == nil {
		return "No game state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Score: %d | Level: %d | Lines: %d | Pieces: %d | Actions: %d\n",
		state.Score, state.Level, state.LinesCleared, state.PiecesPlaced, state.TotalMoves)

	current := "none"
	if state.Current != nil {
		current = fmt.Sprintf("%s (rotation %d)", state.Current.Kind, state.Current.Rotation)
	}
	held := "none"
	if state.Held != engine.KindNone {
		held = state.Held.String()
		if !state.CanHold {
			held += " (hold used)"
		}
	}
	fmt.Fprintf(&b, "Current: %s | Next: %s | Held: %s | Drop distance: %d\n\n",
		current, state.Next, held, state.DropDistance)

	b.WriteString(state.Board)

	if state.GameOver {
		b.WriteString("\n💀 GAME OVER")
	}
	if state.Message != "" {
		fmt.Fprintf(&b, "\nMessage: %s", state.Message)
	}

	return b.String()
}

func formatEvents(b *strings.Builder, events []service.GameEvent) {
	for _, ev := range events {
		if ev.Type == service.EventAction {
			continue
		}
		fmt.Fprintf(b, "* %s\n", ev.Message)
	}
}

func formatActionResult(result *service.ActionResult) string {
	var b strings.Builder
	if step := result.Step; step != nil {
		status := "✓"
		if !step.Changed {
			status = "✗ (no effect)"
		}
		fmt.Fprintf(&b, "%s %s %s\n", step.Action, step.Kind, status)
	}
	formatEvents(&b, result.Events)
	if result.Message != "" {
		fmt.Fprintf(&b, "%s\n", result.Message)
	}
	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatBulkActionResult(result *service.BulkActionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Executed %d/%d actions", result.ActionsExecuted, result.RequestedActions)
	switch result.StopReasonCode {
	case service.StopGameOver:
		fmt.Fprintf(&b, " (stopped by game over on action %d)", result.StoppedOnAction)
	case service.StopTruncated:
		fmt.Fprintf(&b, " (truncated to %d)", result.Limit)
	}
	fmt.Fprintf(&b, "\nLocked: %d | Lines: %d | Score: %d → %d (%+d)\n",
		result.PiecesLocked, result.LinesCleared, result.StartScore, result.EndScore, result.ScoreDelta)

	for _, step := range result.Steps {
		fmt.Fprintf(&b, "%d. %s\n", step.Idx, formatStep(step))
	}
	formatEvents(&b, result.Events)
	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatStep(step service.StepInfo) string {
	line := fmt.Sprintf("%s %s", step.Action, step.Kind)
	if !step.Changed {
		line += " ✗"
	}
	if step.Locked {
		line += " locked"
	}
	if step.LinesCleared > 0 {
		line += fmt.Sprintf(" cleared %d (+%d)", step.LinesCleared, step.ScoreDelta)
	}
	if step.GameOver {
		line += " GAME OVER"
	}
	return line
}

func formatSuggestion(s *service.SuggestResult) string {
	if s.Best == nil {
		return "No placement available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Best: %s rotation %d at column %d, clears %d, holes %d, height %d\n",
		s.Best.Kind, s.Best.Rotation, s.Best.Column, s.Best.LinesCleared, s.Best.Holes, s.Best.Height)
	fmt.Fprintf(&b, "Actions: %s\n", joinActions(s.Best.Actions))
	if len(s.Alternatives) > 0 {
		b.WriteString("Alternatives:\n")
		for _, alt := range s.Alternatives {
			fmt.Fprintf(&b, "- rotation %d column %d (score %.2f): %s\n", alt.Rotation, alt.Column, alt.Score, joinActions(alt.Actions))
		}
	}
	if s.Board != "" {
		b.WriteString("\n")
		b.WriteString(s.Board)
	}
	return b.String()
}

func joinActions(actions []engine.Action) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Action History (Page %d/%d) - Total (cumulative): %d\n\n",
		history.Page, history.TotalPages, history.TotalMoves)

	for _, move := range history.Moves {
		b.WriteString(formatHistoryLine(move.MoveNumber, move))
	}
	return b.String()
}

func formatHistoryLine(num int, move engine.MoveHistoryEntry) string {
	status := "✓"
	if !move.Changed {
		status = "✗"
	}
	line := fmt.Sprintf("%d. %s %s %s [Score: %d]", num, move.Action, move.Kind, status, move.Score)
	if move.LinesCleared > 0 {
		line += fmt.Sprintf(" cleared %d", move.LinesCleared)
	}
	return line + "\n"
}

func formatCurrentGame(state *engine.Snapshot) string {
	if state == nil {
		return "Current Game: unavailable"
	}
	header := fmt.Sprintf("Current Game - Actions: %d\n\n", state.CurrentMovesCount)
	if len(state.CurrentMoves) == 0 {
		return header + "(no actions in the current game)"
	}
	var b strings.Builder
	b.WriteString(header)
	for i, move := range state.CurrentMoves {
		b.WriteString(formatHistoryLine(i+1, move))
	}
	return b.String()
}

// describeCell reports what occupies a visible cell. row is relative to the
// top visible row.
func describeCell(state *engine.Snapshot, row, col int) string {
	pos := engine.Position{Row: row + state.HiddenRows, Col: col}
	var what string

	switch {
	case state.Current != nil && containsPosition(state.Current.Tiles, pos):
		what = fmt.Sprintf("Active piece %s (rotation %d)", state.Current.Kind, state.Current.Rotation)
	case pos.Row < len(state.Grid) && state.Grid[pos.Row][col] != 0:
		what = fmt.Sprintf("Locked block from a %s piece", engine.Kind(state.Grid[pos.Row][col]))
	case containsPosition(state.Ghost, pos):
		what = "Empty - the active piece would land here on drop"
	default:
		what = "Empty"
	}

	filled := 0
	if pos.Row < len(state.Grid) {
		for _, v := range state.Grid[pos.Row] {
			if v != 0 {
				filled++
			}
		}
	}

	return fmt.Sprintf("Cell (row %d, col %d): %s\nRow fill: %d/%d locked cells\n",
		row, col, what, filled, state.Columns)
}

func containsPosition(tiles []engine.Position, pos engine.Position) bool {
	for _, t := range tiles {
		if t == pos {
			return true
		}
	}
	return false
}
