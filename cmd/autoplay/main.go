// Command autoplay plays server sessions with the placement strategy.
//
// Each piece costs two requests: GET /suggest for the best placement and a
// bulk-action that plays its actions. The session ID and token are saved so
// a later run can keep playing the same session.
//
//	autoplay --url http://localhost:8080 --config sprint --games 5
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
)

// ErrNoPlacement is returned when the server has no move for the current piece
var ErrNoPlacement = errors.New("no placement available")

// Client talks to one session of the REST API
type Client struct {
	baseURL   string
	sessionID string
	token     string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// savedSession is what the session file holds between runs
type savedSession struct {
	ID    string `json:"id"`
	Token string `json:"token,omitempty"`
}

// apiError is the body of every non-2xx response
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + c.sessionID + suffix
}

// CreateSession starts a session and keeps its ID and token
func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &info); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = info.ID
	c.token = info.Token
	return &info, nil
}

// Resume points the client at an existing session
func (c *Client) Resume(sessionID, token string) {
	c.sessionID = sessionID
	c.token = token
}

func (c *Client) GetState(ctx context.Context) (*engine.Snapshot, error) {
	var state engine.Snapshot
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/state"), nil, &state); err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &state, nil
}

func (c *Client) Reset(ctx context.Context) (*engine.Snapshot, error) {
	var resp struct {
		Message string           `json:"message"`
		State   *engine.Snapshot `json:"state"`
	}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/reset"), nil, &resp); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return resp.State, nil
}

// Suggest returns the server's best placement for the current piece
func (c *Client) Suggest(ctx context.Context) (*service.SuggestResult, error) {
	var result service.SuggestResult
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/suggest"), nil, &result); err != nil {
		var e *apiError
		if errors.As(err, &e) && e.Status == http.StatusConflict {
			return nil, ErrNoPlacement
		}
		return nil, fmt.Errorf("suggest: %w", err)
	}
	if result.Best == nil {
		return nil, ErrNoPlacement
	}
	return &result, nil
}

func (c *Client) BulkAct(ctx context.Context, actions []engine.Action) (*service.BulkActionResult, error) {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}

	var result service.BulkActionResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/bulk-action"), map[string]any{"actions": names}, &result); err != nil {
		return nil, fmt.Errorf("bulk action: %w", err)
	}
	return &result, nil
}

// GameResult summarizes one played game
type GameResult struct {
	Pieces int
	State  *engine.Snapshot
}

// PlayOptions bounds a game
type PlayOptions struct {
	MaxPieces int
	Delay     time.Duration
	Verbose   bool
}

// PlayGame places pieces until the game ends, no placement is left or
// MaxPieces pieces have locked.
func PlayGame(ctx context.Context, c *Client, state *engine.Snapshot, opts PlayOptions) (*GameResult, error) {
	result := &GameResult{State: state}

	for !result.State.GameOver && (opts.MaxPieces <= 0 || result.Pieces < opts.MaxPieces) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		suggestion, err := c.Suggest(ctx)
		if errors.Is(err, ErrNoPlacement) {
			break
		}
		if err != nil {
			return result, err
		}

		bulk, err := c.BulkAct(ctx, suggestion.Best.Actions)
		if err != nil {
			return result, err
		}
		result.Pieces += bulk.PiecesLocked
		result.State = bulk.GameState

		if opts.Verbose && result.Pieces%25 == 0 {
			log.Printf("Pieces: %d, Lines: %d, Score: %d, Level: %d",
				result.Pieces, result.State.LinesCleared, result.State.Score, result.State.Level)
		}

		if opts.Delay > 0 {
			time.Sleep(opts.Delay)
		}
	}

	return result, nil
}

func loadSession(path string) (*savedSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var saved savedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if saved.ID == "" {
		return nil, fmt.Errorf("%s has no session id", path)
	}
	return &saved, nil
}

func saveSession(path string, saved savedSession) error {
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// openSession resumes the requested or saved session, creating one when
// neither is usable.
func openSession(ctx context.Context, c *Client, cmd *cli.Command) error {
	sessionFile := cmd.String("session-file")

	saved := &savedSession{ID: cmd.String("session"), Token: cmd.String("token")}
	if saved.ID == "" && sessionFile != "" {
		if s, err := loadSession(sessionFile); err == nil {
			saved = s
		}
	}

	if saved.ID != "" {
		c.Resume(saved.ID, saved.Token)
		_, err := c.GetState(ctx)
		if err == nil {
			log.Printf("🔄 Resuming session: %s", saved.ID)
			return nil
		}
		log.Printf("⚠️  Failed to resume session %s (may be expired): %v", saved.ID, err)
	}

	info, err := c.CreateSession(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	log.Printf("✨ Session created: %s (config %s)", info.ID, info.ConfigID)

	if sessionFile != "" {
		if err := saveSession(sessionFile, savedSession{ID: info.ID, Token: info.Token}); err != nil {
			log.Printf("Warning: Failed to save session ID: %v", err)
		}
	}
	return nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	log.Printf("Connecting to game server at %s", cmd.String("url"))
	client := NewClient(cmd.String("url"))

	if err := openSession(ctx, client, cmd); err != nil {
		return err
	}

	opts := PlayOptions{
		MaxPieces: cmd.Int("max-pieces"),
		Delay:     cmd.Duration("delay"),
		Verbose:   cmd.Bool("verbose"),
	}

	games := cmd.Int("games")
	bestScore, totalLines := 0, 0
	for game := 1; game <= games; game++ {
		state, err := client.Reset(ctx)
		if err != nil {
			return err
		}

		log.Printf("=== 🎮 Game %d/%d ===", game, games)
		result, err := PlayGame(ctx, client, state, opts)
		if err != nil {
			return err
		}

		s := result.State
		log.Printf("Game %d: Pieces=%d, Lines=%d, Score=%d, Level=%d, GameOver=%t",
			game, result.Pieces, s.LinesCleared, s.Score, s.Level, s.GameOver)
		bestScore = max(bestScore, s.Score)
		totalLines += s.LinesCleared
	}

	log.Printf("🏁 %d games, best score %d, %d lines in total", games, bestScore, totalLines)
	log.Printf("Session: %s", client.sessionID)
	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "autoplay",
		Usage: "play server sessions with the placement strategy",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL", Sources: cli.EnvVars("API_URL")},
			&cli.StringFlag{Name: "config", Usage: "Preset for new sessions (server default when empty)"},
			&cli.StringFlag{Name: "session", Usage: "Keep playing an existing session by ID"},
			&cli.StringFlag{Name: "token", Usage: "Token of the session given with --session", Sources: cli.EnvVars("SESSION_TOKEN")},
			&cli.StringFlag{Name: "session-file", Value: ".autoplay-session", Usage: "Where the session ID and token are kept between runs (empty disables)"},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "Games to play; each starts with a reset"},
			&cli.IntFlag{Name: "max-pieces", Value: 1000, Usage: "Pieces per game before stopping (0 = until game over)"},
			&cli.DurationFlag{Name: "delay", Usage: "Pause between pieces, e.g. 200ms, to watch from another client"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Verbose output"},
		},
		Action: run,
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
