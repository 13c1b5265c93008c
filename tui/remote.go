package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/tetris-engine/game/engine"
	"github.com/wricardo/tetris-engine/game/service"
	wshub "github.com/wricardo/tetris-engine/transport/websocket"
)

// Logger is the logging dependency of the remote driver. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// RemoteDriver plays a session hosted by the server. Actions go through the
// REST API and state arrives over the session's websocket stream.
type RemoteDriver struct {
	baseURL   string
	sessionID string
	token     string

	// Gravity makes the driver send tick actions at the session's tick delay
	Gravity bool

	httpClient *http.Client
	dialer     *websocket.Dialer
	feed       *feed
	log        Logger
}

// NewRemoteDriver creates a driver for an existing session. token may be
// empty when the server does not issue session tokens.
func NewRemoteDriver(baseURL, sessionID, token string) *RemoteDriver {
	return &RemoteDriver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sessionID:  strings.ToLower(sessionID),
		token:      token,
		Gravity:    true,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     websocket.DefaultDialer,
		feed:       newFeed(),
		log:        log.Default(),
	}
}

// SetLogger replaces the driver logger
func (d *RemoteDriver) SetLogger(l Logger) {
	d.log = l
}

// CreateRemoteSession creates a session on the server and returns its ID and token
func CreateRemoteSession(ctx context.Context, baseURL, configID string) (*service.SessionInfo, error) {
	d := NewRemoteDriver(baseURL, "", "")
	var info service.SessionInfo
	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}
	if err := d.call(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Start loads the session state and subscribes to its websocket stream
func (d *RemoteDriver) Start(ctx context.Context) (<-chan *engine.Snapshot, error) {
	var state engine.Snapshot
	if err := d.call(ctx, "GET", d.sessionPath("/state"), nil, &state); err != nil {
		return nil, fmt.Errorf("loading session %s: %w", d.sessionID, err)
	}

	wsURL, err := d.websocketURL()
	if err != nil {
		return nil, err
	}
	conn, _, err := d.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", wsURL, err)
	}

	d.feed.publish(&state)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go d.listen(conn)
	if d.Gravity {
		go d.gravity(ctx)
	}
	return d.feed.ch, nil
}

// listen forwards state updates until the connection closes
func (d *RemoteDriver) listen(conn *websocket.Conn) {
	defer d.feed.close()
	for {
		var msg wshub.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				d.log.Printf("WebSocket error: %v", err)
			}
			return
		}
		switch {
		case msg.Event == wshub.EventError:
			d.log.Printf("Server rejected action: %v", msg.Data)
		case msg.GameState != nil:
			d.feed.publish(msg.GameState)
		}
	}
}

func (d *RemoteDriver) gravity(ctx context.Context) {
	timer := time.NewTimer(d.tickDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if latest := d.feed.Latest(); latest != nil && !latest.GameOver {
				if err := d.Act(ctx, engine.ActionTick); err != nil && ctx.Err() == nil {
					d.log.Printf("Warning: gravity tick failed: %v", err)
				}
			}
			timer.Reset(d.tickDelay())
		}
	}
}

func (d *RemoteDriver) tickDelay() time.Duration {
	if latest := d.feed.Latest(); latest != nil && latest.TickDelayMS > 0 {
		return time.Duration(latest.TickDelayMS) * time.Millisecond
	}
	return engine.DefaultTickBaseMS * time.Millisecond
}

// Act sends one action to the session
func (d *RemoteDriver) Act(ctx context.Context, action engine.Action) error {
	var result service.ActionResult
	body := map[string]string{"action": string(action)}
	if err := d.call(ctx, "POST", d.sessionPath("/action"), body, &result); err != nil {
		return err
	}
	d.feed.publish(result.GameState)
	return nil
}

// Reset starts a new game in the session
func (d *RemoteDriver) Reset(ctx context.Context) error {
	var result struct {
		State *engine.Snapshot `json:"state"`
	}
	if err := d.call(ctx, "POST", d.sessionPath("/reset"), nil, &result); err != nil {
		return err
	}
	d.feed.publish(result.State)
	return nil
}

func (d *RemoteDriver) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(d.sessionID) + suffix
}

func (d *RemoteDriver) websocketURL() (string, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", d.baseURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := url.Values{}
	q.Set("session", d.sessionID)
	if d.token != "" {
		q.Set("token", d.token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// call makes a REST request and decodes the JSON answer into result
func (d *RemoteDriver) call(ctx context.Context, method, path string, body, result any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.httpClient.Do(req)
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
