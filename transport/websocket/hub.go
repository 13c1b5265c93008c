package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/tetris-engine/game/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Time allowed for an inbound action to be applied.
	actionTimeout = 5 * time.Second
)

// Event names carried in Message.Event.
const (
	EventStateUpdate = "state_update"
	EventError       = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Logger is the logging dependency of the hub. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Message represents a WebSocket message sent to clients
type Message struct {
	SessionID string           `json:"session_id"`
	GameState *engine.Snapshot `json:"game_state,omitempty"`
	Event     string           `json:"event,omitempty"`
	Data      any              `json:"data,omitempty"`
}

// ActionRequest is an inbound client message asking to play the session.
// Token is taken from the connection's query string, not the message.
type ActionRequest struct {
	SessionID string   `json:"-"`
	Token     string   `json:"-"`
	Action    string   `json:"action,omitempty"`
	Actions   []string `json:"actions,omitempty"`
	Reset     bool     `json:"reset,omitempty"`
}

// ActionHandler applies an inbound action. It is expected to broadcast the
// resulting state itself; a returned error is sent back to the caller only.
type ActionHandler func(ctx context.Context, req ActionRequest) error

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	token     string
}

type directMessage struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by lower-case session ID
	sessions map[string]map[*Client]bool
	mu       sync.RWMutex

	// Outbound messages for every client of a session
	broadcast chan *Message

	// Outbound messages for a single client
	direct chan directMessage

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns; sends after that are dropped
	done     chan struct{}
	stopOnce sync.Once

	onAction ActionHandler
	log      Logger
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, engine.WebSocketBufferSize),
		direct:     make(chan directMessage, engine.WebSocketBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.Default(),
	}
}

// SetLogger replaces the hub logger
func (h *Hub) SetLogger(l Logger) {
	h.log = l
}

// SetActionHandler installs the handler for inbound client actions. Without
// one, inbound messages are ignored.
func (h *Hub) SetActionHandler(handler ActionHandler) {
	h.onAction = handler
}

// Run starts the hub's event loop and returns when ctx is done. A stopped
// hub refuses new connections and drops broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case msg := <-h.direct:
			h.deliver(msg.client, msg.data)
		}
	}
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, engine.WebSocketBufferSize),
		sessionID: strings.ToLower(sessionID),
		token:     r.URL.Query().Get("token"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// BroadcastToSession sends a game state update to all clients in a session
func (h *Hub) BroadcastToSession(sessionID string, state *engine.Snapshot) {
	h.send(&Message{
		SessionID: strings.ToLower(sessionID),
		GameState: state,
		Event:     EventStateUpdate,
	})
}

// BroadcastEvent sends a custom event to all clients in a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data any) {
	h.send(&Message{
		SessionID: strings.ToLower(sessionID),
		Event:     event,
		Data:      data,
	})
}

func (h *Hub) send(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// Stopped reports whether Run has returned
func (h *Hub) Stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of clients watching a session
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[strings.ToLower(sessionID)])
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	h.log.Printf("Client registered for session %s (total clients: %d)",
		client.sessionID, len(h.sessions[client.sessionID]))
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)

	// Clean up empty sessions
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}

	h.log.Printf("Client unregistered from session %s (remaining clients: %d)",
		client.sessionID, len(clients))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.sessions {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// broadcastMessage sends a message to all clients in a session
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.sessions[message.SessionID] {
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, drop it
			h.removeLocked(client)
		}
	}
}

// deliver sends data to one client if it is still registered
func (h *Hub) deliver(client *Client, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.sessions[client.sessionID][client] {
		return
	}
	select {
	case client.send <- data:
	default:
		h.removeLocked(client)
	}
}

// reply queues a message for a single client
func (c *Client) reply(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		c.hub.log.Printf("Failed to marshal reply: %v", err)
		return
	}
	select {
	case c.hub.direct <- directMessage{client: c, data: data}:
	case <-c.hub.done:
	}
}

// handle parses an inbound frame and forwards it to the action handler
func (c *Client) handle(raw []byte) {
	if c.hub.onAction == nil {
		return
	}

	var req ActionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.reply(&Message{SessionID: c.sessionID, Event: EventError, Data: "invalid message: " + err.Error()})
		return
	}
	if req.Action == "" && len(req.Actions) == 0 && !req.Reset {
		return
	}
	req.SessionID = c.sessionID
	req.Token = c.token

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	if err := c.hub.onAction(ctx, req); err != nil {
		c.reply(&Message{SessionID: c.sessionID, Event: EventError, Data: err.Error()})
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Printf("WebSocket error: %v", err)
			}
			break
		}
		c.handle(message)
	}
}

// writePump pumps messages from the hub to the WebSocket connection. Each
// message is written as its own frame so clients can decode frames as JSON.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
