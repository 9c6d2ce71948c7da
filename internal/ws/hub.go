// Package ws is the live session channel. Every committed exchange or status
// change is fanned out to all sockets attached to that session.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/internal/service"
	"fraud-advisor/backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Messages a client may queue while one is being answered
	inboxSize = 8

	// CloseUnknownSession is sent when the socket names no visible session
	CloseUnknownSession = 4004
)

// Frame types
const (
	FrameSessionInfo = "session_info"
	FrameMessage     = "message"
	FrameExchange    = "exchange"
	FrameStatus      = "status"
	FrameErrorType   = "error"
	FramePing        = "ping"
	FramePong        = "pong"
)

// Frame is the JSON envelope in both directions
type Frame struct {
	Type           string                  `json:"type"`
	SessionID      string                  `json:"session_id,omitempty"`
	Session        *models.ChatSession     `json:"session,omitempty"`
	Exchange       *service.ExchangeResult `json:"exchange,omitempty"`
	Content        string                  `json:"content,omitempty"`
	IdempotencyKey string                  `json:"idempotency_key,omitempty"`
	Error          *FrameError             `json:"error,omitempty"`
}

// FrameError is carried by error frames
type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChatPipeline is the part of the chat service the socket drives
type ChatPipeline interface {
	GetSession(ctx context.Context, actor service.Actor, sessionID string) (*models.ChatSession, error)
	SendMessage(ctx context.Context, actor service.Actor, sessionID, content, idempotencyKey string) (*service.ExchangeResult, error)
}

type envelope struct {
	sessionID string
	data      []byte
}

// Hub tracks sockets per session and implements service.Notifier
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client

	chat     ChatPipeline
	mapError func(error) FrameError
	log      *logger.Logger

	// ctx is the parent of every client context; cancelled when Run returns
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// NewHub creates a hub. mapError turns pipeline errors into client-facing codes.
func NewHub(chat ChatPipeline, mapError func(error) FrameError, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.GetGlobal()
	}
	if mapError == nil {
		mapError = func(error) FrameError {
			return FrameError{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		chat:       chat,
		mapError:   mapError,
		log:        log.With("component", "ws"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run owns the client registry until ctx is done. Call it once, before serving sockets.
// Stopping it cancels every in-flight pipeline call made for a socket.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.cancel()
			h.mu.Lock()
			for sessionID, set := range h.clients {
				for client := range set {
					close(client.send)
				}
				delete(h.clients, sessionID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[client.sessionID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[client.sessionID] = set
			}
			set[client] = true
			h.mu.Unlock()
			h.log.Debug("Client registered", "sessionId", client.sessionID, "clientId", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.sessionID] {
				select {
				case client.send <- msg.data:
				default:
					h.remove(client)
					h.log.Warn("Client removed due to blocked channel", "sessionId", msg.sessionID, "clientId", client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.sessionID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.sessionID)
	}
}

// Publish queues ev for every socket of its session. Never blocks the caller.
func (h *Hub) Publish(ev service.Event) {
	data, err := json.Marshal(Frame{
		Type:      string(ev.Type),
		SessionID: ev.SessionID,
		Session:   ev.Session,
		Exchange:  ev.Exchange,
	})
	if err != nil {
		h.log.LogError(err, "Failed to encode event", "sessionId", ev.SessionID)
		return
	}

	select {
	case h.broadcast <- envelope{sessionID: ev.SessionID, data: data}:
	default:
		h.log.Warn("Broadcast queue full, dropping event", "sessionId", ev.SessionID, "type", string(ev.Type))
	}
}

// ClientCount reports how many sockets are attached to a session
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

var _ service.Notifier = (*Hub)(nil)

// Client is one socket attached to a session
type Client struct {
	id        string
	sessionID string
	actor     service.Actor
	conn      *websocket.Conn
	send      chan []byte
	inbox     chan Frame
	hub       *Hub
	log       *logger.Logger

	// ctx ends when the socket's read side fails, abandoning any exchange
	// still waiting on generation
	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(h *Hub, conn *websocket.Conn, sessionID string, actor service.Actor, log *logger.Logger) *Client {
	ctx, cancel := context.WithCancel(h.ctx)
	return &Client{
		id:        uuid.NewString(),
		sessionID: sessionID,
		actor:     actor,
		conn:      conn,
		send:      make(chan []byte, 256),
		inbox:     make(chan Frame, inboxSize),
		hub:       h,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// readPump keeps reading while messages are processed so a disconnect is
// noticed mid-generation
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		close(c.inbox)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("Websocket read failed", "error", err.Error())
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError(FrameError{Code: "VALIDATION_ERROR", Message: "Frames must be JSON objects"})
			continue
		}

		switch frame.Type {
		case FrameMessage:
			select {
			case c.inbox <- frame:
			default:
				c.sendError(FrameError{Code: "TOO_MANY_REQUESTS", Message: "Wait for the previous replies before sending more"})
			}
		case FramePing:
			c.sendFrame(Frame{Type: FramePong})
		default:
			c.sendError(FrameError{Code: "VALIDATION_ERROR", Message: "Unknown frame type " + frame.Type})
		}
	}
}

// processMessages answers queued messages one at a time, in order
func (c *Client) processMessages() {
	for frame := range c.inbox {
		c.handleMessage(frame)
	}
}

// handleMessage runs the pipeline. The resulting exchange reaches this socket
// through the session broadcast; only replays are answered directly.
func (c *Client) handleMessage(frame Frame) {
	if c.ctx.Err() != nil {
		return
	}
	ctx := logger.IntoContext(c.ctx, c.log)
	result, err := c.hub.chat.SendMessage(ctx, c.actor, c.sessionID, frame.Content, frame.IdempotencyKey)
	if err != nil {
		if c.ctx.Err() != nil {
			c.log.Info("Socket closed before the reply was ready, exchange dropped")
			return
		}
		c.sendError(c.hub.mapError(err))
		return
	}
	if result.Replayed {
		c.sendFrame(Frame{Type: FrameExchange, SessionID: c.sessionID, Exchange: result})
	}
}

func jsonFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

func (c *Client) sendFrame(f Frame) {
	data, err := jsonFrame(f)
	if err != nil {
		c.log.LogError(err, "Failed to encode frame")
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c.sessionID][c] {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn("Dropping frame for slow client", "type", f.Type)
	}
}

func (c *Client) sendError(e FrameError) {
	c.sendFrame(Frame{Type: FrameErrorType, SessionID: c.sessionID, Error: &e})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
