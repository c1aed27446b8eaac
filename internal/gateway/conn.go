package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// EventHandler handles one inbound event on a connection. A returned error
// is reported to the client as an "error" event.
type EventHandler func(ctx context.Context, c *Conn, data json.RawMessage) error

// Conn is one client connection.
type Conn struct {
	ID         string
	RemoteAddr string

	server  *Server
	ws      *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu           sync.Mutex
	rooms        map[string]struct{}
	handlers     map[string][]EventHandler
	onDisconnect []func()
}

func newConn(s *Server, ws *websocket.Conn, remoteAddr string) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()

	limit := rate.Inf
	if s.config.InboundRPS > 0 {
		limit = rate.Limit(s.config.InboundRPS)
	}

	return &Conn{
		ID:         id,
		RemoteAddr: remoteAddr,
		server:     s,
		ws:         ws,
		send:       make(chan []byte, s.config.SendBuffer),
		limiter:    rate.NewLimiter(limit, s.config.InboundBurst),
		logger:     s.logger.With(slog.String("conn_id", id)),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		rooms:      make(map[string]struct{}),
		handlers:   make(map[string][]EventHandler),
	}
}

// Context ends when the connection closes.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// On adds a handler for an inbound event.
func (c *Conn) On(event string, h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnDisconnect adds a hook run once when the connection closes.
func (c *Conn) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, fn)
}

// Join adds the connection to room on this process.
func (c *Conn) Join(room string) {
	if room == "" || c.closed() {
		return
	}
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
	c.server.join(c, room)
}

func (c *Conn) Leave(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
	c.server.leave(c, room)
}

// Rooms lists the joined rooms in order.
func (c *Conn) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	return rooms
}

// Emit sends an event to this connection only.
func (c *Conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %q payload: %w", event, err)
	}
	frame, err := encodeFrame(event, data)
	if err != nil {
		return fmt.Errorf("failed to encode %q frame: %w", event, err)
	}
	if !c.enqueue(frame) {
		c.server.dropSlow(c)
	}
	return nil
}

// enqueue reports false only when the send buffer is full.
func (c *Conn) enqueue(frame []byte) bool {
	if c.closed() {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) dispatch(f Frame) {
	c.mu.Lock()
	handlers := append([]EventHandler(nil), c.handlers[f.Event]...)
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debug("No handler for inbound event", slog.String("event", f.Event))
		return
	}
	for _, h := range handlers {
		c.invoke(f.Event, h, f.Data)
	}
}

func (c *Conn) invoke(event string, h EventHandler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Event handler panicked",
				slog.String("event", event),
				slog.Any("panic", r),
			)
		}
	}()

	if err := h(c.ctx, c, data); err != nil {
		c.logger.Warn("Event handler failed",
			slog.String("event", event),
			slog.Any("error", err),
		)
		_ = c.Emit("error", map[string]string{"event": event, "message": err.Error()})
	}
}

// close detaches the connection and runs the disconnect hooks exactly once.
func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
		c.server.detach(c)

		c.mu.Lock()
		hooks := c.onDisconnect
		c.onDisconnect = nil
		c.mu.Unlock()

		for _, fn := range hooks {
			fn()
		}
	})
}

func (c *Conn) readPump() {
	defer func() {
		c.close()
		c.ws.Close()
	}()

	cfg := c.server.config
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Connection read error", slog.Any("error", err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.logger.Warn("Inbound rate limit exceeded, dropping frame")
			continue
		}

		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil || f.Event == "" {
			c.logger.Debug("Dropping malformed frame", slog.Int("size", len(msg)))
			_ = c.Emit("error", map[string]string{"message": "malformed frame"})
			continue
		}
		c.dispatch(f)
	}
}

func (c *Conn) writePump() {
	cfg := c.server.config
	ticker := time.NewTicker(cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
