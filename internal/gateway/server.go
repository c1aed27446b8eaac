// Package gateway holds the websocket connections of one process and fans
// broadcasts out to them and, through the Adapter, to every peer process.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cuongbtq/social-backbone/internal/metrics"
)

type Config struct {
	// AllowedOrigin is matched against the Origin header; "*" or empty
	// allows any origin.
	AllowedOrigin  string
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	InboundRPS     float64
	InboundBurst   int
}

func (c *Config) applyDefaults() {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 << 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = 1
	}
}

// ConnectHandler is invoked for every accepted connection.
type ConnectHandler func(c *Conn)

// Server is the gateway of one process. Create one with New and pass it to
// whatever needs to broadcast.
type Server struct {
	config   Config
	adapter  *Adapter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	node     string
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	conns    map[string]*Conn
	rooms    map[string]map[string]*Conn
	handlers []ConnectHandler

	ready atomic.Bool
}

// New creates a gateway. A nil adapter keeps every broadcast local.
func New(config Config, adapter *Adapter, logger *slog.Logger, m *metrics.Metrics) *Server {
	config.applyDefaults()
	s := &Server{
		config:  config,
		adapter: adapter,
		logger:  logger,
		metrics: m,
		node:    uuid.New().String(),
		conns:   make(map[string]*Conn),
		rooms:   make(map[string]map[string]*Conn),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Node identifies this process in replicated envelopes.
func (s *Server) Node() string {
	return s.node
}

// OnConnect registers h for every connection accepted from now on.
func (s *Server) OnConnect(h ConnectHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Start subscribes the adapter. Connections are refused until it returns
// successfully.
func (s *Server) Start(ctx context.Context) error {
	if s.adapter != nil {
		if err := s.adapter.Start(ctx, s.node, s.deliverRemote); err != nil {
			return err
		}
	}
	s.ready.Store(true)
	s.logger.Info("Gateway started",
		slog.String("node", s.node),
		slog.Bool("replicated", s.adapter != nil),
	)
	return nil
}

func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Replicating reports whether broadcasts currently reach peer processes.
func (s *Server) Replicating() bool {
	return s.adapter != nil && s.adapter.Connected()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.config.AllowedOrigin
	if allowed == "" || allowed == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || strings.EqualFold(origin, allowed)
}

// ServeHTTP upgrades the request to a websocket connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		http.Error(w, ErrNotStarted.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err),
		)
		return
	}

	c := newConn(s, ws, r.RemoteAddr)
	go c.writePump()
	s.attach(c)
	go c.readPump()
}

// attach registers c and runs the connect handlers.
func (s *Server) attach(c *Conn) {
	s.mu.Lock()
	s.conns[c.ID] = c
	handlers := append([]ConnectHandler(nil), s.handlers...)
	s.mu.Unlock()

	s.metrics.ConnectionOpened()
	c.logger.Debug("Client connected", slog.String("remote_addr", c.RemoteAddr))

	for _, h := range handlers {
		s.runConnectHandler(c, h)
	}
}

func (s *Server) runConnectHandler(c *Conn, h ConnectHandler) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Connect handler panicked", slog.Any("panic", r))
		}
	}()
	h(c)
}

func (s *Server) detach(c *Conn) {
	s.mu.Lock()
	if _, ok := s.conns[c.ID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.conns, c.ID)
	for room, members := range s.rooms {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(s.rooms, room)
		}
	}
	s.mu.Unlock()

	s.metrics.ConnectionClosed()
	c.logger.Debug("Client disconnected")
}

func (s *Server) join(c *Conn, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[c.ID]; !ok {
		return
	}
	members, ok := s.rooms[room]
	if !ok {
		members = make(map[string]*Conn)
		s.rooms[room] = members
	}
	members[c.ID] = c
}

func (s *Server) leave(c *Conn, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if members, ok := s.rooms[room]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(s.rooms, room)
		}
	}
}

func (s *Server) dropSlow(c *Conn) {
	c.logger.Warn("Send buffer full, dropping slow client")
	c.close()
}

// ConnectionCount returns the open connections on this process.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// RoomSize returns the local connections that joined room.
func (s *Server) RoomSize(room string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[room])
}

// Broadcast delivers event to the local connections in scope, then
// replicates it to peer processes. A replication failure is logged as a
// *BroadcastError and does not undo local delivery; only encoding errors are
// returned.
func (s *Server) Broadcast(ctx context.Context, scope Scope, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %q payload: %w", event, err)
	}

	n, err := s.deliverLocal(scope, event, data)
	if err != nil {
		return err
	}

	if s.adapter == nil {
		s.metrics.Broadcast(metrics.BroadcastLocalOnly)
		return nil
	}

	env := Envelope{Node: s.node, Global: scope.global, Room: scope.room, Event: event, Data: data}
	if err := s.adapter.Publish(ctx, env); err != nil {
		berr := &BroadcastError{Event: event, Scope: scope.String(), Err: err}
		s.logger.Warn("Broadcast delivered locally only",
			slog.Int("local_recipients", n),
			slog.Any("error", berr),
		)
		s.metrics.Broadcast(metrics.BroadcastLocalOnly)
		return nil
	}

	s.metrics.Broadcast(metrics.BroadcastReplicated)
	s.logger.Debug("Broadcast sent",
		slog.String("event", event),
		slog.String("scope", scope.String()),
		slog.Int("local_recipients", n),
	)
	return nil
}

func (s *Server) deliverRemote(env Envelope) {
	s.metrics.RemoteEvent()
	if _, err := s.deliverLocal(env.scope(), env.Event, env.Data); err != nil {
		s.logger.Warn("Dropping remote broadcast",
			slog.String("event", env.Event),
			slog.String("from_node", env.Node),
			slog.Any("error", err),
		)
	}
}

// deliverLocal writes one frame to every local connection in scope.
func (s *Server) deliverLocal(scope Scope, event string, data json.RawMessage) (int, error) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %q frame: %w", event, err)
	}

	s.mu.RLock()
	var targets []*Conn
	switch {
	case scope.global:
		targets = make([]*Conn, 0, len(s.conns))
		for _, c := range s.conns {
			targets = append(targets, c)
		}
	case scope.room != "":
		members := s.rooms[scope.room]
		targets = make([]*Conn, 0, len(members))
		for _, c := range members {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(frame) {
			s.dropSlow(c)
		}
	}
	return len(targets), nil
}

// Close refuses new connections and closes every open one.
func (s *Server) Close() {
	s.ready.Store(false)

	s.mu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.close()
	}
	s.logger.Info("Gateway closed", slog.Int("connections", len(conns)))
}
