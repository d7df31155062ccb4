package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/listenupapp/watchtrack/internal/id"
)

// Client is a connected stream consumer.
type Client struct {
	ID          string
	UserID      string // empty receives every user's events
	ConnectedAt time.Time
	Events      chan Event
	Done        chan struct{}
}

// Manager fans events out to connected clients.
type Manager struct {
	clients           map[string]*Client
	events            chan Event
	logger            *slog.Logger
	heartbeatInterval time.Duration
	clientBuffer      int
	mu                sync.RWMutex
	wg                sync.WaitGroup

	shutdownMu sync.RWMutex
	shutdown   bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithHeartbeatInterval overrides the 30s heartbeat.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(m *Manager) { m.heartbeatInterval = d }
}

// NewManager creates a Manager. Call Start to begin broadcasting.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		clients:           make(map[string]*Client),
		events:            make(chan Event, 1000),
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
		clientBuffer:      100,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the broadcast loop until ctx is canceled or Shutdown is called.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.logger.Info("SSE manager starting")

	heartbeat := time.NewTicker(m.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-m.events:
			if !ok {
				return
			}
			m.broadcast(event)
		case <-heartbeat.C:
			m.broadcast(NewHeartbeatEvent())
		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			m.closeAllClients()
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is queued and disconnects
// every client.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownMu.Lock()
	if m.shutdown {
		m.shutdownMu.Unlock()
		return nil
	}
	m.shutdown = true
	close(m.events)
	m.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range m.events {
			m.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("SSE event drain timed out, some events may be lost")
	}

	m.wg.Wait()
	m.closeAllClients()
	m.logger.Info("SSE manager shutdown complete")
	return nil
}

// Emit queues an event. Events emitted after Shutdown, or while the queue is
// full, are dropped.
func (m *Manager) Emit(event Event) {
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()

	if m.shutdown {
		return
	}

	select {
	case m.events <- event:
	default:
		m.logger.Error("SSE event queue full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}

// broadcast delivers event to every matching client without blocking.
func (m *Manager) broadcast(event Event) {
	var delivered, filtered, dropped int

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.clients {
		if event.UserID != "" && client.UserID != "" && event.UserID != client.UserID {
			filtered++
			continue
		}
		select {
		case client.Events <- event:
			delivered++
		default:
			dropped++
			m.logger.Warn("dropped event for slow client",
				slog.String("client_id", client.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	if event.Type != EventHeartbeat {
		m.logger.Debug("event broadcast",
			slog.String("event_type", string(event.Type)),
			slog.Group("stats",
				slog.Int("delivered", delivered),
				slog.Int("filtered", filtered),
				slog.Int("dropped", dropped)))
	}
}

// Connect registers a client that receives events for userID.
func (m *Manager) Connect(userID string) (*Client, error) {
	clientID, err := id.Generate(id.PrefixClient)
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		UserID:      userID,
		ConnectedAt: time.Now(),
		Events:      make(chan Event, m.clientBuffer),
		Done:        make(chan struct{}),
	}

	m.mu.Lock()
	m.clients[clientID] = client
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		slog.String("client_id", clientID),
		slog.String("user_id", userID),
		slog.Int("total_clients", total))
	return client, nil
}

// Disconnect removes a client. It is safe to call more than once.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
	}
	total := len(m.clients)
	m.mu.Unlock()

	if !ok {
		return
	}
	close(client.Done)

	m.logger.Info("SSE client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(client.ConnectedAt)),
		slog.Int("total_clients", total))
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		close(c.Done)
	}
}
