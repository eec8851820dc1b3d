// Package session maintains one live sync session per authenticated user:
// a ledger cache, an attachment manager, and a subscribed sync controller.
package session

import (
	"context"
	"log"
	"sync"

	"example.com/fittrack/internal/attachment"
	"example.com/fittrack/internal/document"
	"example.com/fittrack/internal/events"
	"example.com/fittrack/internal/ledger"
	"example.com/fittrack/internal/media"
	"example.com/fittrack/internal/realtime"
	"example.com/fittrack/internal/syncer"
)

// Session bundles the per-user state the API operates on.
type Session struct {
	UserID      string
	Ledger      *ledger.Store
	Attachments *attachment.Manager
	Controller  *syncer.Controller
}

// Manager lazily hydrates sessions and tears them down on sign-out.
type Manager struct {
	store     document.Store
	watcher   document.Watcher
	blobs     media.BlobStore
	hub       *realtime.Hub
	publisher events.Publisher
	weight    float64
	logger    *log.Logger

	// baseCtx outlives any single request: subscriptions must survive the
	// request that hydrated the session.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures optional Manager behaviour.
type Option func(*Manager)

// WithPublisher forwards committed ledger writes to an event publisher.
func WithPublisher(publisher events.Publisher) Option {
	return func(m *Manager) { m.publisher = publisher }
}

// WithDefaultBodyWeight sets the weight assumed for profiles without one.
func WithDefaultBodyWeight(kg float64) Option {
	return func(m *Manager) { m.weight = kg }
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager constructs a Manager. hub may be nil when no realtime fan-out is
// wanted.
func NewManager(store document.Store, watcher document.Watcher, blobs media.BlobStore, hub *realtime.Hub, opts ...Option) *Manager {
	baseCtx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    store,
		watcher:  watcher,
		blobs:    blobs,
		hub:      hub,
		logger:   log.New(log.Writer(), "[session] ", log.LstdFlags),
		baseCtx:  baseCtx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the user's live session, hydrating one on first use: the
// controller subscribes to the remote document and the ledger cache fills
// from the first snapshot.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[userID]; ok {
		return sess, nil
	}

	cache := ledger.NewStore()
	attachments := attachment.NewManager(userID, nil, m.blobs)

	opts := []syncer.Option{syncer.WithLogger(m.logger)}
	if m.publisher != nil {
		opts = append(opts, syncer.WithPublisher(m.publisher))
	}
	if m.weight > 0 {
		opts = append(opts, syncer.WithDefaultBodyWeight(m.weight))
	}
	if m.hub != nil {
		hub := m.hub
		opts = append(opts, syncer.WithOnSnapshot(func(snap document.Snapshot) {
			hub.BroadcastSnapshot(userID, snap.Document.Workouts)
		}))
	}

	// Subscribe against the manager's own context, not the caller's: the
	// hydrating request ends long before the session does, and a watch bound
	// to it would stop delivering remote changes once the request is done.
	controller := syncer.NewController(userID, m.store, m.watcher, cache, attachments, opts...)
	if _, err := controller.Subscribe(m.baseCtx); err != nil {
		return nil, err
	}

	sess := &Session{
		UserID:      userID,
		Ledger:      cache,
		Attachments: attachments,
		Controller:  controller,
	}
	m.sessions[userID] = sess
	return sess, nil
}

// SignOut tears the user's session down. Idempotent: signing out a user with
// no session is a no-op.
func (m *Manager) SignOut(ctx context.Context, userID string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return
	}
	sess.Controller.Close(ctx)
}

// Active reports how many sessions are live.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown closes every live session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Controller.Close(ctx)
	}
}
