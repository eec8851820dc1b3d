package document

import (
	"context"
	"sync"

	"example.com/fittrack/internal/domain"
)

// MemoryStore is an in-memory Store and Watcher used by tests and local
// development. It mirrors the Postgres semantics: whole-field replacement of
// workouts, self-notification of writes, and not-found as a valid state.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]domain.UserDocument
	subs     map[string][]*memorySubscription
	readErr  error
	writeErr error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]domain.UserDocument),
		subs: make(map[string][]*memorySubscription),
	}
}

// Seed installs a document without notifying watchers.
func (m *MemoryStore) Seed(userID string, doc domain.UserDocument) {
	m.mu.Lock()
	m.docs[userID] = doc
	m.mu.Unlock()
}

// FailReads makes Get return err until reset with nil.
func (m *MemoryStore) FailReads(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

// FailWrites makes SetWorkouts return err until reset with nil.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, userID string) (domain.UserDocument, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return domain.UserDocument{}, false, m.readErr
	}
	doc, ok := m.docs[userID]
	if !ok {
		return domain.UserDocument{}, false, nil
	}
	return cloneDocument(doc), true, nil
}

// SetWorkouts implements Store, preserving profile fields and notifying every
// watcher of the user, including the writer's own subscription.
func (m *MemoryStore) SetWorkouts(ctx context.Context, userID string, workouts []domain.WorkoutRecord) error {
	m.mu.Lock()
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return err
	}
	doc := m.docs[userID]
	doc.Workouts = append([]domain.WorkoutRecord(nil), workouts...)
	m.docs[userID] = doc

	snap := Snapshot{Exists: true, Document: cloneDocument(doc)}
	subs := append([]*memorySubscription(nil), m.subs[userID]...)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.push(snap)
	}
	return nil
}

// Watch implements Watcher. The current snapshot is delivered immediately.
func (m *MemoryStore) Watch(ctx context.Context, userID string) (Subscription, error) {
	sub := &memorySubscription{
		ch:     make(chan Snapshot, 1),
		store:  m,
		userID: userID,
	}

	m.mu.Lock()
	doc, exists := m.docs[userID]
	m.subs[userID] = append(m.subs[userID], sub)
	m.mu.Unlock()

	sub.push(Snapshot{Exists: exists, Document: cloneDocument(doc)})
	return sub, nil
}

func (m *MemoryStore) drop(userID string, target *memorySubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[userID]
	for i, sub := range subs {
		if sub == target {
			m.subs[userID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

type memorySubscription struct {
	ch     chan Snapshot
	store  *MemoryStore
	userID string
	once   sync.Once

	mu     sync.Mutex
	closed bool
}

func (s *memorySubscription) Snapshots() <-chan Snapshot {
	return s.ch
}

// Cancel implements Subscription; safe to call multiple times.
func (s *memorySubscription) Cancel() {
	s.once.Do(func() {
		s.store.drop(s.userID, s)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
	})
}

func (s *memorySubscription) push(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

func cloneDocument(doc domain.UserDocument) domain.UserDocument {
	out := doc
	out.Workouts = append([]domain.WorkoutRecord(nil), doc.Workouts...)
	return out
}
