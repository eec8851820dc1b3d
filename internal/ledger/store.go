// Package ledger holds the in-memory cache of a user's ordered workout
// collection together with the state of the current edit session.
package ledger

import (
	"fmt"
	"sync"

	"example.com/fittrack/internal/domain"
)

// Store is a read-through cache of the remote workout collection. It is
// rebuilt wholesale on every remote change notification and never merged.
// It also tracks the edit cursor and the gained-calories accumulator for the
// in-progress edit session.
type Store struct {
	mu      sync.RWMutex
	records []domain.WorkoutRecord
	editing *int
	gained  float64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// ReplaceAll overwrites the cached collection with the snapshot received from
// the remote document. Overwrite, not merge: the remote copy wins entirely.
func (s *Store) ReplaceAll(records []domain.WorkoutRecord) {
	copied := cloneRecords(records)
	s.mu.Lock()
	s.records = copied
	s.mu.Unlock()
}

// Snapshot returns a copy of the cached collection in display order.
func (s *Store) Snapshot() []domain.WorkoutRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// Len reports the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// BeginEdit points the edit cursor at an existing record so the next staged
// upsert replaces instead of appending.
func (s *Store) BeginEdit(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return fmt.Errorf("%w: edit index %d out of range", domain.ErrValidation, index)
	}
	idx := index
	s.editing = &idx
	return nil
}

// EditingIndex returns the edit cursor, if set.
func (s *Store) EditingIndex() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.editing == nil {
		return 0, false
	}
	return *s.editing, true
}

// ResetEdit clears the edit cursor and the gained-calories accumulator. Called
// after a committed save and on session teardown.
func (s *Store) ResetEdit() {
	s.mu.Lock()
	s.editing = nil
	s.gained = 0
	s.mu.Unlock()
}

// AddCalories increments the in-progress record's gained-calories accumulator.
func (s *Store) AddCalories(calories float64) {
	if calories <= 0 {
		return
	}
	s.mu.Lock()
	s.gained += calories
	s.mu.Unlock()
}

// RemoveCalories decrements the accumulator, flooring at zero.
func (s *Store) RemoveCalories(calories float64) {
	if calories <= 0 {
		return
	}
	s.mu.Lock()
	s.gained -= calories
	if s.gained < 0 {
		s.gained = 0
	}
	s.mu.Unlock()
}

// CaloriesGained reports the accumulator for the current edit session.
func (s *Store) CaloriesGained() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gained
}

// StageUpsert computes the next collection from base: it replaces the record
// at the edit cursor when the cursor is set and valid for base, and appends
// otherwise. Neither base nor the cached collection is mutated.
func (s *Store) StageUpsert(base []domain.WorkoutRecord, record domain.WorkoutRecord) []domain.WorkoutRecord {
	next := cloneRecords(base)
	if idx, ok := s.EditingIndex(); ok && idx < len(next) {
		next[idx] = record
		return next
	}
	return append(next, record)
}

// StageDelete computes the next collection from base with the first record
// matching id removed. Unknown ids leave the collection unchanged.
func (s *Store) StageDelete(base []domain.WorkoutRecord, id string) []domain.WorkoutRecord {
	next := cloneRecords(base)
	for i, rec := range next {
		if rec.ID == id {
			return append(next[:i], next[i+1:]...)
		}
	}
	return next
}

func cloneRecords(records []domain.WorkoutRecord) []domain.WorkoutRecord {
	out := make([]domain.WorkoutRecord, len(records))
	copy(out, records)
	return out
}
