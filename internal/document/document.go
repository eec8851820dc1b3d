// Package document specifies the remote per-user document contract: a single
// JSON document holding the whole workout collection, with push-based change
// notifications. Absence of the document is the valid empty state of a new
// user, never an error.
package document

import (
	"context"

	"example.com/fittrack/internal/domain"
)

// Snapshot is a full copy of the remote document delivered on every change,
// including the subscriber's own writes.
type Snapshot struct {
	Exists   bool
	Document domain.UserDocument
}

// Store reads and writes the per-user document. SetWorkouts replaces only the
// workouts field; any other top-level fields are preserved (merge-on-field).
// The storage layer offers no per-record addressing.
type Store interface {
	Get(ctx context.Context, userID string) (domain.UserDocument, bool, error)
	SetWorkouts(ctx context.Context, userID string, workouts []domain.WorkoutRecord) error
}

// Watcher opens push-based change subscriptions keyed by user id.
type Watcher interface {
	Watch(ctx context.Context, userID string) (Subscription, error)
}

// Subscription yields document snapshots until cancelled. An initial snapshot
// is delivered on subscribe; Cancel is idempotent and closes the channel.
type Subscription interface {
	Snapshots() <-chan Snapshot
	Cancel()
}
