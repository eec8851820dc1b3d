// Package events publishes ledger change events for downstream consumers.
package events

import (
	"context"
	"time"
)

// Event types emitted after committed ledger writes.
const (
	TypeWorkoutSaved   = "workout.saved"
	TypeWorkoutDeleted = "workout.deleted"
)

// LedgerEvent describes one committed change to a user's ledger.
type LedgerEvent struct {
	Type           string    `json:"type"`
	UserID         string    `json:"user_id"`
	RecordID       string    `json:"record_id"`
	Activity       string    `json:"activity,omitempty"`
	CaloriesBurned int       `json:"calories_burned,omitempty"`
	CaloriesGained float64   `json:"calories_gained,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher emits ledger events. Publishing is best-effort from the caller's
// point of view: a failed publish never rolls back a committed write.
type Publisher interface {
	Publish(ctx context.Context, event LedgerEvent) error
	Close() error
}

// NopPublisher discards events; used in tests and when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event LedgerEvent) error { return nil }
func (NopPublisher) Close() error                                         { return nil }
