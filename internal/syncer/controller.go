// Package syncer orchestrates the ledger cache, the attachment lifecycle, and
// the energy calculator around a single remote per-user document. Every
// mutation is a serialized read-modify-write cycle over the whole workout
// collection: the storage layer has no per-record addressing, so concurrent
// cycles from this client must queue to avoid silently dropping one write.
// Cross-device writes remain last-write-wins on the whole document.
package syncer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"example.com/fittrack/internal/attachment"
	"example.com/fittrack/internal/document"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/energy"
	"example.com/fittrack/internal/events"
	"example.com/fittrack/internal/ledger"
	"example.com/fittrack/internal/observability"
)

// SaveWorkoutInput carries the mutable inputs of a save intent.
type SaveWorkoutInput struct {
	Activity        string
	DurationMinutes int
}

// SaveResult is returned from a committed save: the persisted record plus the
// derived energy-balance message.
type SaveResult struct {
	Record  domain.WorkoutRecord
	Balance energy.Summary
}

// Controller binds one authenticated session to its ledger. It is safe for
// concurrent use; mutations queue behind the single-flight gate.
type Controller struct {
	userID        string
	store         document.Store
	watcher       document.Watcher
	ledger        *ledger.Store
	attachments   *attachment.Manager
	publisher     events.Publisher
	onSnapshot    func(document.Snapshot)
	defaultWeight float64
	logger        *log.Logger

	// flight serializes read-modify-write cycles for this ledger.
	flight sync.Mutex

	mu  sync.Mutex
	sub *Subscription
}

// Option configures optional Controller behaviour.
type Option func(*Controller)

// WithPublisher emits ledger events after committed writes.
func WithPublisher(publisher events.Publisher) Option {
	return func(c *Controller) { c.publisher = publisher }
}

// WithOnSnapshot registers a callback invoked after each applied snapshot.
func WithOnSnapshot(fn func(document.Snapshot)) Option {
	return func(c *Controller) { c.onSnapshot = fn }
}

// WithDefaultBodyWeight overrides the weight assumed when the profile has none.
func WithDefaultBodyWeight(kg float64) Option {
	return func(c *Controller) { c.defaultWeight = kg }
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController constructs a Controller for one user's session.
func NewController(userID string, store document.Store, watcher document.Watcher, cache *ledger.Store, attachments *attachment.Manager, opts ...Option) *Controller {
	c := &Controller{
		userID:        userID,
		store:         store,
		watcher:       watcher,
		ledger:        cache,
		attachments:   attachments,
		publisher:     events.NopPublisher{},
		defaultWeight: energy.DefaultBodyWeightKG,
		logger:        log.New(log.Writer(), "[syncer] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscription is a cancellable handle on the remote notification channel.
type Subscription struct {
	inner document.Subscription
	done  chan struct{}
}

// Cancel stops the snapshot pump. Safe to call multiple times.
func (s *Subscription) Cancel() {
	s.inner.Cancel()
}

// Done closes once the pump has drained and exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe opens the push channel for this user's document and pumps every
// snapshot, in arrival order, into the ledger cache. A missing document
// hydrates an empty ledger rather than erroring: not-found means "new user".
func (c *Controller) Subscribe(ctx context.Context) (*Subscription, error) {
	if c.userID == "" {
		return nil, domain.ErrNotAuthenticated
	}

	inner, err := c.watcher.Watch(ctx, c.userID)
	if err != nil {
		return nil, fmt.Errorf("%w: open watch: %v", domain.ErrNetwork, err)
	}

	sub := &Subscription{inner: inner, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for snap := range inner.Snapshots() {
			c.applySnapshot(snap)
		}
	}()

	c.mu.Lock()
	prev := c.sub
	c.sub = sub
	c.mu.Unlock()

	// Resubscribing supersedes the previous watch; drain its pump so it
	// cannot keep rewriting the cache.
	if prev != nil {
		prev.Cancel()
		<-prev.Done()
	}
	return sub, nil
}

func (c *Controller) applySnapshot(snap document.Snapshot) {
	workouts := snap.Document.Workouts
	if !snap.Exists {
		workouts = nil
	}
	c.ledger.ReplaceAll(workouts)
	observability.RecordSnapshotApplied()
	if c.onSnapshot != nil {
		c.onSnapshot(snap)
	}
}

// SaveWorkout validates the input, derives calories burned at this single
// entry point so no stale figure is ever persisted, resolves any pending
// attachment, and commits the next collection through one read-modify-write
// cycle. The cache is only updated after the remote write is confirmed.
func (c *Controller) SaveWorkout(ctx context.Context, in SaveWorkoutInput) (SaveResult, error) {
	if c.userID == "" {
		return SaveResult{}, domain.ErrNotAuthenticated
	}
	if strings.TrimSpace(in.Activity) == "" {
		return SaveResult{}, fmt.Errorf("%w: activity is required", domain.ErrValidation)
	}
	if in.DurationMinutes <= 0 {
		return SaveResult{}, fmt.Errorf("%w: duration_minutes must be > 0", domain.ErrValidation)
	}

	c.flight.Lock()
	defer c.flight.Unlock()

	doc, _, err := c.store.Get(ctx, c.userID)
	if err != nil {
		observability.RecordSyncCycle("save", err)
		return SaveResult{}, fmt.Errorf("%w: read document: %v", domain.ErrNetwork, err)
	}
	base := doc.Workouts

	weight := doc.WeightKG
	if weight <= 0 {
		weight = c.defaultWeight
	}
	burned := energy.EstimateBurn(in.Activity, in.DurationMinutes, weight)
	gained := c.ledger.CaloriesGained()

	now := time.Now().UTC()
	record := domain.WorkoutRecord{
		ID:              domain.NewRecordID(now, base),
		Activity:        strings.TrimSpace(in.Activity),
		DurationMinutes: in.DurationMinutes,
		CaloriesGained:  gained,
		CaloriesBurned:  burned,
		CreatedAt:       now,
	}
	// Editing replaces in place: the id and creation time of the original
	// record survive the rewrite.
	if idx, ok := c.ledger.EditingIndex(); ok && idx < len(base) {
		record.ID = base[idx].ID
		record.CreatedAt = base[idx].CreatedAt
	}
	if ref, ok := c.attachments.Ref(); ok {
		record.AttachmentRef = ref
	}

	next := c.ledger.StageUpsert(base, record)

	if err := c.store.SetWorkouts(ctx, c.userID, next); err != nil {
		observability.RecordSyncCycle("save", err)
		return SaveResult{}, fmt.Errorf("%w: write document: %v", domain.ErrNetwork, err)
	}
	observability.RecordSyncCycle("save", nil)

	// Write confirmed: the cache may now advance, the edit session resets,
	// and attachment ownership transfers to the saved record.
	c.ledger.ReplaceAll(next)
	c.ledger.ResetEdit()
	c.attachments.Commit()
	observability.RecordWorkoutSaved(now)

	c.publish(ctx, events.LedgerEvent{
		Type:           events.TypeWorkoutSaved,
		UserID:         c.userID,
		RecordID:       record.ID,
		Activity:       record.Activity,
		CaloriesBurned: record.CaloriesBurned,
		CaloriesGained: record.CaloriesGained,
		OccurredAt:     now,
	})

	return SaveResult{Record: record, Balance: energy.Summarize(gained, burned)}, nil
}

// DeleteWorkout removes the record with the given id through the same
// single-flight discipline. Deleting an id the remote copy no longer holds
// rewrites the collection unchanged.
func (c *Controller) DeleteWorkout(ctx context.Context, id string) error {
	if c.userID == "" {
		return domain.ErrNotAuthenticated
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: workout id is required", domain.ErrValidation)
	}

	c.flight.Lock()
	defer c.flight.Unlock()

	doc, _, err := c.store.Get(ctx, c.userID)
	if err != nil {
		observability.RecordSyncCycle("delete", err)
		return fmt.Errorf("%w: read document: %v", domain.ErrNetwork, err)
	}

	next := c.ledger.StageDelete(doc.Workouts, id)
	if err := c.store.SetWorkouts(ctx, c.userID, next); err != nil {
		observability.RecordSyncCycle("delete", err)
		return fmt.Errorf("%w: write document: %v", domain.ErrNetwork, err)
	}
	observability.RecordSyncCycle("delete", nil)

	c.ledger.ReplaceAll(next)

	c.publish(ctx, events.LedgerEvent{
		Type:       events.TypeWorkoutDeleted,
		UserID:     c.userID,
		RecordID:   id,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// BeginEdit points the next save at an existing record.
func (c *Controller) BeginEdit(index int) error {
	if c.userID == "" {
		return domain.ErrNotAuthenticated
	}
	return c.ledger.BeginEdit(index)
}

// AddFood credits a selected food item's calories to the in-progress record.
func (c *Controller) AddFood(item domain.NutritionItem) {
	c.ledger.AddCalories(item.Calories)
}

// RemoveFood debits a previously selected item, flooring at zero.
func (c *Controller) RemoveFood(item domain.NutritionItem) {
	c.ledger.RemoveCalories(item.Calories)
}

// Close tears the session down: the subscription is cancelled, any
// uncommitted attachment is released, and the cache is cleared. Safe to call
// multiple times.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()

	if sub != nil {
		sub.Cancel()
		<-sub.Done()
	}
	if err := c.attachments.Abandon(ctx); err != nil {
		c.logger.Printf("abandon attachment for %s: %v", c.userID, err)
	}
	c.ledger.ReplaceAll(nil)
	c.ledger.ResetEdit()
}

func (c *Controller) publish(ctx context.Context, event events.LedgerEvent) {
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Printf("publish %s for %s: %v", event.Type, c.userID, err)
	}
}
