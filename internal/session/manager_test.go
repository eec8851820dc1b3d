package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/document"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/media"
	"example.com/fittrack/internal/syncer"
)

func newTestManager() (*Manager, *document.MemoryStore) {
	store := document.NewMemoryStore()
	return NewManager(store, store, media.NewMemoryStore(), nil), store
}

// ctxBoundWatcher cancels its subscriptions when the Watch context ends, the
// way the LISTEN-based watcher does.
type ctxBoundWatcher struct {
	store *document.MemoryStore
}

func (w *ctxBoundWatcher) Watch(ctx context.Context, userID string) (document.Subscription, error) {
	sub, err := w.store.Watch(ctx, userID)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		sub.Cancel()
	}()
	return sub, nil
}

func TestSessionOutlivesHydratingRequestContext(t *testing.T) {
	store := document.NewMemoryStore()
	manager := NewManager(store, &ctxBoundWatcher{store: store}, media.NewMemoryStore(), nil)

	reqCtx, cancelRequest := context.WithCancel(context.Background())
	sess, err := manager.Get(reqCtx, "user-1")
	require.NoError(t, err)

	// The hydrating request finishes; its context is cancelled by the server.
	cancelRequest()

	// A later remote write must still reach the ledger cache.
	require.NoError(t, store.SetWorkouts(context.Background(), "user-1", []domain.WorkoutRecord{
		{ID: "1", Activity: "running"},
	}))
	require.Eventually(t, func() bool { return sess.Ledger.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestShutdownCancelsSubscriptions(t *testing.T) {
	store := document.NewMemoryStore()
	manager := NewManager(store, &ctxBoundWatcher{store: store}, media.NewMemoryStore(), nil)

	sess, err := manager.Get(context.Background(), "user-1")
	require.NoError(t, err)

	manager.Shutdown(context.Background())

	require.NoError(t, store.SetWorkouts(context.Background(), "user-1", []domain.WorkoutRecord{
		{ID: "1", Activity: "running"},
	}))
	assert.Zero(t, sess.Ledger.Len())
}

func TestGetHydratesOnce(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()
	store.Seed("user-1", domain.UserDocument{Workouts: []domain.WorkoutRecord{{ID: "1", Activity: "running"}}})

	sess, err := manager.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sess.Ledger.Len() == 1 }, time.Second, 10*time.Millisecond)

	again, err := manager.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Same(t, sess, again)
	assert.Equal(t, 1, manager.Active())
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	first, err := manager.Get(ctx, "user-1")
	require.NoError(t, err)
	second, err := manager.Get(ctx, "user-2")
	require.NoError(t, err)

	_, err = first.Controller.SaveWorkout(ctx, syncer.SaveWorkoutInput{Activity: "running", DurationMinutes: 30})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Ledger.Len())
	assert.Zero(t, second.Ledger.Len())
	assert.Equal(t, 2, manager.Active())
}

func TestSignOutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	sess, err := manager.Get(ctx, "user-1")
	require.NoError(t, err)
	_, err = sess.Controller.SaveWorkout(ctx, syncer.SaveWorkoutInput{Activity: "running", DurationMinutes: 30})
	require.NoError(t, err)

	manager.SignOut(ctx, "user-1")
	manager.SignOut(ctx, "user-1")
	assert.Zero(t, manager.Active())
	assert.Zero(t, sess.Ledger.Len())

	// A fresh session after sign-out rehydrates from the remote document.
	fresh, err := manager.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotSame(t, sess, fresh)
	require.Eventually(t, func() bool { return fresh.Ledger.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestShutdownClosesEverySession(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	for _, user := range []string{"user-1", "user-2", "user-3"} {
		_, err := manager.Get(ctx, user)
		require.NoError(t, err)
	}
	require.Equal(t, 3, manager.Active())

	manager.Shutdown(ctx)
	assert.Zero(t, manager.Active())
}
