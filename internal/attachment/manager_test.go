package attachment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/media"
)

type stubCapturer struct {
	capture media.Capture
	err     error
}

func (s *stubCapturer) Capture(ctx context.Context) (media.Capture, error) {
	return s.capture, s.err
}

func jpeg() media.Capture {
	return media.Capture{Data: []byte{0xff, 0xd8, 0xff}, ContentType: "image/jpeg"}
}

func TestLifecycleCaptureToCommit(t *testing.T) {
	ctx := context.Background()
	blobs := media.NewMemoryStore()
	mgr := NewManager("user-1", &stubCapturer{capture: jpeg()}, blobs)

	require.Equal(t, StateNone, mgr.State())
	require.NoError(t, mgr.BeginCapture(ctx))
	require.Equal(t, StateLocalPreview, mgr.State())

	require.NoError(t, mgr.Persist(ctx))
	require.Equal(t, StatePersisted, mgr.State())

	ref, ok := mgr.Ref()
	require.True(t, ok)
	require.NotEmpty(t, ref)

	committed, ok := mgr.Commit()
	require.True(t, ok)
	assert.Equal(t, ref, committed)
	assert.Equal(t, StateNone, mgr.State())
	// Commit transfers ownership: the bytes stay alive.
	assert.Equal(t, 1, blobs.Len())
	assert.Empty(t, blobs.Deleted())
}

func TestCaptureFailureRevertsToNone(t *testing.T) {
	mgr := NewManager("user-1", &stubCapturer{err: errors.New("camera unavailable")}, media.NewMemoryStore())

	err := mgr.BeginCapture(context.Background())
	require.ErrorIs(t, err, domain.ErrMediaCapture)
	assert.Equal(t, StateNone, mgr.State())

	_, ok := mgr.Ref()
	assert.False(t, ok)
}

func TestPersistFailureRevertsToNone(t *testing.T) {
	ctx := context.Background()
	blobs := media.NewMemoryStore()
	blobs.FailPuts(errors.New("bucket gone"))
	mgr := NewManager("user-1", nil, blobs)

	require.NoError(t, mgr.SetPreview(jpeg()))
	err := mgr.Persist(ctx)
	require.ErrorIs(t, err, domain.ErrMediaPersist)
	assert.Equal(t, StateNone, mgr.State())

	_, ok := mgr.Ref()
	assert.False(t, ok)
}

func TestPersistRequiresPreview(t *testing.T) {
	mgr := NewManager("user-1", nil, media.NewMemoryStore())
	err := mgr.Persist(context.Background())
	require.ErrorIs(t, err, domain.ErrMediaPersist)
}

func TestRemoveReleasesPersistedBytes(t *testing.T) {
	ctx := context.Background()
	blobs := media.NewMemoryStore()
	mgr := NewManager("user-1", nil, blobs)

	require.NoError(t, mgr.SetPreview(jpeg()))
	require.NoError(t, mgr.Persist(ctx))
	require.Equal(t, 1, blobs.Len())

	require.NoError(t, mgr.Remove(ctx))
	assert.Equal(t, StateNone, mgr.State())
	assert.Zero(t, blobs.Len())
	assert.Len(t, blobs.Deleted(), 1)
}

func TestRemoveIsIdempotentFromNone(t *testing.T) {
	ctx := context.Background()
	blobs := media.NewMemoryStore()
	mgr := NewManager("user-1", nil, blobs)

	require.NoError(t, mgr.Remove(ctx))
	require.NoError(t, mgr.Remove(ctx))
	require.NoError(t, mgr.Remove(ctx))
	assert.Empty(t, blobs.Deleted())
}

// gatedStore blocks Put until released so a Remove can race the write.
type gatedStore struct {
	*media.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: media.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (g *gatedStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	close(g.entered)
	<-g.release
	return g.MemoryStore.Put(ctx, key, data, contentType)
}

func TestRemoveDuringPersistDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	blobs := newGatedStore()
	mgr := NewManager("user-1", nil, blobs)

	require.NoError(t, mgr.SetPreview(jpeg()))

	persistErr := make(chan error, 1)
	go func() { persistErr <- mgr.Persist(ctx) }()

	<-blobs.entered
	require.Equal(t, StatePersisting, mgr.State())
	require.NoError(t, mgr.Remove(ctx))

	close(blobs.release)
	err := <-persistErr
	require.ErrorIs(t, err, domain.ErrMediaPersist)

	// The removed attachment stays removed and the orphaned bytes are freed.
	assert.Equal(t, StateNone, mgr.State())
	_, ok := mgr.Ref()
	assert.False(t, ok)
	assert.Zero(t, blobs.Len())
	assert.Len(t, blobs.Deleted(), 1)
}

func TestAbandonWithLocalPreviewLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	blobs := media.NewMemoryStore()
	mgr := NewManager("user-1", nil, blobs)

	require.NoError(t, mgr.SetPreview(jpeg()))
	require.NoError(t, mgr.Abandon(ctx))

	assert.Equal(t, StateNone, mgr.State())
	assert.Zero(t, blobs.Len())
}

func TestSetPreviewRejectsEmptyPayload(t *testing.T) {
	mgr := NewManager("user-1", nil, media.NewMemoryStore())
	err := mgr.SetPreview(media.Capture{})
	require.ErrorIs(t, err, domain.ErrMediaCapture)
}
