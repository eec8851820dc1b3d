// Package attachment shepherds a captured image from a transient local handle
// through persisted byte storage to association with exactly one workout
// record.
package attachment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/media"
)

// State names a position in the attachment lifecycle.
type State string

const (
	StateNone         State = "none"
	StateCapturing    State = "capturing"
	StateLocalPreview State = "local_preview"
	StatePersisting   State = "persisting"
	StatePersisted    State = "persisted"
)

// Manager owns at most one pending attachment per in-progress record edit.
// Ownership of persisted bytes transfers to a workout record only through
// Commit; everything else is releasable without leaking.
type Manager struct {
	userID   string
	capturer media.Capturer
	blobs    media.BlobStore

	mu      sync.Mutex
	state   State
	preview media.Capture
	ref     string
	// gen advances on every reset so an in-flight Persist can tell it lost a
	// race with Remove and must not resurrect the attachment.
	gen uint64
}

// NewManager constructs a Manager for one user's edit session. capturer may be
// nil when previews only arrive via SetPreview.
func NewManager(userID string, capturer media.Capturer, blobs media.BlobStore) *Manager {
	return &Manager{
		userID:   userID,
		capturer: capturer,
		blobs:    blobs,
		state:    StateNone,
	}
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// BeginCapture requests raw bytes from the capture primitive. A failed capture
// reverts to the empty state; no partial handle is exposed. Capturing over an
// existing local preview replaces it.
func (m *Manager) BeginCapture(ctx context.Context) error {
	m.mu.Lock()
	if m.capturer == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: no capture device", domain.ErrMediaCapture)
	}
	if m.state != StateNone && m.state != StateLocalPreview {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: attachment busy in state %s", domain.ErrMediaCapture, state)
	}
	m.state = StateCapturing
	gen := m.gen
	m.mu.Unlock()

	capture, err := m.capturer.Capture(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return fmt.Errorf("%w: attachment removed during capture", domain.ErrMediaCapture)
	}
	if err != nil {
		m.state = StateNone
		m.preview = media.Capture{}
		return fmt.Errorf("%w: %v", domain.ErrMediaCapture, err)
	}
	m.state = StateLocalPreview
	m.preview = capture
	return nil
}

// SetPreview installs bytes that arrived out of band, e.g. an HTTP upload.
func (m *Manager) SetPreview(capture media.Capture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(capture.Data) == 0 {
		return fmt.Errorf("%w: empty image payload", domain.ErrMediaCapture)
	}
	if m.state != StateNone && m.state != StateLocalPreview {
		return fmt.Errorf("%w: attachment busy in state %s", domain.ErrMediaCapture, m.state)
	}
	m.state = StateLocalPreview
	m.preview = capture
	return nil
}

// Persist writes the local preview to durable storage. Failure reverts to the
// empty state and surfaces ErrMediaPersist.
func (m *Manager) Persist(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateLocalPreview {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: nothing to persist in state %s", domain.ErrMediaPersist, state)
	}
	m.state = StatePersisting
	preview := m.preview
	gen := m.gen
	m.mu.Unlock()

	key := fmt.Sprintf("attachments/%s/%s", m.userID, uuid.NewString())
	ref, err := m.blobs.Put(ctx, key, preview.Data, preview.ContentType)

	m.mu.Lock()
	if m.gen != gen {
		// Removed while the write was in flight: release the orphaned bytes
		// instead of resurrecting the attachment.
		m.mu.Unlock()
		if err == nil {
			_ = m.blobs.Delete(ctx, ref)
		}
		return fmt.Errorf("%w: attachment removed during persist", domain.ErrMediaPersist)
	}
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateNone
		m.preview = media.Capture{}
		return fmt.Errorf("%w: %v", domain.ErrMediaPersist, err)
	}
	m.state = StatePersisted
	m.preview = media.Capture{}
	m.ref = ref
	return nil
}

// Ref returns the durable reference once persisted.
func (m *Manager) Ref() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePersisted {
		return "", false
	}
	return m.ref, true
}

// Commit hands the persisted reference to the caller and resets the manager
// without deleting the bytes: they now belong to the saved record.
func (m *Manager) Commit() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePersisted {
		return "", false
	}
	ref := m.ref
	m.reset()
	return ref, true
}

// Remove discards the pending attachment, releasing persisted bytes if any.
// Removing from the empty state is a no-op.
func (m *Manager) Remove(ctx context.Context) error {
	m.mu.Lock()
	state, ref := m.state, m.ref
	m.reset()
	m.mu.Unlock()

	if state == StatePersisted && ref != "" {
		if err := m.blobs.Delete(ctx, ref); err != nil {
			return fmt.Errorf("%w: release %s: %v", domain.ErrMediaPersist, ref, err)
		}
	}
	return nil
}

// Abandon releases any uncommitted resources at session teardown. After
// Abandon, no record rehydrated later can reference the dropped bytes.
func (m *Manager) Abandon(ctx context.Context) error {
	return m.Remove(ctx)
}

// reset requires m.mu held.
func (m *Manager) reset() {
	m.state = StateNone
	m.preview = media.Capture{}
	m.ref = ""
	m.gen++
}
