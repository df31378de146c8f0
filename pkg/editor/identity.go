package editor

import (
	"fmt"
	"sync"

	"github.com/aretw0/notely/pkg/core"
)

// IdentityTracker holds the ID a session writes to. It is shared by pointer
// between the session and its deferred save, so a save that fires late reads
// the ID assigned by an earlier create rather than a copy taken at schedule time.
type IdentityTracker struct {
	mu       sync.Mutex
	id       int64
	assigned bool
}

// NewIdentityTracker returns a tracker with no ID.
func NewIdentityTracker() *IdentityTracker {
	return &IdentityTracker{}
}

// OpenFor primes the tracker for a session. A nil note clears the ID only
// when no ID has been assigned by a save in this session.
func (t *IdentityTracker) OpenFor(note *core.Note) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if note != nil {
		t.id = note.ID
		t.assigned = false
		return
	}
	if !t.assigned {
		t.id = 0
	}
}

// ResolveSaveTarget returns the current ID, or fallback when none is set.
// The boolean is false when neither is a persisted ID, meaning create.
func (t *IdentityTracker) ResolveSaveTarget(fallback int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.id > 0 {
		return t.id, true
	}
	if fallback > 0 {
		return fallback, true
	}
	return 0, false
}

// Assign binds the ID returned by a successful create. Assigning the same ID
// again is a no-op; a different ID is ErrIdentityConflict.
func (t *IdentityTracker) Assign(id int64) error {
	if id <= 0 {
		return fmt.Errorf("editor: invalid note id %d", id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.id > 0 {
		if t.id == id {
			return nil
		}
		return fmt.Errorf("%w: bound to %d, got %d", ErrIdentityConflict, t.id, id)
	}
	t.id = id
	t.assigned = true
	return nil
}

// Reset clears the tracker when a session closes.
func (t *IdentityTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.id = 0
	t.assigned = false
}

// Current returns the bound ID, if any.
func (t *IdentityTracker) Current() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id, t.id > 0
}
