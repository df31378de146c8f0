package editor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notely/pkg/core"
	"github.com/aretw0/notely/pkg/debounce"
	"github.com/aretw0/notely/pkg/editor"
)

type call struct {
	op    string
	id    int64
	in    core.NoteInput
	patch core.NotePatch
}

// fakeStore records every call. createGate, when set, blocks CreateNote
// until it is closed and signals createEntered first.
type fakeStore struct {
	mu            sync.Mutex
	nextID        int64
	calls         []call
	categories    []core.Category
	failCreate    error
	failUpdate    error
	failDelete    error
	createGate    chan struct{}
	createEntered chan struct{}
}

func newFakeStore(nextID int64) *fakeStore {
	return &fakeStore{nextID: nextID}
}

func (f *fakeStore) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	if f.createGate != nil {
		f.createEntered <- struct{}{}
		<-f.createGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "create", in: in})
	if f.failCreate != nil {
		return core.Note{}, f.failCreate
	}
	id := f.nextID
	f.nextID++
	return core.Note{ID: id, Title: in.Title, Content: in.Content, CategoryID: in.CategoryID}, nil
}

func (f *fakeStore) UpdateNote(ctx context.Context, id int64, patch core.NotePatch) (core.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "update", id: id, patch: patch})
	if f.failUpdate != nil {
		return core.Note{}, f.failUpdate
	}
	n := core.Note{ID: id}
	patch.Apply(&n)
	return n, nil
}

func (f *fakeStore) DeleteNote(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "delete", id: id})
	return f.failDelete
}

func (f *fakeStore) ListNotes(ctx context.Context, categoryID int64) ([]core.Note, error) {
	return nil, nil
}

func (f *fakeStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.categories, nil
}

func (f *fakeStore) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeStore) count(op string) int {
	n := 0
	for _, c := range f.snapshot() {
		if c.op == op {
			n++
		}
	}
	return n
}

func newSession(t *testing.T, store editor.Store, opts ...editor.Option) (*editor.Session, *debounce.ManualClock) {
	t.Helper()
	clock := debounce.NewManualClock()
	opts = append([]editor.Option{editor.WithTimerFunc(clock.AfterFunc)}, opts...)
	s := editor.NewSession(store, opts...)
	t.Cleanup(s.Stop)
	return s, clock
}

var categories = []core.Category{
	{ID: 3, Name: "Random Thoughts"},
	{ID: 4, Name: "School"},
}

func TestBlurCreatesThenUpdates(t *testing.T) {
	store := newFakeStore(42)
	s, clock := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	assert.Equal(t, editor.StateOpenNew, s.Status().State)
	_, bound := s.Tracker().Current()
	assert.False(t, bound)

	require.NoError(t, s.SetTitle("Groceries"))
	s.OnFieldBlur()
	assert.Empty(t, store.snapshot(), "nothing is written before the delay")

	clock.Advance(editor.DefaultDelay)
	calls := store.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "create", calls[0].op)
	assert.Equal(t, "Groceries", calls[0].in.Title)

	id, bound := s.Tracker().Current()
	require.True(t, bound)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, editor.StateOpenExisting, s.Status().State)

	require.NoError(t, s.SetContent("Milk, eggs"))
	s.OnFieldBlur()
	clock.Advance(editor.DefaultDelay)

	calls = store.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "update", calls[1].op)
	assert.Equal(t, int64(42), calls[1].id)
	require.NotNil(t, calls[1].patch.Content)
	assert.Equal(t, "Milk, eggs", *calls[1].patch.Content)
	assert.Equal(t, 1, store.count("create"))
}

func TestDoneUpdatesExistingNote(t *testing.T) {
	store := newFakeStore(100)
	s, _ := newSession(t, store)
	ctx := context.Background()

	note := &core.Note{ID: 7, Title: "Old", Content: "body", CategoryID: 4}
	require.NoError(t, s.Open(ctx, note))
	assert.Equal(t, editor.StateOpenExisting, s.Status().State)
	id, _ := s.Tracker().Current()
	assert.Equal(t, int64(7), id)

	require.NoError(t, s.OnDone(ctx))

	calls := store.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "update", calls[0].op)
	assert.Equal(t, int64(7), calls[0].id)
	require.NotNil(t, calls[0].patch.Title)
	assert.Equal(t, "Old", *calls[0].patch.Title)
	assert.Equal(t, editor.StateClosed, s.Status().State)
}

func TestBlankTitleIsNeverSaved(t *testing.T) {
	store := newFakeStore(1)
	s, clock := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("   "))
	require.NoError(t, s.SetContent("content without a title"))
	s.OnFieldBlur()
	clock.Advance(editor.DefaultDelay)

	require.NoError(t, s.Save(ctx))

	assert.Empty(t, store.snapshot())
	_, bound := s.Tracker().Current()
	assert.False(t, bound)
	assert.Equal(t, editor.StateOpenNew, s.Status().State)
}

func TestDeleteRemovesAndCloses(t *testing.T) {
	store := newFakeStore(1)
	s, _ := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, &core.Note{ID: 5, Title: "bye"}))
	require.NoError(t, s.OnDelete(ctx))

	calls := store.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, call{op: "delete", id: 5}, calls[0])
	assert.Equal(t, editor.StateClosed, s.Status().State)
}

func TestRapidBlursCoalesce(t *testing.T) {
	store := newFakeStore(9)
	s, clock := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	for _, title := range []string{"G", "Gro", "Groceries"} {
		require.NoError(t, s.SetTitle(title))
		s.OnFieldBlur()
		clock.Advance(50 * time.Millisecond)
	}

	clock.Advance(editor.DefaultDelay)

	calls := store.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "Groceries", calls[0].in.Title)
}

func TestEverySaveAfterCreateIsUpdate(t *testing.T) {
	store := newFakeStore(11)
	s, clock := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("draft"))
	for i := 0; i < 5; i++ {
		s.OnFieldBlur()
		clock.Advance(editor.DefaultDelay)
	}
	require.NoError(t, s.Save(ctx))

	assert.Equal(t, 1, store.count("create"))
	assert.Equal(t, 5, store.count("update"))
	for _, c := range store.snapshot()[1:] {
		assert.Equal(t, int64(11), c.id)
	}
}

func TestCloseCancelsPendingSave(t *testing.T) {
	store := newFakeStore(1)
	s, clock := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("unsaved"))
	s.OnFieldBlur()
	assert.True(t, s.SavePending())

	s.OnClose()
	clock.Advance(2 * editor.DefaultDelay)

	assert.Empty(t, store.snapshot())
	assert.Equal(t, editor.StateClosed, s.Status().State)
	assert.Equal(t, editor.Form{}, s.Form())
}

func TestFlushOnClose(t *testing.T) {
	store := newFakeStore(1)
	s, clock := newSession(t, store, editor.WithFlushOnClose(true))
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("kept"))
	s.OnFieldBlur()
	s.OnClose()

	calls := store.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "create", calls[0].op)

	clock.Advance(2 * editor.DefaultDelay)
	assert.Len(t, store.snapshot(), 1)
}

// leakyTimers ignores Stop so a callback can run after the session closed.
type leakyTimers struct {
	mu  sync.Mutex
	fns []func()
}

type noStop struct{}

func (noStop) Stop() bool { return false }

func (l *leakyTimers) after(_ time.Duration, f func()) debounce.Timer {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, f)
	return noStop{}
}

func TestLateCallbackAfterCloseIsDropped(t *testing.T) {
	store := newFakeStore(1)
	timers := &leakyTimers{}
	s := editor.NewSession(store, editor.WithTimerFunc(timers.after))
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("late"))
	s.OnFieldBlur()
	s.OnClose()

	// Reopen so the session is live again when the stale timer fires.
	require.NoError(t, s.Open(ctx, nil))
	for _, f := range timers.fns {
		f()
	}

	assert.Empty(t, store.snapshot())
}

func TestSaveFailureKeepsForm(t *testing.T) {
	store := newFakeStore(1)
	store.failCreate = errors.New("network down")
	s, clock := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("important"))
	s.OnFieldBlur()
	clock.Advance(editor.DefaultDelay)

	assert.False(t, s.IsSaving())
	assert.ErrorContains(t, s.LastError(), "network down")
	assert.Equal(t, "important", s.Form().Title)
	_, bound := s.Tracker().Current()
	assert.False(t, bound)

	// No automatic retry.
	clock.Advance(10 * editor.DefaultDelay)
	assert.Equal(t, 1, store.count("create"))

	// Done fails too and keeps the session open.
	err := s.OnDone(ctx)
	require.Error(t, err)
	assert.Equal(t, editor.StateOpenNew, s.Status().State)

	// The user retries once the store recovers.
	store.mu.Lock()
	store.failCreate = nil
	store.mu.Unlock()
	require.NoError(t, s.OnDone(ctx))
	assert.Equal(t, 3, store.count("create"))
	assert.Equal(t, editor.StateClosed, s.Status().State)
}

func TestDeleteFailureKeepsSessionOpen(t *testing.T) {
	store := newFakeStore(1)
	store.failDelete = errors.New("boom")
	s, _ := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, &core.Note{ID: 5, Title: "stay"}))
	err := s.OnDelete(ctx)
	require.Error(t, err)

	assert.Equal(t, editor.StateOpenExisting, s.Status().State)
	assert.Equal(t, "stay", s.Form().Title)
	assert.Error(t, s.LastError())
}

func TestDeleteRequiresIdentity(t *testing.T) {
	store := newFakeStore(1)
	s, _ := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	assert.ErrorIs(t, s.OnDelete(ctx), editor.ErrNotPersisted)
	assert.Empty(t, store.snapshot())
}

func TestDeleteAfterAutosaveCreate(t *testing.T) {
	store := newFakeStore(30)
	s, clock := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("temp"))
	s.OnFieldBlur()
	clock.Advance(editor.DefaultDelay)

	require.NoError(t, s.OnDelete(ctx))
	calls := store.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, call{op: "delete", id: 30}, calls[1])
}

func TestDoneWaitsForInFlightCreate(t *testing.T) {
	store := newFakeStore(77)
	store.createGate = make(chan struct{})
	store.createEntered = make(chan struct{}, 1)

	s := editor.NewSession(store, editor.WithDelay(5*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("race"))
	s.OnFieldBlur()

	select {
	case <-store.createEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced create never started")
	}

	done := make(chan error, 1)
	go func() { done <- s.OnDone(ctx) }()

	close(store.createGate)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("OnDone did not return")
	}

	calls := store.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "create", calls[0].op)
	assert.Equal(t, "update", calls[1].op)
	assert.Equal(t, int64(77), calls[1].id)
	assert.Equal(t, editor.StateClosed, s.Status().State)
}

func TestCategoriesArriveAfterOpen(t *testing.T) {
	store := newFakeStore(1)
	s, clock := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	assert.True(t, s.Status().Degraded)
	assert.Equal(t, editor.DefaultFallbackCategory, s.Form().CategoryID)

	s.SetCategories(categories)
	assert.False(t, s.Status().Degraded)
	assert.Equal(t, int64(3), s.Form().CategoryID)

	require.NoError(t, s.SetCategory(4))
	s.SetCategories(categories)
	assert.Equal(t, int64(4), s.Form().CategoryID, "an explicit choice survives a reload")

	require.NoError(t, s.SetTitle("x"))
	s.OnFieldBlur()
	clock.Advance(editor.DefaultDelay)
	assert.Equal(t, int64(4), store.snapshot()[0].in.CategoryID)
}

func TestDegradedSaveStillAttempted(t *testing.T) {
	store := newFakeStore(1)
	s, clock := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("no categories loaded"))
	s.OnFieldBlur()
	clock.Advance(editor.DefaultDelay)

	calls := store.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, editor.DefaultFallbackCategory, calls[0].in.CategoryID)
}

func TestReopenGuards(t *testing.T) {
	store := newFakeStore(12)
	s, clock := newSession(t, store)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("first"))

	// Before any ID exists, reopening a new note resets the form.
	require.NoError(t, s.Open(ctx, nil))
	assert.Equal(t, "", s.Form().Title)

	require.NoError(t, s.SetTitle("second"))
	s.OnFieldBlur()
	clock.Advance(editor.DefaultDelay)

	// Once an ID is assigned, reopening with nil keeps it and the form.
	require.NoError(t, s.Open(ctx, nil))
	id, bound := s.Tracker().Current()
	require.True(t, bound)
	assert.Equal(t, int64(12), id)
	assert.Equal(t, "second", s.Form().Title)

	// Reopening the same note is a no-op; a different one is refused.
	require.NoError(t, s.Open(ctx, &core.Note{ID: 12}))
	assert.ErrorIs(t, s.Open(ctx, &core.Note{ID: 99}), editor.ErrAlreadyOpen)
}

func TestClosedSessionRejectsEdits(t *testing.T) {
	s, _ := newSession(t, newFakeStore(1))

	assert.ErrorIs(t, s.SetTitle("x"), editor.ErrClosed)
	assert.ErrorIs(t, s.Save(context.Background()), editor.ErrClosed)
	assert.ErrorIs(t, s.OnDone(context.Background()), editor.ErrClosed)
	assert.ErrorIs(t, s.OnDelete(context.Background()), editor.ErrClosed)
	s.OnFieldBlur()
	s.OnClose()
}

func TestStatusHookReportsSaving(t *testing.T) {
	store := newFakeStore(1)

	var mu sync.Mutex
	var states []editor.State
	hook := func(st editor.Status) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, st.State)
	}

	s, clock := newSession(t, store, editor.WithStatusHook(hook))
	ctx := context.Background()

	require.NoError(t, s.Open(ctx, nil))
	require.NoError(t, s.SetTitle("watch me"))
	s.OnFieldBlur()
	clock.Advance(editor.DefaultDelay)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []editor.State{
		editor.StateOpenNew,
		editor.StateSaving,
		editor.StateOpenExisting,
	}, states)
}

func TestSessionState(t *testing.T) {
	s, _ := newSession(t, newFakeStore(1))
	require.NoError(t, s.Open(context.Background(), &core.Note{ID: 3, Title: "t"}))

	st, ok := s.State().(editor.SessionState)
	require.True(t, ok)
	assert.Equal(t, "open-existing", st.State)
	assert.Equal(t, int64(3), st.NoteID)
	assert.Equal(t, "500ms", st.Delay)
	assert.Equal(t, "editor-session", s.ComponentType())
}
