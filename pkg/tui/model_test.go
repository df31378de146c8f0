package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notely/pkg/core"
	"github.com/aretw0/notely/pkg/debounce"
	"github.com/aretw0/notely/pkg/editor"
)

type memStore struct {
	mu         sync.Mutex
	nextID     int64
	notes      map[int64]core.Note
	categories []core.Category
	failDelete error
}

func newMemStore() *memStore {
	return &memStore{
		nextID: 1,
		notes:  map[int64]core.Note{},
		categories: []core.Category{
			{ID: 1, Name: "Random Thoughts", ColorHex: "#FFB08F"},
			{ID: 2, Name: "School", ColorHex: "#FFD966"},
		},
	}
}

func (s *memStore) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := core.Note{ID: s.nextID, Title: in.Title, Content: in.Content, CategoryID: in.CategoryID, UpdatedAt: time.Unix(s.nextID, 0)}
	s.nextID++
	s.notes[n.ID] = n
	return n, nil
}

func (s *memStore) UpdateNote(ctx context.Context, id int64, patch core.NotePatch) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return core.Note{}, core.ErrNotFound
	}
	patch.Apply(&n)
	s.notes[id] = n
	return n, nil
}

func (s *memStore) DeleteNote(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	delete(s.notes, id)
	return nil
}

func (s *memStore) ListNotes(ctx context.Context, categoryID int64) ([]core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Note
	for _, n := range s.notes {
		if categoryID == 0 || n.CategoryID == categoryID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.categories...), nil
}

func (s *memStore) all() []core.Note {
	notes, _ := s.ListNotes(context.Background(), 0)
	return notes
}

func newTestModel(t *testing.T, store *memStore, opts ...Option) (Model, *debounce.ManualClock) {
	t.Helper()
	clock := debounce.NewManualClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{
		WithLogger(logger),
		WithPreviewStyle("notty"),
		WithSessionOptions(editor.WithTimerFunc(clock.AfterFunc), editor.WithDelay(time.Second)),
	}, opts...)
	m := New(context.Background(), store, opts...)
	// A blinking cursor would hand back timer commands.
	m.title.Cursor.SetMode(cursor.CursorStatic)
	m.content.Cursor.SetMode(cursor.CursorStatic)
	t.Cleanup(m.Session().Stop)
	return load(t, m), clock
}

// load runs the model's load command and feeds the result back.
func load(t *testing.T, m Model) Model {
	t.Helper()
	return update(t, m, m.loadCmd()())
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// run feeds msg and keeps executing the store commands it triggers.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		switch out.(type) {
		case loadedMsg, doneMsg, deletedMsg:
		default:
			return m
		}
		next, cmd = m.Update(out)
		m = next.(Model)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+d":
		return tea.KeyMsg{Type: tea.KeyCtrlD}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = update(t, m, key(string(r)))
	}
	return m
}

func TestBrowse_LoadsAndFilters(t *testing.T) {
	store := newMemStore()
	_, _ = store.CreateNote(context.Background(), core.NoteInput{Title: "thought", CategoryID: 1})
	_, _ = store.CreateNote(context.Background(), core.NoteInput{Title: "homework", CategoryID: 2})

	m, _ := newTestModel(t, store)
	require.Len(t, m.categories, 2)
	assert.Len(t, m.notes, 2)
	assert.Contains(t, m.View(), "All Categories")

	m = run(t, m, key("right"))
	m = run(t, m, key("right"))
	assert.Equal(t, int64(2), m.selectedCategory())
	require.Len(t, m.notes, 1)
	assert.Equal(t, "homework", m.notes[0].Title)
	assert.Contains(t, m.View(), "homework")
}

func TestEditor_BlurSchedulesSave(t *testing.T) {
	store := newMemStore()
	m, clock := newTestModel(t, store)

	m = run(t, m, key("n"))
	require.Equal(t, modeEdit, m.mode)
	assert.Equal(t, fieldTitle, m.focus)

	m = typeText(t, m, "Groceries")
	assert.Equal(t, "Groceries", m.session.Form().Title)

	m = run(t, m, key("tab"))
	assert.Equal(t, fieldContent, m.focus)
	assert.True(t, m.session.SavePending())
	assert.Empty(t, store.all(), "nothing written before the delay elapses")

	clock.Advance(time.Second)
	notes := store.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Groceries", notes[0].Title)

	m = typeText(t, m, "eggs")
	m = run(t, m, key("tab"))
	clock.Advance(time.Second)

	notes = store.all()
	require.Len(t, notes, 1, "later saves update the same note")
	assert.Equal(t, "eggs", notes[0].Content)
}

func TestEditor_DoneSavesAndCloses(t *testing.T) {
	store := newMemStore()
	m, _ := newTestModel(t, store)

	m = run(t, m, key("n"))
	m = typeText(t, m, "Quick")
	m = run(t, m, key("ctrl+s"))

	assert.Equal(t, modeBrowse, m.mode)
	require.Len(t, store.all(), 1)
	require.Len(t, m.notes, 1, "list reloads after done")
	assert.Equal(t, "Quick", m.notes[0].Title)
}

func TestEditor_BlankDoneWritesNothing(t *testing.T) {
	store := newMemStore()
	m, _ := newTestModel(t, store)

	m = run(t, m, key("n"))
	m = run(t, m, key("ctrl+s"))

	assert.Equal(t, modeBrowse, m.mode)
	assert.Empty(t, store.all())
}

func TestEditor_EscDropsPendingSave(t *testing.T) {
	store := newMemStore()
	m, clock := newTestModel(t, store)

	m = run(t, m, key("n"))
	m = typeText(t, m, "Draft")
	m = run(t, m, key("tab"))
	m = run(t, m, key("esc"))

	clock.Advance(time.Second)
	assert.Equal(t, modeBrowse, m.mode)
	assert.Empty(t, store.all())
}

func TestEditor_CategorySelector(t *testing.T) {
	store := newMemStore()
	m, clock := newTestModel(t, store)

	m = run(t, m, key("n"))
	assert.Equal(t, int64(1), m.session.Form().CategoryID, "new notes start in the first category")
	m = typeText(t, m, "Essay")

	// title -> content -> category
	m = run(t, m, key("tab"))
	m = run(t, m, key("tab"))
	require.Equal(t, fieldCategory, m.focus)
	m = update(t, m, key("right"))
	assert.Equal(t, int64(2), m.session.Form().CategoryID)
	assert.Contains(t, m.View(), "< ")

	clock.Advance(time.Second)
	notes := store.all()
	require.Len(t, notes, 1)
	assert.Equal(t, int64(2), notes[0].CategoryID)
}

func TestEditor_DeleteWithConfirmation(t *testing.T) {
	store := newMemStore()
	_, _ = store.CreateNote(context.Background(), core.NoteInput{Title: "old", CategoryID: 1})
	m, _ := newTestModel(t, store)

	m = run(t, m, key("enter"))
	require.Equal(t, modeEdit, m.mode)
	assert.Equal(t, "old", m.title.Value())

	m = run(t, m, key("ctrl+d"))
	require.Equal(t, modeConfirm, m.mode)
	assert.Contains(t, m.View(), "Delete \"old\"?")

	m = run(t, m, key("n"))
	assert.Equal(t, modeEdit, m.mode)
	assert.Len(t, store.all(), 1)

	m = run(t, m, key("ctrl+d"))
	m = run(t, m, key("y"))
	assert.Equal(t, modeBrowse, m.mode)
	assert.Empty(t, store.all())
	assert.Empty(t, m.notes)
}

func TestEditor_FailedDeleteKeepsEditorOpen(t *testing.T) {
	store := newMemStore()
	_, _ = store.CreateNote(context.Background(), core.NoteInput{Title: "stuck", CategoryID: 1})
	store.failDelete = errors.New("server down")
	m, _ := newTestModel(t, store)

	m = run(t, m, key("enter"))
	m = run(t, m, key("ctrl+d"))
	m = run(t, m, key("y"))

	assert.Equal(t, modeEdit, m.mode)
	require.Error(t, m.err)
	assert.Contains(t, m.View(), "server down")
}

func TestEditor_DeleteUnsavedNote(t *testing.T) {
	m, _ := newTestModel(t, newMemStore())

	m = run(t, m, key("n"))
	m = run(t, m, key("ctrl+d"))
	assert.Equal(t, modeEdit, m.mode)
	assert.ErrorIs(t, m.err, editor.ErrNotPersisted)
}

func TestOpenNoteOnLoad(t *testing.T) {
	store := newMemStore()
	_, _ = store.CreateNote(context.Background(), core.NoteInput{Title: "first", CategoryID: 1})
	second, _ := store.CreateNote(context.Background(), core.NoteInput{Title: "second", CategoryID: 1})

	m, _ := newTestModel(t, store, WithOpenNote(second.ID))
	assert.Equal(t, modeEdit, m.mode)
	assert.Equal(t, "second", m.title.Value())

	missing, _ := newTestModel(t, store, WithOpenNote(99))
	assert.Equal(t, modeBrowse, missing.mode)
	assert.ErrorIs(t, missing.err, core.ErrNotFound)
}

func TestStatusLine(t *testing.T) {
	m, _ := newTestModel(t, newMemStore())

	m.status = editor.Status{Saving: true}
	assert.Contains(t, m.statusLine(), "Saving...")

	m.status = editor.Status{NoteID: 4, Err: errors.New("boom")}
	line := m.statusLine()
	assert.Contains(t, line, "#4")
	assert.Contains(t, line, "Save failed: boom")
}
