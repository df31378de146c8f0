package core_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aretw0/notely/pkg/core"
)

// MockRepository implements core.Repository in memory.
// It deliberately does NOT implement core.Watchable.
type MockRepository struct {
	mu         sync.Mutex
	notes      map[int64]core.Note
	categories map[int64]core.Category
	users      map[int64]core.User
	seq        int64
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		notes:      make(map[int64]core.Note),
		categories: make(map[int64]core.Category),
		users:      make(map[int64]core.User),
	}
}

func (m *MockRepository) next() int64 {
	m.seq++
	return m.seq
}

func (m *MockRepository) CreateNote(ctx context.Context, n core.Note) (core.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = m.next()
	m.notes[n.ID] = n
	return n, nil
}

func (m *MockRepository) GetNote(ctx context.Context, id int64) (core.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return core.Note{}, core.ErrNotFound
	}
	return n, nil
}

func (m *MockRepository) UpdateNote(ctx context.Context, n core.Note) (core.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[n.ID]; !ok {
		return core.Note{}, core.ErrNotFound
	}
	m.notes[n.ID] = n
	return n, nil
}

func (m *MockRepository) DeleteNote(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *MockRepository) ListNotes(ctx context.Context, f core.NoteFilter) ([]core.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Note
	for _, n := range m.notes {
		if f.Matches(n) {
			out = append(out, n)
		}
	}
	// Deliberately unordered by time; the service sorts.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.next()
	m.categories[c.ID] = c
	return c, nil
}

func (m *MockRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (m *MockRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Category
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *MockRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return core.User{}, core.ErrConflict
		}
	}
	u.ID = m.next()
	m.users[u.ID] = u
	return u, nil
}

func (m *MockRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (m *MockRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (m *MockRepository) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return u, nil
}

func (m *MockRepository) Initialize(ctx context.Context) error { return nil }

// fakeClock advances one second per call so UpdatedAt ordering is deterministic.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(t *testing.T) (*core.Service, *MockRepository) {
	t.Helper()
	repo := NewMockRepository()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := core.NewService(repo,
		core.WithClock(clock.Now),
		core.WithPasswordCost(bcrypt.MinCost),
	)
	return svc, repo
}

func seeded(t *testing.T) (*core.Service, core.SeedResult) {
	t.Helper()
	svc, _ := newTestService(t)
	res, err := svc.Seed(context.Background())
	require.NoError(t, err)
	return svc, res
}

func TestService_NoteCRUD(t *testing.T) {
	svc, seed := seeded(t)
	ctx := context.Background()
	owner := seed.User.ID
	school := seed.Categories[1]

	// 1. Create
	n, err := svc.CreateNote(ctx, owner, core.NoteInput{Title: "Homework", Content: "math", CategoryID: school.ID})
	require.NoError(t, err)
	assert.True(t, n.Persisted())
	assert.Equal(t, owner, n.OwnerID)
	assert.Equal(t, "demo", n.OwnerUsername)
	require.NotNil(t, n.CategoryDetail)
	assert.Equal(t, "School", n.CategoryDetail.Name)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)

	// 2. Patch only the content
	content := "math and physics"
	updated, err := svc.UpdateNote(ctx, owner, n.ID, core.NotePatch{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "Homework", updated.Title)
	assert.Equal(t, content, updated.Content)
	assert.True(t, updated.UpdatedAt.After(n.UpdatedAt))
	assert.Equal(t, n.CreatedAt, updated.CreatedAt)

	// 3. Get
	got, err := svc.GetNote(ctx, owner, n.ID)
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)

	// 4. Delete
	require.NoError(t, svc.DeleteNote(ctx, owner, n.ID))
	_, err = svc.GetNote(ctx, owner, n.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_NoteValidation(t *testing.T) {
	svc, seed := seeded(t)
	ctx := context.Background()
	owner := seed.User.ID
	cat := seed.Categories[0].ID

	tests := []struct {
		name  string
		input core.NoteInput
		field string
	}{
		{"blank title", core.NoteInput{Title: "   ", CategoryID: cat}, "title"},
		{"long title", core.NoteInput{Title: strings.Repeat("a", core.MaxTitleLength+1), CategoryID: cat}, "title"},
		{"missing category", core.NoteInput{Title: "ok"}, "category"},
		{"unknown category", core.NoteInput{Title: "ok", CategoryID: 999}, "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateNote(ctx, owner, tt.input)
			require.ErrorIs(t, err, core.ErrValidation)

			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestService_OwnerScoping(t *testing.T) {
	svc, seed := seeded(t)
	ctx := context.Background()

	other, err := svc.Register(ctx, "alice", "secret", "")
	require.NoError(t, err)

	n, err := svc.CreateNote(ctx, seed.User.ID, core.NoteInput{Title: "mine", CategoryID: seed.Categories[0].ID})
	require.NoError(t, err)

	_, err = svc.GetNote(ctx, other.ID, n.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	title := "stolen"
	_, err = svc.UpdateNote(ctx, other.ID, n.ID, core.NotePatch{Title: &title})
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteNote(ctx, other.ID, n.ID), core.ErrNotFound)

	notes, err := svc.ListNotes(ctx, other.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestService_ListNotesOrderAndFilter(t *testing.T) {
	svc, seed := seeded(t)
	ctx := context.Background()
	owner := seed.User.ID
	personal := seed.Categories[2].ID
	school := seed.Categories[1].ID

	first, err := svc.CreateNote(ctx, owner, core.NoteInput{Title: "first", CategoryID: personal})
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, owner, core.NoteInput{Title: "second", CategoryID: school})
	require.NoError(t, err)

	// Touching the first note moves it to the top.
	title := "first (edited)"
	_, err = svc.UpdateNote(ctx, owner, first.ID, core.NotePatch{Title: &title})
	require.NoError(t, err)

	notes, err := svc.ListNotes(ctx, owner, 0)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first (edited)", notes[0].Title)
	assert.Equal(t, "second", notes[1].Title)

	filtered, err := svc.ListNotes(ctx, owner, school)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "second", filtered[0].Title)
	require.NotNil(t, filtered[0].CategoryDetail)
	assert.Equal(t, "school", filtered[0].CategoryDetail.Slug)
}

func TestService_CategoryCountsPerOwner(t *testing.T) {
	svc, seed := seeded(t)
	ctx := context.Background()
	school := seed.Categories[1].ID

	other, err := svc.Register(ctx, "bob", "pw", "bob@example.com")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateNote(ctx, seed.User.ID, core.NoteInput{Title: fmt.Sprintf("n%d", i), CategoryID: school})
		require.NoError(t, err)
	}
	_, err = svc.CreateNote(ctx, other.ID, core.NoteInput{Title: "bob's", CategoryID: school})
	require.NoError(t, err)

	cats, err := svc.ListCategories(ctx, seed.User.ID)
	require.NoError(t, err)
	require.Len(t, cats, 3)

	// Ordered by name.
	assert.Equal(t, []string{"Personal", "Random Thoughts", "School"}, []string{cats[0].Name, cats[1].Name, cats[2].Name})
	assert.Equal(t, 3, cats[2].NoteCount)

	single, err := svc.GetCategory(ctx, other.ID, school)
	require.NoError(t, err)
	assert.Equal(t, 1, single.NoteCount)
}

func TestService_RegisterAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "carol", "hunter2", "carol@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", u.PasswordHash)

	_, err = svc.Register(ctx, "carol", "other", "")
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = svc.Register(ctx, "", "pw", "")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.Register(ctx, "dave", "", "")
	assert.ErrorIs(t, err, core.ErrValidation)

	got, err := svc.Authenticate(ctx, "carol", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "carol", "wrong")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "nobody", "hunter2")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestService_SeedIsIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	first, err := svc.Seed(ctx)
	require.NoError(t, err)

	// A changed demo password is reset by the next seed.
	_, err = svc.EnsureUser(ctx, core.DemoUsername, "changed", core.DemoEmail)
	require.NoError(t, err)

	second, err := svc.Seed(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	for i := range first.Categories {
		assert.Equal(t, first.Categories[i].ID, second.Categories[i].ID)
	}
	assert.Len(t, repo.categories, len(core.DefaultCategories))

	_, err = svc.Authenticate(ctx, core.DemoUsername, core.DemoPassword)
	assert.NoError(t, err)
}

func TestService_Subscribe(t *testing.T) {
	svc, seed := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())

	events := svc.Subscribe(ctx)

	n, err := svc.CreateNote(ctx, seed.User.ID, core.NoteInput{Title: "x", CategoryID: seed.Categories[0].ID})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteNote(ctx, seed.User.ID, n.ID))

	e := <-events
	assert.Equal(t, core.EventCreate, e.Type)
	assert.Equal(t, core.KindNote, e.Kind)
	assert.Equal(t, n.ID, e.ID)
	assert.Equal(t, fmt.Sprintf("CREATE note %d", n.ID), e.String())

	e = <-events
	assert.Equal(t, core.EventDelete, e.Type)

	cancel()
	// The channel is closed once the subscription ends.
	for range events {
	}
}

func TestService_StateCountsEvents(t *testing.T) {
	svc := core.NewService(NewMockRepository(),
		core.WithEventBuffer(1),
		core.WithPasswordCost(bcrypt.MinCost),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seed, err := svc.Seed(ctx)
	require.NoError(t, err)
	before := svc.State().(core.ServiceState)

	events := svc.Subscribe(ctx)
	for i := 0; i < 3; i++ {
		_, err := svc.CreateNote(ctx, seed.User.ID, core.NoteInput{Title: "n", CategoryID: seed.Categories[0].ID})
		require.NoError(t, err)
	}

	state := svc.State().(core.ServiceState)
	assert.Equal(t, before.EventsPublished+3, state.EventsPublished)
	assert.Equal(t, int64(2), state.EventsDropped, "a full buffer drops instead of blocking")
	assert.Equal(t, 1, state.Subscribers)
	assert.Equal(t, core.EventCreate, (<-events).Type)
}

func TestService_WatchUnsupported(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Watch(context.Background(), "**/*")
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "random-thoughts", core.Slugify("Random Thoughts"))
	assert.Equal(t, "school", core.Slugify("  School "))
	assert.Equal(t, "a-b", core.Slugify("a -- b!"))
}
