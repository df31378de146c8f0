package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const defaultEventBuffer = 100

// Service handles the business logic for notes, categories and users.
// Every note operation is scoped to an owner: another user's note is ErrNotFound.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
	cost   int

	mu              sync.RWMutex
	eventBufferSize int
	subscribers     map[int]chan Event
	nextSub         int

	published atomic.Int64
	dropped   atomic.Int64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used by the service.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventBuffer sets the per-subscriber event buffer. Zero means default (100).
func WithEventBuffer(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.eventBufferSize = size
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPasswordCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithPasswordCost(cost int) ServiceOption {
	return func(s *Service) {
		s.cost = cost
	}
}

// NewService creates a new Service.
func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:            repo,
		logger:          slog.Default(),
		now:             time.Now,
		cost:            bcrypt.DefaultCost,
		eventBufferSize: defaultEventBuffer,
		subscribers:     make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying storage adapter.
func (s *Service) Repository() Repository {
	return s.repo
}

// --- Notes ---

// CreateNote validates and persists a new note owned by ownerID.
func (s *Service) CreateNote(ctx context.Context, ownerID int64, in NoteInput) (Note, error) {
	n := Note{
		Title:      in.Title,
		Content:    in.Content,
		CategoryID: in.CategoryID,
		OwnerID:    ownerID,
	}
	if err := s.validateNote(ctx, n); err != nil {
		return Note{}, err
	}

	now := s.now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	created, err := s.repo.CreateNote(ctx, n)
	if err != nil {
		return Note{}, fmt.Errorf("failed to create note: %w", err)
	}

	s.logger.Debug("note created", "id", created.ID, "owner", ownerID)
	s.publish(Event{Type: EventCreate, Kind: KindNote, ID: created.ID, OwnerID: ownerID})
	return s.decorate(ctx, created), nil
}

// GetNote returns a note owned by ownerID.
func (s *Service) GetNote(ctx context.Context, ownerID, id int64) (Note, error) {
	n, err := s.ownedNote(ctx, ownerID, id)
	if err != nil {
		return Note{}, err
	}
	return s.decorate(ctx, n), nil
}

// UpdateNote applies a partial update to a note owned by ownerID.
func (s *Service) UpdateNote(ctx context.Context, ownerID, id int64, patch NotePatch) (Note, error) {
	n, err := s.ownedNote(ctx, ownerID, id)
	if err != nil {
		return Note{}, err
	}

	patch.Apply(&n)
	if err := s.validateNote(ctx, n); err != nil {
		return Note{}, err
	}
	n.UpdatedAt = s.now().UTC()

	updated, err := s.repo.UpdateNote(ctx, n)
	if err != nil {
		return Note{}, fmt.Errorf("failed to update note %d: %w", id, err)
	}

	s.logger.Debug("note updated", "id", id, "owner", ownerID)
	s.publish(Event{Type: EventModify, Kind: KindNote, ID: id, OwnerID: ownerID})
	return s.decorate(ctx, updated), nil
}

// DeleteNote removes a note owned by ownerID.
func (s *Service) DeleteNote(ctx context.Context, ownerID, id int64) error {
	if _, err := s.ownedNote(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteNote(ctx, id); err != nil {
		return fmt.Errorf("failed to delete note %d: %w", id, err)
	}

	s.logger.Debug("note deleted", "id", id, "owner", ownerID)
	s.publish(Event{Type: EventDelete, Kind: KindNote, ID: id, OwnerID: ownerID})
	return nil
}

// ListNotes returns the notes of ownerID, newest first.
// A categoryID of 0 lists every category.
func (s *Service) ListNotes(ctx context.Context, ownerID, categoryID int64) ([]Note, error) {
	notes, err := s.repo.ListNotes(ctx, NoteFilter{OwnerID: ownerID, CategoryID: categoryID})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	sortNotes(notes)

	categories, err := s.categoryIndex(ctx)
	if err != nil {
		return nil, err
	}
	username := s.username(ctx, ownerID)
	for i := range notes {
		if c, ok := categories[notes[i].CategoryID]; ok {
			notes[i].CategoryDetail = &c
		}
		notes[i].OwnerUsername = username
	}
	return notes, nil
}

func (s *Service) ownedNote(ctx context.Context, ownerID, id int64) (Note, error) {
	if id <= 0 {
		return Note{}, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	n, err := s.repo.GetNote(ctx, id)
	if err != nil {
		return Note{}, err
	}
	if n.OwnerID != ownerID {
		return Note{}, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	return n, nil
}

func (s *Service) validateNote(ctx context.Context, n Note) error {
	verr := &ValidationError{Fields: map[string]string{}}

	title := strings.TrimSpace(n.Title)
	switch {
	case title == "":
		verr.Fields["title"] = "This field may not be blank."
	case utf8.RuneCountInString(n.Title) > MaxTitleLength:
		verr.Fields["title"] = fmt.Sprintf("Ensure this field has no more than %d characters.", MaxTitleLength)
	}

	if n.CategoryID <= 0 {
		verr.Fields["category"] = "This field is required."
	} else if _, err := s.repo.GetCategory(ctx, n.CategoryID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to load category %d: %w", n.CategoryID, err)
		}
		verr.Fields["category"] = fmt.Sprintf("Invalid pk %q - object does not exist.", fmt.Sprint(n.CategoryID))
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (s *Service) decorate(ctx context.Context, n Note) Note {
	if c, err := s.repo.GetCategory(ctx, n.CategoryID); err == nil {
		n.CategoryDetail = &c
	}
	n.OwnerUsername = s.username(ctx, n.OwnerID)
	return n
}

func (s *Service) username(ctx context.Context, id int64) string {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return ""
	}
	return u.Username
}

func sortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].ID > notes[j].ID
		}
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
}

// --- Categories ---

// ListCategories returns every category ordered by name, with NoteCount
// counting only the notes of ownerID.
func (s *Service) ListCategories(ctx context.Context, ownerID int64) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	counts, err := s.noteCounts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		categories[i].NoteCount = counts[categories[i].ID]
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

// GetCategory returns a single category with the note count of ownerID.
func (s *Service) GetCategory(ctx context.Context, ownerID, id int64) (Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	counts, err := s.noteCounts(ctx, ownerID)
	if err != nil {
		return Category{}, err
	}
	c.NoteCount = counts[c.ID]
	return c, nil
}

// EnsureCategory creates the category unless one with the same slug exists.
// An empty slug is derived from name.
func (s *Service) EnsureCategory(ctx context.Context, name, colorHex, slug string) (Category, error) {
	if strings.TrimSpace(name) == "" {
		return Category{}, NewValidationError("name", "This field may not be blank.")
	}
	if slug == "" {
		slug = Slugify(name)
	}

	existing, err := s.repo.ListCategories(ctx)
	if err != nil {
		return Category{}, fmt.Errorf("failed to list categories: %w", err)
	}
	for _, c := range existing {
		if c.Slug == slug {
			return c, nil
		}
		if c.Name == name {
			return Category{}, fmt.Errorf("category name %q: %w", name, ErrConflict)
		}
	}

	created, err := s.repo.CreateCategory(ctx, Category{
		Name:      name,
		ColorHex:  colorHex,
		Slug:      slug,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return Category{}, fmt.Errorf("failed to create category: %w", err)
	}

	s.logger.Debug("category created", "id", created.ID, "slug", slug)
	s.publish(Event{Type: EventCreate, Kind: KindCategory, ID: created.ID})
	return created, nil
}

func (s *Service) categoryIndex(ctx context.Context) (map[int64]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	idx := make(map[int64]Category, len(categories))
	for _, c := range categories {
		idx[c.ID] = c
	}
	return idx, nil
}

func (s *Service) noteCounts(ctx context.Context, ownerID int64) (map[int64]int, error) {
	notes, err := s.repo.ListNotes(ctx, NoteFilter{OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("failed to count notes: %w", err)
	}
	counts := make(map[int64]int)
	for _, n := range notes {
		counts[n.CategoryID]++
	}
	return counts, nil
}

// --- Users ---

// Register creates a user. Username and password are required and the
// username must be unused.
func (s *Service) Register(ctx context.Context, username, password, email string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, NewValidationError("username", "Username and password required")
	}
	if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
		return User{}, fmt.Errorf("username %q: %w", username, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := s.repo.CreateUser(ctx, User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "id", u.ID, "username", u.Username)
	s.publish(Event{Type: EventCreate, Kind: KindUser, ID: u.ID})
	return u, nil
}

// Authenticate checks a username and password. Any mismatch is ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrUnauthorized
		}
		return User{}, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrUnauthorized
	}
	return u, nil
}

// GetUser returns a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// EnsureUser creates the user, or resets the password and email of an existing one.
func (s *Service) EnsureUser(ctx context.Context, username, password, email string) (User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return s.Register(ctx, username, password, email)
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.Email = email

	updated, err := s.repo.UpdateUser(ctx, u)
	if err != nil {
		return User{}, fmt.Errorf("failed to update user: %w", err)
	}
	s.publish(Event{Type: EventModify, Kind: KindUser, ID: u.ID})
	return updated, nil
}

// --- Events ---

// Subscribe returns a channel receiving every mutation made through the
// service until ctx is done. Slow subscribers lose events rather than
// blocking writers.
func (s *Service) Subscribe(ctx context.Context) <-chan Event {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, s.eventBufferSize)
	s.subscribers[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subscribers, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

func (s *Service) publish(e Event) {
	if e.Timestamp == 0 {
		e.Timestamp = s.now().Unix()
	}

	s.published.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			s.dropped.Add(1)
			s.logger.Debug("event dropped, subscriber buffer full", "event", e.String())
		}
	}
}

// Watch observes changes made outside the service if the repository supports it.
func (s *Service) Watch(ctx context.Context, pattern string) (<-chan Event, error) {
	w, ok := s.repo.(Watchable)
	if !ok {
		return nil, errors.New("repository does not support watching")
	}
	return w.Watch(ctx, pattern)
}
