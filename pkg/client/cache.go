package client

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/notely/pkg/core"
	"github.com/aretw0/notely/pkg/editor"
)

// Cache keys. Note lists are cached per category under "notes/<id>".
const (
	KeyNotes      = "notes"
	KeyCategories = "categories"
)

// CachingStore wraps a Store with a listing cache. Every successful
// mutation invalidates both the notes and the categories keys, since note
// counts live on categories.
type CachingStore struct {
	next editor.Store
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
	gen     uint64 // bumped by Invalidate
}

type cacheEntry struct {
	value any
	at    time.Time
}

// CacheOption configures a CachingStore.
type CacheOption func(*CachingStore)

// WithTTL makes entries stale after d. Zero keeps them until invalidated.
func WithTTL(d time.Duration) CacheOption {
	return func(s *CachingStore) { s.ttl = d }
}

// WithCacheClock overrides the time source.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(s *CachingStore) { s.now = now }
}

// NewCachingStore wraps next.
func NewCachingStore(next editor.Store, opts ...CacheOption) *CachingStore {
	s := &CachingStore{next: next, now: time.Now, entries: make(map[string]cacheEntry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func notesKey(categoryID int64) string {
	return KeyNotes + "/" + strconv.FormatInt(categoryID, 10)
}

func cached[T any](s *CachingStore, key string, load func() (T, error)) (T, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	gen := s.gen
	s.mu.Unlock()
	if ok && (s.ttl <= 0 || s.now().Sub(e.at) < s.ttl) {
		return e.value.(T), nil
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	s.mu.Lock()
	// A mutation during the load may have made v stale.
	if s.gen == gen {
		s.entries[key] = cacheEntry{value: v, at: s.now()}
	}
	s.mu.Unlock()
	return v, nil
}

// Invalidate drops every entry under the given keys. "notes" covers all
// per-category note lists.
func (s *CachingStore) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	for _, key := range keys {
		for k := range s.entries {
			if k == key || strings.HasPrefix(k, key+"/") {
				delete(s.entries, k)
			}
		}
	}
}

// Len returns the number of cached entries.
func (s *CachingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *CachingStore) ListNotes(ctx context.Context, categoryID int64) ([]core.Note, error) {
	return cached(s, notesKey(categoryID), func() ([]core.Note, error) {
		return s.next.ListNotes(ctx, categoryID)
	})
}

func (s *CachingStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	return cached(s, KeyCategories, func() ([]core.Category, error) {
		return s.next.ListCategories(ctx)
	})
}

func (s *CachingStore) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	n, err := s.next.CreateNote(ctx, in)
	if err == nil {
		s.Invalidate(KeyNotes, KeyCategories)
	}
	return n, err
}

func (s *CachingStore) UpdateNote(ctx context.Context, id int64, patch core.NotePatch) (core.Note, error) {
	n, err := s.next.UpdateNote(ctx, id, patch)
	if err == nil {
		s.Invalidate(KeyNotes, KeyCategories)
	}
	return n, err
}

func (s *CachingStore) DeleteNote(ctx context.Context, id int64) error {
	err := s.next.DeleteNote(ctx, id)
	if err == nil {
		s.Invalidate(KeyNotes, KeyCategories)
	}
	return err
}

var _ editor.Store = (*CachingStore)(nil)
