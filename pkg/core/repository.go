package core

import "context"

// NoteFilter narrows ListNotes. Zero values match everything.
type NoteFilter struct {
	OwnerID    int64
	CategoryID int64
}

// Matches reports whether n passes the filter.
func (f NoteFilter) Matches(n Note) bool {
	if f.OwnerID != 0 && n.OwnerID != f.OwnerID {
		return false
	}
	if f.CategoryID != 0 && n.CategoryID != f.CategoryID {
		return false
	}
	return true
}

// NoteRepository stores notes. Implementations assign IDs on create
// and return ErrNotFound for unknown IDs.
type NoteRepository interface {
	CreateNote(ctx context.Context, n Note) (Note, error)
	GetNote(ctx context.Context, id int64) (Note, error)
	UpdateNote(ctx context.Context, n Note) (Note, error)
	DeleteNote(ctx context.Context, id int64) error
	// ListNotes returns matching notes ordered by UpdatedAt, newest first.
	ListNotes(ctx context.Context, filter NoteFilter) ([]Note, error)
}

// CategoryRepository stores categories.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, c Category) (Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	// ListCategories returns all categories ordered by name.
	ListCategories(ctx context.Context) ([]Category, error)
}

// UserRepository stores users. CreateUser returns ErrConflict for a taken username.
type UserRepository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
}

// Repository defines the contract for storing and retrieving notes,
// categories and users. Adhering to this interface keeps the core
// independent of the underlying storage (filesystem, SQL).
type Repository interface {
	NoteRepository
	CategoryRepository
	UserRepository

	// Initialize ensures the underlying storage is ready (directories, schema).
	Initialize(ctx context.Context) error
}

// Watchable is implemented by repositories that can report changes made
// outside the service, such as a note file edited by hand.
type Watchable interface {
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

type contextKey string

// ChangeReasonKey is the context key for a change reason. Versioned
// adapters use it as the commit message.
const ChangeReasonKey contextKey = "change_reason"
