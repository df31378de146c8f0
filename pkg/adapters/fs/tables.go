package fs

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/aretw0/notely/pkg/core"
)

func (r *Repository) readTable(name string) ([]byte, error) {
	data, err := os.ReadFile(r.abs(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (r *Repository) readCategories() ([]categoryRecord, error) {
	data, err := r.readTable(categoriesFile)
	if err != nil {
		return nil, err
	}
	records, err := decodeYAMLList[categoryRecord](data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", categoriesFile, err)
	}
	return records, nil
}

func (r *Repository) readUsers() ([]userRecord, error) {
	data, err := r.readTable(usersFile)
	if err != nil {
		return nil, err
	}
	records, err := decodeYAMLList[userRecord](data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", usersFile, err)
	}
	return records, nil
}

func writeTable[T any](ctx context.Context, r *Repository, name string, records []T, msg string) error {
	data, err := encodeYAMLList(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := writeFileAtomic(r.abs(name), data, 0644); err != nil {
		return err
	}
	return r.commit(ctx, changeReason(ctx, msg), []string{name}, nil)
}

func (c categoryRecord) toCore() core.Category {
	return core.Category{ID: c.ID, Name: c.Name, ColorHex: c.ColorHex, Slug: c.Slug, CreatedAt: c.CreatedAt}
}

func (u userRecord) toCore() core.User {
	return core.User{ID: u.ID, Username: u.Username, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
}

// --- Categories ---

// CreateCategory appends a category. Name and slug must be unique.
func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if r.config.ReadOnly {
		return core.Category{}, core.ErrReadOnly
	}
	r.tableMu.Lock()
	defer r.tableMu.Unlock()

	records, err := r.readCategories()
	if err != nil {
		return core.Category{}, err
	}
	for _, existing := range records {
		if existing.Name == c.Name || existing.Slug == c.Slug {
			return core.Category{}, fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
		}
	}

	id, err := r.seq.next("category")
	if err != nil {
		return core.Category{}, fmt.Errorf("failed to allocate category id: %w", err)
	}
	c.ID = id
	c.NoteCount = 0
	records = append(records, categoryRecord{ID: c.ID, Name: c.Name, ColorHex: c.ColorHex, Slug: c.Slug, CreatedAt: c.CreatedAt})

	if err := writeTable(ctx, r, categoriesFile, records, fmt.Sprintf("create category %s", c.Slug)); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// GetCategory returns a category by ID.
func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	records, err := r.readCategories()
	if err != nil {
		return core.Category{}, err
	}
	for _, c := range records {
		if c.ID == id {
			return c.toCore(), nil
		}
	}
	return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
}

// ListCategories returns all categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	records, err := r.readCategories()
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(records))
	for _, c := range records {
		out = append(out, c.toCore())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Users ---

// CreateUser appends a user. The username must be unused.
func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if r.config.ReadOnly {
		return core.User{}, core.ErrReadOnly
	}
	r.tableMu.Lock()
	defer r.tableMu.Unlock()

	records, err := r.readUsers()
	if err != nil {
		return core.User{}, err
	}
	for _, existing := range records {
		if existing.Username == u.Username {
			return core.User{}, fmt.Errorf("user %q: %w", u.Username, core.ErrConflict)
		}
	}

	id, err := r.seq.next("user")
	if err != nil {
		return core.User{}, fmt.Errorf("failed to allocate user id: %w", err)
	}
	u.ID = id
	records = append(records, userRecord{ID: u.ID, Username: u.Username, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt})

	if err := writeTable(ctx, r, usersFile, records, fmt.Sprintf("create user %s", u.Username)); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// GetUser returns a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (core.User, error) {
	records, err := r.readUsers()
	if err != nil {
		return core.User{}, err
	}
	for _, u := range records {
		if u.ID == id {
			return u.toCore(), nil
		}
	}
	return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
}

// GetUserByUsername returns a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	records, err := r.readUsers()
	if err != nil {
		return core.User{}, err
	}
	for _, u := range records {
		if u.Username == username {
			return u.toCore(), nil
		}
	}
	return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
}

// UpdateUser replaces the stored user with the same ID.
func (r *Repository) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	if r.config.ReadOnly {
		return core.User{}, core.ErrReadOnly
	}
	r.tableMu.Lock()
	defer r.tableMu.Unlock()

	records, err := r.readUsers()
	if err != nil {
		return core.User{}, err
	}
	for i := range records {
		if records[i].ID == u.ID {
			records[i] = userRecord{ID: u.ID, Username: u.Username, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: records[i].CreatedAt}
			if err := writeTable(ctx, r, usersFile, records, fmt.Sprintf("update user %s", u.Username)); err != nil {
				return core.User{}, err
			}
			return records[i].toCore(), nil
		}
	}
	return core.User{}, fmt.Errorf("user %d: %w", u.ID, core.ErrNotFound)
}
