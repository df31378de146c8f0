// Package postgres implements core.Repository on PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/introspection"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aretw0/notely/pkg/core"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS categories (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	color_hex  TEXT NOT NULL DEFAULT '',
	slug       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notes (
	id          BIGSERIAL PRIMARY KEY,
	title       VARCHAR(255) NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	category_id BIGINT NOT NULL REFERENCES categories(id),
	owner_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS notes_owner_updated_idx ON notes (owner_id, updated_at DESC);
`

// Config holds the connection settings.
type Config struct {
	URL    string
	Logger *slog.Logger
}

// Repository stores notes, categories and users in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	url    string
	logger *slog.Logger
}

// NewRepository creates a repository. The pool is opened by Initialize.
func NewRepository(config Config) *Repository {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Repository{url: config.URL, logger: config.Logger}
}

// Initialize connects and creates the schema if needed.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.url == "" {
		return errors.New("postgres: database URL is not set")
	}
	if r.pool == nil {
		pool, err := pgxpool.New(ctx, r.url)
		if err != nil {
			return fmt.Errorf("postgres: failed to connect: %w", err)
		}
		r.pool = pool
	}
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to apply schema: %w", err)
	}
	r.logger.Debug("postgres schema ready")
	return nil
}

// Close releases the pool.
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", what, core.ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// --- Notes ---

const noteColumns = `id, title, content, category_id, owner_id, created_at, updated_at`

func scanNote(row pgx.Row) (core.Note, error) {
	var n core.Note
	err := row.Scan(&n.ID, &n.Title, &n.Content, &n.CategoryID, &n.OwnerID, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (r *Repository) CreateNote(ctx context.Context, n core.Note) (core.Note, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO notes (title, content, category_id, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+noteColumns,
		n.Title, n.Content, n.CategoryID, n.OwnerID, n.CreatedAt, n.UpdatedAt)
	created, err := scanNote(row)
	return created, translate(err, "create note")
}

func (r *Repository) GetNote(ctx context.Context, id int64) (core.Note, error) {
	n, err := scanNote(r.pool.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id))
	return n, translate(err, fmt.Sprintf("note %d", id))
}

func (r *Repository) UpdateNote(ctx context.Context, n core.Note) (core.Note, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE notes SET title = $2, content = $3, category_id = $4, updated_at = $5
		 WHERE id = $1 RETURNING `+noteColumns,
		n.ID, n.Title, n.Content, n.CategoryID, n.UpdatedAt)
	updated, err := scanNote(row)
	return updated, translate(err, fmt.Sprintf("note %d", n.ID))
}

func (r *Repository) DeleteNote(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return translate(err, fmt.Sprintf("note %d", id))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("note %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListNotes(ctx context.Context, filter core.NoteFilter) ([]core.Note, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+noteColumns+` FROM notes
		 WHERE ($1::bigint = 0 OR owner_id = $1) AND ($2::bigint = 0 OR category_id = $2)
		 ORDER BY updated_at DESC, id DESC`,
		filter.OwnerID, filter.CategoryID)
	if err != nil {
		return nil, translate(err, "list notes")
	}
	notes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Note, error) {
		return scanNote(row)
	})
	if err != nil {
		return nil, translate(err, "list notes")
	}
	return notes, nil
}

// --- Categories ---

func scanCategory(row pgx.Row) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.Name, &c.ColorHex, &c.Slug, &c.CreatedAt)
	return c, err
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, color_hex, slug, created_at) VALUES ($1, $2, $3, $4)
		 RETURNING id, name, color_hex, slug, created_at`,
		c.Name, c.ColorHex, c.Slug, c.CreatedAt)
	created, err := scanCategory(row)
	return created, translate(err, fmt.Sprintf("category %q", c.Name))
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.pool.QueryRow(ctx,
		`SELECT id, name, color_hex, slug, created_at FROM categories WHERE id = $1`, id))
	return c, translate(err, fmt.Sprintf("category %d", id))
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, color_hex, slug, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, translate(err, "list categories")
	}
	cats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Category, error) {
		return scanCategory(row)
	})
	return cats, translate(err, "list categories")
}

// --- Users ---

const userColumns = `id, username, email, password_hash, created_at`

func scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	created, err := scanUser(row)
	return created, translate(err, fmt.Sprintf("user %q", u.Username))
}

func (r *Repository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, translate(err, fmt.Sprintf("user %d", id))
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	return u, translate(err, fmt.Sprintf("user %q", username))
}

func (r *Repository) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET username = $2, email = $3, password_hash = $4 WHERE id = $1 RETURNING `+userColumns,
		u.ID, u.Username, u.Email, u.PasswordHash)
	updated, err := scanUser(row)
	return updated, translate(err, fmt.Sprintf("user %d", u.ID))
}

// RepositoryState exposes pool statistics.
type RepositoryState struct {
	Connected     bool  `json:"connected"`
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	if r.pool == nil {
		return RepositoryState{}
	}
	stat := r.pool.Stat()
	return RepositoryState{
		Connected:     true,
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "repository"
}

var _ core.Repository = (*Repository)(nil)
var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)
