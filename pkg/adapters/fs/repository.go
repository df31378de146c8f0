package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/notely/pkg/core"
	"github.com/aretw0/notely/pkg/git"
)

const (
	notesDir       = "notes"
	categoriesFile = "categories.yaml"
	usersFile      = "users.yaml"

	// DefaultSystemDir holds the index and the ID sequence.
	DefaultSystemDir = ".notely"
)

// Repository implements core.Repository on a vault directory:
//
//	notes/<id>.md     one note per file, YAML frontmatter + content
//	categories.yaml   category table
//	users.yaml        user table
//	.notely/          index and ID sequence (git-ignored)
//
// When versioning is enabled every write is committed to git.
type Repository struct {
	Path       string
	git        *git.Client
	cache      *cache
	seq        *sequence
	serializer Serializer
	config     Config

	// tableMu serializes read-modify-write cycles on the YAML tables.
	tableMu sync.Mutex

	mu            sync.RWMutex
	watcherActive bool
	lastReconcile *time.Time
	selfWrites    map[string]selfWrite

	suppressed atomic.Int64 // watcher events recognised as our own writes
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	AutoInit  bool
	Gitless   bool
	MustExist bool
	ReadOnly  bool
	Logger    *slog.Logger
	SystemDir string // e.g. ".notely"
	// ErrorHandler receives runtime watcher failures. Optional.
	ErrorHandler func(error)
	// WatchDelay coalesces bursts of file events per note. Zero means 50ms.
	WatchDelay time.Duration
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WatchDelay <= 0 {
		config.WatchDelay = 50 * time.Millisecond
	}
	return &Repository{
		Path:       config.Path,
		git:        git.NewClient(config.Path, config.SystemDir+".lock", config.Logger),
		cache:      newCache(config.Path, config.SystemDir),
		seq:        newSequence(config.Path, config.SystemDir),
		serializer: NewMarkdownSerializer(),
		config:     config,
		selfWrites: make(map[string]selfWrite),
	}
}

// Initialize performs the necessary setup for the repository (mkdir, git init, index load).
func (r *Repository) Initialize(ctx context.Context) error {
	// 1. Directory initialization
	if r.config.MustExist || r.config.ReadOnly {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("vault path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", r.Path)
		}
	}
	if !r.config.ReadOnly {
		if err := os.MkdirAll(filepath.Join(r.Path, notesDir), 0755); err != nil {
			return fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	// 2. Git initialization
	if !r.config.Gitless && !r.config.ReadOnly {
		if err := r.initGit(); err != nil {
			return err
		}
	}

	// 3. Index and sequence
	if err := r.cache.Load(); err != nil {
		return err
	}
	if err := r.seq.load(); err != nil {
		return err
	}
	return r.observeExistingIDs()
}

func (r *Repository) initGit() error {
	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	wasNewRepo := false
	if !r.git.IsRepo() {
		if !r.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", r.Path)
		}
		if err := r.git.Init(); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := r.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}
	if mod && wasNewRepo {
		if err := r.git.Add(".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		if err := r.git.Commit(fmt.Sprintf("chore: configure %s ignore", r.config.SystemDir)); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}
	return nil
}

// ensureIgnore keeps the system dir, the lock file and temp files out of git.
func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(content), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, entry := range []string{r.config.SystemDir + "/", r.config.SystemDir + ".lock", TempFilePrefix + "*"} {
		if !present[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	var buf bytes.Buffer
	buf.Write(content)
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		buf.WriteByte('\n')
	}
	for _, entry := range missing {
		buf.WriteString(entry + "\n")
	}
	return true, writeFileAtomic(ignorePath, buf.Bytes(), 0644)
}

// observeExistingIDs raises the sequence past records written by hand or
// restored from git, so new IDs never collide with them.
func (r *Repository) observeExistingIDs() error {
	paths, err := r.notePaths()
	if err != nil {
		return err
	}
	for _, rel := range paths {
		if id, err := r.resolveID(rel); err == nil {
			r.seq.observe("note", id)
		}
	}

	cats, err := r.readCategories()
	if err != nil {
		return err
	}
	for _, c := range cats {
		r.seq.observe("category", c.ID)
	}

	users, err := r.readUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		r.seq.observe("user", u.ID)
	}
	return nil
}

// --- Notes ---

func (r *Repository) noteRelPath(id int64) string {
	return path.Join(notesDir, strconv.FormatInt(id, 10)+".md")
}

func (r *Repository) abs(rel string) string {
	return filepath.Join(r.Path, filepath.FromSlash(rel))
}

// CreateNote assigns the next note ID and writes the file.
func (r *Repository) CreateNote(ctx context.Context, n core.Note) (core.Note, error) {
	if r.config.ReadOnly {
		return core.Note{}, core.ErrReadOnly
	}
	id, err := r.seq.next("note")
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to allocate note id: %w", err)
	}
	n.ID = id
	if err := r.writeNote(ctx, n, fmt.Sprintf("create note %d", id)); err != nil {
		return core.Note{}, err
	}
	return n, nil
}

// GetNote reads a note by ID.
func (r *Repository) GetNote(ctx context.Context, id int64) (core.Note, error) {
	return r.readNote(r.noteRelPath(id))
}

// UpdateNote overwrites an existing note file.
func (r *Repository) UpdateNote(ctx context.Context, n core.Note) (core.Note, error) {
	if r.config.ReadOnly {
		return core.Note{}, core.ErrReadOnly
	}
	rel := r.noteRelPath(n.ID)
	if _, err := os.Stat(r.abs(rel)); err != nil {
		if os.IsNotExist(err) {
			return core.Note{}, fmt.Errorf("note %d: %w", n.ID, core.ErrNotFound)
		}
		return core.Note{}, err
	}
	if err := r.writeNote(ctx, n, fmt.Sprintf("update note %d", n.ID)); err != nil {
		return core.Note{}, err
	}
	return n, nil
}

// DeleteNote removes a note file.
func (r *Repository) DeleteNote(ctx context.Context, id int64) error {
	if r.config.ReadOnly {
		return core.ErrReadOnly
	}
	rel := r.noteRelPath(id)
	if err := os.Remove(r.abs(rel)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("note %d: %w", id, core.ErrNotFound)
		}
		return fmt.Errorf("failed to delete note %d: %w", id, err)
	}

	r.markSelfWrite(rel, nil)
	r.cache.Delete(rel)
	if err := r.cache.Save(); err != nil {
		r.config.Logger.Warn("failed to save index", "error", err)
	}
	return r.commit(ctx, changeReason(ctx, fmt.Sprintf("delete note %d", id)), nil, []string{rel})
}

// ListNotes returns the notes matching filter, newest first. The index
// answers the filter so only matching files are read in full.
func (r *Repository) ListNotes(ctx context.Context, filter core.NoteFilter) ([]core.Note, error) {
	paths, err := r.notePaths()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(paths))
	notes := make([]core.Note, 0, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen[rel] = true

		info, err := os.Stat(r.abs(rel))
		if err != nil {
			continue // removed while listing
		}

		if entry, ok := r.cache.Get(rel, info.ModTime()); ok {
			if !filter.Matches(core.Note{OwnerID: entry.OwnerID, CategoryID: entry.CategoryID}) {
				continue
			}
		}

		n, err := r.readNote(rel)
		if err != nil {
			r.config.Logger.Warn("skipping unreadable note", "path", rel, "error", err)
			continue
		}
		if filter.Matches(n) {
			notes = append(notes, n)
		}
	}

	r.cache.Prune(seen)
	if !r.config.ReadOnly {
		if err := r.cache.Save(); err != nil {
			r.config.Logger.Warn("failed to save index", "error", err)
		}
	}

	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].ID > notes[j].ID
		}
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes, nil
}

// notePaths returns the slash-separated relative paths of all note files.
func (r *Repository) notePaths() ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(r.Path), notesDir+"/*.md")
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

func (r *Repository) readNote(rel string) (core.Note, error) {
	full := r.abs(rel)
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Note{}, fmt.Errorf("%s: %w", rel, core.ErrNotFound)
		}
		return core.Note{}, err
	}
	defer f.Close()

	n, err := r.serializer.Parse(f)
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to parse %s: %w", rel, err)
	}

	// The filename is authoritative for identity.
	id, err := r.resolveID(rel)
	if err != nil {
		return core.Note{}, err
	}
	n.ID = id

	if info, err := f.Stat(); err == nil {
		r.indexNote(rel, n, info.ModTime())
	}
	return n, nil
}

func (r *Repository) writeNote(ctx context.Context, n core.Note, msg string) error {
	n.CategoryDetail = nil
	n.OwnerUsername = ""

	data, err := r.serializer.Serialize(n)
	if err != nil {
		return fmt.Errorf("failed to serialize note %d: %w", n.ID, err)
	}

	rel := r.noteRelPath(n.ID)
	if err := writeFileAtomic(r.abs(rel), data, 0644); err != nil {
		return err
	}

	if info, err := os.Stat(r.abs(rel)); err == nil {
		r.markSelfWrite(rel, info)
		r.indexNote(rel, n, info.ModTime())
		if err := r.cache.Save(); err != nil {
			r.config.Logger.Warn("failed to save index", "error", err)
		}
	}

	return r.commit(ctx, changeReason(ctx, msg), []string{rel}, nil)
}

func (r *Repository) indexNote(rel string, n core.Note, mtime time.Time) {
	r.cache.Set(rel, &indexEntry{
		ID:           n.ID,
		Title:        n.Title,
		CategoryID:   n.CategoryID,
		OwnerID:      n.OwnerID,
		UpdatedAt:    n.UpdatedAt,
		LastModified: mtime,
	})
}

// resolveID extracts the note ID from a path such as "notes/12.md".
func (r *Repository) resolveID(p string) (int64, error) {
	base := filepath.Base(p)
	if filepath.Ext(base) != ".md" {
		return 0, fmt.Errorf("not a note file: %s", p)
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(base, ".md"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid note id in %s", p)
	}
	return id, nil
}

// commit stages adds and removals and records them. It is a no-op without git.
func (r *Repository) commit(ctx context.Context, msg string, add, rm []string) error {
	if r.config.Gitless {
		return nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	unlock, err := r.git.Lock(lockCtx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := r.git.Add(add...); err != nil {
		return err
	}
	if err := r.git.Rm(rm...); err != nil {
		return err
	}
	return r.git.Commit(msg)
}

func changeReason(ctx context.Context, fallback string) string {
	if v, ok := ctx.Value(core.ChangeReasonKey).(string); ok && v != "" {
		return v
	}
	return fallback
}
