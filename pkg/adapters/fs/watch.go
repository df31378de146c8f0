package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/notely/pkg/core"
)

// Watch reports changes to note files made outside this repository, such
// as a note edited in another editor or restored by git. Bursts of events on
// the same note are coalesced. pattern filters note paths with doublestar
// syntax; a pattern without "/" matches the file name. The channel closes
// when ctx is done.
func (r *Repository) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern != "" {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid watch pattern %q", pattern)
		}
	}

	events := make(chan core.Event, 100)
	w := newWatchWorker(r, pattern, events)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := w.Stop(stopCtx)
		close(events)
		return err
	}, lifecycle.WithErrorHandler(func(err error) {
		r.config.Logger.Error("watcher shutdown failed", "error", err)
	}))

	return events, nil
}

func (r *Repository) addWatches(watcher *fsnotify.Watcher) error {
	dir := filepath.Join(r.Path, notesDir)
	if err := os.MkdirAll(dir, 0755); err != nil && !r.config.ReadOnly {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return nil
}

// shouldIgnore filters out everything but note files matching pattern.
func (r *Repository) shouldIgnore(event fsnotify.Event, pattern string) bool {
	rel, err := filepath.Rel(r.Path, event.Name)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)

	if strings.HasPrefix(base, TempFilePrefix) || strings.HasPrefix(base, ".") {
		return true
	}
	if !strings.HasPrefix(rel, notesDir+"/") || filepath.Ext(base) != ".md" {
		return true
	}
	if pattern != "" {
		target := rel
		if !strings.Contains(pattern, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(pattern, target); !ok {
			return true
		}
	}
	return false
}

// isSelfWrite reports whether the file state matches the one left by the
// repository's own last change to rel.
func (r *Repository) isSelfWrite(rel string, deleted bool) bool {
	r.mu.RLock()
	entry, hasEntry := r.selfWrites[rel]
	r.mu.RUnlock()
	if !hasEntry {
		return false
	}

	if entry.deleted || deleted {
		return entry.deleted && deleted
	}
	info, err := os.Stat(filepath.Join(r.Path, filepath.FromSlash(rel)))
	if err != nil {
		return false
	}
	return info.ModTime().Equal(entry.mtime) && info.Size() == entry.size
}

func (r *Repository) markSelfWrite(rel string, info os.FileInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info == nil {
		r.selfWrites[rel] = selfWrite{deleted: true}
		return
	}
	r.selfWrites[rel] = selfWrite{mtime: info.ModTime(), size: info.Size()}
}

func (r *Repository) forgetSelfWrite(rel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.selfWrites, rel)
}

type selfWrite struct {
	mtime   time.Time
	size    int64
	deleted bool
}

func (r *Repository) mapEventType(event fsnotify.Event) core.EventType {
	switch {
	case event.Has(fsnotify.Create):
		return core.EventCreate
	case event.Has(fsnotify.Write):
		return core.EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return core.EventDelete
	default:
		return ""
	}
}

// mergeEvents folds a new event for a note into the pending one.
func mergeEvents(prev, next core.Event) core.Event {
	switch {
	case prev.Type == core.EventCreate && next.Type == core.EventModify:
		next.Type = core.EventCreate
		return next
	case prev.Type == core.EventDelete && next.Type == core.EventCreate:
		next.Type = core.EventModify
		return next
	default:
		return next
	}
}

// Reconcile compares the index with the files on disk and returns events
// for every difference it finds. The watcher calls it after git releases
// its lock, since file events are suppressed while git runs.
func (r *Repository) Reconcile(ctx context.Context) ([]core.Event, error) {
	known := make(map[string]indexEntry)
	r.cache.Range(func(rel string, entry *indexEntry) bool {
		known[rel] = *entry
		return true
	})

	paths, err := r.notePaths()
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	var events []core.Event
	seen := make(map[string]bool, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen[rel] = true

		info, err := os.Stat(r.abs(rel))
		if err != nil {
			continue
		}
		prev, wasKnown := known[rel]
		if wasKnown && prev.LastModified.Equal(info.ModTime()) {
			continue
		}

		n, err := r.readNote(rel)
		if err != nil {
			continue
		}
		eType := core.EventModify
		if !wasKnown {
			eType = core.EventCreate
		}
		events = append(events, core.Event{Type: eType, Kind: core.KindNote, ID: n.ID, OwnerID: n.OwnerID, Timestamp: now})
	}

	for rel, entry := range known {
		if !seen[rel] {
			events = append(events, core.Event{Type: core.EventDelete, Kind: core.KindNote, ID: entry.ID, OwnerID: entry.OwnerID, Timestamp: now})
		}
	}

	r.cache.Prune(seen)
	if !r.config.ReadOnly {
		if err := r.cache.Save(); err != nil {
			r.config.Logger.Warn("failed to save index", "error", err)
		}
	}
	r.recordReconcile()
	return events, nil
}
