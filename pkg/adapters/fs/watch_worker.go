package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/notely/pkg/core"
	"github.com/aretw0/notely/pkg/debounce"
)

type watchWorker struct {
	*worker.BaseWorker
	repo    *Repository
	pattern string
	events  chan<- core.Event
	watcher *fsnotify.Watcher
	pending *debounce.Group[int64, core.Event]
	cancel  context.CancelFunc
}

func newWatchWorker(repo *Repository, pattern string, events chan<- core.Event) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		repo:       repo,
		pattern:    pattern,
		events:     events,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := w.repo.addWatches(watcher); err != nil {
		_ = watcher.Close()
		return err
	}

	// Missing .git just means the vault is gitless.
	_ = watcher.Add(filepath.Join(w.repo.Path, ".git"))

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.watcher = watcher
	w.pending = debounce.NewGroup(w.repo.config.WatchDelay, func(id int64, e core.Event) {
		// Checked after the delay so our own write has been recorded.
		rel := w.repo.noteRelPath(id)
		if w.repo.isSelfWrite(rel, e.Type == core.EventDelete) {
			w.repo.suppressed.Add(1)
			return
		}
		w.repo.forgetSelfWrite(rel)
		w.deliver(runCtx, e)
	}, mergeEvents)
	w.repo.setWatcherActive(true)

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// gitLockTransition reports whether event touches .git/index.lock and, if
// so, whether git now holds the lock.
func gitLockTransition(event fsnotify.Event, locked bool) (handled, nowLocked bool) {
	if filepath.Base(event.Name) != "index.lock" || filepath.Base(filepath.Dir(event.Name)) != ".git" {
		return false, locked
	}
	switch {
	case event.Has(fsnotify.Create):
		return true, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return true, false
	}
	return true, locked
}

// reconcileAfterGitUnlock replays the changes git made while events were paused.
func (w *watchWorker) reconcileAfterGitUnlock(ctx context.Context) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		events, err := w.repo.Reconcile(ctx)
		if err != nil {
			w.repo.config.Logger.Error("reconcile failed", "error", err)
			return err
		}
		for _, e := range events {
			w.pending.Add(e.ID, e)
		}
		return nil
	}, lifecycle.WithErrorHandler(w.reportError))
}

func (w *watchWorker) processFilesystemEvent(event fsnotify.Event) {
	w.repo.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	if w.repo.shouldIgnore(event, w.pattern) {
		return
	}
	eType := w.repo.mapEventType(event)
	if eType == "" {
		return
	}

	id, err := w.repo.resolveID(event.Name)
	if err != nil {
		w.repo.config.Logger.Debug("not a note", "path", event.Name, "error", err)
		return
	}

	e := core.Event{Type: eType, Kind: core.KindNote, ID: id, Timestamp: time.Now().Unix()}
	rel := w.repo.noteRelPath(id)
	if eType == core.EventDelete {
		if entry, ok := w.repo.cache.Peek(rel); ok {
			e.OwnerID = entry.OwnerID
		}
		w.repo.cache.Delete(rel)
	} else if n, err := w.repo.readNote(rel); err == nil {
		e.OwnerID = n.OwnerID
	}
	w.pending.Add(id, e)
}

// deliver hands a coalesced event to the subscriber. The channel may already
// be closed during shutdown.
func (w *watchWorker) deliver(ctx context.Context, e core.Event) {
	defer func() { _ = recover() }()
	select {
	case w.events <- e:
	case <-ctx.Done():
	}
}

func (w *watchWorker) reportError(err error) {
	w.repo.config.Logger.Error("watcher error", "error", err)
	if w.repo.config.ErrorHandler != nil {
		w.repo.config.ErrorHandler(err)
	}
}

func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.repo.config.Logger.Enabled(ctx, slog.LevelDebug) {
				w.repo.config.Logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.repo.config.Logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.loop(ctx)

	// Pending events are dropped; in-flight deliveries finish before the
	// caller closes the channel.
	w.pending.Stop(5 * time.Second)
	return err
}

func (w *watchWorker) loop(ctx context.Context) error {
	var gitLocked bool
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}

			if handled, locked := gitLockTransition(event, gitLocked); handled {
				wasLocked := gitLocked
				gitLocked = locked
				if wasLocked && !locked {
					w.repo.config.Logger.Debug("git operations finished, reconciling")
					w.reconcileAfterGitUnlock(ctx)
				} else if locked && !wasLocked {
					w.repo.config.Logger.Debug("git operations detected, pausing watcher")
				}
				continue
			}
			if gitLocked {
				continue
			}
			w.processFilesystemEvent(event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.reportError(wErr)
		}
	}
}
