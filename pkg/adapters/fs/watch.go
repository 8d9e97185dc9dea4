package fs

import (
	"context"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/fieldwatch/pkg/core"
)

// EventBufferSize is the capacity of the channel returned by Watch.
const EventBufferSize = 100

// Watch observes the vault recursively and emits debounced events for
// documents matching pattern. The channel is closed once ctx is done or
// the underlying watcher fails.
func (r *Repository) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	events := make(chan core.Event, EventBufferSize)
	w := newWatchWorker(r, pattern, events)
	if err := w.start(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

type watchWorker struct {
	repo      *Repository
	pattern   string
	events    chan core.Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newWatchWorker(repo *Repository, pattern string, events chan core.Event) *watchWorker {
	return &watchWorker{
		repo:    repo,
		pattern: pattern,
		events:  events,
	}
}

func (w *watchWorker) start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := w.repo.recursiveAdd(watcher, w.repo.Path); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(w.repo.config.Debounce)
	w.repo.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	lifecycle.Go(runCtx, w.run, lifecycle.WithErrorHandler(func(err error) {
		w.repo.reportError(fmt.Errorf("watcher stopped: %w", err))
	}))
	return nil
}

// run is the main event loop of the worker.
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
		w.shutdown()
	}()

	return w.mainEventLoop(ctx)
}

// shutdown stops emitting, waits for in-flight emits and closes the channel.
func (w *watchWorker) shutdown() {
	w.cancel()
	_ = w.watcher.Close()
	if !w.debouncer.stopAndWait(5 * time.Second) {
		w.repo.config.Logger.Warn("debouncer did not drain in time")
	}
	w.repo.setWatcherActive(false)
	close(w.events)
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.repo.config.Logger.Error("fsnotify error", "error", wErr)
			w.repo.reportError(wErr)
		}
	}
}

// processFilesystemEvent filters, maps and debounces one fsnotify event.
// It reports whether an event was scheduled.
func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) bool {
	w.repo.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			name := filepath.Base(event.Name)
			if !w.repo.isHidden(name) {
				if err := w.repo.recursiveAdd(w.watcher, event.Name); err != nil {
					w.repo.reportError(err)
				}
			}
			return false
		}
	}

	if !w.repo.matches(event.Name, w.pattern) {
		return false
	}

	eType := mapEventType(event)
	if eType == "" {
		return false
	}

	id, err := w.repo.resolveID(event.Name)
	if err != nil {
		w.repo.config.Logger.Debug("resolveID failed", "path", event.Name, "err", err)
		return false
	}

	w.debouncer.add(core.Event{
		Type:      eType,
		ID:        id,
		Timestamp: time.Now().Unix(),
	}, func(e core.Event) {
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
	return true
}

func mapEventType(event fsnotify.Event) core.EventType {
	switch {
	case event.Has(fsnotify.Create):
		return core.EventCreate
	case event.Has(fsnotify.Write):
		return core.EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return core.EventDelete
	}
	return ""
}

// recursiveAdd registers root and every non-hidden directory below it.
func (r *Repository) recursiveAdd(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != r.Path && r.isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (r *Repository) reportError(err error) {
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
	}
}
