package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the configuration file and triggers an atomic reload
// when it changes. A reload that fails validation is rejected and logged;
// the previous configuration stays active. Writes are debounced so that
// editors performing write-then-rename do not trigger reload storms.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher for the given configuration file.
func NewWatcher(path string) *Watcher {
	return &Watcher{
		path:     path,
		debounce: 200 * time.Millisecond,
		logger:   slog.Default().With("component", "config.watcher"),
	}
}

// Watch blocks, invoking onReload with each successfully loaded
// configuration until the context is cancelled. onReload is never called
// with an invalid configuration.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	// Watch the directory, not the file: rename-based atomic writes
	// replace the inode and would silently detach a file watch.
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("configuration watcher started", "path", w.path)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("configuration watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(onReload)

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// reload attempts to load the changed file and hand it to the callback.
func (w *Watcher) reload(onReload func(*Config)) {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Error("configuration reload rejected, keeping previous configuration",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.logger.Info("configuration reloaded", "path", w.path)
	onReload(cfg)
}
