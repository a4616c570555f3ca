package catalog

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

// Watcher serves a YAML catalog file and reloads it when the file changes.
// A reload that fails validation keeps the previous snapshot.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	current  atomic.Pointer[Static]
	reloads  atomic.Int64
}

func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{path: path, debounce: 250 * time.Millisecond, logger: logger}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Watcher) Directories(ctx context.Context) ([]entity.Directory, error) {
	return w.current.Load().Directories(ctx)
}

func (w *Watcher) Version() string { return w.current.Load().Version() }

// Reloads counts successful loads, including the initial one.
func (w *Watcher) Reloads() int64 { return w.reloads.Load() }

// Reload re-reads the file now.
func (w *Watcher) Reload() error {
	s, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("catalog.reload.failed", "path", w.path, "error", err)
		return err
	}
	prev := w.current.Swap(s)
	w.reloads.Add(1)
	attrs := []any{"path", w.path, "version", s.Version(), "directories", s.Len()}
	if prev != nil {
		attrs = append(attrs, "previous_version", prev.Version())
	}
	w.logger.Info("catalog.reload.ok", attrs...)
	return nil
}

// Run watches the file's directory until ctx is done. Editors often replace
// files instead of writing them, so the parent directory is watched.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("failed to create fsnotify watcher", "error", err)
		return err
	}
	defer func() {
		if err := fw.Close(); err != nil {
			w.logger.Warn("catalog watcher close error", "error", err)
		}
	}()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		w.logger.Error("failed to watch catalog directory", "dir", dir, "error", err)
		return err
	}
	target := filepath.Clean(w.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-fw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if filepath.Clean(e.Name) != target || !e.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() { _ = w.Reload() })
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			w.logger.Warn("catalog watcher error", "error", err)
		}
	}
}
