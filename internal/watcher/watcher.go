// Package watcher reloads files when they change on disk.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"butterfly/internal/errors"
)

// DefaultDebounce is the quiet period before onChange fires
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a file for changes
type Watcher struct {
	path     string
	onChange func()
	debounce time.Duration
	log      *zap.SugaredLogger
}

// New creates a new file watcher
func New(path string, onChange func(), log *zap.SugaredLogger) *Watcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: DefaultDebounce,
		log:      log,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Watch starts watching the file for changes.
// It blocks until the context is cancelled or an error occurs.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fsnotify watcher")
	}
	defer fw.Close()

	// Watch the directory containing the file
	// This handles cases where the file is replaced (e.g., by editors)
	dir := filepath.Dir(w.path)
	filename := filepath.Base(w.path)

	if err := fw.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}

	w.log.Infow("Watching file for changes", "path", w.path, "debounce", w.debounce)

	// Bursts of writes collapse into one onChange after a quiet period
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			w.log.Infow("File changed", "path", w.path)
			w.onChange()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("Watcher error", "path", w.path, "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
