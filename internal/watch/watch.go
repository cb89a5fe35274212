// Package watch re-runs a callback when manifest files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Watch is given a non-positive debounce.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrNoPaths is returned when Watch has nothing to watch.
	ErrNoPaths = errors.New("no paths to watch")
	// ErrDirNotExist is returned when the directory of a watched file is missing.
	ErrDirNotExist = errors.New("watch directory does not exist")
)

// relevant is the set of operations that mean a file's content may have
// changed. Atomic saves show up as a create of the target name.
const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Watch watches the given files and calls fn with the changed paths once a
// burst of events has been quiet for debounce. The parent directory of each
// file is watched so files that do not exist yet, or are replaced by rename,
// are still seen. fn runs on the watching goroutine; events arriving while
// it runs are batched into the next call. Watch returns nil when ctx is
// cancelled.
func Watch(ctx context.Context, paths []string, debounce time.Duration, fn func(ctx context.Context, changed []string)) error {
	if len(paths) == 0 {
		return ErrNoPaths
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrDirNotExist, dir)
		}
		dirs[dir] = true
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	slog.Debug("watching for changes", "files", len(targets), "dirs", len(dirs))

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || !targets[name] || ev.Op&relevant == 0 {
				continue
			}
			pending[name] = true
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			slog.Debug("change detected", "files", changed)
			fn(ctx, changed)
		}
	}
}
