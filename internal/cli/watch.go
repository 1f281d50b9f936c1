package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// watcher calls onChange after a behavior file changes, once the file has
// been quiet for the debounce period.
type watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func()
	logger   *slog.Logger
}

// newWatcher watches the directory holding path, so that editors that
// replace the file on save are still seen.
func newWatcher(path string, debounce time.Duration, onChange func(), logger *slog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	path = filepath.Clean(path)
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %q: %w", path, err)
	}
	return &watcher{fsw: fsw, path: path, debounce: debounce, onChange: onChange, logger: logger}, nil
}

// Run blocks until ctx is cancelled or the watcher is closed. Calls to
// onChange never overlap.
func (w *watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		timer *time.Timer
	)
	cancel := func() {
		if timer != nil && timer.Stop() {
			wg.Done()
		}
	}
	fire := func() {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() == nil {
			w.onChange()
		}
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("behavior file changed", "file", w.path, "op", event.Op.String())
			cancel()
			wg.Add(1)
			timer = time.AfterFunc(w.debounce, fire)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}
