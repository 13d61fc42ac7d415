package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hasan199191/crobot/internal/logging"
)

// Watcher reloads the config file when it changes on disk, so schedule
// tuning (intervals, daily caps) can be adjusted without restarting the
// worker. Secrets still come from the environment and are re-applied on
// every reload.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	onChange    func(*Config)
	debounceDur time.Duration
	lastEvent   time.Time
	running     bool
	doneCh      chan struct{}
}

// NewWatcher creates a watcher for the given config path. onChange is
// invoked with the freshly loaded config after each successful reload.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		path:        path,
		onChange:    onChange,
		debounceDur: 500 * time.Millisecond, // Editors fire several events per save
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory, not the file: most editors replace the file
	// on save, which drops a file-level watch.
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	logging.Boot("config watcher: watching %s", dir)

	go func() {
		defer close(w.doneCh)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				w.mu.Lock()
				if time.Since(w.lastEvent) < w.debounceDur {
					w.mu.Unlock()
					continue
				}
				w.lastEvent = time.Now()
				w.mu.Unlock()

				cfg, err := Load(w.path)
				if err != nil {
					logging.BootError("config watcher: reload failed: %v", err)
					continue
				}
				if err := cfg.Validate(); err != nil {
					logging.BootError("config watcher: reloaded config invalid, keeping current: %v", err)
					continue
				}
				logging.Boot("config watcher: reloaded %s", w.path)
				if w.onChange != nil {
					w.onChange(cfg)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				logging.BootError("config watcher: %v", err)
			}
		}
	}()
	return nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
