package imagesource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// WatchedFolder caches the folder listing and drops the cache whenever
// fsnotify reports a change in the folder.
type WatchedFolder struct {
	*Folder

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	cached  []Image
	valid   bool
	started bool

	doneCh chan struct{}
}

func NewWatchedFolder(root string) (*WatchedFolder, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create image folder watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch image folder %s: %w", root, err)
	}
	return &WatchedFolder{
		Folder:  NewFolder(root),
		watcher: watcher,
		doneCh:  make(chan struct{}),
	}, nil
}

// Start consumes watcher events until ctx is cancelled or Close is called.
func (w *WatchedFolder) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.run(ctx)
}

func (w *WatchedFolder) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			slog.Debug("image folder changed", "path", event.Name, "op", event.Op.String())
			w.Invalidate()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("image folder watcher error", "error", err)
			w.Invalidate()
		}
	}
}

// List serves the cached listing, rescanning the folder after a change.
func (w *WatchedFolder) List() ([]Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.valid {
		images, err := w.Folder.List()
		if err != nil {
			return nil, err
		}
		w.cached = images
		w.valid = true
	}
	return append([]Image(nil), w.cached...), nil
}

func (w *WatchedFolder) Invalidate() {
	w.mu.Lock()
	w.valid = false
	w.mu.Unlock()
}

// Close stops the watcher and waits for the event loop to exit.
func (w *WatchedFolder) Close() error {
	err := w.watcher.Close()
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.doneCh
	}
	return err
}
