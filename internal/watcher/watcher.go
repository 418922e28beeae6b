// Package watcher monitors folder sources for filesystem changes and
// triggers debounced rescans.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches the event storms bulk copies produce into a
// single rescan.
const DefaultDebounce = 2 * time.Second

// RescanFunc is invoked, debounced, when a watched root changes.
type RescanFunc func(root string)

// Watcher observes registered roots recursively. One debounce timer per
// root: copying a 40-file audiobook in fires one rescan, not forty.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	rescan   RescanFunc

	mu     sync.Mutex
	roots  []string
	timers map[string]*time.Timer

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates a watcher delivering debounced change notifications to rescan.
func New(debounce time.Duration, rescan RescanFunc, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &Watcher{
		fsw:      fsw,
		logger:   logger,
		debounce: debounce,
		rescan:   rescan,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// AddRoot registers a folder source root and all its current subdirectories.
func (w *Watcher) AddRoot(root string) error {
	w.mu.Lock()
	w.roots = append(w.roots, root)
	w.mu.Unlock()

	return w.addRecursive(root)
}

// Close stops event delivery and cancels pending rescans.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.timers = make(map[string]*time.Timer)
		w.mu.Unlock()

		w.closeErr = w.fsw.Close()
		w.wg.Wait()
	})
	return w.closeErr
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories need their own watch before their contents appear.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	root := w.rootFor(event.Name)
	if root == "" {
		return
	}
	w.scheduleRescan(root)
}

// rootFor maps an event path back to the registered root containing it.
func (w *Watcher) rootFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, root := range w.roots {
		if path == root {
			return root
		}
		if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !filepath.IsAbs(rel) &&
			rel != "." && !isOutside(rel) {
			return root
		}
	}
	return ""
}

func isOutside(rel string) bool {
	return rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// scheduleRescan arms (or re-arms) the root's debounce timer.
func (w *Watcher) scheduleRescan(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[root]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[root] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, root)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.rescan(root)
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("walk error while adding watch", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); name != "." && name[0] == '.' && path != root {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to add watch", "path", path, "error", err)
		}
		return nil
	})
}
