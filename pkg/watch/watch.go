// Package watch re-runs a conversion whenever a source document in the
// watched directory is written.
package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/fsnotify.v1"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
// Word writes a saved document in several bursts.
const DefaultDebounce = 500 * time.Millisecond

// Handler converts one changed source file.
type Handler func(path string) error

// Watcher watches a source directory for changed HTML exports.
type Watcher struct {
	dir      string
	handler  Handler
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	pending  map[string]*time.Timer
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for dir. A zero debounce uses DefaultDebounce.
func NewWatcher(dir string, handler Handler, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:      dir,
		handler:  handler,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
	}
}

// Start begins watching. It returns once the directory is registered.
func (w *Watcher) Start() error {
	if w.dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.stopChan = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watchLoop(watcher, w.stopChan)

	w.logger.Info("watching source directory", zap.String("dir", w.dir))
	return nil
}

func (w *Watcher) watchLoop(watcher *fsnotify.Watcher, stopChan chan struct{}) {
	defer w.wg.Done()
	for {
		select {
		case <-stopChan:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !IsSourceFile(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create || event.Op&fsnotify.Write == fsnotify.Write {
				w.schedule(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// schedule runs the handler for path once writes to it have settled.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.logger.Info("source changed", zap.String("path", path))
		if err := w.handler(path); err != nil {
			w.logger.Error("conversion failed", zap.String("path", path), zap.Error(err))
		}
	})
}

// Stop ends watching and cancels pending conversions. It is safe to call
// more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopChan == nil {
		w.mu.Unlock()
		return
	}
	close(w.stopChan)
	w.stopChan = nil
	watcher := w.watcher
	w.watcher = nil
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	watcher.Close()
}

// IsSourceFile reports whether path looks like a "Save as Web Page" export.
// Word's lock and temporary files are skipped.
func IsSourceFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".htm", ".html":
		return true
	}
	return false
}
