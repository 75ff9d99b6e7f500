// Package watcher keeps stored series in step with a directory of template
// files.
package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"calrepeat/internal/parser"
)

// DefaultSettle is how long a template file must stay quiet before its
// change is reported. Editors often write a file in several steps.
const DefaultSettle = 100 * time.Millisecond

// Op is what happened to a template file once it settled
type Op int

const (
	// OpChanged means the file exists and should be (re)imported.
	OpChanged Op = iota
	// OpRemoved means the file is gone, by deletion or rename.
	OpRemoved
)

func (op Op) String() string {
	switch op {
	case OpChanged:
		return "changed"
	case OpRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change reports a settled template file
type Change struct {
	Path string
	Op   Op
}

// Handler receives settled changes. It runs on a timer goroutine and may be
// called concurrently for different paths.
type Handler func(Change)

// DirWatcher follows template files below one or more directory trees.
// Bursts of fsnotify events for a path collapse into a single Change,
// decided by whether the file still exists when it settles.
type DirWatcher struct {
	fs      *fsnotify.Watcher
	handler Handler
	settle  time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	dirs    map[string]bool
	pending map[string]settling
	seq     uint64
	closed  bool
	done    chan struct{}
}

// settling is a change waiting for its file to go quiet
type settling struct {
	timer *time.Timer
	seq   uint64
}

// NewDirWatcher starts a watcher that reports to handler. A settle of zero
// uses DefaultSettle.
func NewDirWatcher(handler Handler, settle time.Duration, logger *slog.Logger) (*DirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &DirWatcher{
		fs:      fsw,
		handler: handler,
		settle:  settle,
		logger:  logger,
		dirs:    make(map[string]bool),
		pending: make(map[string]settling),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Add watches dir and every directory below it
func (w *DirWatcher) Add(dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cannot watch %s: not a directory", root)
	}
	return w.addTree(root, false)
}

// addTree watches root and its subdirectories. With announce set, template
// files already inside are reported, since they were written before the
// watch existed.
func (w *DirWatcher) addTree(root string, announce bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			if announce && parser.Supported(path) {
				w.schedule(path)
			}
			return nil
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed {
			return fmt.Errorf("watcher is closed")
		}
		if w.dirs[path] {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.dirs[path] = true
		return nil
	})
}

// Dirs returns the watched directories in lexical order
func (w *DirWatcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs := make([]string, 0, len(w.dirs))
	for dir := range w.dirs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// Close stops watching. Changes still settling are dropped. Close is safe
// to call more than once.
func (w *DirWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.dirs = make(map[string]bool)
	w.mu.Unlock()

	if err := w.fs.Close(); err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}
	return nil
}

func (w *DirWatcher) loop() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.dispatch(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *DirWatcher) dispatch(event fsnotify.Event) {
	// chmod alone never changes what a template says
	if event.Op == fsnotify.Chmod {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name, true); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.dirs, event.Name)
		w.mu.Unlock()
	}

	if parser.Supported(event.Name) {
		w.schedule(event.Name)
	}
}

// schedule (re)starts the settle timer for path
func (w *DirWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if previous, ok := w.pending[path]; ok {
		previous.timer.Stop()
	}
	w.seq++
	seq := w.seq
	w.pending[path] = settling{
		timer: time.AfterFunc(w.settle, func() { w.fire(path, seq) }),
		seq:   seq,
	}
}

func (w *DirWatcher) fire(path string, seq uint64) {
	w.mu.Lock()
	// A newer event may have replaced this timer after it started firing.
	if p, ok := w.pending[path]; w.closed || !ok || p.seq != seq {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	op := OpChanged
	if _, err := os.Stat(path); err != nil {
		op = OpRemoved
	}
	w.handler(Change{Path: path, Op: op})
}
