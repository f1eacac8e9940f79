// Package watcher batches filesystem changes under the watched roots and
// hands them to change handlers once the tree has been quiet for the
// debounce delay.
package watcher

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/smellignore"
	"github.com/jmylchreest/smelly/pkg/source"
)

var watchLog = log.New(os.Stderr, "[smelly:watcher] ", log.Ltime)

// relevantOps are the operations that can change a file's findings.
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Config configures a Watcher.
type Config struct {
	// Paths are the roots to watch recursively. Defaults to the working
	// directory.
	Paths []string
	// DebounceDelay is how long the tree must be quiet before pending
	// changes are delivered.
	DebounceDelay time.Duration
	// Ignore skips directories and files. If nil, built-in defaults are used.
	Ignore *smellignore.Matcher
	// FileFilter selects the files whose changes are reported. Defaults to
	// supported source files.
	FileFilter func(path string) bool
}

// FileChangeHandler receives a batch of changed files with the union of the
// operations seen for each.
type FileChangeHandler interface {
	OnChanges(files map[string]fsnotify.Op)
}

// FileChangeHandlerFunc adapts a function to FileChangeHandler.
type FileChangeHandlerFunc func(files map[string]fsnotify.Op)

func (f FileChangeHandlerFunc) OnChanges(files map[string]fsnotify.Op) { f(files) }

// Watcher watches directory trees for source file changes.
type Watcher struct {
	fs       *fsnotify.Watcher
	config   Config
	handlers []FileChangeHandler
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	flushing sync.Mutex // held while a batch is delivered

	mu      sync.Mutex
	roots   []string
	dirs    int
	pending map[string]fsnotify.Op
	timer   *time.Timer
	batches int
}

// New creates a watcher. Nothing is watched until Start.
func New(config Config, handlers ...FileChangeHandler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = findings.DefaultWatchDelay
	}
	if config.Ignore == nil {
		config.Ignore = smellignore.NewFromDefaults()
	}
	if config.FileFilter == nil {
		config.FileFilter = source.SupportedFile
	}
	return &Watcher{
		fs:       fw,
		config:   config,
		handlers: handlers,
		done:     make(chan struct{}),
		pending:  make(map[string]fsnotify.Op),
	}, nil
}

// Start registers every non-ignored directory under the roots and begins
// delivering changes.
func (w *Watcher) Start() error {
	paths := w.config.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		root, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		w.mu.Lock()
		w.roots = append(w.roots, root)
		w.mu.Unlock()
		if err := w.addTree(root); err != nil {
			return err
		}
	}

	w.wg.Add(1)
	go w.loop()

	st := w.Stats()
	watchLog.Printf("watching %d directories in %v (debounce: %v)", st.DirsWatched, st.Paths, st.Debounce)
	return nil
}

// addTree watches dir and every directory below it that is not ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path, true) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			watchLog.Printf("cannot watch %s: %v", path, err)
			return nil
		}
		w.mu.Lock()
		w.dirs++
		w.mu.Unlock()
		return nil
	})
}

// Stop ends event processing and drops undelivered changes.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	w.wg.Wait()
	w.flushing.Lock()
	defer w.flushing.Unlock()
	return w.fs.Close()
}

// Stats is a snapshot of the watcher's state.
type Stats struct {
	Paths        []string
	DirsWatched  int
	Debounce     time.Duration
	PendingFiles int
	Batches      int
}

func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Stats{
		Paths:        append([]string(nil), w.roots...),
		DirsWatched:  w.dirs,
		Debounce:     w.config.DebounceDelay,
		PendingFiles: len(w.pending),
		Batches:      w.batches,
	}
}

// ignored matches path against the ignore rules relative to the root that
// contains it.
func (w *Watcher) ignored(path string, isDir bool) bool {
	w.mu.Lock()
	roots := w.roots
	w.mu.Unlock()
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return w.config.Ignore.ShouldIgnore(rel, isDir)
	}
	return false
}

// editorScratch reports editor swap, backup and temp files.
func editorScratch(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasSuffix(name, ".tmp")
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			watchLog.Printf("error: %v", err)
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.ignored(ev.Name, true) {
				// Files created before the watch was added are picked up
				// by later writes only.
				if err := w.addTree(ev.Name); err == nil {
					watchLog.Printf("watching new directory: %s", ev.Name)
				}
			}
			return
		}
	}
	if ev.Op&relevantOps == 0 || editorScratch(ev.Name) {
		return
	}
	if !w.config.FileFilter(ev.Name) || w.ignored(ev.Name, false) {
		return
	}
	w.enqueue(ev.Name, ev.Op)
}

// enqueue records a change and restarts the quiet-period timer.
func (w *Watcher) enqueue(path string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] |= op
	if w.timer == nil {
		w.timer = time.AfterFunc(w.config.DebounceDelay, w.flush)
		return
	}
	w.timer.Reset(w.config.DebounceDelay)
}

func (w *Watcher) flush() {
	w.flushing.Lock()
	defer w.flushing.Unlock()
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]fsnotify.Op)
	if len(batch) > 0 {
		w.batches++
	}
	w.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	watchLog.Printf("processing %d file changes", len(batch))
	for _, h := range w.handlers {
		h.OnChanges(batch)
	}
}
