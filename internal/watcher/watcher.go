// Package watcher implements the Watcher: an fsnotify-based monitor that
// debounces filesystem events and replays them onto the Pipeline, never
// writing to the Store directly.
//
// One fsnotify.Watcher, a per-path "latest event wins" debounce map
// flushed by a single time.AfterFunc timer, and new directories picked
// up by adding a watch on create. A rename event is folded into Write
// rather than kept as its own case, since fsnotify delivers renames as a
// Remove-at-old-path plus a Create-at-new-path pair on every platform
// this runs against, making a distinct rename event type redundant.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/coreindex/internal/config"
	"github.com/standardbeagle/coreindex/internal/pipeline"
	"github.com/standardbeagle/coreindex/internal/registry"
)

// EventType classifies a debounced filesystem change.
type EventType int

const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
)

// Watcher monitors cfg.Project.Root and replays debounced changes onto a
// Pipeline.
type Watcher struct {
	fsw    *fsnotify.Watcher
	cfg    *config.Config
	pipe   *pipeline.Pipeline
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	pending  map[string]EventType
	timer    *time.Timer
	debounce time.Duration
}

// New builds a Watcher over every directory under cfg.Project.Root.
func New(cfg *config.Config, pipe *pipeline.Pipeline) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())

	debounce := time.Duration(cfg.Index.WatchDebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 75 * time.Millisecond
	}

	w := &Watcher{
		fsw:      fsw,
		cfg:      cfg,
		pipe:     pipe,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]EventType),
		debounce: debounce,
	}

	if err := filepath.Walk(cfg.Project.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if shouldIgnoreDir(cfg, path) {
				return filepath.SkipDir
			}
			return fsw.Add(path)
		}
		return nil
	}); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Run starts the event loop in a background goroutine and returns at once;
// the loop runs until Stop is called.
func (w *Watcher) Run() {
	w.wg.Add(1)
	go w.processEvents()
}

// Stop tears the watcher down. Pending debounced events are dropped, not
// flushed, to avoid deadlocking against the store's own shutdown
// sequence.
func (w *Watcher) Stop() {
	w.cancel()
	w.fsw.Close()
	w.wg.Wait()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
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
			log.Printf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	info, err := os.Stat(path)
	if err != nil {
		if event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0 {
			w.addPending(path, EventRemove)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !shouldIgnoreDir(w.cfg, path) {
			if err := w.fsw.Add(path); err != nil {
				log.Printf("watcher: failed to add watch for %s: %v", path, err)
			}
		}
		return
	}

	if w.cfg.Index.MaxFileSize > 0 && info.Size() > w.cfg.Index.MaxFileSize {
		return
	}
	if _, ok := registry.Get(filepath.Ext(path)); !ok {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		w.addPending(path, EventCreate)
	case event.Op&fsnotify.Write != 0:
		w.addPending(path, EventWrite)
	case event.Op&fsnotify.Rename != 0:
		w.addPending(path, EventWrite)
	default:
		return
	}
}

func (w *Watcher) addPending(path string, ev EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = ev
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	events := w.pending
	w.pending = make(map[string]EventType)
	w.mu.Unlock()

	if len(events) == 0 {
		return
	}

	for path, ev := range events {
		rel, err := filepath.Rel(w.cfg.Project.Root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		var opErr error
		switch ev {
		case EventRemove:
			opErr = w.pipe.Forget(w.ctx, rel)
		default:
			opErr = w.pipe.IndexSingle(w.ctx, rel, path)
		}
		if opErr != nil {
			log.Printf("watcher: failed to apply %v for %s: %v", ev, rel, opErr)
		}
	}
}

func shouldIgnoreDir(cfg *config.Config, path string) bool {
	rel, err := filepath.Rel(cfg.Project.Root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
			return true
		}
	}
	return false
}
