// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package watch reports changes to shader files.
package watch

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const prefix = "watch: "

func logger() *slog.Logger { return slog.Default().With("pkg", "watch") }

// Watcher collects the files that changed since the last
// call to Changed.
// Directories are watched rather than files, so that
// editors that replace a file on save are noticed.
type Watcher struct {
	fsw   *fsnotify.Watcher
	files map[string]bool
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	pending map[string]struct{}
	notify  chan struct{}
}

// New creates a Watcher for the given files.
func New(files []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Join(errors.New(prefix+"cannot create watcher"), err)
	}
	w := &Watcher{
		fsw:     fsw,
		files:   make(map[string]bool, len(files)),
		done:    make(chan struct{}),
		pending: make(map[string]struct{}),
		notify:  make(chan struct{}, 1),
	}
	dirs := make(map[string]bool)
	for _, f := range files {
		f = filepath.Clean(f)
		w.files[f] = true
		dirs[filepath.Dir(f)] = true
	}
	for _, d := range maps.Keys(dirs) {
		if err := fsw.Add(d); err != nil {
			fsw.Close()
			return nil, errors.Join(errors.New(prefix+"cannot watch "+d), err)
		}
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Clean(ev.Name)
			if !w.files[name] {
				continue
			}
			logger().Debug("shader changed", "file", name, "op", ev.Op.String())
			w.mu.Lock()
			w.pending[name] = struct{}{}
			w.mu.Unlock()
			select {
			case w.notify <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger().Warn("watch error", "err", err)
		}
	}
}

// Changed returns the files that changed since the last
// call, sorted. It does not block.
func (w *Watcher) Changed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return nil
	}
	s := maps.Keys(w.pending)
	clear(w.pending)
	slices.Sort(s)
	return s
}

// Notify returns a channel that receives a value when a
// file changes. Values do not queue up: a single receive
// may stand for several changes.
func (w *Watcher) Notify() <-chan struct{} { return w.notify }

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
