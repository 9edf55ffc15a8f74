// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package loader

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/oops"

	"github.com/holomush/pluginmgr/pkg/errutil"
	"github.com/holomush/pluginmgr/pkg/plugin"
)

// fileReloader is the plugin.HotReloader for file-backed modules. It watches
// the directory holding the file, since editors often replace files instead
// of writing them, and rebuilds the instance after writes settle.
type fileReloader struct {
	path     string
	build    func() (any, error)
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	fns     []func(instance any)
	closed  bool
	done    chan struct{}
	stopped sync.WaitGroup
}

var _ plugin.HotReloader = (*fileReloader)(nil)

func watchFile(path string, debounce time.Duration, build func() (any, error)) (*fileReloader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, oops.In("loader").With("path", path).Wrap(err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, oops.In("loader").With("path", path).Wrapf(err, "create watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close() //nolint:errcheck // already failing
		return nil, oops.In("loader").With("path", path).Wrapf(err, "watch directory")
	}

	r := &fileReloader{
		path:     abs,
		build:    build,
		debounce: debounce,
		watcher:  w,
		done:     make(chan struct{}),
	}
	r.stopped.Add(1)
	go r.loop()
	return r, nil
}

// Accept implements plugin.HotReloader.
func (r *fileReloader) Accept(fn func(instance any)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.fns = append(r.fns, fn)
	}
}

// Close implements plugin.HotReloader.
func (r *fileReloader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.fns = nil
	close(r.done)
	r.mu.Unlock()

	err := r.watcher.Close()
	r.stopped.Wait()
	if err != nil {
		return oops.In("loader").With("path", r.path).Wrap(err)
	}
	return nil
}

func (r *fileReloader) loop() {
	defer r.stopped.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-r.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != r.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			errutil.LogWarn(slog.Default(), "plugin file watcher error", err, "path", r.path)
		case <-fire:
			fire = nil
			r.reload()
		}
	}
}

func (r *fileReloader) reload() {
	instance, err := r.build()
	if err != nil {
		errutil.LogError(slog.Default(), "hot reload rebuild failed", err, "path", r.path)
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	fns := append([]func(any){}, r.fns...)
	r.mu.Unlock()

	slog.Info("plugin file changed, reloading", "path", r.path)
	for _, fn := range fns {
		fn(instance)
	}
}
