// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/pluginmgr/pkg/eventbus"
	"github.com/holomush/pluginmgr/pkg/plugin"
)

// sumPlugin exposes test(a, b) = a + b + 3.
func sumPlugin() plugin.Funcs {
	return plugin.Funcs{
		"test": func(a, b int) int { return a + b + 3 },
	}
}

// asyncSumPlugin resolves test(a, b) = a + b + 3 after a short delay.
func asyncSumPlugin() plugin.Funcs {
	return plugin.Funcs{
		"test": func(a, b int) *eventbus.Promise {
			return eventbus.Go(func() (any, error) {
				time.Sleep(10 * time.Millisecond)
				return a + b + 3, nil
			})
		},
	}
}

// constPlugin returns v from value().
func constPlugin(v any) plugin.Funcs {
	return plugin.Funcs{
		"value": func() any { return v },
	}
}

// counterPlugin increments ev.Data["result"]["count"].
func counterPlugin() plugin.Funcs {
	return plugin.Funcs{
		"count": func(ev *plugin.InvokeEvent) {
			result, _ := ev.Data["result"].(map[string]any)
			n, _ := result["count"].(int)
			result["count"] = n + 1
		},
	}
}

// lifecyclePlugin records hook calls and subscribes to events on load.
type lifecyclePlugin struct {
	mu         sync.Mutex
	subscribe  []string
	loads      atomic.Int32
	unloads    atomic.Int32
	resets     atomic.Int32
	busChanges atomic.Int32
	loadErr    error
	unloadErr  error
	saveState  any
	gotState   any
	hotReload  plugin.HotReloader
	reply      any
}

func (p *lifecyclePlugin) OnPluginLoad(_ context.Context, ev *plugin.Event) error {
	p.loads.Add(1)
	p.mu.Lock()
	p.gotState = ev.State
	p.mu.Unlock()
	if p.hotReload != nil {
		ev.HotReload = p.hotReload
	}
	if ev.Eventbus != nil {
		for _, name := range p.subscribe {
			reply := p.reply
			if reply == nil {
				reply = ev.PluginName
			}
			if _, err := ev.Eventbus.On(name, func(context.Context, ...any) (any, error) {
				return reply, nil
			}); err != nil {
				return err
			}
		}
	}
	return p.loadErr
}

func (p *lifecyclePlugin) OnPluginUnload(_ context.Context, ev *plugin.Event) error {
	p.unloads.Add(1)
	ev.State = p.saveState
	return p.unloadErr
}

func (p *lifecyclePlugin) OnPluginEventbusChanged(_ context.Context, _ *plugin.EventbusChangedEvent) error {
	p.busChanges.Add(1)
	return nil
}

func (p *lifecyclePlugin) ResetEventbus() {
	p.resets.Add(1)
}

func (p *lifecyclePlugin) state() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gotState
}

// mockLoader is a testify mock of pluginmgr.ModuleLoader.
type mockLoader struct {
	mock.Mock
}

func (l *mockLoader) Load(ctx context.Context, target string, resolve plugin.Resolver) (plugin.LoadResult, error) {
	args := l.Called(ctx, target, resolve)
	res, _ := args.Get(0).(plugin.LoadResult)
	return res, args.Error(1)
}

// blockingLoader holds every Load until release is closed.
type blockingLoader struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingLoader() *blockingLoader {
	return &blockingLoader{started: make(chan struct{}), release: make(chan struct{})}
}

func (l *blockingLoader) Load(ctx context.Context, target string, _ plugin.Resolver) (plugin.LoadResult, error) {
	l.once.Do(func() { close(l.started) })
	select {
	case <-l.release:
	case <-ctx.Done():
		return plugin.LoadResult{}, ctx.Err()
	}
	return plugin.LoadResult{Instance: constPlugin(target), Type: plugin.LoadRequirePath}, nil
}

// fakeReloader captures the accepted callback so tests can fire it.
type fakeReloader struct {
	mu     sync.Mutex
	fns    []func(any)
	closed atomic.Bool
}

func (r *fakeReloader) Accept(fn func(any)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = append(r.fns, fn)
}

func (r *fakeReloader) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *fakeReloader) fire(instance any) {
	r.mu.Lock()
	fns := append([]func(any){}, r.fns...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(instance)
	}
}

func (r *fakeReloader) accepted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fns)
}

var errBoom = errors.New("boom")

func handlerReturning(v any, err error) eventbus.Handler {
	return func(context.Context, ...any) (any, error) {
		return v, err
	}
}

// closablePlugin counts Close calls.
type closablePlugin struct {
	closed atomic.Int32
}

func (p *closablePlugin) Value() string { return "closable" }

func (p *closablePlugin) Close() error {
	p.closed.Add(1)
	return nil
}

// failingClosable fails its load hook.
type failingClosable struct {
	closablePlugin
}

func (p *failingClosable) OnPluginLoad(context.Context, *plugin.Event) error {
	return errBoom
}
