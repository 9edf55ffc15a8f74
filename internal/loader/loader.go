// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package loader resolves plugin targets to instances for the manager.
//
// A target is tried, in order, as a URL, a compiled-in module registered with
// Register, a path on disk and finally a bare name looked up in the search
// paths. Each outcome is tagged with the plugin.LoadType describing it.
package loader

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/pluginmgr/internal/loader/binary"
	pluginlua "github.com/holomush/pluginmgr/internal/loader/lua"
	"github.com/holomush/pluginmgr/internal/loader/manifest"
	"github.com/holomush/pluginmgr/pkg/plugin"
)

// Defaults for Options.
const (
	DefaultHTTPTimeout    = 10 * time.Second
	DefaultHTTPRetries    = 3
	DefaultRetryBase      = 200 * time.Millisecond
	DefaultReloadDebounce = 100 * time.Millisecond
)

// Sentinel errors.
var (
	// ErrNotFound is returned when no resolution step matched the target.
	ErrNotFound = errors.New("module not found")
	// ErrUnsupported is returned when the target resolved to something the loader cannot run.
	ErrUnsupported = errors.New("unsupported module")
)

// Factory builds a compiled-in module.
type Factory func(ctx context.Context) (any, error)

var (
	catalogMu sync.RWMutex
	catalog   = make(map[string]Factory)
)

// Register makes a compiled-in module loadable by name. It panics if name
// is empty, factory is nil or the name is already registered.
func Register(name string, factory Factory) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	if name == "" || factory == nil {
		panic("loader: Register requires a name and a factory")
	}
	if _, dup := catalog[name]; dup {
		panic("loader: Register called twice for " + name)
	}
	catalog[name] = factory
}

// Registered returns the sorted names of compiled-in modules.
func Registered() []string {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Factory, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	f, ok := catalog[name]
	return f, ok
}

// Options configure a Loader.
type Options struct {
	// SearchPaths are tried in order for bare names.
	SearchPaths []string
	// HotReload watches file-backed Lua modules and reloads them on change.
	HotReload bool
	// HTTPTimeout bounds each fetch attempt.
	HTTPTimeout time.Duration
	// HTTPRetries is the number of retries after a failed fetch.
	HTTPRetries uint64
	// RetryBase is the first backoff interval between fetch attempts.
	RetryBase time.Duration
	// ReloadDebounce is how long writes must settle before a reload.
	ReloadDebounce time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithOptions replaces the loader options. Zero durations fall back to the defaults.
func WithOptions(o Options) Option {
	return func(l *Loader) { l.opts = o }
}

// WithHTTPClient sets the client used for remote modules.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithLauncher sets the binary plugin launcher.
func WithLauncher(b *binary.Launcher) Option {
	return func(l *Loader) { l.launcher = b }
}

// Loader implements pluginmgr.ModuleLoader.
type Loader struct {
	opts     Options
	client   *http.Client
	launcher *binary.Launcher
}

// New creates a loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		opts: Options{HTTPRetries: DefaultHTTPRetries},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.opts.HTTPTimeout <= 0 {
		l.opts.HTTPTimeout = DefaultHTTPTimeout
	}
	if l.opts.RetryBase <= 0 {
		l.opts.RetryBase = DefaultRetryBase
	}
	if l.opts.ReloadDebounce <= 0 {
		l.opts.ReloadDebounce = DefaultReloadDebounce
	}
	if l.client == nil {
		l.client = &http.Client{}
	}
	if l.launcher == nil {
		l.launcher = binary.NewLauncher()
	}
	return l
}

// Load resolves target. resolve picks the plugin out of the loaded module;
// nil means plugin.ResolveExport.
func (l *Loader) Load(ctx context.Context, target string, resolve plugin.Resolver) (plugin.LoadResult, error) {
	if resolve == nil {
		resolve = plugin.ResolveExport
	}
	res, err := l.load(ctx, target, resolve)
	if err != nil {
		return plugin.LoadResult{}, oops.In("loader").With("target", target).Wrap(err)
	}
	return res, nil
}

func (l *Loader) load(ctx context.Context, target string, resolve plugin.Resolver) (plugin.LoadResult, error) {
	if u, ok := parseURL(target); ok {
		return l.loadURL(ctx, u, resolve)
	}

	if factory, ok := lookup(target); ok {
		module, err := factory(ctx)
		if err != nil {
			return plugin.LoadResult{}, oops.Code("MODULE_INIT_FAILED").Wrap(err)
		}
		return plugin.LoadResult{Instance: resolve(module), Type: plugin.LoadImportModule}, nil
	}

	if info, err := os.Stat(target); err == nil {
		return l.loadPath(ctx, target, info, resolve)
	}

	if isBareName(target) {
		for _, dir := range l.opts.SearchPaths {
			script := filepath.Join(dir, target+".lua")
			if fileExists(script) {
				return l.withType(l.loadScript(ctx, moduleName(script), script, resolve))(plugin.LoadRequireModule)
			}
			mf := filepath.Join(dir, target, manifest.FileName)
			if fileExists(mf) {
				return l.withType(l.loadManifestDir(ctx, filepath.Dir(mf), resolve))(plugin.LoadRequireModule)
			}
		}
	}

	return plugin.LoadResult{}, oops.Code("MODULE_NOT_FOUND").
		With("search_paths", l.opts.SearchPaths).
		Hint("targets are URLs, registered module names, paths, or names found in the search paths").
		Wrap(ErrNotFound)
}

// withType tags a successful result.
func (l *Loader) withType(res plugin.LoadResult, err error) func(plugin.LoadType) (plugin.LoadResult, error) {
	return func(t plugin.LoadType) (plugin.LoadResult, error) {
		if err != nil {
			return plugin.LoadResult{}, err
		}
		res.Type = t
		return res, nil
	}
}

func (l *Loader) loadPath(ctx context.Context, target string, info os.FileInfo, resolve plugin.Resolver) (plugin.LoadResult, error) {
	switch {
	case info.IsDir():
		return l.withType(l.loadManifestDir(ctx, target, resolve))(plugin.LoadImportPath)
	case filepath.Base(target) == manifest.FileName:
		return l.withType(l.loadManifestDir(ctx, filepath.Dir(target), resolve))(plugin.LoadImportPath)
	case filepath.Ext(target) == ".lua":
		return l.withType(l.loadScript(ctx, moduleName(target), target, resolve))(plugin.LoadRequirePath)
	case info.Mode()&0o111 != 0:
		inst, err := l.launcher.Start(ctx, moduleName(target), target)
		if err != nil {
			return plugin.LoadResult{}, err //nolint:wrapcheck // binary errors carry the path
		}
		return plugin.LoadResult{Instance: inst, Type: plugin.LoadRequirePath}, nil
	default:
		return plugin.LoadResult{}, oops.Code("MODULE_UNSUPPORTED").
			With("path", target).
			Hint("expected a directory with plugin.yaml, a .lua script or an executable").
			Wrap(ErrUnsupported)
	}
}

// loadScript compiles a Lua file, watching it when hot reload is on.
func (l *Loader) loadScript(ctx context.Context, name, file string, resolve plugin.Resolver) (plugin.LoadResult, error) {
	build := func(ctx context.Context) (any, error) {
		src, err := os.ReadFile(file) // #nosec G304 -- path is the configured plugin target
		if err != nil {
			return nil, oops.Code("MODULE_READ_FAILED").With("path", file).Wrap(err)
		}
		m, err := pluginlua.Compile(ctx, name, file, src)
		if err != nil {
			return nil, err //nolint:wrapcheck // lua errors carry the path
		}
		return resolve(m), nil
	}

	inst, err := build(ctx)
	if err != nil {
		return plugin.LoadResult{}, err
	}
	res := plugin.LoadResult{Instance: inst}
	if l.opts.HotReload {
		r, err := watchFile(file, l.opts.ReloadDebounce, func() (any, error) {
			return build(context.Background())
		})
		if err != nil {
			closeInstance(inst)
			return plugin.LoadResult{}, err
		}
		res.Reloader = r
	}
	return res, nil
}

// loadManifestDir loads the plugin described by dir/plugin.yaml.
func (l *Loader) loadManifestDir(ctx context.Context, dir string, resolve plugin.Resolver) (plugin.LoadResult, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifest.FileName)) // #nosec G304 -- plugin directory from configuration
	if err != nil {
		return plugin.LoadResult{}, oops.Code("MODULE_READ_FAILED").With("path", dir).Wrap(err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return plugin.LoadResult{}, err //nolint:wrapcheck // manifest errors carry the field
	}

	entry := filepath.Join(dir, filepath.FromSlash(m.Entry()))
	if !within(dir, entry) {
		return plugin.LoadResult{}, oops.Code("MODULE_UNSUPPORTED").
			With("entry", m.Entry()).
			Wrap(errors.Join(manifest.ErrInvalidManifest, errors.New("entry escapes the plugin directory")))
	}

	var res plugin.LoadResult
	switch m.Type {
	case manifest.TypeLua:
		res, err = l.loadScript(ctx, m.Name, entry, resolve)
	case manifest.TypeBinary:
		var inst *binary.Instance
		inst, err = l.launcher.Start(ctx, m.Name, entry)
		res = plugin.LoadResult{Instance: inst}
	}
	if err != nil {
		return plugin.LoadResult{}, err
	}
	res.Defaults = m.Options
	return res, nil
}

func (l *Loader) loadURL(ctx context.Context, u *url.URL, resolve plugin.Resolver) (plugin.LoadResult, error) {
	switch path.Ext(u.Path) {
	case ".yaml", ".yml":
		data, err := l.fetch(ctx, u.String())
		if err != nil {
			return plugin.LoadResult{}, err
		}
		m, err := manifest.Parse(data)
		if err != nil {
			return plugin.LoadResult{}, err //nolint:wrapcheck // manifest errors carry the field
		}
		if m.Type != manifest.TypeLua {
			return plugin.LoadResult{}, oops.Code("MODULE_UNSUPPORTED").
				With("type", m.Type).
				Hint("only lua plugins can be loaded from a URL").
				Wrap(ErrUnsupported)
		}
		entry, err := u.Parse(m.Entry())
		if err != nil {
			return plugin.LoadResult{}, oops.Code("MODULE_UNSUPPORTED").With("entry", m.Entry()).Wrap(err)
		}
		inst, err := l.compileRemote(ctx, m.Name, entry.String(), resolve)
		if err != nil {
			return plugin.LoadResult{}, err
		}
		return plugin.LoadResult{Instance: inst, Type: plugin.LoadImportURL, Defaults: m.Options}, nil
	default:
		inst, err := l.compileRemote(ctx, moduleName(u.Path), u.String(), resolve)
		if err != nil {
			return plugin.LoadResult{}, err
		}
		return plugin.LoadResult{Instance: inst, Type: plugin.LoadRequireURL}, nil
	}
}

func (l *Loader) compileRemote(ctx context.Context, name, src string, resolve plugin.Resolver) (any, error) {
	data, err := l.fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	m, err := pluginlua.Compile(ctx, name, src, data)
	if err != nil {
		return nil, err //nolint:wrapcheck // lua errors carry the URL
	}
	return resolve(m), nil
}

func parseURL(target string) (*url.URL, bool) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return nil, false
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

func isBareName(target string) bool {
	return target != "" && !strings.ContainsAny(target, `/\`) && target != "." && target != ".."
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// moduleName derives a plugin name for diagnostics from a file path or URL path.
func moduleName(p string) string {
	base := path.Base(filepath.ToSlash(p))
	return strings.TrimSuffix(base, path.Ext(base))
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func closeInstance(inst any) {
	if c, ok := inst.(interface{ Close() error }); ok {
		_ = c.Close() //nolint:errcheck // best effort on a failed load
	}
}
