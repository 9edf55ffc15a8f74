// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/pluginmgr/internal/loader"
	"github.com/holomush/pluginmgr/pkg/eventbus"
	"github.com/holomush/pluginmgr/pkg/plugin"
	"github.com/holomush/pluginmgr/pkg/pluginmgr"
)

const counterSource = `
count = 0

function on_plugin_load(ev)
	count = (ev.state and ev.state.count) or ev.options.start or 0
	ev.eventbus:on("counter:bumped", function(n) return n * 2 end)
end

function on_plugin_unload(ev)
	ev.state = { count = count }
end

function bump(n)
	count = count + (n or 1)
	return count
end

function who() return "counter" end

function tally(ev)
	ev.data.seen = ev.data.seen or {}
	table.insert(ev.data.seen, ev.plugin_name)
end
`

const echoSource = `
function who() return "echo" end

function tally(ev)
	ev.data.seen = ev.data.seen or {}
	table.insert(ev.data.seen, ev.plugin_name)
end
`

func write(dir, name, body string) string {
	path := filepath.Join(dir, name)
	Expect(os.MkdirAll(filepath.Dir(path), 0o750)).To(Succeed())
	Expect(os.WriteFile(path, []byte(body), 0o600)).To(Succeed())
	return path
}

var _ = Describe("Lua plugins", func() {
	var (
		ctx context.Context
		dir string
		bus *eventbus.Eventbus
		mgr *pluginmgr.Manager
	)

	newManager := func(opts ...pluginmgr.Option) *pluginmgr.Manager {
		ld := loader.New(loader.WithOptions(loader.Options{
			SearchPaths:    []string{dir},
			HotReload:      true,
			ReloadDebounce: 20 * time.Millisecond,
		}))
		base := []pluginmgr.Option{pluginmgr.WithEventbus(bus), pluginmgr.WithLoader(ld)}
		return pluginmgr.New(append(base, opts...)...)
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		bus = eventbus.New("integration")
		write(dir, "counter.lua", counterSource)
		write(dir, "echo.lua", echoSource)
		mgr = newManager()
	})

	AfterEach(func() {
		if !mgr.IsDestroyed() {
			Expect(mgr.Destroy(ctx)).To(Succeed())
		}
	})

	Describe("registration over the bus", func() {
		It("adds a plugin found on the search path and invokes it", func() {
			res, err := bus.TriggerSync(ctx, "plugins:"+pluginmgr.CmdAdd, map[string]any{
				"name":    "counter",
				"options": map[string]any{"start": 10},
			})
			Expect(err).NotTo(HaveOccurred())
			data, ok := res.(*pluginmgr.PluginData)
			Expect(ok).To(BeTrue())
			Expect(data.Plugin.Type).To(Equal(plugin.LoadRequireModule))
			Expect(data.Manager.ScopedName).To(Equal("plugins:counter"))

			got, err := bus.TriggerSync(ctx, "plugins:"+pluginmgr.CmdSyncInvoke, "bump", []any{5})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(15))
		})

		It("routes plugin subscriptions through the shared bus", func() {
			_, err := mgr.Add(ctx, pluginmgr.Config{Name: "counter"}, nil)
			Expect(err).NotTo(HaveOccurred())

			got, err := bus.TriggerSync(ctx, "counter:bumped", 21)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(42))

			events, err := bus.TriggerSync(ctx, "plugins:"+pluginmgr.CmdGetPluginByEvent, "counter:*")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(ConsistOf(pluginmgr.PluginEvents{Plugin: "counter", Events: []string{"counter:bumped"}}))
		})

		It("removes plugins and their subscriptions", func() {
			_, err := mgr.AddAll(ctx, []pluginmgr.Config{{Name: "counter"}, {Name: "echo"}}, nil)
			Expect(err).NotTo(HaveOccurred())

			res, err := bus.TriggerSync(ctx, "plugins:"+pluginmgr.CmdRemove, "counter")
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(ConsistOf(HaveField("Success", BeTrue())))
			Expect(bus.CallbackCount("counter:bumped")).To(BeZero())

			names, err := mgr.GetPluginNames(pluginmgr.FilterAll)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"echo"}))
		})

		It("withdraws commands disabled by options", func() {
			Expect(mgr.Destroy(ctx)).To(Succeed())
			mgr = newManager(pluginmgr.WithOptions(pluginmgr.Options{NoEventAdd: true}))

			Expect(bus.CallbackCount("plugins:" + pluginmgr.CmdAdd)).To(BeZero())
			Expect(bus.CallbackCount("plugins:" + pluginmgr.CmdRemove)).To(Equal(1))
		})
	})

	Describe("invocation", func() {
		BeforeEach(func() {
			_, err := mgr.AddAll(ctx, []pluginmgr.Config{{Name: "counter"}, {Name: "echo"}}, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("collects results in registration order", func() {
			got, err := mgr.InvokeSync(ctx, "who", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]any{"counter", "echo"}))

			got, err = mgr.InvokeAsync(ctx, "who", nil, "echo")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("echo"))
		})

		It("shares one event payload across plugins", func() {
			passthru := map[string]any{}
			data, err := mgr.InvokeSyncEvent(ctx, "tally", map[string]any{"origin": "test"}, passthru)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveKeyWithValue("seen", []any{"counter", "echo"}))
			Expect(data).To(HaveKeyWithValue("origin", "test"))
			Expect(data).To(HaveKeyWithValue(pluginmgr.MetaInvokeCount, 2))
		})

		It("skips disabled plugins", func() {
			Expect(mgr.SetEnabled(ctx, false, "counter")).To(Succeed())
			Expect(bus.CallbackCount("counter:bumped")).To(BeZero())

			got, err := mgr.InvokeSync(ctx, "who", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("echo"))

			Expect(mgr.SetEnabled(ctx, true, "counter")).To(Succeed())
			Expect(bus.CallbackCount("counter:bumped")).To(Equal(1))
		})

		It("fails unmatched calls in strict mode", func() {
			Expect(mgr.SetOptions(ctx, pluginmgr.OptionsPatch{ThrowNoMethod: ptr(true)})).To(Succeed())

			_, err := mgr.InvokeSync(ctx, "absent", nil)
			Expect(err).To(MatchError(pluginmgr.ErrNoMethod))
		})
	})

	Describe("reload", func() {
		It("carries state from unload to load", func() {
			_, err := mgr.Add(ctx, pluginmgr.Config{Name: "counter"}, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = mgr.InvokeSync(ctx, "bump", []any{7})
			Expect(err).NotTo(HaveOccurred())

			reloaded, err := mgr.Reload(ctx, pluginmgr.ReloadRequest{Plugin: "counter"})
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded).To(BeTrue())

			got, err := mgr.InvokeSync(ctx, "bump", []any{1})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(8))
		})

		It("picks up edits to the script file", func() {
			path := write(dir, "hot.lua", `function version() return 1 end`)
			_, err := mgr.Add(ctx, pluginmgr.Config{Name: "hot", Target: path}, nil)
			Expect(err).NotTo(HaveOccurred())

			write(dir, "hot.lua", `function version() return 2 end`)
			Eventually(func() any {
				got, _ := mgr.InvokeSync(ctx, "version", nil)
				return got
			}).WithTimeout(5 * time.Second).Should(Equal(2))
		})
	})

	Describe("manifests", func() {
		It("loads a plugin directory with default options", func() {
			write(dir, "greeter/plugin.yaml", `
name: greeter
version: 1.2.0
type: lua
options:
  greeting: hello
  punctuation: "!"
lua-plugin:
  entry: main.lua
`)
			write(dir, "greeter/main.lua", `
function on_plugin_load(ev) opts = ev.options end
function greet(name) return opts.greeting .. " " .. name .. opts.punctuation end
`)
			data, err := mgr.Add(ctx, pluginmgr.Config{
				Name:    "greeter",
				Target:  filepath.Join(dir, "greeter"),
				Options: map[string]any{"punctuation": "?"},
			}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Plugin.Type).To(Equal(plugin.LoadImportPath))

			got, err := mgr.InvokeSync(ctx, "greet", []any{"ann"})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("hello ann?"))
		})
	})

	Describe("destroy", func() {
		It("unloads every plugin and rejects further calls", func() {
			_, err := mgr.AddAll(ctx, []pluginmgr.Config{{Name: "counter"}, {Name: "echo"}}, nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = bus.TriggerSync(ctx, "plugins:"+pluginmgr.CmdDestroyManager)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.IsDestroyed()).To(BeTrue())
			Expect(bus.CallbackCount("counter:bumped")).To(BeZero())

			_, err = mgr.InvokeSync(ctx, "who", nil)
			Expect(err).To(MatchError(pluginmgr.ErrDestroyed))
		})
	})
})

func ptr[T any](v T) *T { return &v }
