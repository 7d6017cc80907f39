// Package script implements the scripting host bridge (C4): it embeds a
// goja JavaScript VM, installs the neopult global API described in spec
// §6.2-§6.4, and loads the channel's init.js. Every callback the VM invokes
// runs on the event-loop thread; the bridge itself never spawns goroutines
// that touch the VM (spec §4.4 "runs entirely on the loop thread").
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/neopult/neopult/internal/config"
	"github.com/neopult/neopult/internal/logging"
	"github.com/neopult/neopult/internal/metrics"
	"github.com/neopult/neopult/internal/process"
	"github.com/neopult/neopult/internal/registry"
	"github.com/neopult/neopult/internal/wm"
)

// Loop is the subset of the event loop the bridge needs to hand to the
// window manager wrapper and to implement run_later (spec §4.1, §6.4).
type Loop interface {
	Post(func())
	RunLater(func())
}

// Host owns the VM and every dependency script callbacks can reach into.
type Host struct {
	vm  *goja.Runtime
	env *config.EnvConfig

	logger  *logging.Logger
	metrics *metrics.Metrics
	loop    Loop
	reg     *registry.Registry
	sup     *process.Supervisor
	wmMgr   *wm.Manager

	channelHome      string
	pluginSearchPath string
	moduleCache      map[string]goja.Value
}

// New constructs a Host and installs the neopult global before any script
// runs, per spec §6.2 "the neopult global is present before the channel
// script's top-level code runs."
func New(env *config.EnvConfig, logger *logging.Logger, m *metrics.Metrics, loop Loop, reg *registry.Registry, sup *process.Supervisor, wmMgr *wm.Manager) *Host {
	h := &Host{
		vm:               goja.New(),
		env:              env,
		logger:           logger,
		metrics:          m,
		loop:             loop,
		reg:              reg,
		sup:              sup,
		wmMgr:            wmMgr,
		channelHome:      env.ChannelHome(),
		pluginSearchPath: env.PluginSearchPath(),
		moduleCache:      make(map[string]goja.Value),
	}
	h.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	h.installGlobals()
	return h
}

// installGlobals builds the neopult table and everything reachable from it.
func (h *Host) installGlobals() {
	neopult := h.vm.NewObject()
	_ = neopult.Set("api", h.buildAPI())
	_ = neopult.Set("config", h.vm.NewObject())
	_ = h.vm.Set("neopult", neopult)
	_ = h.vm.Set("require", h.requireFunc)

	console := h.vm.NewObject()
	_ = console.Set("log", h.consoleFunc("info"))
	_ = console.Set("info", h.consoleFunc("info"))
	_ = console.Set("warn", h.consoleFunc("warn"))
	_ = console.Set("error", h.consoleFunc("error"))
	_ = h.vm.Set("console", console)
}

func (h *Host) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		msg := joinArgs(call.Arguments)
		switch level {
		case "warn":
			h.logger.Warn(msg)
		case "error":
			h.logger.Error(msg)
		default:
			h.logger.Info(msg)
		}
		return goja.Undefined()
	}
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

// LoadInit loads and executes init.js (spec §6.2). Top-level errors are
// fatal to startup; errors raised later, from a callback, are the
// ScriptError category handled by the caller's loop-task recovery instead.
func (h *Host) LoadInit() error {
	path := h.env.ScriptPath()
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading channel script %s: %w", path, err)
	}
	prog, err := goja.Compile(path, string(src), false)
	if err != nil {
		return fmt.Errorf("compiling channel script %s: %w", path, err)
	}
	if _, err := h.vm.RunProgram(prog); err != nil {
		return fmt.Errorf("running channel script %s: %w", path, err)
	}
	return nil
}

// ScriptConfig reads neopult.config back out of the VM after init.js has
// run (SPEC_FULL supplemented feature: neopult.config.websocket_password),
// falling back to the default when the script never set it.
func (h *Host) ScriptConfig() config.ScriptConfig {
	cfg := config.DefaultScriptConfig()
	neopultVal := h.vm.Get("neopult")
	if neopultVal == nil {
		return cfg
	}
	neopult, ok := neopultVal.(*goja.Object)
	if !ok {
		return cfg
	}
	cfgVal := neopult.Get("config")
	cfgObj, ok := cfgVal.(*goja.Object)
	if !ok {
		return cfg
	}
	if pw := cfgObj.Get("websocket_password"); pw != nil && !goja.IsUndefined(pw) {
		cfg.WebsocketPassword = pw.String()
	}
	return cfg
}

// call invokes a goja function with the VM's own panic-to-error conversion,
// logging failures with the given scope label rather than propagating them
// (spec §7 ScriptError: caught, logged, loop continues).
func (h *Host) call(scope string, fn goja.Callable, args ...goja.Value) {
	if fn == nil {
		return
	}
	if _, err := fn(goja.Undefined(), args...); err != nil {
		h.metrics.ScriptErrors.Inc()
		h.logger.Scoped(scope, "").Error("error in script callback", zap.Error(err))
	}
}

func asCallable(v goja.Value) (goja.Callable, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	fn, ok := goja.AssertFunction(v)
	return fn, ok
}

// requireFunc is a minimal CommonJS-style loader searching the channel home
// and its plugins/ subdirectory (spec §6.2, mirroring the source's
// lua_path front-loading of ./plugins/?.lua;./plugins/?/init.lua).
func (h *Host) requireFunc(call goja.FunctionCall) goja.Value {
	spec := call.Argument(0).String()
	path, err := h.resolveModule(spec)
	if err != nil {
		panic(h.vm.NewGoError(err))
	}
	if cached, ok := h.moduleCache[path]; ok {
		return cached
	}

	src, err := os.ReadFile(path)
	if err != nil {
		panic(h.vm.NewGoError(fmt.Errorf("require(%q): %w", spec, err)))
	}

	moduleObj := h.vm.NewObject()
	exportsObj := h.vm.NewObject()
	_ = moduleObj.Set("exports", exportsObj)
	// Placeholder so a require cycle resolves to the in-progress exports
	// object rather than recursing forever.
	h.moduleCache[path] = exportsObj

	wrapped := "(function(module, exports, require) {\n" + string(src) + "\n})"
	prog, err := goja.Compile(path, wrapped, false)
	if err != nil {
		panic(h.vm.NewGoError(fmt.Errorf("require(%q): %w", spec, err)))
	}
	fnVal, err := h.vm.RunProgram(prog)
	if err != nil {
		panic(h.vm.NewGoError(fmt.Errorf("require(%q): %w", spec, err)))
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		panic(h.vm.NewGoError(fmt.Errorf("require(%q): module did not evaluate to a function", spec)))
	}
	if _, err := fn(goja.Undefined(), moduleObj, exportsObj, h.vm.ToValue(h.requireFunc)); err != nil {
		panic(err)
	}

	result := moduleObj.Get("exports")
	h.moduleCache[path] = result
	return result
}

func (h *Host) resolveModule(spec string) (string, error) {
	candidates := []string{spec, spec + ".js", filepath.Join(spec, "init.js")}
	roots := []string{h.channelHome, h.pluginSearchPath}
	for _, root := range roots {
		for _, c := range candidates {
			full := filepath.Join(root, c)
			if fi, err := os.Stat(full); err == nil && !fi.IsDir() {
				return full, nil
			}
		}
	}
	return "", errors.New("module not found: " + spec)
}
