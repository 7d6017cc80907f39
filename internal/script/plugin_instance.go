package script

import (
	"github.com/dop251/goja"

	"github.com/neopult/neopult/internal/process"
	"github.com/neopult/neopult/internal/registry"
	"github.com/neopult/neopult/internal/wm"
)

// newPluginInstanceObject wraps a registry.PluginInstance as the object
// scripts hold after register_plugin_instance (spec §6.2).
func (h *Host) newPluginInstanceObject(pi *registry.PluginInstance) *goja.Object {
	obj := h.vm.NewObject()
	h.installScopedLog(obj, pi.Name, "")

	_ = obj.Set("register_module", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		m, err := pi.RegisterModule(name, optionalString(call.Argument(1), "display_name"))
		if err != nil {
			h.logger.Scoped(pi.Name, "").Warn("tried registering module with duplicate name")
			return goja.Null()
		}
		return h.newModuleObject(pi.Name, m)
	})

	_ = obj.Set("spawn_process", func(call goja.FunctionCall) goja.Value {
		return h.apiSpawnProcess(pi, call)
	})

	_ = obj.Set("claim_window", func(call goja.FunctionCall) goja.Value {
		return h.apiClaimWindow(pi, call)
	})

	_ = obj.Set("create_virtual_window", func(call goja.FunctionCall) goja.Value {
		return h.apiCreateVirtualWindow(pi, call)
	})

	return obj
}

// installScopedLog adds debug/info/warn/error methods labeled
// "plugin_instance::module" (or just "plugin_instance" when module is
// empty), matching the source's LogWithPrefix trait (spec §4.4).
func (h *Host) installScopedLog(obj *goja.Object, pluginInstance, module string) {
	scoped := h.logger.Scoped(pluginInstance, module)
	_ = obj.Set("debug", func(call goja.FunctionCall) goja.Value {
		scoped.Debug(joinArgs(call.Arguments))
		return goja.Undefined()
	})
	_ = obj.Set("info", func(call goja.FunctionCall) goja.Value {
		scoped.Info(joinArgs(call.Arguments))
		return goja.Undefined()
	})
	_ = obj.Set("warn", func(call goja.FunctionCall) goja.Value {
		scoped.Warn(joinArgs(call.Arguments))
		return goja.Undefined()
	})
	_ = obj.Set("error", func(call goja.FunctionCall) goja.Value {
		scoped.Error(joinArgs(call.Arguments))
		return goja.Undefined()
	})
}

func optionalString(v goja.Value, key string) *string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	val := obj.Get(key)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	s := val.String()
	return &s
}

// apiSpawnProcess implements spawn_process(cmd, {args?, envs?, on_output?, pty?})
// -> ProcessHandle | nil (spec §4.2, §6.4; pty is this port's addition).
func (h *Host) apiSpawnProcess(pi *registry.PluginInstance, call goja.FunctionCall) goja.Value {
	cmd := call.Argument(0).String()
	opts := process.SpawnOptions{}

	if optsObj, ok := call.Argument(1).(*goja.Object); ok {
		if argsVal := optsObj.Get("args"); argsVal != nil && !goja.IsUndefined(argsVal) {
			if raw, ok := argsVal.Export().([]interface{}); ok {
				for _, a := range raw {
					if s, ok := a.(string); ok {
						opts.Args = append(opts.Args, s)
					}
				}
			}
		}
		if envsVal := optsObj.Get("envs"); envsVal != nil && !goja.IsUndefined(envsVal) {
			if raw, ok := envsVal.Export().(map[string]interface{}); ok {
				opts.Envs = make(map[string]string, len(raw))
				for k, v := range raw {
					if s, ok := v.(string); ok {
						opts.Envs[k] = s
					}
				}
			}
		}
		if fn, ok := asCallable(optsObj.Get("on_output")); ok {
			opts.OnOutput = func(line string) { h.call(pi.Name, fn, h.vm.ToValue(line)) }
		}
		if v := optsObj.Get("pty"); v != nil && !goja.IsUndefined(v) {
			opts.PTY = v.ToBoolean()
		}
	}

	handle, err := h.sup.Spawn(cmd, opts)
	if err != nil {
		h.logger.Scoped(pi.Name, "").Error("couldn't spawn process " + cmd + ": " + err.Error())
		return goja.Null()
	}
	return h.newProcessHandleObject(pi.Name, cmd, handle)
}

// apiClaimWindow implements claim_window(class, {timeout_ms?, min_geometry?,
// ignore_managed?}) -> Promise<WindowHandle | nil>. Returning a Promise is
// this port's expression of the source's "yields control to the loop and
// resumes" behavior (spec §4.3.1) inside a single-threaded VM: script code
// keeps running (other event handlers, other .then chains) while the claim
// is pending.
func (h *Host) apiClaimWindow(pi *registry.PluginInstance, call goja.FunctionCall) goja.Value {
	class := call.Argument(0).String()
	opts := wm.ClaimOptions{}

	if optsObj, ok := call.Argument(1).(*goja.Object); ok {
		if v := optsObj.Get("timeout_ms"); v != nil && !goja.IsUndefined(v) {
			opts.TimeoutMs = int(v.ToInteger())
		}
		if v := optsObj.Get("ignore_managed"); v != nil && !goja.IsUndefined(v) {
			opts.IgnoreManaged = v.ToBoolean()
		}
		if v := optsObj.Get("min_geometry"); v != nil && !goja.IsUndefined(v) {
			if s, ok := v.Export().(string); ok {
				if g, err := wm.ParseGeometry(s); err == nil {
					opts.MinGeometry = &g
				} else {
					h.logger.Scoped(pi.Name, "").Warn("invalid geometry string for window (using default): " + err.Error())
				}
			}
		}
	}

	promise, resolve, _ := h.vm.NewPromise()
	h.wmMgr.ClaimWindow(pi.Name, class, opts, func(handle *wm.Handle, err error) {
		if err != nil {
			resolve(goja.Null())
			return
		}
		resolve(h.newWindowHandleObject(pi.Name, handle))
	})
	return h.vm.ToValue(promise)
}

// apiCreateVirtualWindow implements create_virtual_window(name, {set_geometry,
// map, unmap, min_geometry?, primary_demotion_action?}) -> WindowHandle | nil
// (spec §4.3.2).
func (h *Host) apiCreateVirtualWindow(pi *registry.PluginInstance, call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	optsObj, ok := call.Argument(1).(*goja.Object)
	if !ok {
		h.logger.Scoped(pi.Name, "").Error("create_virtual_window requires an options table")
		return goja.Null()
	}

	setGeom, ok1 := asCallable(optsObj.Get("set_geometry"))
	mapFn, ok2 := asCallable(optsObj.Get("map"))
	unmapFn, ok3 := asCallable(optsObj.Get("unmap"))
	if !ok1 || !ok2 || !ok3 {
		h.logger.Scoped(pi.Name, "").Error("error when creating virtual window with name " + name +
			" -- set_geometry, map and unmap callbacks are all required")
		return goja.Null()
	}

	callbacks := wm.VirtualCallbacks{
		SetGeometry: func(x, y, w, ht, zIndex int) {
			h.call(pi.Name, setGeom, h.vm.ToValue(x), h.vm.ToValue(y), h.vm.ToValue(w), h.vm.ToValue(ht), h.vm.ToValue(zIndex))
		},
		Map:   func() { h.call(pi.Name, mapFn) },
		Unmap: func() { h.call(pi.Name, unmapFn) },
	}

	var minGeom *wm.Geometry
	if v := optsObj.Get("min_geometry"); v != nil && !goja.IsUndefined(v) {
		if s, ok := v.Export().(string); ok {
			if g, err := wm.ParseGeometry(s); err == nil {
				minGeom = &g
			}
		}
	}

	demotion := wm.DoNothing
	if v := optsObj.Get("primary_demotion_action"); v != nil && !goja.IsUndefined(v) {
		if parsed, ok := wm.ParsePrimaryDemotionAction(v.String()); ok {
			demotion = parsed
		} else {
			h.logger.Scoped(pi.Name, "").Warn("could not parse primary_demotion_action for window " + name + " (using default)")
		}
	}

	handle, err := h.wmMgr.CreateVirtualWindow(pi.Name, callbacks, minGeom, demotion)
	if err != nil {
		h.logger.Scoped(pi.Name, "").Error("error when creating virtual window with name " + name + ": " + err.Error())
		return goja.Null()
	}
	return h.newWindowHandleObject(pi.Name, handle)
}
