package script

import (
	"github.com/dop251/goja"

	"github.com/neopult/neopult/internal/registry"
)

// newModuleObject wraps a registry.Module as returned by register_module
// (spec §6.2).
func (h *Host) newModuleObject(pluginInstance string, m *registry.Module) *goja.Object {
	obj := h.vm.NewObject()
	h.installScopedLog(obj, pluginInstance, m.Name)

	id := registry.ModuleIdentifier{PluginInstance: pluginInstance, Module: m.Name}

	_ = obj.Set("register_action", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fn, ok := asCallable(call.Argument(1))
		if !ok {
			h.logger.Scoped(pluginInstance, m.Name).Error("register_action requires a function callback")
			return goja.Undefined()
		}
		displayName := optionalString(call.Argument(2), "display_name")

		_, err := m.RegisterAction(name, displayName, func() error {
			_, callErr := fn(goja.Undefined())
			return callErr
		})
		if err != nil {
			h.logger.Scoped(pluginInstance, m.Name).Warn("tried registering action with duplicate name " + name)
		}
		return goja.Undefined()
	})

	_ = obj.Set("set_status", func(call goja.FunctionCall) goja.Value {
		_ = h.reg.SetStatus(id, optionalArgString(call.Argument(0)))
		return goja.Undefined()
	})

	_ = obj.Set("get_status", func(call goja.FunctionCall) goja.Value {
		if m.Status == nil {
			return goja.Null()
		}
		return h.vm.ToValue(*m.Status)
	})

	_ = obj.Set("set_message", func(call goja.FunctionCall) goja.Value {
		_ = h.reg.SetMessage(id, optionalArgString(call.Argument(0)))
		return goja.Undefined()
	})

	_ = obj.Set("set_active_actions", func(call goja.FunctionCall) goja.Value {
		var names []string
		if raw, ok := call.Argument(0).Export().([]interface{}); ok {
			for _, v := range raw {
				if s, ok := v.(string); ok {
					names = append(names, s)
				}
			}
		}
		_ = h.reg.SetActiveActions(id, names)
		return goja.Undefined()
	})

	return obj
}

// optionalArgString converts a JS argument that may be null/undefined/string
// into *string, matching Lua's Option<String> parameter convention for
// set_status/set_message (spec §6.4).
func optionalArgString(v goja.Value) *string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	s := v.String()
	return &s
}
