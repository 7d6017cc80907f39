package script

import (
	"github.com/dop251/goja"

	"github.com/neopult/neopult/internal/process"
)

// newProcessHandleObject wraps a process.Handle as returned by spawn_process
// (spec §6.4 write/writeln/kill).
func (h *Host) newProcessHandleObject(pluginInstance, cmd string, handle *process.Handle) *goja.Object {
	obj := h.vm.NewObject()

	_ = obj.Set("write", func(call goja.FunctionCall) goja.Value {
		if err := handle.Write([]byte(call.Argument(0).String())); err != nil {
			h.logger.Scoped(pluginInstance, "").Warn("error writing to process " + cmd + ": " + err.Error())
		}
		return goja.Undefined()
	})

	_ = obj.Set("writeln", func(call goja.FunctionCall) goja.Value {
		if err := handle.WriteLn(call.Argument(0).String()); err != nil {
			h.logger.Scoped(pluginInstance, "").Warn("error writing to process " + cmd + ": " + err.Error())
		}
		return goja.Undefined()
	})

	_ = obj.Set("kill", func(call goja.FunctionCall) goja.Value {
		handle.Kill()
		return goja.Undefined()
	})

	return obj
}
