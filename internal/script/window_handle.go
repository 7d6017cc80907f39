package script

import (
	"github.com/dop251/goja"

	"github.com/neopult/neopult/internal/wm"
)

// newWindowHandleObject wraps a wm.Handle as returned by claim_window /
// create_virtual_window (spec §6.4 max/min/hide/unclaim/is_primary_window).
func (h *Host) newWindowHandleObject(pluginInstance string, handle *wm.Handle) *goja.Object {
	obj := h.vm.NewObject()

	_ = obj.Set("max", func(call goja.FunctionCall) goja.Value {
		size := wm.Size{}
		if raw, ok := call.Argument(0).Export().([]interface{}); ok && len(raw) >= 2 {
			size.Width = toInt(raw[0])
			size.Height = toInt(raw[1])
		}
		margin := wm.Margin{}
		if optsObj, ok := call.Argument(1).(*goja.Object); ok {
			if marginObj, ok := optsObj.Get("margin").(*goja.Object); ok {
				margin.Top = toIntVal(marginObj.Get("top"))
				margin.Right = toIntVal(marginObj.Get("right"))
				margin.Bottom = toIntVal(marginObj.Get("bottom"))
				margin.Left = toIntVal(marginObj.Get("left"))
			}
		}
		if err := handle.Max(size, margin); err != nil {
			h.logger.Scoped(pluginInstance, "").Error("error setting window mode to max: " + err.Error())
		}
		return goja.Undefined()
	})

	_ = obj.Set("min", func(call goja.FunctionCall) goja.Value {
		if err := handle.Min(); err != nil {
			h.logger.Scoped(pluginInstance, "").Error("error setting window mode to min: " + err.Error())
		}
		return goja.Undefined()
	})

	_ = obj.Set("hide", func(call goja.FunctionCall) goja.Value {
		if err := handle.Hide(); err != nil {
			h.logger.Scoped(pluginInstance, "").Error("error hiding window: " + err.Error())
		}
		return goja.Undefined()
	})

	_ = obj.Set("unclaim", func(call goja.FunctionCall) goja.Value {
		if err := handle.Unclaim(); err != nil {
			h.logger.Scoped(pluginInstance, "").Error("error unclaiming window: " + err.Error())
		}
		return goja.Undefined()
	})

	_ = obj.Set("is_primary_window", func(call goja.FunctionCall) goja.Value {
		return h.vm.ToValue(handle.IsPrimary())
	})

	return obj
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func toIntVal(v goja.Value) int {
	if v == nil || goja.IsUndefined(v) {
		return 0
	}
	return int(v.ToInteger())
}
