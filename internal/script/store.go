package script

import (
	"github.com/dop251/goja"

	"github.com/neopult/neopult/internal/registry"
)

// newStoreObject wraps a registry.Store as returned by create_store (spec
// §6.4 get/set/subscribe/unsubscribe). Subscription tokens are represented
// to script code as opaque objects carrying their registry.SubscriptionToken,
// mirroring the source's StoreSubscription userdata.
func (h *Host) newStoreObject(store *registry.Store) *goja.Object {
	obj := h.vm.NewObject()

	_ = obj.Set("get", func(call goja.FunctionCall) goja.Value {
		return h.vm.ToValue(store.Get())
	})

	_ = obj.Set("set", func(call goja.FunctionCall) goja.Value {
		store.Set(call.Argument(0).Export())
		return goja.Undefined()
	})

	_ = obj.Set("subscribe", func(call goja.FunctionCall) goja.Value {
		fn, ok := asCallable(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		token := store.Subscribe(func(value interface{}) {
			h.call("store", fn, h.vm.ToValue(value))
		})
		sub := h.vm.NewObject()
		_ = sub.Set("__token", token)
		return sub
	})

	_ = obj.Set("unsubscribe", func(call goja.FunctionCall) goja.Value {
		subObj, ok := call.Argument(0).(*goja.Object)
		if !ok {
			return goja.Undefined()
		}
		tokenVal := subObj.Get("__token")
		if tokenVal == nil {
			return goja.Undefined()
		}
		if token, ok := tokenVal.Export().(registry.SubscriptionToken); ok {
			store.Unsubscribe(token)
		}
		return goja.Undefined()
	})

	return obj
}
