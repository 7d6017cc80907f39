package script

import (
	"crypto/rand"
	"strings"

	"github.com/dop251/goja"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// buildAPI assembles neopult.api, mirroring the source's inject_api_functions
// table (spec §6.2).
func (h *Host) buildAPI() *goja.Object {
	api := h.vm.NewObject()
	_ = api.Set("register_plugin_instance", h.apiRegisterPluginInstance)
	_ = api.Set("generate_token", h.apiGenerateToken)
	_ = api.Set("get_channel", h.apiGetChannel)
	_ = api.Set("get_channel_home", h.apiGetChannelHome)
	_ = api.Set("create_store", h.apiCreateStore)
	_ = api.Set("run_later", h.apiRunLater)
	_ = api.Set("escape_html", h.apiEscapeHTML)
	return api
}

// apiRegisterPluginInstance implements register_plugin_instance(name, {on_cleanup?})
// -> PluginInstanceHandle | nil, rejecting a duplicate name with a logged
// error and nil return (spec §7 NameCollision, §9 Open Question (i)).
func (h *Host) apiRegisterPluginInstance(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	var onCleanup func()
	if opts, ok := call.Argument(1).(*goja.Object); ok {
		if fn, ok := asCallable(opts.Get("on_cleanup")); ok {
			onCleanup = func() { h.call(name, fn) }
		}
	}

	pi, err := h.reg.RegisterPluginInstance(name, onCleanup)
	if err != nil {
		h.logger.Scoped(name, "").Warn("tried registering plugin instance with duplicate name")
		return goja.Null()
	}
	return h.newPluginInstanceObject(pi)
}

// apiGenerateToken implements generate_token(num_chars) using crypto/rand
// rather than a non-cryptographic RNG (spec §9 security hardening).
func (h *Host) apiGenerateToken(call goja.FunctionCall) goja.Value {
	n := int(call.Argument(0).ToInteger())
	if n <= 0 {
		return h.vm.ToValue("")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(h.vm.NewGoError(err))
	}
	var sb strings.Builder
	sb.Grow(n)
	for _, b := range buf {
		sb.WriteByte(tokenAlphabet[int(b)%len(tokenAlphabet)])
	}
	return h.vm.ToValue(sb.String())
}

func (h *Host) apiGetChannel(call goja.FunctionCall) goja.Value {
	return h.vm.ToValue(h.env.Channel)
}

func (h *Host) apiGetChannelHome(call goja.FunctionCall) goja.Value {
	return h.vm.ToValue(h.channelHome)
}

func (h *Host) apiCreateStore(call goja.FunctionCall) goja.Value {
	initial := call.Argument(0).Export()
	store := h.reg.CreateStore(initial)
	return h.newStoreObject(store)
}

// apiRunLater implements run_later(func) (spec §4.1, §6.4): the function
// runs on the loop thread only after the current callback returns.
func (h *Host) apiRunLater(call goja.FunctionCall) goja.Value {
	fn, ok := asCallable(call.Argument(0))
	if !ok {
		return goja.Undefined()
	}
	h.loop.RunLater(func() { h.call("run_later", fn) })
	return goja.Undefined()
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

func (h *Host) apiEscapeHTML(call goja.FunctionCall) goja.Value {
	return h.vm.ToValue(htmlEscaper.Replace(call.Argument(0).String()))
}
