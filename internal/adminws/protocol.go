package adminws

import "github.com/neopult/neopult/internal/registry"

// Server-to-client frames are one of: the bare JSON strings "ping"/"pong",
// a system_info snapshot, or a notification — there is no shared envelope,
// so each is built as its own value and handed to Conn.WriteJSON directly
// rather than through one tagged struct (spec §6.3).

func pingFrame() interface{} { return "ping" }
func pongFrame() interface{} { return "pong" }

type systemInfoFrame struct {
	SystemInfo registry.SystemInfo `json:"system_info"`
}

func systemInfoMessage(info registry.SystemInfo) interface{} {
	return systemInfoFrame{SystemInfo: info}
}

type notificationFrame struct {
	Notification map[string]interface{} `json:"notification"`
}

// notificationMessage nests a registry.Notification under its wire name
// (module_status_update / module_message_update / module_active_actions_update),
// since the interface itself carries no discriminator (spec §6.3).
func notificationMessage(n registry.Notification) interface{} {
	switch v := n.(type) {
	case registry.ModuleStatusUpdate:
		return notificationFrame{Notification: map[string]interface{}{
			"module_status_update": map[string]interface{}{
				"plugin_instance": v.PluginInstance,
				"module":          v.Module,
				"new_status":      v.NewStatus,
			},
		}}
	case registry.ModuleMessageUpdate:
		return notificationFrame{Notification: map[string]interface{}{
			"module_message_update": map[string]interface{}{
				"plugin_instance": v.PluginInstance,
				"module":          v.Module,
				"new_message":     v.NewMessage,
			},
		}}
	case registry.ModuleActiveActionsUpdate:
		return notificationFrame{Notification: map[string]interface{}{
			"module_active_actions_update": map[string]interface{}{
				"plugin_instance":    v.PluginInstance,
				"module":             v.Module,
				"new_active_actions": v.NewActiveActions,
			},
		}}
	default:
		return notificationFrame{Notification: map[string]interface{}{}}
	}
}

// callActionBody is the payload of a request whose body names call_action
// (spec §6.3, §4.6 "Requests").
type callActionBody struct {
	PluginInstance string `json:"plugin_instance"`
	Module         string `json:"module"`
	Action         string `json:"action"`
}

type requestBody struct {
	CallAction *callActionBody `json:"call_action"`
}

// clientRequest is the shape of the one client-originated request kind
// (spec §6.3): {"request":{"request_id":str,"body":{"call_action":{...}}}}.
// request_id is accepted but unused — spec §4.6 states no response frame is
// defined for call_action, so nothing ever needs to echo it back.
type clientRequest struct {
	Request *struct {
		RequestID string      `json:"request_id"`
		Body      requestBody `json:"body"`
	} `json:"request"`
}
