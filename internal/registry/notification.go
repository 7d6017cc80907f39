package registry

// Notification is one of the three change events the registry emits to its
// observers (spec §4.6 Live updates, §6.3). The admin server (C6) is the
// only consumer today, but the type is observer-agnostic so a future
// listener (e.g. the local terminal client) can subscribe too.
type Notification interface {
	isNotification()
}

type ModuleStatusUpdate struct {
	PluginInstance string  `json:"plugin_instance"`
	Module         string  `json:"module"`
	NewStatus      *string `json:"new_status"`
}

type ModuleMessageUpdate struct {
	PluginInstance string  `json:"plugin_instance"`
	Module         string  `json:"module"`
	NewMessage     *string `json:"new_message"`
}

type ModuleActiveActionsUpdate struct {
	PluginInstance    string   `json:"plugin_instance"`
	Module            string   `json:"module"`
	NewActiveActions  []string `json:"new_active_actions"`
}

func (ModuleStatusUpdate) isNotification()        {}
func (ModuleMessageUpdate) isNotification()        {}
func (ModuleActiveActionsUpdate) isNotification() {}

// Observer receives every notification the registry emits, in emission
// order (spec §5 ordering guarantees).
type Observer interface {
	OnNotification(Notification)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(Notification)

func (f ObserverFunc) OnNotification(n Notification) { f(n) }
