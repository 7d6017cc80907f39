package registry

// ActionCallback is invoked on the event-loop thread when an operator calls
// the action from the admin channel (spec §4.6, §6.4). Errors are the
// ScriptError category (spec §7): caught, logged with scope, loop continues.
type ActionCallback func() error

// Action is immutable after registration (spec §3).
type Action struct {
	Name        string
	DisplayName *string
	Callback    ActionCallback
}

// Info is the wire-shape used in system_info and notification payloads
// (spec §6.3).
type ActionInfo struct {
	Name        string  `json:"name"`
	DisplayName *string `json:"display_name"`
}

func (a *Action) Info() ActionInfo {
	return ActionInfo{Name: a.Name, DisplayName: a.DisplayName}
}
