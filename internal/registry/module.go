package registry

// Module is named within its owning plugin instance (spec §3). Every field
// is mutated only from script callbacks running on the event-loop thread;
// the registry does not lock internally (invariant 5 makes that the caller's
// job, enforced structurally by C1 never running two callbacks concurrently).
type Module struct {
	Name        string
	DisplayName *string
	Status      *string
	Message     *string

	actionOrder []string
	actions     map[string]*Action

	activeActions map[string]struct{}
}

func newModule(name string, displayName *string) *Module {
	return &Module{
		Name:          name,
		DisplayName:   displayName,
		actions:       make(map[string]*Action),
		activeActions: make(map[string]struct{}),
	}
}

// RegisterAction adds an action, rejecting duplicates within the module
// (spec §3 invariant 1, §7 NameCollision, §9 Open Question (i): reject with
// no effect).
func (m *Module) RegisterAction(name string, displayName *string, cb ActionCallback) (*Action, error) {
	if _, exists := m.actions[name]; exists {
		return nil, ErrNameCollision
	}
	action := &Action{Name: name, DisplayName: displayName, Callback: cb}
	m.actions[name] = action
	m.actionOrder = append(m.actionOrder, name)
	return action, nil
}

// Action looks up a registered action by name.
func (m *Module) Action(name string) (*Action, bool) {
	a, ok := m.actions[name]
	return a, ok
}

// Actions returns the actions in registration order.
func (m *Module) Actions() []*Action {
	out := make([]*Action, 0, len(m.actionOrder))
	for _, name := range m.actionOrder {
		out = append(out, m.actions[name])
	}
	return out
}

func (m *Module) hasAction(name string) bool {
	_, ok := m.actions[name]
	return ok
}

// SetActiveActions replaces the set of active action names, filtering out
// (rather than accepting) any name that is not a registered action, per
// spec invariant 4 and the §9 Open Question (ii) resolution: the source
// allowed unknown names through unconditionally, this reimplementation does
// not.
func (m *Module) SetActiveActions(names []string) []string {
	kept := make([]string, 0, len(names))
	next := make(map[string]struct{}, len(names))
	for _, n := range names {
		if !m.hasAction(n) {
			continue
		}
		if _, dup := next[n]; dup {
			continue
		}
		next[n] = struct{}{}
		kept = append(kept, n)
	}
	m.activeActions = next
	return kept
}

// ActiveActions returns the active action names in the order they were last
// set (spec §6.3 active_actions).
func (m *Module) ActiveActions() []string {
	out := make([]string, 0, len(m.activeActions))
	// activeActions has no independent order; report in module action order
	// so JSON output is stable across snapshots.
	for _, name := range m.actionOrder {
		if _, ok := m.activeActions[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Info is the wire-shape used in system_info (spec §6.3).
type ModuleInfo struct {
	Name          string       `json:"name"`
	DisplayName   *string      `json:"display_name"`
	Status        *string      `json:"status"`
	Message       *string      `json:"message"`
	Actions       []ActionInfo `json:"actions"`
	ActiveActions []string     `json:"active_actions"`
}

func (m *Module) Info() ModuleInfo {
	actions := make([]ActionInfo, 0, len(m.actionOrder))
	for _, name := range m.actionOrder {
		actions = append(actions, m.actions[name].Info())
	}
	return ModuleInfo{
		Name:          m.Name,
		DisplayName:   m.DisplayName,
		Status:        m.Status,
		Message:       m.Message,
		Actions:       actions,
		ActiveActions: m.ActiveActions(),
	}
}
