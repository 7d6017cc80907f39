// Package registry is the in-memory model of user-visible state (C5):
// plugin instances, their modules and actions, and independently-owned
// stores. It notifies observers on module status/message/active-actions
// change and enforces the name-uniqueness and active-actions invariants
// from spec §3. Every exported method here is meant to be called only from
// the event-loop thread (spec §3 invariant 5) — the registry itself holds
// no lock.
package registry

// Registry is the single source of truth referenced by spec §9 ("Source
// uses globally-scoped plugin tables... the core's registry is the single
// source of truth").
type Registry struct {
	instanceOrder []string
	instances     map[string]*PluginInstance

	stores []*Store

	observers []Observer
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{instances: make(map[string]*PluginInstance)}
}

// Subscribe registers an observer for change notifications. Order of
// delivery to observers matches subscription order.
func (r *Registry) Subscribe(o Observer) {
	r.observers = append(r.observers, o)
}

func (r *Registry) notify(n Notification) {
	for _, o := range r.observers {
		o.OnNotification(n)
	}
}

// RegisterPluginInstance adds a plugin instance, rejecting duplicates
// (spec §3 invariant 1, §7 NameCollision).
func (r *Registry) RegisterPluginInstance(name string, onCleanup CleanupCallback) (*PluginInstance, error) {
	if _, exists := r.instances[name]; exists {
		return nil, ErrNameCollision
	}
	p := newPluginInstance(name, onCleanup)
	r.instances[name] = p
	r.instanceOrder = append(r.instanceOrder, name)
	return p, nil
}

// PluginInstance looks up a plugin instance by name.
func (r *Registry) PluginInstance(name string) (*PluginInstance, bool) {
	p, ok := r.instances[name]
	return p, ok
}

// PluginInstances returns plugin instances in registration order.
func (r *Registry) PluginInstances() []*PluginInstance {
	out := make([]*PluginInstance, 0, len(r.instanceOrder))
	for _, name := range r.instanceOrder {
		out = append(out, r.instances[name])
	}
	return out
}

// Module resolves a ModuleIdentifier, returning ErrNotFound if either the
// plugin instance or the module itself is missing (spec §7 NotFound).
func (r *Registry) Module(id ModuleIdentifier) (*Module, error) {
	p, ok := r.instances[id.PluginInstance]
	if !ok {
		return nil, ErrNotFound
	}
	m, ok := p.Module(id.Module)
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// Action resolves an ActionIdentifier.
func (r *Registry) Action(id ActionIdentifier) (*Action, error) {
	m, err := r.Module(id.ModuleIdentifier())
	if err != nil {
		return nil, err
	}
	a, ok := m.Action(id.Action)
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// SetStatus updates a module's status and notifies observers.
func (r *Registry) SetStatus(id ModuleIdentifier, status *string) error {
	m, err := r.Module(id)
	if err != nil {
		return err
	}
	m.Status = status
	r.notify(ModuleStatusUpdate{PluginInstance: id.PluginInstance, Module: id.Module, NewStatus: status})
	return nil
}

// SetMessage updates a module's message and notifies observers. The value
// is passed through verbatim (spec §9 "HTML in messages" — the core must
// not sanitize it).
func (r *Registry) SetMessage(id ModuleIdentifier, message *string) error {
	m, err := r.Module(id)
	if err != nil {
		return err
	}
	m.Message = message
	r.notify(ModuleMessageUpdate{PluginInstance: id.PluginInstance, Module: id.Module, NewMessage: message})
	return nil
}

// SetActiveActions updates a module's active-action set, filtering unknown
// names (spec invariant 4, §9 Open Question (ii)), and notifies observers
// with the filtered result.
func (r *Registry) SetActiveActions(id ModuleIdentifier, names []string) error {
	m, err := r.Module(id)
	if err != nil {
		return err
	}
	kept := m.SetActiveActions(names)
	r.notify(ModuleActiveActionsUpdate{PluginInstance: id.PluginInstance, Module: id.Module, NewActiveActions: kept})
	return nil
}

// CreateStore creates a store independent of any plugin instance (spec §3).
func (r *Registry) CreateStore(initial interface{}) *Store {
	s := newStore(initial)
	r.stores = append(r.stores, s)
	return s
}

// SystemInfo is the full-registry snapshot sent on admin auth (spec §4.6,
// §6.3).
type SystemInfo struct {
	PluginInstances []PluginInstanceInfo `json:"plugin_instances"`
}

func (r *Registry) Snapshot() SystemInfo {
	instances := make([]PluginInstanceInfo, 0, len(r.instanceOrder))
	for _, name := range r.instanceOrder {
		instances = append(instances, r.instances[name].Info())
	}
	return SystemInfo{PluginInstances: instances}
}

// RunCleanups invokes every plugin instance's on_cleanup callback, in
// registration order, on the loop thread — called once at shutdown, before
// child processes are killed (spec §4.1).
func (r *Registry) RunCleanups() {
	for _, name := range r.instanceOrder {
		p := r.instances[name]
		if p.OnCleanup != nil {
			p.OnCleanup()
		}
	}
}
