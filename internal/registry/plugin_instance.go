package registry

// CleanupCallback runs once at shutdown, on the loop thread, while child
// processes are still alive (spec §4.1).
type CleanupCallback func()

// PluginInstance is a named container of modules and resources, created
// when the script calls register_plugin_instance and destroyed only at
// process shutdown (spec §3).
type PluginInstance struct {
	Name      string
	OnCleanup CleanupCallback

	moduleOrder []string
	modules     map[string]*Module
}

func newPluginInstance(name string, onCleanup CleanupCallback) *PluginInstance {
	return &PluginInstance{
		Name:      name,
		OnCleanup: onCleanup,
		modules:   make(map[string]*Module),
	}
}

// RegisterModule adds a module, rejecting duplicates within the plugin
// instance (spec §3 invariant 1).
func (p *PluginInstance) RegisterModule(name string, displayName *string) (*Module, error) {
	if _, exists := p.modules[name]; exists {
		return nil, ErrNameCollision
	}
	m := newModule(name, displayName)
	p.modules[name] = m
	p.moduleOrder = append(p.moduleOrder, name)
	return m, nil
}

// Module looks up a module by name.
func (p *PluginInstance) Module(name string) (*Module, bool) {
	m, ok := p.modules[name]
	return m, ok
}

// Modules returns modules in registration order.
func (p *PluginInstance) Modules() []*Module {
	out := make([]*Module, 0, len(p.moduleOrder))
	for _, name := range p.moduleOrder {
		out = append(out, p.modules[name])
	}
	return out
}

// PluginInstanceInfo is the wire-shape used in system_info (spec §6.3).
type PluginInstanceInfo struct {
	Name    string       `json:"name"`
	Modules []ModuleInfo `json:"modules"`
}

func (p *PluginInstance) Info() PluginInstanceInfo {
	modules := make([]ModuleInfo, 0, len(p.moduleOrder))
	for _, name := range p.moduleOrder {
		modules = append(modules, p.modules[name].Info())
	}
	return PluginInstanceInfo{Name: p.Name, Modules: modules}
}
