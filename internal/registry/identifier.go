package registry

// separator joins the parts of a scoped identifier the same way the source
// system's ModuleIdentifier/ActionIdentifier Display impls do.
const separator = "::"

// ModuleIdentifier names a module within its owning plugin instance.
type ModuleIdentifier struct {
	PluginInstance string
	Module         string
}

func (m ModuleIdentifier) String() string {
	return m.PluginInstance + separator + m.Module
}

// ActionIdentifier names an action within its owning module.
type ActionIdentifier struct {
	PluginInstance string
	Module         string
	Action         string
}

func (a ActionIdentifier) String() string {
	return a.PluginInstance + separator + a.Module + separator + a.Action
}

func (a ActionIdentifier) ModuleIdentifier() ModuleIdentifier {
	return ModuleIdentifier{PluginInstance: a.PluginInstance, Module: a.Module}
}
