package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRegisterPluginInstanceRejectsDuplicate(t *testing.T) {
	r := New()
	_, err := r.RegisterPluginInstance("proj", nil)
	require.NoError(t, err)

	_, err = r.RegisterPluginInstance("proj", nil)
	assert.ErrorIs(t, err, ErrNameCollision)
}

func TestRegisterModuleRejectsDuplicate(t *testing.T) {
	r := New()
	p, err := r.RegisterPluginInstance("proj", nil)
	require.NoError(t, err)

	_, err = p.RegisterModule("screen", nil)
	require.NoError(t, err)

	_, err = p.RegisterModule("screen", nil)
	assert.ErrorIs(t, err, ErrNameCollision)
}

func TestRegisterActionRejectsDuplicateWithNoEffect(t *testing.T) {
	r := New()
	p, err := r.RegisterPluginInstance("proj", nil)
	require.NoError(t, err)
	m, err := p.RegisterModule("screen", nil)
	require.NoError(t, err)

	called := 0
	_, err = m.RegisterAction("start", nil, func() error { called++; return nil })
	require.NoError(t, err)

	_, err = m.RegisterAction("start", nil, func() error { called += 100; return nil })
	assert.ErrorIs(t, err, ErrNameCollision)

	action, ok := m.Action("start")
	require.True(t, ok)
	require.NoError(t, action.Callback())
	assert.Equal(t, 1, called)
}

func TestSetActiveActionsFiltersUnknownNames(t *testing.T) {
	r := New()
	p, err := r.RegisterPluginInstance("proj", nil)
	require.NoError(t, err)
	m, err := p.RegisterModule("screen", nil)
	require.NoError(t, err)
	_, err = m.RegisterAction("start", nil, func() error { return nil })
	require.NoError(t, err)

	id := ModuleIdentifier{PluginInstance: "proj", Module: "screen"}
	err = r.SetActiveActions(id, []string{"start", "does_not_exist", "start"})
	require.NoError(t, err)

	assert.Equal(t, []string{"start"}, m.ActiveActions())
}

func TestSetStatusNotifiesObservers(t *testing.T) {
	r := New()
	p, err := r.RegisterPluginInstance("proj", nil)
	require.NoError(t, err)
	_, err = p.RegisterModule("screen", nil)
	require.NoError(t, err)

	var received []Notification
	r.Subscribe(ObserverFunc(func(n Notification) { received = append(received, n) }))

	id := ModuleIdentifier{PluginInstance: "proj", Module: "screen"}
	require.NoError(t, r.SetStatus(id, strPtr("running")))

	require.Len(t, received, 1)
	update, ok := received[0].(ModuleStatusUpdate)
	require.True(t, ok)
	assert.Equal(t, "proj", update.PluginInstance)
	assert.Equal(t, "running", *update.NewStatus)
}

func TestModuleLookupNotFound(t *testing.T) {
	r := New()
	_, err := r.Module(ModuleIdentifier{PluginInstance: "missing", Module: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotOrdersByRegistration(t *testing.T) {
	r := New()
	_, err := r.RegisterPluginInstance("first", nil)
	require.NoError(t, err)
	_, err = r.RegisterPluginInstance("second", nil)
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap.PluginInstances, 2)
	assert.Equal(t, "first", snap.PluginInstances[0].Name)
	assert.Equal(t, "second", snap.PluginInstances[1].Name)
}

func TestRunCleanupsInvokesEveryInstance(t *testing.T) {
	r := New()
	var order []string
	_, err := r.RegisterPluginInstance("a", func() { order = append(order, "a") })
	require.NoError(t, err)
	_, err = r.RegisterPluginInstance("b", func() { order = append(order, "b") })
	require.NoError(t, err)

	r.RunCleanups()
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestStoreSubscribeReceivesUpdates(t *testing.T) {
	r := New()
	store := r.CreateStore("initial")

	var seen []interface{}
	token := store.Subscribe(func(v interface{}) { seen = append(seen, v) })

	store.Set("updated")
	store.Unsubscribe(token)
	store.Set("ignored")

	assert.Equal(t, []interface{}{"updated"}, seen)
	assert.Equal(t, "updated", store.Get())
}
