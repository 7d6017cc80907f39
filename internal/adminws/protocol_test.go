package adminws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neopult/neopult/internal/registry"
)

func TestPingPongFramesAreBareStrings(t *testing.T) {
	data, err := json.Marshal(pingFrame())
	require.NoError(t, err)
	assert.Equal(t, `"ping"`, string(data))

	data, err = json.Marshal(pongFrame())
	require.NoError(t, err)
	assert.Equal(t, `"pong"`, string(data))
}

func TestSystemInfoMessageEncodesSnapshot(t *testing.T) {
	info := registry.SystemInfo{PluginInstances: []registry.PluginInstanceInfo{{Name: "proj"}}}
	msg := systemInfoMessage(info)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "system_info")
	assert.NotContains(t, decoded, "notification")
}

func TestNotificationMessageNestsUnderWireName(t *testing.T) {
	status := "running"
	msg := notificationMessage(registry.ModuleStatusUpdate{PluginInstance: "proj", Module: "screen", NewStatus: &status})

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var decoded map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	update, ok := decoded["notification"]["module_status_update"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "proj", update["plugin_instance"])

	msg = notificationMessage(registry.ModuleActiveActionsUpdate{PluginInstance: "proj", Module: "screen", NewActiveActions: []string{"start"}})
	data, err = json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded["notification"], "module_active_actions_update")
}

func TestClientRequestUnmarshalsCallAction(t *testing.T) {
	raw := `{"request":{"request_id":"r1","body":{"call_action":{"plugin_instance":"proj","module":"screen","action":"start"}}}}`
	var req clientRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	require.NotNil(t, req.Request)
	require.NotNil(t, req.Request.Body.CallAction)
	assert.Equal(t, "start", req.Request.Body.CallAction.Action)
}

func TestClientFrameStringIsNotARequest(t *testing.T) {
	var text string
	require.NoError(t, json.Unmarshal([]byte(`"pong"`), &text))
	assert.Equal(t, "pong", text)
}
