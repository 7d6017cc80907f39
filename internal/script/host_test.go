package script

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neopult/neopult/internal/config"
	"github.com/neopult/neopult/internal/logging"
	"github.com/neopult/neopult/internal/metrics"
	"github.com/neopult/neopult/internal/registry"
)

var testMetricsOnce sync.Once
var testMetrics *metrics.Metrics

func sharedMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() { testMetrics = metrics.New() })
	return testMetrics
}

type noopLoop struct{}

func (noopLoop) Post(f func())     { f() }
func (noopLoop) RunLater(f func()) { f() }

// newTestHost creates a channel-0 home directory under a fresh neopult home
// and builds a Host whose env.ChannelHome() resolves to it, so LoadInit
// finds init.js the same way it would in production.
func newTestHost(t *testing.T) (*Host, string) {
	t.Helper()
	neopultHome := t.TempDir()
	channelHome := filepath.Join(neopultHome, "channel-0")
	require.NoError(t, os.Mkdir(channelHome, 0o755))

	env := &config.EnvConfig{Channel: 0, NeopultHome: neopultHome, Display: ":0"}
	h := New(env, logging.NewDefault(), sharedMetrics(), noopLoop{}, registry.New(), nil, nil)
	return h, channelHome
}

func writeScript(t *testing.T, home, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(home, name), []byte(contents), 0o644))
}

func TestLoadInitRunsTopLevelCode(t *testing.T) {
	h, home := newTestHost(t)
	writeScript(t, home, "init.js", `neopult.config.websocket_password = "s3cr3t";`)

	require.NoError(t, h.LoadInit())

	assert.Equal(t, "s3cr3t", h.ScriptConfig().WebsocketPassword)
}

func TestScriptConfigDefaultsWhenUnset(t *testing.T) {
	h, home := newTestHost(t)
	writeScript(t, home, "init.js", `// no config set`)

	require.NoError(t, h.LoadInit())

	assert.Equal(t, config.DefaultScriptConfig().WebsocketPassword, h.ScriptConfig().WebsocketPassword)
}

func TestGenerateTokenProducesRequestedLength(t *testing.T) {
	h, _ := newTestHost(t)

	val, err := h.vm.RunString(`neopult.api.generate_token(16)`)
	require.NoError(t, err)
	assert.Len(t, val.String(), 16)
}

func TestRequireLoadsPluginFromSearchPath(t *testing.T) {
	h, home := newTestHost(t)
	plugins := filepath.Join(home, "plugins")
	require.NoError(t, os.MkdirAll(plugins, 0o755))
	writeScript(t, plugins, "greeter.js", `module.exports = { greet: function() { return "hi"; } };`)
	writeScript(t, home, "init.js", `var g = require("greeter"); neopult.config.websocket_password = g.greet();`)

	require.NoError(t, h.LoadInit())

	assert.Equal(t, "hi", h.ScriptConfig().WebsocketPassword)
}

func TestRequireMissingModuleFails(t *testing.T) {
	h, home := newTestHost(t)
	writeScript(t, home, "init.js", `require("does_not_exist");`)

	assert.Error(t, h.LoadInit())
}
