package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() { os.Unsetenv(key) })
}

func TestLoadRejectsChannelAboveMax(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.Mkdir(home+"/channel-100", 0o755))

	setEnv(t, "NEOPULT_CHANNEL", "100")
	setEnv(t, "NEOPULT_HOME", home)
	setEnv(t, "DISPLAY", ":0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsMissingChannelHome(t *testing.T) {
	home := t.TempDir()

	setEnv(t, "NEOPULT_CHANNEL", "3")
	setEnv(t, "NEOPULT_HOME", home)
	setEnv(t, "DISPLAY", ":0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadSucceedsAndCreatesPidDir(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.Mkdir(home+"/channel-3", 0o755))

	setEnv(t, "NEOPULT_CHANNEL", "3")
	setEnv(t, "NEOPULT_HOME", home)
	setEnv(t, "DISPLAY", ":0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint8(3), cfg.Channel)
	assert.Equal(t, home+"/channel-3", cfg.ChannelHome())
	assert.Equal(t, home+"/channel-3/init.js", cfg.ScriptPath())
	assert.Equal(t, home+"/channel-3/plugins", cfg.PluginSearchPath())
	assert.Equal(t, 4203, cfg.AdminPort())

	fi, err := os.Stat(cfg.PidDir())
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestLoadDefaultsLogLevel(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.Mkdir(home+"/channel-0", 0o755))

	setEnv(t, "NEOPULT_CHANNEL", "0")
	setEnv(t, "NEOPULT_HOME", home)
	setEnv(t, "DISPLAY", ":0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogDev)
}

func TestDefaultScriptConfig(t *testing.T) {
	assert.Equal(t, "admin", DefaultScriptConfig().WebsocketPassword)
}
