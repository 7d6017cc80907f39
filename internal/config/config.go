// Package config loads the environment-sourced configuration a channel
// process needs before it can locate its script, its X display, or its
// admin port.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ChannelMax is the highest channel number accepted (spec §6.1).
	ChannelMax = 99

	// AdminPortBase is added to the channel number to derive the admin
	// WebSocket listen port (spec §4.6, "4200 + channel is conventional").
	AdminPortBase = 4200
)

// EnvConfig holds the values read directly from the process environment,
// before the channel script has had a chance to run (spec §6.1).
type EnvConfig struct {
	Channel      uint8  `envconfig:"NEOPULT_CHANNEL" required:"true"`
	NeopultHome  string `envconfig:"NEOPULT_HOME" required:"true"`
	Display      string `envconfig:"DISPLAY" required:"true"`
	LogLevel     string `envconfig:"NEOPULT_LOG_LEVEL" default:"info"`
	LogDev       bool   `envconfig:"NEOPULT_LOG_DEV" default:"false"`
}

// ChannelHome is NeopultHome/channel-<N>.
func (c *EnvConfig) ChannelHome() string {
	return filepath.Join(c.NeopultHome, fmt.Sprintf("channel-%d", c.Channel))
}

// ScriptPath is the channel's entry-point script (spec §6.2).
func (c *EnvConfig) ScriptPath() string {
	return filepath.Join(c.ChannelHome(), "init.js")
}

// PluginSearchPath is the directory the scripting host bridge adds to its
// module search path in addition to the channel home itself (spec §6.2).
func (c *EnvConfig) PluginSearchPath() string {
	return filepath.Join(c.ChannelHome(), "plugins")
}

// PidDir is where the process supervisor keeps one file per live child, used
// for the supplemented stale-process cleanup on startup.
func (c *EnvConfig) PidDir() string {
	return filepath.Join(c.ChannelHome(), ".pids")
}

// AdminPort is the TCP port the admin WebSocket server listens on.
func (c *EnvConfig) AdminPort() int {
	return AdminPortBase + int(c.Channel)
}

// Load reads and validates the environment configuration.
func Load() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	if cfg.Channel > ChannelMax {
		return nil, fmt.Errorf("channel must be at most %d, got %d", ChannelMax, cfg.Channel)
	}

	if fi, err := os.Stat(cfg.NeopultHome); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("neopult home directory %q does not exist", cfg.NeopultHome)
	}

	if fi, err := os.Stat(cfg.ChannelHome()); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("channel home directory %q does not exist", cfg.ChannelHome())
	}

	if err := os.MkdirAll(cfg.PidDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pid directory: %w", err)
	}

	return &cfg, nil
}

// ScriptConfig holds the values the channel script itself controls, read
// back from the scripting host once the script's top-level code has run
// (spec §9 supplemented feature: neopult.config.websocket_password).
type ScriptConfig struct {
	WebsocketPassword string
}

// DefaultScriptConfig mirrors the original's LuaConfig default so an admin
// port never listens with an empty password.
func DefaultScriptConfig() ScriptConfig {
	return ScriptConfig{WebsocketPassword: "admin"}
}
