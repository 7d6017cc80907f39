// Command neopultd runs one channel's daemon: it owns the X connection,
// the process supervisor, the plugin registry, the scripting host, the
// admin websocket server and the local terminal console, all serialized
// through a single event loop (spec §1, §4).
package main

import (
	"fmt"
	"os"

	"github.com/neopult/neopult/internal/adminws"
	"github.com/neopult/neopult/internal/config"
	"github.com/neopult/neopult/internal/loop"
	"github.com/neopult/neopult/internal/logging"
	"github.com/neopult/neopult/internal/metrics"
	"github.com/neopult/neopult/internal/process"
	"github.com/neopult/neopult/internal/registry"
	"github.com/neopult/neopult/internal/script"
	"github.com/neopult/neopult/internal/terminal"
	"github.com/neopult/neopult/internal/wm"
)

func main() {
	env, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "neopultd: "+err.Error())
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = env.LogLevel
	logCfg.Development = env.LogDev
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "neopultd: failed to build logger: "+err.Error())
		os.Exit(1)
	}
	defer logger.Sync()

	m := metrics.New()

	process.CleanStale(env.PidDir(), logger)

	lp := loop.New(logger)

	wmMgr, err := wm.Init(env.Display, lp, logger, m)
	if err != nil {
		logger.Error("failed to initialize window manager: " + err.Error())
		os.Exit(1)
	}
	wmMgr.OnFatal(func(err error) {
		logger.Error("window manager reported a fatal error, shutting down: " + err.Error())
		lp.Stop()
	})

	reg := registry.New()
	sup := process.New(lp, logger, m, env.PidDir())

	host := script.New(env, logger, m, lp, reg, sup, wmMgr)
	if err := host.LoadInit(); err != nil {
		logger.Error("failed to load channel script: " + err.Error())
		os.Exit(1)
	}
	scriptCfg := host.ScriptConfig()

	adminAddr := fmt.Sprintf(":%d", env.AdminPort())
	adminServer := adminws.New(adminAddr, scriptCfg.WebsocketPassword, logger, m, reg, lp)
	go func() {
		if err := adminServer.ListenAndServe(); err != nil {
			logger.Error("admin websocket server exited: " + err.Error())
		}
	}()

	term := terminal.New(logger, reg, lp, os.Stdin, os.Stdout)
	go term.Run()

	lp.OnShutdown(func() {
		reg.RunCleanups()
		sup.KillAll()
		_ = adminServer.Close()
		wmMgr.Close()
	})

	logger.Info(fmt.Sprintf("neopultd listening on channel %d, admin port %d", env.Channel, env.AdminPort()))

	lp.Run()
}
