// Command rearfeed captures loopback audio from a 4-, 6- or 8-channel
// render endpoint, extracts the rear-surround channels, and routes them as
// stereo to a secondary playback device.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"

	"github.com/agalue/rearfeed/internal/config"
	"github.com/agalue/rearfeed/internal/device"
	"github.com/agalue/rearfeed/internal/engine"
	"github.com/agalue/rearfeed/internal/logging"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cli := &config.CLI{}
	kong.Parse(cli,
		kong.Name("rearfeed"),
		kong.Description("Routes rear-surround loopback audio to a secondary stereo device."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if cli.Version {
		fmt.Printf("rearfeed %s\n", version)
		return config.ExitSuccess
	}

	configPath := cli.Config
	if configPath == "" {
		exe, err := os.Executable()
		if err != nil {
			exe = "rearfeed"
		}
		configPath = config.DefaultPath(exe)
	}

	logger := logging.New(cli.Quiet, false)

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		logger.Error("load config", "path", configPath, "err", err)
		return config.ExitConfigError
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logger.Debug("malgo", "msg", msg)
	})
	if err != nil {
		logger.Error("init audio host", "err", err)
		return config.ExitFatalRuntime
	}

	if cli.List {
		return listEndpoints(ctx, logger)
	}

	eng := engine.New(ctx, cfg, logger)
	defer eng.Close()

	if cfg.Global.Enabled {
		if err := eng.Enable(); err != nil {
			logger.Error("enable pipeline", "err", err)
			return config.ExitDeviceError
		}
	}

	logger.Info("rearfeed running", "config", configPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	done := make(chan struct{})
	go func() {
		_ = eng.Disable()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(2 * time.Second):
		logger.Warn("shutdown timeout, forcing exit")
	}

	return config.ExitSuccess
}

func listEndpoints(ctx *malgo.AllocatedContext, logger *charmlog.Logger) int {
	enumerator := device.New(ctx)
	handles, err := enumerator.ListRenderEndpoints()
	if err != nil {
		logger.Error("list render endpoints", "err", err)
		return config.ExitDeviceError
	}
	for i, h := range handles {
		fmt.Println(config.RenderEndpointLine(i, h.Name, h.Mix.SampleRate, h.Mix.Channels))
	}
	return config.ExitSuccess
}

