// chime watches filesystem locations and plays an audible alert when
// matching files change. An optional process monitor also alerts on network
// activity of a named process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chime/internal/alert"
	"chime/internal/cli"
	"chime/internal/config"
	"chime/internal/event"
	"chime/internal/logging"
	"chime/internal/monitor"
	"chime/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("chime", flag.ContinueOnError)
	helpVersion := cli.AddHelpVersionFlags(fs, "", "")

	var paths cli.StringList
	var extensions cli.StringList
	configPath := fs.String("config", "", "Path to YAML config file")
	strategy := fs.String("strategy", "", "Watch strategy: events or poll")
	interval := fs.Int("interval", 0, "Poll interval in seconds")
	quiet := fs.Int("quiet", 0, "Debounce quiet period in milliseconds")
	volume := fs.String("volume", "", "Alert volume: small, medium or large")
	processName := fs.String("process", "", "Also alert on network activity of this process")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Var(&paths, "path", "Watch root (repeatable, comma-separated allowed)")
	fs.Var(&extensions, "ext", "File extension allow-list (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if helpVersion.Help {
		fs.Usage()
		return 0
	}
	if helpVersion.Version {
		fmt.Println(version.Get().String())
		return 0
	}

	// Validation waits until flags are merged in; a broken file still fails.
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	applyFlags(&cfg, fs, paths, extensions, *strategy, *interval, *quiet, *volume, *processName, *debug)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(logging.NewBuffer(logging.DefaultBufferSize), level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := event.NewBus[monitor.Event](ctx, event.Options{Name: "monitor_events"})

	player := alert.NewPlayer(logger)
	if parsed, ok := alert.ParseVolume(cfg.Volume); ok {
		player.SetVolume(parsed)
	}

	controller := monitor.NewController(cfg, logger, bus, player)
	if err := controller.Start(); err != nil {
		logger.Error("monitor start failed", map[string]string{"error": err.Error()})
		return 1
	}
	defer controller.Stop()

	netMonitor := monitor.NewNetActivity(cfg.ProcessName, cfg.ProbeInterval(), logger, controller.HandleNetworkActivity)
	netMonitor.Start()
	defer netMonitor.Stop()

	logger.Info("chime watching", map[string]string{
		"paths":    fmt.Sprintf("%v", cfg.Paths),
		"strategy": cfg.Strategy,
	})

	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	stopSignals := watchShutdownSignals(logger, cancel, signalCh)
	defer stopSignals()

	<-ctx.Done()
	logger.Info("chime shutting down", nil)
	return 0
}

func applyFlags(cfg *config.Config, fs *flag.FlagSet, paths, extensions cli.StringList, strategy string, interval, quiet int, volume, processName string, debug bool) {
	if len(paths.Values) > 0 {
		cfg.Paths = paths.Values
	}
	if len(extensions.Values) > 0 {
		cfg.Extensions = extensions.Values
	}
	if strategy != "" {
		cfg.Strategy = strategy
	}
	if interval > 0 {
		cfg.PollIntervalSeconds = interval
	}
	if quiet > 0 {
		cfg.QuietPeriodMillis = quiet
		if cfg.MaxWindowMillis < quiet {
			cfg.MaxWindowMillis = quiet
		}
	}
	if volume != "" {
		cfg.Volume = volume
	}
	if processName != "" {
		cfg.ProcessName = processName
	}
	visited := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { visited[f.Name] = true })
	if visited["debug"] {
		cfg.Debug = debug
	}
}
