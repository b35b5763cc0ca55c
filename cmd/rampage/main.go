package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"rampage/internal/cue"
	"rampage/internal/flow"
	"rampage/internal/playback"
	"rampage/internal/settings"
)

func printVersion() {
	fmt.Printf("rampage v%s\n", version)
	fmt.Println("Reactive audio cues for the monster attack installation")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  rampage [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Turns per-camera motion (optical flow) into damage and chaos sound cues.")
	fmt.Println("  Cameras feed flow values and operators drive phases over a unix socket;")
	fmt.Println("  dashboards follow the state over a websocket.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Flags override values from -config; the config file overrides built-in defaults.")
}

// audioEngine is a cue.Engine the daemon owns and closes.
type audioEngine interface {
	cue.Engine
	Close() error
}

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		soundsDir    = flag.String("sounds-dir", defaultSoundsDir, "Directory with one sub-directory per cue category")
		cameras      = flag.Int("cameras", defaultCameras, "Number of cameras feeding flow values")
		tickMS       = flag.Int("tick-ms", defaultTickMS, "Severity evaluation interval in milliseconds")
		monster      = flag.String("monster", defaultMonster, "Monster: robot|lizard|other")
		audioDriver  = flag.String("audio-driver", defaultAudioDriver, "Audio output: oto|dryrun")
		sampleRate   = flag.Int("sample-rate", playback.DefaultSampleRate, "Output sample rate in Hz")
		socketPath   = flag.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		httpPort     = flag.Int("http-port", defaultHTTPPort, "HTTP port for /ws/state and /healthz (0 disables)")
		settingsPath = flag.String("settings", defaultSettingsPath, "Path to the live settings file")
		logLevelStr  = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion  = flag.Bool("version", false, "Print version and exit")
		showHelp     = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	// Only flags given on the command line override the file.
	var ov FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sounds-dir":
			ov.SoundsDir = soundsDir
		case "cameras":
			ov.Cameras = cameras
		case "tick-ms":
			ov.TickMS = tickMS
		case "monster":
			ov.Monster = monster
		case "audio-driver":
			ov.AudioDriver = audioDriver
		case "sample-rate":
			ov.SampleRate = sampleRate
		case "ipc-socket":
			ov.SocketPath = socketPath
		case "http-port":
			ov.HTTPPort = httpPort
		case "settings":
			ov.SettingsPath = settingsPath
		case "log-level":
			ov.LogLevel = logLevelStr
		}
	})
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("rampage exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	samples, err := cue.LoadSamples(ExpandPath(cfg.Sounds.Dir))
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}
	logger.Info("sample library loaded", "dir", cfg.Sounds.Dir, "samples", len(samples.All()))

	engine, err := newAudioEngine(cfg, samples, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("audio engine close failed", "error", err)
		}
	}()

	controller, err := cue.NewController(engine, samples, cfg.ToControllerConfig(), logger.With("component", "cue"))
	if err != nil {
		return fmt.Errorf("create cue controller: %w", err)
	}
	defer controller.Close()

	trackers := make([]*flow.Tracker, cfg.Cameras.Count)
	for i := range trackers {
		trackers[i], err = flow.NewTracker(cfg.ToTrackerConfig(i), controller, logger.With("component", "flow"))
		if err != nil {
			return fmt.Errorf("create flow tracker: %w", err)
		}
	}

	inst := NewInstallation(controller, trackers)

	store, err := settings.Load(ExpandPath(cfg.Settings.Path))
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	for _, perr := range inst.Params().LoadFrom(store) {
		logger.Warn("ignoring stored setting", "error", perr)
	}
	defer saveSettings(inst.Params(), store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan Event, eventQueueSize)
	broadcasts := make(chan StateBroadcast, broadcastQueueSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(broadcasts)
		return runDaemon(gctx, events, inst, cfg.TickInterval(), broadcasts, logger.With("component", "daemon"))
	})

	g.Go(func() error {
		return runIPCServer(gctx, ExpandPath(cfg.IPC.SocketPath), events, logger.With("component", "ipc"))
	})

	if cfg.HTTP.Port > 0 {
		wsLogger := logger.With("component", "ws")
		state := NewStateServer(wsLogger, events, HubConfig{})
		mux := newHTTPMux(state, state.requestSnapshot)

		g.Go(func() error {
			state.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, state.Hub(), broadcasts, wsLogger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Port, mux, logger.With("component", "http"))
		})
	} else {
		// Nobody consumes broadcasts; drain them so the daemon never logs drops.
		g.Go(func() error {
			for range broadcasts {
			}
			return nil
		})
	}

	logger.Info("rampage running",
		"version", version,
		"cameras", cfg.Cameras.Count,
		"tick", cfg.TickInterval(),
		"audio", cfg.Audio.Driver,
		"monster", cfg.Controller.Monster,
	)

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("rampage stopped")
	return nil
}

func newAudioEngine(cfg Config, samples cue.SampleStore, logger *slog.Logger) (audioEngine, error) {
	audioLogger := logger.With("component", "audio")

	switch cfg.Audio.Driver {
	case audioDriverDryRun:
		length := time.Duration(cfg.Audio.DryRunLengthMS) * time.Millisecond
		if length == 0 {
			length = playback.DefaultDryRunLength
		}
		audioLogger.Info("dry-run audio: nothing will be heard", "length", length)
		return playback.NewDryRunEngine(length, audioLogger), nil

	default:
		eng, err := playback.NewOtoEngine(cfg.Audio.SampleRate, audioLogger)
		if err != nil {
			return nil, fmt.Errorf("open audio output: %w", err)
		}
		// Decode everything up front so a bad file fails at startup, not
		// in the middle of a show.
		if err := eng.Preload(samples.All()); err != nil {
			_ = eng.Close()
			return nil, fmt.Errorf("decode samples: %w", err)
		}
		return eng, nil
	}
}

func saveSettings(params *ParamTable, store *settings.Store, logger *slog.Logger) {
	if err := params.SaveTo(store); err != nil {
		logger.Warn("settings not saved", "error", err)
		return
	}
	if err := store.Save(); err != nil {
		logger.Warn("settings not saved", "path", store.Path(), "error", err)
		return
	}
	logger.Info("settings saved", "path", store.Path())
}
