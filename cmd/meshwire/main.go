package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/meshwire/meshwire-go/engine"
	"github.com/meshwire/meshwire-go/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	profilePath := flag.String("profile", "configs/engine.yaml", "Path to engine profile file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFile := flag.String("log-file", "", "Log to a rotated file instead of stderr")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate profile and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Meshwire %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	builder, err := engine.LoadProfile(*profilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load profile: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		cfg := builder.Freeze()
		fmt.Printf("Profile is valid (app %s/%s, %d platform filters, %d native filters)\n",
			cfg.AppID, cfg.AppVersion, len(cfg.PlatformFilterChain), len(cfg.NativeFilterChain))
		os.Exit(0)
	}

	var logger *zap.Logger
	if *logFile != "" {
		logger = logging.NewWithRotation(*logLevel, logging.RotationConfig{Filename: *logFile})
	} else {
		var err error
		logger, err = logging.New(*logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	logging.Info("Starting Meshwire engine",
		zap.String("version", version),
		zap.String("profile", *profilePath),
	)

	eng, err := builder.SetLogger(logger).Build()
	if err != nil {
		logging.Error("Failed to build engine", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		logging.Error("Engine error", zap.Error(err))
		eng.Terminate()
		os.Exit(1)
	}
	eng.Terminate()
}
