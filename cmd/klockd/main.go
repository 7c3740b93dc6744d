package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"klockd/internal/app"
	"klockd/internal/config"
)

var (
	configPath = flag.String("c", "", "Path to configuration file (e.g., config.yaml). Defaults to ./config.yaml, ~/.config/klock/config.yaml, /etc/klock/config.yaml")
	logPath    = flag.String("log", "", "Path to log file (optional, defaults to stderr)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

// buildLogger configures the zap logger, to stderr by default or to a
// file when -log is given.
func buildLogger(logFilePath string, debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	if logFilePath != "" {
		dir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
		cfg.OutputPaths = []string{logFilePath}
		cfg.ErrorOutputPaths = []string{logFilePath}
	} else {
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}

func main() {
	flag.Parse()

	log, err := buildLogger(*logPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalw("failed to load configuration", "err", err)
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Fatalw("failed to create application", "err", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalw("application exited with error", "err", err)
	}

	log.Info("klockd finished")
}
