// Command trustscope runs the multi-chain trust scoring service. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and starts the application in the configured mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/trustscope/trustscope/internal/app"
	"github.com/trustscope/trustscope/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	query := flag.String("query", "", "address or identifier to scan (scan mode)")
	chainList := flag.String("chains", "", "comma-separated chain identifiers (scan mode)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// The default config path is optional; an explicitly passed one is not.
	path := *configPath
	if path == "config.toml" {
		if _, statErr := os.Stat(path); statErr != nil {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// A scan request on the command line implies scan mode.
	if *query != "" {
		cfg.Mode = "scan"
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("trustscope starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", path),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scan := app.ScanArgs{Query: strings.TrimSpace(*query)}
	for _, c := range strings.Split(*chainList, ",") {
		if c = strings.TrimSpace(c); c != "" {
			scan.Chains = append(scan.Chains, c)
		}
	}

	if err := application.Run(ctx, scan); err != nil {
		if err == context.Canceled {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("trustscope stopped")
}
