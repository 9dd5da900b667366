package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"bikestreets/internal/app"
	"bikestreets/internal/config"
	"bikestreets/internal/permission"
	"bikestreets/internal/report"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "bikestreets.json", "path to the JSON config file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	writeConfig := flag.Bool("write-config", false, "write the effective config to -config and exit")
	forgetPermission := flag.Bool("forget-permission", false, "forget a remembered location grant before starting")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	os.Exit(run(*configPath, *writeConfig, *forgetPermission))
}

func run(configPath string, writeConfig, forgetPermission bool) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	config.SetCurrent(cfg)

	if writeConfig {
		if err := config.Save(configPath, config.Get()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Config written to %s\n", configPath)
		return 0
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := report.SetupSentry(cfg.SentryDSN, cfg.Env, version); err != nil {
		logger.Warn("Sentry disabled", "error", err)
	}
	report.ConfigureScope(cfg.Env, version)
	defer report.FlushSentry()

	if forgetPermission {
		p := &permission.Prompt{GrantFile: cfg.Permission.GrantFile}
		if err := p.Revoke(); err != nil {
			logger.Error("Failed to forget location permission", "error", err)
			return 1
		}
		logger.Info("Location permission forgotten", "grant_file", cfg.Permission.GrantFile)
	}

	fmt.Println("Bike Streets")
	fmt.Println("Controls:")
	fmt.Println("  Mouse drag    : Pan")
	fmt.Println("  Mouse wheel   : Zoom")
	fmt.Println("  WASD / Arrows : Pan")
	fmt.Println("  Shift         : Zoom in")
	fmt.Println("  Space         : Zoom out")
	fmt.Println("  L             : Follow location")
	fmt.Println("  O             : Toggle bike network")
	fmt.Println("  Escape        : Exit")
	fmt.Println()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		report.ReportError(err)
		return 1
	}
	defer application.Cleanup()

	if err := application.Run(); err != nil {
		logger.Error("Map screen failed", "error", err)
		report.ReportError(err)
		return 1
	}
	return 0
}
