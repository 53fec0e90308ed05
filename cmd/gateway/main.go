// Package main is the entry point for the transformation gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avaform/internal/config"
	"github.com/vyrodovalexey/avaform/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// exitFunc is os.Exit, replaceable in tests.
var exitFunc = os.Exit

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	watch       bool
	showVersion bool
}

func main() {
	flags := parseFlags(os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	bootstrap := initLogger(flags.logLevel, flags.logFormat)
	cfg := loadAndValidateConfig(flags.configPath, bootstrap)

	logger := configureLogger(flags, cfg, bootstrap)
	defer func() { _ = logger.Sync() }()

	app, err := newApplication(cfg, logger)
	if err != nil {
		fatal(logger, "failed to initialize gateway", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx, flags.configPath, flags.watch); err != nil {
		fatal(logger, "gateway stopped with error", err)
	}
}

// parseFlags parses command line flags. Unset logging flags defer to the
// configuration file.
func parseFlags(args []string) cliFlags {
	fs := flag.NewFlagSet("gateway", flag.ExitOnError)
	f := flagDefaults()
	fs.StringVar(&f.configPath, "config", f.configPath, "Path to configuration file")
	fs.StringVar(&f.logLevel, "log-level", f.logLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", f.logFormat, "Log format (json, console)")
	fs.BoolVar(&f.watch, "watch", f.watch, "Reload the configuration file when it changes")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")
	_ = fs.Parse(args)
	return f
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("avaform version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger builds a logger, exiting on invalid settings.
func initLogger(level, format string) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{Level: level, Format: format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		exitFunc(1)
		return observability.NopLogger()
	}
	observability.SetGlobalLogger(logger)
	return logger
}

// configureLogger rebuilds the logger from the configuration file unless
// both logging flags were given.
func configureLogger(flags cliFlags, cfg *config.GatewayConfig, bootstrap observability.Logger) observability.Logger {
	if flags.logLevel != "" && flags.logFormat != "" {
		return bootstrap
	}

	logCfg := cfg.Spec.Observability.Logging
	if flags.logLevel != "" {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		logCfg.Format = flags.logFormat
	}

	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		bootstrap.Warn("invalid logging configuration, keeping defaults", observability.Error(err))
		return bootstrap
	}
	_ = bootstrap.Sync()
	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.GatewayConfig {
	logger.Info("starting avaform",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fatal(logger, "failed to load configuration", err)
		return nil
	}

	if err := config.ValidateConfig(cfg); err != nil {
		fatal(logger, "invalid configuration", err)
		return nil
	}

	logger.Info("configuration loaded",
		observability.String("name", cfg.Metadata.Name),
		observability.String("upstream", cfg.Spec.Upstream.URL),
		observability.Bool("default_policy", cfg.Spec.Transformation != nil),
		observability.Int("routes", len(cfg.Spec.Routes)),
	)
	return cfg
}

// fatal logs err, flushes the logger and exits.
func fatal(logger observability.Logger, msg string, err error) {
	logger.Error(msg, observability.Error(err))
	_ = logger.Sync()
	exitFunc(1)
}
