package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/logsift/logsift/config"
	"github.com/logsift/logsift/internal/logging"
	"github.com/logsift/logsift/report"
	"github.com/logsift/logsift/service"
	"github.com/logsift/logsift/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to optional configuration file")
	configCheck := flag.Bool("config-check", false, "Validate configuration and exit")
	logLevel := flag.String("log-level", "", "Override log level (trace, debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Override log format (text or json)")
	flag.Usage = usage
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}
		cfg = loaded
	}

	if err := applyArguments(cfg, flag.Args(), *cfgPath != ""); err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(2)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	if *configCheck {
		if err := service.Validate(cfg, zerolog.Nop()); err != nil {
			fmt.Fprintf(os.Stderr, "configuration invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration check completed successfully.")
		os.Exit(0)
	}

	os.Exit(execute(cfg))
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <capacity> <workers> <source path> <search term>\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

// applyArguments copies the four positional arguments over the config.
// The positionals may only be omitted entirely when a config file
// supplies the values instead.
func applyArguments(cfg *config.Config, args []string, haveConfig bool) error {
	if len(args) == 0 {
		if !haveConfig {
			return errors.New("missing required arguments")
		}
		return nil
	}
	if len(args) != 4 {
		return fmt.Errorf("expected 4 arguments, got %d", len(args))
	}
	capacity, err := strconv.Atoi(args[0])
	if err != nil || capacity <= 0 {
		return fmt.Errorf("capacity must be a positive integer, got %q", args[0])
	}
	workers, err := strconv.Atoi(args[1])
	if err != nil || workers <= 0 {
		return fmt.Errorf("workers must be a positive integer, got %q", args[1])
	}
	if args[2] == "" {
		return errors.New("source path must not be empty")
	}
	if args[3] == "" {
		return errors.New("search term must not be empty")
	}
	cfg.Capacity = capacity
	cfg.Workers = workers
	cfg.Source = args[2]
	cfg.Term = args[3]
	return nil
}

func execute(cfg *config.Config) int {
	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
		return 1
	}
	defer cleanup()
	log.Logger = logger

	collector, err := newTelemetryCollector(cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
		collector = telemetry.Noop()
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Listen != "" {
		listener, err := telemetry.NewListener(cfg.Telemetry.Listen, nil, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to start telemetry listener")
		} else {
			defer listener.Close()
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine, err := service.New(cfg, logger, service.WithCollector(collector))
	if err != nil {
		logger.Error().Err(err).Msg("failed to create engine")
		return 1
	}

	summary, runErr := engine.Run(ctx)
	if err := report.Render(os.Stdout, summary); err != nil {
		logger.Error().Err(err).Msg("failed to render report")
	}
	if runErr != nil {
		logger.Error().Err(runErr).Msg("run failed")
		return 1
	}
	return 0
}

func newTelemetryCollector(cfg config.TelemetryConfig) (telemetry.Collector, error) {
	if !cfg.Enabled {
		return telemetry.Noop(), nil
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "prometheus":
		collector, err := telemetry.NewPrometheusCollector(nil)
		if err != nil {
			return nil, err
		}
		return collector, nil
	default:
		return telemetry.Noop(), fmt.Errorf("unsupported telemetry provider %q", cfg.Provider)
	}
}
