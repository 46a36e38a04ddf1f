package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	service "github.com/okian/sensorboard/internal/app"
	"github.com/okian/sensorboard/internal/config"
	"github.com/okian/sensorboard/internal/sensorcli"
	"github.com/okian/sensorboard/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Logs go to stderr so command output on stdout stays machine readable.
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to setup logging:", err)
		stop()
		os.Exit(1)
	}
	// Only warnings and errors; SENSOR_CLI_LOG_LEVEL overrides.
	level := os.Getenv("SENSOR_CLI_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	_ = logger.SetLevelString(level)
	log := logger.Get().Named("sensor-cli")

	cli := &sensorcli.CLI{
		Out:    os.Stdout,
		Err:    os.Stderr,
		Open:   openService(log),
		Prompt: sensorcli.TerminalPrompt(os.Stdin, os.Stderr),
		Logger: log,
	}

	if err := cli.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		if errors.Is(err, sensorcli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// openService loads the server configuration and opens the same store,
// cache and publisher the server would.
func openService(log logger.Logger) sensorcli.Opener {
	return func(ctx context.Context) (*service.Service, error) {
		cfg, err := config.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return service.Open(ctx, cfg, log)
	}
}
