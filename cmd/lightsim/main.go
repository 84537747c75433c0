package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"trafficsig/internal/job"
	"trafficsig/internal/sim"
)

func main() {
	os.Exit(realMain())
}

// realMain returns the process exit code, so deferred calls run before exit.
func realMain() int {
	path := flag.String("config", "config.yml", "path to the YAML config file")
	flag.Parse()

	// Read the configuration
	cfg := sim.Load(*path)

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to build logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("simulation failed", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg sim.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if d := cfg.RunTime(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	w, err := sim.NewWorld(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("loaded config", zap.Any("config", cfg), zap.Stringer("run_id", w.ID()))

	if cfg.CSVPath != "" {
		if err := w.EnableCSVLogging(cfg.CSVPath); err != nil {
			w.Shutdown()
			return fmt.Errorf("unable to enable CSV logging: %w", err)
		}
	}

	if err := w.Start(); err != nil {
		w.Shutdown()
		return err
	}

	// One crossing per light, gated on green.
	for _, l := range w.Lights() {
		name := l.Name()
		if err := w.Spawn(name+"/crossing", job.CrossWhenGreen(l, cfg.CrossTime(), func() {
			logger.Info("crossed", zap.String("light", name))
		})); err != nil {
			w.Shutdown()
			return err
		}
	}

	runErr := w.Run(ctx)
	if err := w.Shutdown(); err != nil {
		return err
	}
	return runErr
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	c := zap.NewDevelopmentConfig()
	c.Level = lvl
	return c.Build()
}
