// internal/sim/world.go

package sim

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"trafficsig/internal/phase"
	"trafficsig/internal/registry"
)

// World owns a set of traffic lights and the registry their cyclers run in.
type World struct {
	id       uuid.UUID
	cfg      Config
	registry *registry.Registry
	lights   []*phase.Controller
	events   chan phase.Flip // flips from every light, consumed by Run
	dropped  atomic.Uint64   // flips not delivered because events was full
	logger   *zap.Logger

	// logging-related
	csvMu     sync.Mutex // protects csvFile and csvWriter
	csvFile   *os.File
	csvWriter *csv.Writer
}

// NewWorld creates cfg.Lights controllers that are all Red and not yet
// cycling. Extra options are applied to every controller.
func NewWorld(ctx context.Context, cfg Config, logger *zap.Logger, opts ...phase.Option) (*World, error) {
	if cfg.Lights <= 0 {
		return nil, fmt.Errorf("invalid world config: need at least one light, got %d", cfg.Lights)
	}
	if err := cfg.Phase().Validate(); err != nil {
		return nil, fmt.Errorf("invalid world config: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.New()
	logger = logger.With(zap.Stringer("run_id", id))

	w := &World{
		id:       id,
		cfg:      cfg,
		registry: registry.New(ctx, logger),
		events:   make(chan phase.Flip, 256), // buffered channel for flip events
		logger:   logger,
	}

	for i := 1; i <= cfg.Lights; i++ {
		o := append([]phase.Option{
			phase.WithConfig(cfg.Phase()),
			phase.WithLogger(logger),
			phase.WithObserver(w.publish),
		}, opts...)

		w.lights = append(w.lights, phase.NewController(
			fmt.Sprintf("light-%d", i),
			w.registry,
			o...,
		))
	}

	return w, nil
}

// ID returns the unique ID of this run.
func (w *World) ID() uuid.UUID { return w.id }

// Lights returns the world's traffic lights.
func (w *World) Lights() []*phase.Controller { return w.lights }

// Agents returns every participant in the world.
func (w *World) Agents() []Agent {
	agents := make([]Agent, 0, len(w.lights))
	for _, l := range w.lights {
		agents = append(agents, l)
	}
	return agents
}

// Events exposes the read-only stream of flips (optional consumers).
//
// Run also consumes this stream; use one or the other. Flips that arrive
// while the stream is full are dropped, see DroppedEvents.
func (w *World) Events() <-chan phase.Flip { return w.events }

// DroppedEvents returns the number of flips that were not delivered to
// Events because nobody was draining it.
func (w *World) DroppedEvents() uint64 { return w.dropped.Load() }

// Registry returns the registry that owns the world's tasks.
func (w *World) Registry() *registry.Registry { return w.registry }

// Spawn runs fn as a task of the world, so it is joined at shutdown.
func (w *World) Spawn(name string, fn func(ctx context.Context) error) error {
	_, err := w.registry.Go(name, fn)
	return err
}

// EnableCSVLogging opens the given file path for CSV logging of flips.
// Must be called before Run().
func (w *World) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)

	// write header
	if err := cw.Write([]string{"timestamp", "run_id", "light", "seq", "phase", "held_ms"}); err != nil {
		f.Close()
		return err
	}
	cw.Flush()

	w.csvMu.Lock()
	w.csvFile = f
	w.csvWriter = cw
	w.csvMu.Unlock()
	return nil
}

// Start begins simulating every agent.
func (w *World) Start() error {
	var errs []error
	for _, a := range w.Agents() {
		if err := a.Simulate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run logs each flip until ctx is done.
func (w *World) Run(ctx context.Context) error {
	defer w.closeCSV()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-w.events:
			if err := w.handleEvent(f); err != nil {
				return err
			}
		}
	}
}

// Shutdown stops every task started in the world, waits for them, and
// closes the CSV log if one is open.
func (w *World) Shutdown() error {
	err := w.registry.Shutdown()
	w.closeCSV()

	for _, a := range w.Agents() {
		w.logger.Info("final state", zap.String("agent", a.Observe()))
	}

	return err
}

// publish is the observer installed on every light. It runs on the light's
// cycler, so it must never block.
func (w *World) publish(_ context.Context, f phase.Flip) {
	select {
	case w.events <- f:
	default:
		n := w.dropped.Add(1)
		w.logger.Debug(
			"flip event dropped, events stream is full",
			zap.String("light", f.Light),
			zap.Uint64("seq", f.Seq),
			zap.Uint64("dropped", n),
		)
	}
}

func (w *World) handleEvent(f phase.Flip) error {
	w.logger.Info(
		"phase changed",
		zap.String("light", f.Light),
		zap.Stringer("phase", f.Phase),
		zap.Uint64("seq", f.Seq),
		zap.Duration("held", f.Held),
	)

	w.csvMu.Lock()
	defer w.csvMu.Unlock()

	// CSV output
	if w.csvWriter != nil {
		rec := []string{
			f.Time.Format(time.RFC3339Nano),
			w.id.String(),
			f.Light,
			strconv.FormatUint(f.Seq, 10),
			f.Phase.String(),
			strconv.FormatInt(f.Held.Milliseconds(), 10),
		}
		if err := w.csvWriter.Write(rec); err != nil {
			return fmt.Errorf("unable to write CSV record: %w", err)
		}
		w.csvWriter.Flush()
		if err := w.csvWriter.Error(); err != nil {
			return fmt.Errorf("unable to flush CSV record: %w", err)
		}
	}

	return nil
}

func (w *World) closeCSV() {
	w.csvMu.Lock()
	defer w.csvMu.Unlock()

	if w.csvFile == nil {
		return
	}

	w.csvWriter.Flush()
	if err := w.csvFile.Close(); err != nil {
		w.logger.Warn("unable to close CSV file", zap.Error(err))
	}
	w.csvFile, w.csvWriter = nil, nil
}
