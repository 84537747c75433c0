// internal/phase/controller.go

package phase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"trafficsig/internal/registry"
	"trafficsig/internal/signal"
)

// ErrAlreadySimulating is returned by Simulate when the cycler has already
// been started.
var ErrAlreadySimulating = errors.New("light is already simulating")

// Spawner starts named background tasks and joins them at shutdown.
type Spawner interface {
	Go(name string, fn func(ctx context.Context) error) (registry.TaskID, error)
}

// phaseChannel is the handoff between the cycler and WaitForGreen.
type phaseChannel interface {
	Send(Phase)
	Receive(ctx context.Context) (Phase, error)
}

// Controller is a traffic light. Once simulated, it flips between Red and
// Green at random intervals on a background task.
type Controller struct {
	name    string
	cfg     Config
	spawner Spawner

	mu    sync.RWMutex // protects phase and flips
	phase Phase
	flips uint64

	signals  phaseChannel
	started  atomic.Bool
	cycle    *cycleSampler
	observer func(context.Context, Flip)
	logger   *zap.Logger
	meters   metric.MeterProvider
	inst     instruments
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig sets the cycler timing. It panics if cfg is invalid.
func WithConfig(cfg Config) Option {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid phase config: %v", err))
	}
	return func(c *Controller) { c.cfg = cfg }
}

// WithLogger sets the logger used by the controller.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMeterProvider sets the provider used to create the controller's
// instruments.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(c *Controller) { c.meters = p }
}

// WithObserver registers fn to be called on the cycler after every flip has
// been published. fn must not block for long, it delays the next segment.
func WithObserver(fn func(context.Context, Flip)) Option {
	return func(c *Controller) { c.observer = fn }
}

// NewController returns a Red light with an empty signal channel. The cycler
// is not started until Simulate is called.
func NewController(name string, spawner Spawner, opts ...Option) *Controller {
	c := &Controller{
		name:    name,
		cfg:     DefaultConfig(),
		spawner: spawner,
		phase:   Red,
		signals: signal.New[Phase](),
		logger:  zap.NewNop(),
		meters:  noop.NewMeterProvider(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(zap.String("light", name))
	c.cycle = newCycleSampler(c.cfg.MinCycle, c.cfg.MaxCycle)
	c.inst = newInstruments(c.meters, name)

	return c
}

// Name returns the light's name.
func (c *Controller) Name() string {
	return c.name
}

// CurrentPhase returns the light's phase without waiting for a change.
func (c *Controller) CurrentPhase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Flips returns the number of phase changes so far.
func (c *Controller) Flips() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flips
}

// Observe describes the light's current state.
func (c *Controller) Observe() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s: %s (flips=%d)", c.name, c.phase, c.flips)
}

// WaitForGreen blocks until the cycler publishes Green. Red notifications are
// discarded.
//
// Only one goroutine may wait on a given light at a time; a concurrent caller
// gets signal.ErrConcurrentReceive.
func (c *Controller) WaitForGreen(ctx context.Context) error {
	for {
		p, err := c.signals.Receive(ctx)
		if err != nil {
			return err
		}
		if p == Green {
			c.inst.waits.Add(ctx, 1, c.inst.attrs)
			return nil
		}
	}
}

// Simulate starts the cycler as a task of the controller's spawner. Only the
// first call has any effect; later calls return ErrAlreadySimulating.
func (c *Controller) Simulate() error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadySimulating
	}

	id, err := c.spawner.Go(c.name+"/cycler", c.cycleThroughPhases)
	if err != nil {
		c.started.Store(false)
		return fmt.Errorf("unable to start cycler for %s: %w", c.name, err)
	}

	c.logger.Debug(
		"cycler started",
		zap.Uint64("task_id", uint64(id)),
		zap.Duration("min_cycle", c.cfg.MinCycle),
		zap.Duration("max_cycle", c.cfg.MaxCycle),
	)

	return nil
}
