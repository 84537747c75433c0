package phase

import (
	"fmt"
	"time"
)

// Config controls the cycler's timing.
type Config struct {
	MinCycle     time.Duration // lower bound of a phase segment, inclusive
	MaxCycle     time.Duration // upper bound of a phase segment, exclusive
	PollInterval time.Duration // how often the cycler checks elapsed time
}

// DefaultConfig holds each phase for 4 to 6 seconds and polls every
// millisecond.
func DefaultConfig() Config {
	return Config{
		MinCycle:     4 * time.Second,
		MaxCycle:     6 * time.Second,
		PollInterval: time.Millisecond,
	}
}

// Validate reports whether the config can drive a cycler.
func (c Config) Validate() error {
	if c.MinCycle <= 0 {
		return fmt.Errorf("min cycle must be positive, got %s", c.MinCycle)
	}
	if c.MaxCycle <= c.MinCycle {
		return fmt.Errorf("max cycle (%s) must be greater than min cycle (%s)", c.MaxCycle, c.MinCycle)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}
