package sim

import "trafficsig/internal/phase"

// Agent is a participant in the simulation.
type Agent interface {
	// Name identifies the agent in logs and events.
	Name() string

	// Simulate starts the agent's background behavior. It must only be
	// called once.
	Simulate() error

	// Observe describes the agent's current state without blocking.
	Observe() string
}

var _ Agent = (*phase.Controller)(nil)
