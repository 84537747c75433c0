package registry

import "time"

// State is the lifecycle state of a registered task.
type State int

const (
	StateRunning State = iota
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateFinished:
		return "Finished"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// TaskInfo describes one task started by a Registry.
type TaskInfo struct {
	ID      TaskID
	Name    string
	Started time.Time
	Stopped time.Time // zero while running
	State   State
	Err     error // set when State is StateFailed
}
