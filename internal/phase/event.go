// internal/phase/event.go

package phase

import "time"

// Flip is emitted by the cycler each time a light changes phase.
type Flip struct {
	Light string        // name of the controller that flipped
	Seq   uint64        // 1 for the first flip of a controller, then +1
	Phase Phase         // phase after the flip
	Time  time.Time     // when the new phase was published
	Held  time.Duration // drawn duration of the segment that just ended
}
