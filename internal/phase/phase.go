// internal/phase/phase.go

package phase

// Phase is the externally visible state of a traffic light.
type Phase int

const (
	Red Phase = iota
	Green
)

// Next returns the phase that follows p.
func (p Phase) Next() Phase {
	if p == Red {
		return Green
	}
	return Red
}

func (p Phase) String() string {
	switch p {
	case Red:
		return "Red"
	case Green:
		return "Green"
	default:
		return "Unknown"
	}
}
