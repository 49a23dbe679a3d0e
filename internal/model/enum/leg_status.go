package enum

// LegStatus is the leg lifecycle state. Transitions are cyclic:
// no_position -> entered -> exited -> no_position.
type LegStatus string

const (
	LegStatusNoPosition LegStatus = "no_position"
	LegStatusEntered    LegStatus = "entered"
	LegStatusExited     LegStatus = "exited"
)

func (s LegStatus) IsAvailable() bool {
	switch s {
	case LegStatusNoPosition, LegStatusEntered, LegStatusExited:
		return true
	default:
		return false
	}
}
