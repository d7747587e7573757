package game

// ActionKind classifies the mutating requests a session can submit, for
// phase admissibility checks.
type ActionKind string

const (
	ActionOrder  ActionKind = "order"
	ActionCovert ActionKind = "covert"
)

// CheckPhase is the single gate deciding whether an action class is
// admissible in a phase: orders trade by day, covert moves queue by
// night. It is pure so the same rule serves the engine and its tests.
func CheckPhase(phase Phase, kind ActionKind) error {
	switch kind {
	case ActionOrder:
		if phase != PhaseDay {
			return ErrWrongPhase
		}
	case ActionCovert:
		if phase != PhaseNight {
			return ErrWrongPhase
		}
	default:
		return ErrWrongPhase
	}
	return nil
}
