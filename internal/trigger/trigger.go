package trigger

import "fmt"

// Phase is the acquisition phase of one frame-producing device.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseArmed     Phase = "armed"
	PhaseAcquiring Phase = "acquiring"
	PhaseAborting  Phase = "aborting"
	PhaseFault     Phase = "fault"
)

// Mode describes the acquisition cadence.
type Mode string

const (
	ModeOnce       Mode = "once"
	ModeContinuous Mode = "continuous"
	ModeBulb       Mode = "bulb"
)

// Type describes the class of the triggering signal.
type Type string

const (
	TypeSoftware    Type = "software"
	TypeRisingEdge  Type = "rising_edge"
	TypeFallingEdge Type = "falling_edge"
	TypeLevel       Type = "level"
)

// Combination is one (mode, type) pair a driver declares support for.
type Combination struct {
	Mode Mode
	Type Type
}

func (c Combination) String() string {
	return fmt.Sprintf("(%s, %s)", c.Mode, c.Type)
}

// Hardware reports whether acquisition is initiated by an external
// signal rather than a software trigger call.
func (t Type) Hardware() bool {
	return t != TypeSoftware
}

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOnce, ModeContinuous, ModeBulb:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown trigger mode: %q", s)
}

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeSoftware, TypeRisingEdge, TypeFallingEdge, TypeLevel:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown trigger type: %q", s)
}
