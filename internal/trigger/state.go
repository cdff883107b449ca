package trigger

import (
	"fmt"
	"sync"

	"github.com/optiqlab/scopecore/internal/types"
)

// State tracks the acquisition phase of one frame-producing device.
// All transitions happen under a single mutex so a half-applied
// transition is never observable.
type State struct {
	mu          sync.Mutex
	phase       Phase
	mode        Mode
	ttype       Type
	seq         uint64
	supported   map[Combination]bool
	faultReason string
}

// NewState creates a state machine in Idle accepting only the given
// (mode, type) combinations at arm time.
func NewState(supported []Combination) *State {
	set := make(map[Combination]bool, len(supported))
	for _, c := range supported {
		set[c] = true
	}
	return &State{
		phase:     PhaseIdle,
		supported: set,
	}
}

// Arm moves Idle -> Armed and resets the frame sequence counter.
func (s *State) Arm(mode Mode, ttype Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseFault {
		return fmt.Errorf("%w: %s", types.ErrDeviceFault, s.faultReason)
	}
	if s.phase != PhaseIdle {
		return fmt.Errorf("%w: cannot arm while %s", types.ErrDeviceBusy, s.phase)
	}
	if !s.supported[Combination{Mode: mode, Type: ttype}] {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfiguration,
			Combination{Mode: mode, Type: ttype})
	}

	s.phase = PhaseArmed
	s.mode = mode
	s.ttype = ttype
	s.seq = 0
	return nil
}

// Trigger starts an acquisition cycle for software-initiated modes.
// Hardware-gated configurations reject the call; initiation comes from
// the external signal, never the caller.
func (s *State) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseFault {
		return fmt.Errorf("%w: %s", types.ErrDeviceFault, s.faultReason)
	}
	if s.ttype.Hardware() || s.mode == ModeBulb {
		if s.phase == PhaseArmed || s.phase == PhaseAcquiring {
			return fmt.Errorf("%w: %s acquisition is hardware gated",
				types.ErrWrongTriggerMode, Combination{Mode: s.mode, Type: s.ttype})
		}
	}
	switch s.phase {
	case PhaseArmed:
		s.phase = PhaseAcquiring
		return nil
	case PhaseAcquiring:
		if s.mode == ModeContinuous {
			return nil
		}
		return fmt.Errorf("%w: %s mode accepts a single trigger",
			types.ErrWrongTriggerMode, s.mode)
	default:
		return fmt.Errorf("%w: cannot trigger while %s", types.ErrWrongTriggerMode, s.phase)
	}
}

// NotifyFrame records one completed acquisition event. It returns the
// sequence number stamped onto the frame and whether the frame was
// accepted; stray driver callbacks arriving outside an acquisition are
// rejected so they never reach subscribers.
func (s *State) NotifyFrame() (seq uint64, accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseAcquiring:
		// normal path
	case PhaseArmed:
		// Hardware-gated acquisition starts on the external signal,
		// observed here as the first completed frame.
		if !s.ttype.Hardware() && s.mode != ModeBulb {
			return 0, false
		}
		s.phase = PhaseAcquiring
	default:
		return 0, false
	}

	s.seq++
	seq = s.seq
	if s.mode == ModeOnce {
		s.phase = PhaseIdle
	}
	return seq, true
}

// Stop gracefully returns the device to Idle. Idempotent when already
// Idle.
func (s *State) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseFault {
		return fmt.Errorf("%w: %s", types.ErrDeviceFault, s.faultReason)
	}
	s.phase = PhaseIdle
	return nil
}

// Abort tears down an in-progress acquisition immediately. An in-flight
// frame may be discarded. Idempotent when already Idle.
func (s *State) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseFault {
		return fmt.Errorf("%w: %s", types.ErrDeviceFault, s.faultReason)
	}
	if s.phase == PhaseArmed || s.phase == PhaseAcquiring {
		s.phase = PhaseAborting
	}
	s.phase = PhaseIdle
	return nil
}

// Fault forces the terminal fault phase from any state. Only Reset
// leaves it.
func (s *State) Fault(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = PhaseFault
	s.faultReason = reason
}

// Reset returns a faulted device to Idle after driver recovery.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = PhaseIdle
	s.faultReason = ""
}

// Supported reports whether the (mode, type) pair is accepted at arm time.
func (s *State) Supported(mode Mode, ttype Type) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supported[Combination{Mode: mode, Type: ttype}]
}

func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *State) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *State) Type() Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttype
}

// Sequence returns the number of frames produced since the last arm.
func (s *State) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *State) FaultReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faultReason
}
