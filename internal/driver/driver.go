package driver

import (
	"fmt"

	"github.com/optiqlab/scopecore/internal/stream"
	"github.com/optiqlab/scopecore/internal/trigger"
	"github.com/optiqlab/scopecore/internal/types"
	"go.uber.org/zap"
)

// Driver is the property surface every instrument driver implements.
// The server core only talks to hardware through this contract.
type Driver interface {
	Kind() types.InstrumentKind

	// ApplyProperty writes one named setting to the hardware. The
	// driver validates and may clip the value to its physical range.
	ApplyProperty(name string, value any) error

	// GetProperty reads one named setting back.
	GetProperty(name string) (any, error)

	// Properties returns the declared property definitions.
	Properties() []types.PropertyDefinition

	// Recover attempts to bring faulted hardware back to an operable
	// state. Called on an explicit reset request.
	Recover() error

	Shutdown() error
}

// FrameSource is the contract of a frame-producing driver. Completed
// frames arrive on the handler from the driver's own timing context;
// the core must never be blocked by it.
type FrameSource interface {
	Driver

	SupportedTriggerCombinations() []trigger.Combination

	// Arm configures the hardware for the given trigger combination.
	Arm(mode trigger.Mode, ttype trigger.Type) error

	// StartCapture begins producing frames for software-initiated
	// modes. Hardware-gated modes produce on the external signal.
	StartCapture() error

	// StopCapture halts frame production. Idempotent.
	StopCapture()

	// SetFrameHandler installs the frame-completion callback. Must be
	// set before the first Arm.
	SetFrameHandler(func(*stream.Frame))

	// SetFaultHandler installs the unrecoverable-error callback.
	SetFaultHandler(func(reason string))
}

// New builds a simulated driver for the profile's instrument kind.
func New(profile *types.InstrumentProfileDefinition, logger *zap.Logger) (Driver, error) {
	switch profile.Kind {
	case types.KindCamera:
		return NewSimCamera(profile, logger)
	case types.KindLaser:
		return NewSimLaser(profile, logger), nil
	case types.KindFilterWheel:
		return NewSimFilterWheel(profile, logger), nil
	default:
		return nil, fmt.Errorf("no driver for instrument kind %q", profile.Kind)
	}
}

// propertyDef finds a property definition by name.
func propertyDef(defs []types.PropertyDefinition, name string) (*types.PropertyDefinition, bool) {
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i], true
		}
	}
	return nil, false
}
