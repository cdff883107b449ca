package driver

import (
	"fmt"
	"sync"

	"github.com/optiqlab/scopecore/internal/types"
	"go.uber.org/zap"
)

// SimLaser is a simulated power-controllable light source. Requested
// power is clipped to the physical range declared in the profile, the
// way a real driver clips to hardware limits.
type SimLaser struct {
	logger *zap.Logger
	defs   []types.PropertyDefinition

	mu    sync.Mutex
	props map[string]any
}

func NewSimLaser(profile *types.InstrumentProfileDefinition, logger *zap.Logger) *SimLaser {
	l := &SimLaser{
		logger: logger,
		defs:   profile.Properties,
		props:  make(map[string]any),
	}
	for _, def := range profile.Properties {
		if def.Default != nil {
			l.props[def.Name] = def.Default
		}
	}
	return l
}

func (l *SimLaser) Kind() types.InstrumentKind { return types.KindLaser }

func (l *SimLaser) Properties() []types.PropertyDefinition { return l.defs }

func (l *SimLaser) ApplyProperty(name string, value any) error {
	def, ok := propertyDef(l.defs, name)
	if !ok {
		return fmt.Errorf("unknown property: %s", name)
	}
	if def.Access == types.AccessTypeReadOnly {
		return fmt.Errorf("property %s is read-only", name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch def.DataType {
	case types.DataTypeFloat64:
		v := asFloat(value)
		if def.Min != nil && v < *def.Min {
			v = *def.Min
		}
		if def.Max != nil && v > *def.Max {
			v = *def.Max
		}
		l.props[name] = v
	case types.DataTypeBool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("property %s expects bool, got %T", name, value)
		}
		l.props[name] = b
	default:
		l.props[name] = value
	}
	return nil
}

func (l *SimLaser) GetProperty(name string) (any, error) {
	if _, ok := propertyDef(l.defs, name); !ok {
		return nil, fmt.Errorf("unknown property: %s", name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.props[name], nil
}

func (l *SimLaser) Recover() error { return nil }

func (l *SimLaser) Shutdown() error {
	// Emission off on shutdown.
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.props["emission"]; ok {
		l.props["emission"] = false
	}
	return nil
}
