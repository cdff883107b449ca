package driver

import (
	"fmt"
	"sync"

	"github.com/optiqlab/scopecore/internal/types"
	"go.uber.org/zap"
)

// SimFilterWheel is a simulated discrete-position instrument.
type SimFilterWheel struct {
	logger *zap.Logger
	defs   []types.PropertyDefinition

	mu    sync.Mutex
	props map[string]any
}

func NewSimFilterWheel(profile *types.InstrumentProfileDefinition, logger *zap.Logger) *SimFilterWheel {
	w := &SimFilterWheel{
		logger: logger,
		defs:   profile.Properties,
		props:  make(map[string]any),
	}
	for _, def := range profile.Properties {
		if def.Default != nil {
			w.props[def.Name] = def.Default
		}
	}
	return w
}

func (w *SimFilterWheel) Kind() types.InstrumentKind { return types.KindFilterWheel }

func (w *SimFilterWheel) Properties() []types.PropertyDefinition { return w.defs }

func (w *SimFilterWheel) ApplyProperty(name string, value any) error {
	def, ok := propertyDef(w.defs, name)
	if !ok {
		return fmt.Errorf("unknown property: %s", name)
	}
	if def.Access == types.AccessTypeReadOnly {
		return fmt.Errorf("property %s is read-only", name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if def.DataType == types.DataTypeInt {
		pos := asInt(value)
		if def.Min != nil && pos < int(*def.Min) {
			return fmt.Errorf("position %d below minimum %d", pos, int(*def.Min))
		}
		if def.Max != nil && pos > int(*def.Max) {
			return fmt.Errorf("position %d above maximum %d", pos, int(*def.Max))
		}
		w.props[name] = pos
		return nil
	}
	w.props[name] = value
	return nil
}

func (w *SimFilterWheel) GetProperty(name string) (any, error) {
	if _, ok := propertyDef(w.defs, name); !ok {
		return nil, fmt.Errorf("unknown property: %s", name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.props[name], nil
}

func (w *SimFilterWheel) Recover() error { return nil }

func (w *SimFilterWheel) Shutdown() error { return nil }
