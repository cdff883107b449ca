package device

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/optiqlab/scopecore/internal/driver"
	"github.com/optiqlab/scopecore/internal/types"
	"go.uber.org/zap"
)

// Device is one hosted instrument: a stable name, a profile, and the
// driver that talks to the hardware. The hosted set is fixed at server
// startup.
type Device struct {
	ID      uuid.UUID
	Name    string
	Profile *types.InstrumentProfileDefinition

	drv    driver.Driver
	logger *zap.Logger
}

func NewDevice(name string, profile *types.InstrumentProfileDefinition, drv driver.Driver, logger *zap.Logger) *Device {
	return &Device{
		ID:      uuid.New(),
		Name:    name,
		Profile: profile,
		drv:     drv,
		logger:  logger,
	}
}

func (d *Device) Kind() types.InstrumentKind { return d.drv.Kind() }

func (d *Device) Info() types.DeviceInfo {
	return types.DeviceInfo{
		ID:      d.ID,
		Name:    d.Name,
		Kind:    d.drv.Kind(),
		Profile: d.Profile.Profile.ID,
	}
}

func (d *Device) Properties() []types.PropertyDefinition {
	return d.drv.Properties()
}

// GetProperty reads one named property from the driver.
func (d *Device) GetProperty(name string) (any, error) {
	value, err := d.drv.GetProperty(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnsupportedOperation, err)
	}
	return value, nil
}

// SetProperty writes one named property through the driver. DataDevice
// overrides this with the acquisition-phase check.
func (d *Device) SetProperty(name string, value any) error {
	if err := d.drv.ApplyProperty(name, value); err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnsupportedOperation, err)
	}
	d.logger.Info("Property applied",
		zap.String("device", d.Name),
		zap.String("property", name),
		zap.Any("value", value))
	return nil
}

func (d *Device) Shutdown() error {
	return d.drv.Shutdown()
}
