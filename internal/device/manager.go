package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/optiqlab/scopecore/internal/driver"
	"github.com/optiqlab/scopecore/internal/profiles"
	"github.com/optiqlab/scopecore/internal/types"
	"go.uber.org/zap"
)

// Manager hosts the fixed set of named devices for one server process.
// Devices are added during startup from the instrument roster and not
// mutable at runtime.
type Manager struct {
	loader   *profiles.Loader
	recorder Recorder
	logger   *zap.Logger

	mu      sync.RWMutex
	devices map[string]*Device
	data    map[string]*DataDevice
}

func NewManager(loader *profiles.Loader, recorder Recorder, logger *zap.Logger) *Manager {
	return &Manager{
		loader:   loader,
		recorder: recorder,
		logger:   logger,
		devices:  make(map[string]*Device),
		data:     make(map[string]*DataDevice),
	}
}

// AddInstrument loads the named profile, builds the driver and hosts
// the device under the given stable name.
func (m *Manager) AddInstrument(name, profileRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[name]; exists {
		return fmt.Errorf("device name already hosted: %s", name)
	}

	profile, err := m.loader.Load(profileRef)
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", profileRef, err)
	}

	drv, err := driver.New(profile, m.logger)
	if err != nil {
		return fmt.Errorf("failed to create driver for %s: %w", name, err)
	}

	if src, ok := drv.(driver.FrameSource); ok {
		dd := NewDataDevice(name, profile, src, m.recorder, m.logger)
		m.devices[name] = dd.Device
		m.data[name] = dd
	} else {
		m.devices[name] = NewDevice(name, profile, drv, m.logger)
	}

	m.logger.Info("Device hosted",
		zap.String("device", name),
		zap.String("profile", profileRef),
		zap.String("kind", string(drv.Kind())))
	return nil
}

// Get returns the device hosted under name.
func (m *Manager) Get(name string) (*Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dev, exists := m.devices[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownDevice, name)
	}
	return dev, nil
}

// GetData returns the frame-producing device hosted under name.
// Devices without trigger-target capability reject the lookup.
func (m *Manager) GetData(name string) (*DataDevice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if dd, exists := m.data[name]; exists {
		return dd, nil
	}
	if _, exists := m.devices[name]; exists {
		return nil, fmt.Errorf("%w: %s does not produce data", types.ErrUnsupportedOperation, name)
	}
	return nil, fmt.Errorf("%w: %s", types.ErrUnknownDevice, name)
}

// SetProperty routes a property write to the device, applying the
// acquisition-phase rules for frame-producing devices.
func (m *Manager) SetProperty(name, property string, value any) error {
	m.mu.RLock()
	dd, isData := m.data[name]
	dev, exists := m.devices[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", types.ErrUnknownDevice, name)
	}
	if isData {
		return dd.SetProperty(property, value)
	}
	return dev.SetProperty(property, value)
}

// List returns all hosted devices ordered by name.
func (m *Manager) List() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Device, 0, len(m.devices))
	for _, dev := range m.devices {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DataDevices returns the frame-producing subset ordered by name.
func (m *Manager) DataDevices() []*DataDevice {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*DataDevice, 0, len(m.data))
	for _, dd := range m.data {
		out = append(out, dd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// ShutdownAll stops every hosted device. A failing device does not
// prevent the others from shutting down.
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, dd := range m.data {
		if err := dd.Shutdown(); err != nil {
			m.logger.Error("Failed to shut down device",
				zap.String("device", name),
				zap.Error(err))
		}
		delete(m.devices, name)
	}
	for name, dev := range m.devices {
		if err := dev.Shutdown(); err != nil {
			m.logger.Error("Failed to shut down device",
				zap.String("device", name),
				zap.Error(err))
		}
	}
	m.devices = make(map[string]*Device)
	m.data = make(map[string]*DataDevice)
}
