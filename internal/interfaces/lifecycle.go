package interfaces

import (
	"context"

	"github.com/optiqlab/scopecore/internal/config"
	"github.com/optiqlab/scopecore/internal/device"
	"github.com/optiqlab/scopecore/internal/storage"
)

// SystemStatus represents the current server state.
type SystemStatus struct {
	State        string         `json:"state"`
	DeviceCount  int            `json:"device_count"`
	DevicePhases map[string]any `json:"device_phases"`
}

type LifecycleManager interface {
	Config() *config.Config
	Storage() *storage.Client
	DeviceManager() *device.Manager
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
