package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/optiqlab/scopecore/internal/api/rest"
	"github.com/optiqlab/scopecore/internal/auth"
	"github.com/optiqlab/scopecore/internal/config"
	"github.com/optiqlab/scopecore/internal/device"
	"github.com/optiqlab/scopecore/internal/interfaces"
	"github.com/optiqlab/scopecore/internal/profiles"
	"github.com/optiqlab/scopecore/internal/storage"
	"go.uber.org/zap"
)

// LifecycleManager wires the config, storage, device manager and API
// server together and owns startup/shutdown ordering.
type LifecycleManager struct {
	config        *config.Config
	storage       *storage.Client
	deviceManager *device.Manager
	authService   *auth.AuthService
	logger        *zap.Logger

	restServer *rest.Server

	stateMu      sync.RWMutex
	currentState SystemState

	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewLifecycleManager(storage *storage.Client, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	loader, err := profiles.NewLoader(cfg.Profiles.SearchPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile loader: %w", err)
	}

	deviceManager := device.NewManager(loader, storage, logger)
	authService := auth.NewAuthService(cfg.Auth, storage, logger)

	return &LifecycleManager{
		config:        cfg,
		storage:       storage,
		deviceManager: deviceManager,
		authService:   authService,
		logger:        logger,
		currentState:  StateInitializing,
		shutdownChan:  make(chan struct{}),
	}, nil
}

func (lm *LifecycleManager) Config() *config.Config { return lm.config }

func (lm *LifecycleManager) Storage() *storage.Client { return lm.storage }

func (lm *LifecycleManager) DeviceManager() *device.Manager { return lm.deviceManager }

func (lm *LifecycleManager) AuthService() *auth.AuthService { return lm.authService }

// Start loads the instrument roster and brings up the API server.
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting scopecore device server")
	lm.setState(StateInitializing)

	if err := lm.loadRoster(); err != nil {
		lm.setState(StateError)
		return err
	}

	lm.restServer = rest.NewServer(lm.config, lm, lm.logger, lm.authService)
	if err := lm.restServer.Start(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start API server: %w", err)
	}

	lm.setState(StateRunning)

	lm.logger.Info("Server started",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Int("devices", lm.deviceManager.Count()))
	return nil
}

// loadRoster hosts every instrument named in the roster file. The set
// is fixed for the lifetime of the process.
func (lm *LifecycleManager) loadRoster() error {
	roster, err := config.LoadRoster(lm.config.Roster.Path)
	if err != nil {
		return fmt.Errorf("failed to load instrument roster: %w", err)
	}

	lm.logger.Info("Loading instrument roster",
		zap.String("path", lm.config.Roster.Path),
		zap.Int("count", len(roster.Instruments)))

	for _, inst := range roster.Instruments {
		if err := lm.deviceManager.AddInstrument(inst.Name, inst.Profile); err != nil {
			return fmt.Errorf("failed to host %s: %w", inst.Name, err)
		}
	}
	return nil
}

// GetCurrentStatus reports the server state and the phase of every
// frame-producing device.
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	state := lm.currentState
	lm.stateMu.RUnlock()

	phases := make(map[string]any)
	for _, dd := range lm.deviceManager.DataDevices() {
		phases[dd.Name] = map[string]any{
			"phase":       dd.Phase(),
			"sequence":    dd.Sequence(),
			"subscribers": dd.SubscriberCount(),
		}
	}

	return interfaces.SystemStatus{
		State:        state.String(),
		DeviceCount:  lm.deviceManager.Count(),
		DevicePhases: phases,
	}
}

// Shutdown gracefully stops the API server and every hosted device.
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down server")
		lm.setState(StateStopping)

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
		close(lm.shutdownChan)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// Devices first so in-flight acquisitions and subscriber buffers
	// drain their bookkeeping before storage goes away.
	wg.Add(1)
	go func() {
		defer wg.Done()
		lm.deviceManager.ShutdownAll()
	}()

	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("api shutdown failed: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		lm.logger.Info("Graceful shutdown completed")
		return nil
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		return fmt.Errorf("shutdown timeout exceeded")
	case err := <-errChan:
		return err
	}
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if state == lm.currentState {
		return
	}
	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("State transition rejected", zap.Error(err))
		return
	}

	lm.currentState = state
	lm.logger.Info("Server state changed", zap.String("state", state.String()))
}
