// Package system wires the parameter bridge together and owns its
// start and shutdown order.
package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/api/rest"
	"github.com/KevinKickass/ParamBridge/internal/api/websocket"
	"github.com/KevinKickass/ParamBridge/internal/auth"
	"github.com/KevinKickass/ParamBridge/internal/config"
	"github.com/KevinKickass/ParamBridge/internal/interfaces"
	"github.com/KevinKickass/ParamBridge/internal/mavlink"
	"github.com/KevinKickass/ParamBridge/internal/paramsync"
	"github.com/KevinKickass/ParamBridge/internal/storage"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"go.uber.org/zap"
)

type LifecycleManager struct {
	config      *config.Config
	storage     *storage.PostgresClient
	tracker     *vehicle.Tracker
	coordinator *paramsync.Coordinator
	client      *mavlink.Client
	wsHub       *websocket.Hub
	recorder    *storage.Recorder
	authn       *auth.Authenticator
	logger      *zap.Logger

	restServer *rest.Server

	stateMu      sync.RWMutex
	currentState SystemState
	lastError    error

	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

var _ interfaces.LifecycleManager = (*LifecycleManager)(nil)

// NewLifecycleManager builds every component. db may be nil, in which case
// completed parameter sets are not persisted.
func NewLifecycleManager(db *storage.PostgresClient, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	wsHub := websocket.NewHub(logger.Named("websocket"))
	observers := []paramsync.Observer{websocket.NewPublisher(wsHub)}

	var recorder *storage.Recorder
	if db != nil {
		recorder = storage.NewRecorder(db, cfg.Database.Retention, logger.Named("storage"))
		observers = append(observers, paramsync.CompletionOnly(recorder))
	}

	stack, err := NewSyncStack(cfg, paramsync.NewMultiObserver(observers...), logger)
	if err != nil {
		return nil, err
	}

	if cfg.Auth.Enabled && !cfg.Auth.IsProductionReady() {
		logger.Warn("Using development JWT secret",
			zap.String("env", cfg.Auth.JWTSecretEnv))
	}
	jwtHandler := auth.NewJWTHandler(cfg.Auth.GetJWTSecret(), cfg.Auth.AccessTokenTTL, cfg.Auth.Issuer)

	return &LifecycleManager{
		config:       cfg,
		storage:      db,
		tracker:      stack.Tracker,
		coordinator:  stack.Coordinator,
		client:       stack.Client,
		wsHub:        wsHub,
		recorder:     recorder,
		authn:        auth.NewAuthenticator(jwtHandler, cfg.Auth.Enabled, logger.Named("auth")),
		logger:       logger,
		currentState: StateInitializing,
	}, nil
}

// Start starts the entire system
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.logger.Info("Starting ParamBridge",
		zap.String("bridge_url", lm.config.Bridge.URL),
		zap.Uint8("target_system", lm.config.Bridge.TargetSystem))

	ctx, cancel := context.WithCancel(ctx)
	lm.cancel = cancel

	lm.goRun("websocket hub", func() { lm.wsHub.Run(ctx) })
	if lm.recorder != nil {
		lm.goRun("snapshot recorder", func() { lm.recorder.Run(ctx) })
	}

	if err := lm.coordinator.Start(ctx); err != nil {
		lm.setError(fmt.Errorf("failed to start parameter sync: %w", err))
		return err
	}

	lm.goRun("bridge client", func() {
		if err := lm.client.Run(ctx); err != nil && ctx.Err() == nil {
			lm.logger.Error("Bridge client stopped", zap.Error(err))
		}
	})

	// Start REST API Server
	lm.restServer = rest.NewServer(lm.config, lm, lm.authn, lm.wsHub, lm.logger.Named("rest"))
	if err := lm.restServer.Start(); err != nil {
		lm.setError(fmt.Errorf("failed to start REST API: %w", err))
		return err
	}

	lm.setState(StateRunning)

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Bool("auth_enabled", lm.config.Auth.Enabled),
		zap.Bool("snapshots_enabled", lm.storage != nil))

	return nil
}

func (lm *LifecycleManager) goRun(name string, fn func()) {
	lm.wg.Add(1)
	go func() {
		defer lm.wg.Done()
		fn()
		lm.logger.Debug("Background service stopped", zap.String("service", name))
	}()
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")
		lm.setState(StateStopping)

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var restErr error
	if lm.restServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		restErr = lm.restServer.Shutdown(shutdownCtx)
		cancel()
	}

	lm.coordinator.Stop()
	if lm.cancel != nil {
		lm.cancel()
	}

	// Wait for the background services
	done := make(chan struct{})
	go func() {
		lm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		return fmt.Errorf("shutdown timeout exceeded")
	}

	if restErr != nil {
		return fmt.Errorf("rest api shutdown failed: %w", restErr)
	}

	lm.logger.Info("Graceful shutdown completed")
	return nil
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("Ignoring state change", zap.Error(err))
		return
	}
	lm.currentState = state
}

func (lm *LifecycleManager) setError(err error) {
	lm.logger.Error("System error", zap.Error(err))

	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()
	lm.currentState = StateError
	lm.lastError = err
}

// State returns the lifecycle state
func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	state := lm.currentState
	lastErr := lm.lastError
	lm.stateMu.RUnlock()

	received, dropped := lm.client.Stats()

	status := interfaces.SystemStatus{
		State:            state.String(),
		SyncState:        lm.coordinator.State().String(),
		BridgeConnected:  lm.client.Connected(),
		FramesReceived:   received,
		FramesDropped:    dropped,
		WebSocketClients: lm.wsHub.GetClientCount(),
		Vehicle:          lm.tracker.Identity().String(),
	}
	if lastErr != nil {
		status.Error = lastErr.Error()
	}
	return status
}

// Sync returns the parameter sync coordinator
func (lm *LifecycleManager) Sync() interfaces.ParameterSync {
	return lm.coordinator
}

// Snapshots returns the snapshot store, or nil when persistence is disabled
func (lm *LifecycleManager) Snapshots() interfaces.SnapshotReader {
	if lm.storage == nil {
		return nil
	}
	return lm.storage
}

// Config returns the configuration
func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}
