package system

import (
	"fmt"

	"github.com/KevinKickass/ParamBridge/internal/config"
	"github.com/KevinKickass/ParamBridge/internal/mavlink"
	"github.com/KevinKickass/ParamBridge/internal/metadata"
	"github.com/KevinKickass/ParamBridge/internal/parameters"
	"github.com/KevinKickass/ParamBridge/internal/paramsync"
	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"go.uber.org/zap"
)

// SyncStack is the bridge connection, vehicle tracker and sync coordinator
// wired to each other.
type SyncStack struct {
	Tracker     *vehicle.Tracker
	Client      *mavlink.Client
	Coordinator *paramsync.Coordinator
}

// NewSyncStack builds the sync components from cfg. observer receives the
// coordinator flushes and may be nil.
func NewSyncStack(cfg *config.Config, observer paramsync.Observer, logger *zap.Logger) (*SyncStack, error) {
	pinned, err := cfg.Vehicle.Identity()
	if err != nil {
		return nil, err
	}

	tracker := vehicle.NewTracker(cfg.Bridge.TargetSystem, cfg.Sync.HeartbeatTimeout, logger.Named("vehicle"))
	tracker.Pin(pinned)

	validator, err := metadata.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to compile metadata schemas: %w", err)
	}
	resolver := metadata.NewService(
		metadata.NewArduPilotSource(metadata.NewDirStore(cfg.Metadata.SearchPaths), validator, logger.Named("metadata")),
		metadata.NewPX4Source(cfg.Metadata.PX4URL, cfg.Metadata.PX4StaticPath, cfg.Metadata.FetchTimeout, validator, logger.Named("metadata")),
		logger.Named("metadata"),
	)

	// The client and the coordinator refer to each other; the client only
	// delivers messages once it runs.
	var coordinator *paramsync.Coordinator
	client := mavlink.NewClient(mavlink.Config{
		URL:             cfg.Bridge.URL,
		SystemID:        cfg.Bridge.SystemID,
		ComponentID:     cfg.Bridge.ComponentID,
		TargetSystem:    cfg.Bridge.TargetSystem,
		TargetComponent: cfg.Bridge.TargetComponent,
		DialTimeout:     cfg.Bridge.DialTimeout,
		InitialBackoff:  cfg.Bridge.InitialBackoff,
		MaxBackoff:      cfg.Bridge.MaxBackoff,
	}, mavlink.ParamHandlerFunc(func(msg types.ParamMessage) {
		coordinator.HandleMessage(msg)
	}), tracker, logger.Named("mavlink"))

	coordinator = paramsync.NewCoordinator(
		paramsync.Config{
			WatchdogInterval:      cfg.Sync.WatchdogInterval,
			FlushInterval:         cfg.Sync.FlushInterval,
			MetadataCheckInterval: cfg.Sync.MetadataCheckInterval,
			IdentityPollInterval:  cfg.Sync.IdentityPollInterval,
			ResolveTimeout:        cfg.Sync.ResolveTimeout,
			VersionWait:           cfg.Sync.VersionWait,
		},
		parameters.NewCollector(logger.Named("parameters")),
		resolver,
		tracker,
		client,
		observer,
		logger.Named("sync"),
	)

	tracker.SetListener(coordinator)
	client.OnConnect(func() {
		coordinator.RequestVersion()
		coordinator.RequestParameterList()
	})

	return &SyncStack{
		Tracker:     tracker,
		Client:      client,
		Coordinator: coordinator,
	}, nil
}
