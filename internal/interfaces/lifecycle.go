package interfaces

import (
	"context"

	"github.com/KevinKickass/ParamBridge/internal/config"
	"github.com/KevinKickass/ParamBridge/internal/paramsync"
	"github.com/KevinKickass/ParamBridge/internal/storage"
	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/google/uuid"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string `json:"state"`
	SyncState        string `json:"sync_state"`
	BridgeConnected  bool   `json:"bridge_connected"`
	FramesReceived   uint64 `json:"frames_received"`
	FramesDropped    uint64 `json:"frames_dropped"`
	WebSocketClients int    `json:"websocket_clients"`
	Vehicle          string `json:"vehicle"`
	Error            string `json:"error,omitempty"`
}

// ParameterSync is the parameter session the API operates on
type ParameterSync interface {
	Snapshot() paramsync.Snapshot
	Status() paramsync.Status
	Parameter(name string) (types.Parameter, bool)
	SetParameter(ctx context.Context, name string, value float64) error
	Reset()
	RequestParameterList()
	SetRestarting(restarting bool)
}

// SnapshotReader reads persisted parameter sets
type SnapshotReader interface {
	ListSnapshots(ctx context.Context, limit int) ([]storage.SnapshotSummary, error)
	LoadSnapshot(ctx context.Context, id uuid.UUID) (*storage.Snapshot, error)
}

type LifecycleManager interface {
	Config() *config.Config
	Sync() ParameterSync
	// Snapshots is nil when persistence is disabled
	Snapshots() SnapshotReader
	GetCurrentStatus() SystemStatus
	Shutdown(ctx context.Context) error
}
