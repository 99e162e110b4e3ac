package storage

import (
	"errors"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/google/uuid"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotSummary describes a stored parameter set without its contents
type SnapshotSummary struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	VehicleKind int       `json:"vehicle_kind"`
	Firmware    string    `json:"firmware"`
	Version     string    `json:"version"`
	ParamCount  int       `json:"param_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Snapshot is a stored parameter set
type Snapshot struct {
	SnapshotSummary
	Parameters []types.Parameter `json:"parameters"`
}
