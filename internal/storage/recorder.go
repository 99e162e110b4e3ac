package storage

import (
	"context"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/paramsync"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	recorderQueueSize = 4
	saveTimeout       = 10 * time.Second
)

// SnapshotStore persists completed parameter sets
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap paramsync.Snapshot, retention int) (uuid.UUID, error)
}

// Recorder saves every completed sync pass in the background. OnComplete
// never blocks the coordinator; snapshots are dropped when the queue is full.
type Recorder struct {
	store     SnapshotStore
	retention int
	queue     chan paramsync.Snapshot
	logger    *zap.Logger
}

var _ paramsync.CompletionListener = (*Recorder)(nil)

func NewRecorder(store SnapshotStore, retention int, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:     store,
		retention: retention,
		queue:     make(chan paramsync.Snapshot, recorderQueueSize),
		logger:    logger,
	}
}

func (r *Recorder) OnComplete(snap paramsync.Snapshot) {
	select {
	case r.queue <- snap:
	default:
		r.logger.Warn("Snapshot queue full, snapshot dropped",
			zap.String("session_id", snap.SessionID.String()))
	}
}

// Run saves queued snapshots until ctx is cancelled
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-r.queue:
			r.save(ctx, snap)
		}
	}
}

func (r *Recorder) save(ctx context.Context, snap paramsync.Snapshot) {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	id, err := r.store.SaveSnapshot(ctx, snap, r.retention)
	if err != nil {
		r.logger.Error("Failed to save parameter snapshot",
			zap.String("session_id", snap.SessionID.String()),
			zap.Error(err))
		return
	}

	r.logger.Info("Parameter snapshot saved",
		zap.String("snapshot_id", id.String()),
		zap.String("session_id", snap.SessionID.String()),
		zap.Int("count", len(snap.Parameters)))
}
