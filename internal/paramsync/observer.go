package paramsync

import (
	"time"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"github.com/google/uuid"
)

// Observer receives flushed snapshots. Implementations are called with the
// coordinator lock held and must not block.
type Observer interface {
	SetParameters(params []types.Parameter)
	SetMetadataLoaded(loaded bool)
	SetLoadedCount(n int)
	// SetTotalCount receives 0 while the total is unknown.
	SetTotalCount(n int)
}

// CompletionListener is notified once per pass when the set is complete.
// It is called without the coordinator lock held.
type CompletionListener interface {
	OnComplete(snapshot Snapshot)
}

// Requester sends outbound requests to the autopilot. Calls must not block
// on the network.
type Requester interface {
	RequestParameterList() error
	SetParameter(name string, value float64, paramType types.ParamType) error
}

// VersionRequester is implemented by requesters that can ask the autopilot
// for AUTOPILOT_VERSION.
type VersionRequester interface {
	RequestAutopilotVersion() error
}

// Snapshot is a consistent view of one synchronization pass.
type Snapshot struct {
	SessionID     uuid.UUID         `json:"session_id"`
	State         State             `json:"state"`
	Parameters    []types.Parameter `json:"parameters"`
	LoadedCount   int               `json:"loaded_count"`
	TotalCount    *int              `json:"total_count,omitempty"`
	MetadataReady bool              `json:"metadata_ready"`
	Identity      vehicle.Identity  `json:"identity"`
	TakenAt       time.Time         `json:"taken_at"`
}

// NoopObserver discards snapshots.
type NoopObserver struct{}

func (NoopObserver) SetParameters([]types.Parameter) {}
func (NoopObserver) SetMetadataLoaded(bool)          {}
func (NoopObserver) SetLoadedCount(int)              {}
func (NoopObserver) SetTotalCount(int)               {}

var _ Observer = NoopObserver{}

// CompletionOnly adapts a CompletionListener to an Observer that ignores
// flushes, so it can be combined with others in a MultiObserver.
func CompletionOnly(l CompletionListener) Observer {
	return completionOnly{CompletionListener: l}
}

type completionOnly struct {
	NoopObserver
	CompletionListener
}

// MultiObserver forwards every call to all observers in order.
type MultiObserver struct {
	observers []Observer
}

func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) SetParameters(params []types.Parameter) {
	for _, o := range m.observers {
		o.SetParameters(params)
	}
}

func (m *MultiObserver) SetMetadataLoaded(loaded bool) {
	for _, o := range m.observers {
		o.SetMetadataLoaded(loaded)
	}
}

func (m *MultiObserver) SetLoadedCount(n int) {
	for _, o := range m.observers {
		o.SetLoadedCount(n)
	}
}

func (m *MultiObserver) SetTotalCount(n int) {
	for _, o := range m.observers {
		o.SetTotalCount(n)
	}
}

// OnComplete forwards to the observers that also listen for completion.
func (m *MultiObserver) OnComplete(snapshot Snapshot) {
	for _, o := range m.observers {
		if l, ok := o.(CompletionListener); ok {
			l.OnComplete(snapshot)
		}
	}
}
