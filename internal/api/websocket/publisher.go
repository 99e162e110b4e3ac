package websocket

import (
	"sync"

	"github.com/KevinKickass/ParamBridge/internal/paramsync"
	"github.com/KevinKickass/ParamBridge/internal/types"
)

// Publisher forwards coordinator flushes to the hub. The counters arrive
// before the parameter list, so both messages go out when the list does.
type Publisher struct {
	hub *Hub

	mu             sync.Mutex
	metadataLoaded bool
	loaded         int
	total          int
}

var (
	_ paramsync.Observer           = (*Publisher)(nil)
	_ paramsync.CompletionListener = (*Publisher)(nil)
)

func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

func (p *Publisher) SetMetadataLoaded(loaded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadataLoaded = loaded
}

func (p *Publisher) SetLoadedCount(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = n
}

func (p *Publisher) SetTotalCount(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = n
}

func (p *Publisher) SetParameters(params []types.Parameter) {
	p.mu.Lock()
	progress := NewSyncProgressMessage(p.loaded, p.total, p.metadataLoaded)
	p.mu.Unlock()

	p.hub.Broadcast(progress)
	p.hub.Broadcast(NewParametersMessage(params))
}

func (p *Publisher) OnComplete(snapshot paramsync.Snapshot) {
	p.hub.Broadcast(NewSyncCompleteMessage(snapshot.SessionID, snapshot.LoadedCount))
}
