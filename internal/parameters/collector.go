// Package parameters holds the authoritative parameter set of one
// synchronization pass.
package parameters

import (
	"github.com/KevinKickass/ParamBridge/internal/types"
	"go.uber.org/zap"
)

// Collector stores parameters keyed by device index and enriches them
// with the current metadata map.
//
// Collector is not safe for concurrent use; its owner serializes access.
type Collector struct {
	params   map[uint16]*types.Parameter
	metadata types.MetadataMap
	logger   *zap.Logger
}

func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{
		params: make(map[uint16]*types.Parameter),
		logger: logger,
	}
}

// SetMetadata replaces the metadata map used for enrichment. Stored
// parameters are not touched; call ReEnrichAll for that.
func (c *Collector) SetMetadata(m types.MetadataMap) {
	c.metadata = m
}

// HasMetadata reports whether a metadata map is installed.
func (c *Collector) HasMetadata() bool {
	return c.metadata != nil
}

// AddParam enriches p and stores it under its index, replacing any
// previous entry with that index. A stale entry carrying the same name
// under another index is dropped so names stay unique.
func (c *Collector) AddParam(p types.Parameter) {
	if entry, ok := c.metadata.Lookup(p.Name); ok {
		Enrich(&p, entry)
	}
	for idx, existing := range c.params {
		if idx != p.Index && existing.Name == p.Name {
			c.logger.Info("Parameter moved to new index",
				zap.String("name", p.Name),
				zap.Uint16("old_index", idx),
				zap.Uint16("new_index", p.Index))
			delete(c.params, idx)
		}
	}
	c.params[p.Index] = &p
}

// UpdateParam replaces the value of the parameter called name. It
// reports false, and changes nothing, when no such parameter is stored.
func (c *Collector) UpdateParam(name string, value float64) bool {
	for _, p := range c.params {
		if p.Name == name {
			p.Value = types.RoundValue(value)
			return true
		}
	}

	c.logger.Info("Value update for undeclared parameter dropped",
		zap.String("name", name))
	return false
}

// Size returns the number of distinct indices held.
func (c *Collector) Size() int {
	return len(c.params)
}

// ReEnrichAll applies the current metadata map to every stored parameter.
func (c *Collector) ReEnrichAll() {
	if c.metadata == nil {
		return
	}
	for _, p := range c.params {
		if entry, ok := c.metadata.Lookup(p.Name); ok {
			Enrich(p, entry)
		}
	}
}

// Reset discards all stored parameters and the metadata map.
func (c *Collector) Reset() {
	c.params = make(map[uint16]*types.Parameter)
	c.metadata = nil
}

// Get returns a copy of the parameter called name.
func (c *Collector) Get(name string) (types.Parameter, bool) {
	for _, p := range c.params {
		if p.Name == name {
			return *p, true
		}
	}
	return types.Parameter{}, false
}

// List returns copies of all parameters ordered by index.
func (c *Collector) List() []types.Parameter {
	out := make([]types.Parameter, 0, len(c.params))
	for _, p := range c.params {
		out = append(out, *p)
	}
	types.SortParameters(out)
	return out
}
