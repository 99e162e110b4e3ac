// Package paramsync drives parameter synchronization with an autopilot over
// a lossy channel. It routes inbound PARAM_VALUE messages to the collector,
// retries the list request when progress stalls, resolves metadata in the
// background and pushes rate-limited snapshots to an observer.
package paramsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/metadata"
	"github.com/KevinKickass/ParamBridge/internal/parameters"
	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrReadOnly         = errors.New("parameter is read-only")
	ErrOutOfRange       = errors.New("value outside parameter range")
)

// Config holds the coordinator timings.
type Config struct {
	WatchdogInterval      time.Duration
	FlushInterval         time.Duration
	MetadataCheckInterval time.Duration
	IdentityPollInterval  time.Duration
	ResolveTimeout        time.Duration
	// VersionWait bounds how long resolution waits for AUTOPILOT_VERSION
	// once kind and firmware are known.
	VersionWait time.Duration
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		WatchdogInterval:      2 * time.Second,
		FlushInterval:         300 * time.Millisecond,
		MetadataCheckInterval: 5 * time.Second,
		IdentityPollInterval:  time.Second,
		ResolveTimeout:        30 * time.Second,
		VersionWait:           3 * time.Second,
	}
}

// Status is a lightweight view of the coordinator progress.
type Status struct {
	SessionID     uuid.UUID        `json:"session_id"`
	State         State            `json:"state"`
	LoadedCount   int              `json:"loaded_count"`
	TotalCount    *int             `json:"total_count,omitempty"`
	MetadataReady bool             `json:"metadata_ready"`
	Resolving     bool             `json:"resolving"`
	Restarting    bool             `json:"restarting"`
	Epoch         uint64           `json:"epoch"`
	Retries       int              `json:"retries"`
	LastRetry     *time.Time       `json:"last_retry,omitempty"`
	LastFlush     *time.Time       `json:"last_flush,omitempty"`
	Identity      vehicle.Identity `json:"identity"`
	MetadataError string           `json:"metadata_error,omitempty"`
}

// Coordinator owns one parameter synchronization session. A single mutex
// serializes the transport read loop, both scheduled tasks and API calls.
type Coordinator struct {
	cfg       Config
	collector *parameters.Collector
	resolver  metadata.Resolver
	identity  vehicle.Source
	requester Requester
	observer  Observer
	listener  CompletionListener
	clock     Clock
	logger    *zap.Logger

	mu sync.Mutex

	loaded          int
	total           *int
	watchdogLast    int
	lastFlush       time.Time
	completeFlushed bool
	restarting      bool
	retries         int
	lastRetry       time.Time

	sessionID        uuid.UUID
	epoch            uint64
	attempt          uint64
	metadataReady    bool
	metadataSeen     bool
	resolving        bool
	cancelResolve    context.CancelFunc
	resolvedIdentity vehicle.Identity
	metadataErr      error

	running bool
	baseCtx context.Context

	watchdog      *task
	metadataCheck *task
}

// NewCoordinator wires a coordinator. observer may be nil. If the observer
// also implements CompletionListener it is notified on completion.
func NewCoordinator(
	cfg Config,
	collector *parameters.Collector,
	resolver metadata.Resolver,
	identity vehicle.Source,
	requester Requester,
	observer Observer,
	logger *zap.Logger,
) *Coordinator {
	if observer == nil {
		observer = NoopObserver{}
	}

	c := &Coordinator{
		cfg:       cfg,
		collector: collector,
		resolver:  resolver,
		identity:  identity,
		requester: requester,
		observer:  observer,
		clock:     realClock{},
		logger:    logger,
		sessionID: uuid.New(),
		baseCtx:   context.Background(),
	}
	if l, ok := observer.(CompletionListener); ok {
		c.listener = l
	}

	c.watchdog = newTask("watchdog", cfg.WatchdogInterval, c.CheckWatchdog, logger)
	c.metadataCheck = newTask("metadata-check", cfg.MetadataCheckInterval, c.CheckMetadata, logger)

	return c
}

// Start launches the scheduled tasks, the first metadata resolution and
// the initial list request.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already running")
	}
	c.running = true
	c.baseCtx = ctx
	c.startResolutionLocked()
	c.mu.Unlock()

	c.watchdog.Start()
	c.metadataCheck.Start()

	c.logger.Info("Parameter sync started",
		zap.String("session_id", c.sessionID.String()),
		zap.Duration("watchdog_interval", c.cfg.WatchdogInterval),
		zap.Duration("flush_interval", c.cfg.FlushInterval))

	c.RequestParameterList()
	return nil
}

// Stop halts the scheduled tasks and cancels any in-flight resolution.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancelResolutionLocked()
	c.mu.Unlock()

	c.watchdog.Stop()
	c.metadataCheck.Stop()

	c.logger.Info("Parameter sync stopped")
}

// HandleMessage routes one PARAM_VALUE message. A sentinel index marks a
// value-only update; any other index is a declaration.
func (c *Coordinator) HandleMessage(msg types.ParamMessage) {
	var completed *Snapshot

	c.mu.Lock()
	if msg.IsValueUpdate() {
		c.collector.UpdateParam(msg.Name, float64(msg.Value))
	} else {
		c.collector.AddParam(msg.Parameter())
		if msg.Count != nil {
			total := int(*msg.Count)
			c.total = &total
		}
	}
	c.loaded = c.collector.Size()

	now := c.clock.Now()
	complete := c.total != nil && c.loaded >= *c.total
	switch {
	case complete && !c.completeFlushed:
		c.completeFlushed = true
		c.flushLocked(now)
		snap := c.snapshotLocked(now)
		completed = &snap
		c.logger.Info("Parameter set complete",
			zap.String("session_id", c.sessionID.String()),
			zap.Int("count", c.loaded),
			zap.Int("retries", c.retries))
	case now.Sub(c.lastFlush) >= c.cfg.FlushInterval:
		c.flushLocked(now)
	}
	if !complete {
		c.completeFlushed = false
	}
	c.mu.Unlock()

	if completed != nil && c.listener != nil {
		c.listener.OnComplete(*completed)
	}
}

// CheckWatchdog runs one watchdog tick. It re-issues the list request
// when no declaration arrived since the previous tick and the set is
// still incomplete.
func (c *Coordinator) CheckWatchdog() {
	c.RequestVersion()

	c.mu.Lock()
	if c.total != nil && c.loaded >= *c.total {
		c.mu.Unlock()
		return
	}
	if c.restarting {
		c.mu.Unlock()
		return
	}
	if c.loaded > c.watchdogLast {
		c.watchdogLast = c.loaded
		c.mu.Unlock()
		return
	}
	c.retries++
	c.lastRetry = c.clock.Now()
	loaded, retries := c.loaded, c.retries
	c.mu.Unlock()

	c.logger.Debug("Parameter sync stalled, requesting list",
		zap.Int("loaded", loaded),
		zap.Int("retry", retries))

	if err := c.requester.RequestParameterList(); err != nil {
		c.logger.Warn("Failed to request parameter list", zap.Error(err))
	}
}

// CheckMetadata runs one metadata tick. Metadata that became ready since
// the last tick is applied to the held parameters and flushed. A failed or
// outdated resolution is started again.
func (c *Coordinator) CheckMetadata() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.metadataReady && !c.metadataSeen {
		c.metadataSeen = true
		if c.collector.Size() > 0 {
			c.collector.ReEnrichAll()
			c.flushLocked(c.clock.Now())
		}
	}

	if !c.running || c.resolving {
		return
	}
	if !c.metadataReady {
		c.startResolutionLocked()
		return
	}
	current := c.identity.Identity()
	if current.KnownKind() && current.Firmware != vehicle.FirmwareUnknown && current != c.resolvedIdentity {
		c.logger.Info("Vehicle identity changed, resolving metadata again",
			zap.String("previous", c.resolvedIdentity.String()),
			zap.String("current", current.String()))
		c.startResolutionLocked()
	}
}

// Reset returns the coordinator to IDLE. Counters and the collector are
// cleared, the epoch is bumped so in-flight resolutions are discarded and
// the scheduled tasks are restarted.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.loaded = 0
	c.total = nil
	c.watchdogLast = 0
	c.lastFlush = time.Time{}
	c.completeFlushed = false
	c.retries = 0
	c.lastRetry = time.Time{}
	c.collector.Reset()

	c.epoch++
	c.sessionID = uuid.New()
	c.cancelResolutionLocked()
	c.metadataReady = false
	c.metadataSeen = false
	c.metadataErr = nil
	c.resolvedIdentity = vehicle.Identity{}

	c.flushLocked(c.clock.Now())
	running := c.running
	restarting := c.restarting
	epoch, session := c.epoch, c.sessionID
	c.mu.Unlock()

	c.logger.Info("Parameter sync reset",
		zap.Uint64("epoch", epoch),
		zap.String("session_id", session.String()))

	if !running {
		return
	}

	c.watchdog.Stop()
	c.metadataCheck.Stop()
	c.watchdog.Start()
	c.metadataCheck.Start()

	c.mu.Lock()
	if c.running && c.epoch == epoch {
		c.startResolutionLocked()
	}
	c.mu.Unlock()

	if !restarting {
		c.RequestParameterList()
	}
}

// SetRestarting toggles the device-restarting flag. The watchdog stays
// quiet while it is set.
func (c *Coordinator) SetRestarting(restarting bool) {
	c.mu.Lock()
	changed := c.restarting != restarting
	c.restarting = restarting
	c.mu.Unlock()

	if changed {
		c.logger.Info("Device restarting flag changed", zap.Bool("restarting", restarting))
	}
}

// RequestParameterList asks the device to stream its full parameter list.
func (c *Coordinator) RequestParameterList() {
	if err := c.requester.RequestParameterList(); err != nil {
		c.logger.Warn("Failed to request parameter list", zap.Error(err))
	}
}

// RequestVersion asks the autopilot for its firmware version while the
// version is unknown. It is a no-op for requesters that cannot ask.
func (c *Coordinator) RequestVersion() {
	vr, ok := c.requester.(VersionRequester)
	if !ok || c.identity.Identity().Version.Known() {
		return
	}
	if err := vr.RequestAutopilotVersion(); err != nil {
		c.logger.Debug("Failed to request autopilot version", zap.Error(err))
	}
}

// SetParameter sends a PARAM_SET for a known writable parameter. The new
// value is applied when the device echoes it back.
func (c *Coordinator) SetParameter(ctx context.Context, name string, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	p, ok := c.collector.Get(name)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	if p.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	if p.Range != nil && (value < p.Range.Low || value > p.Range.High) {
		return fmt.Errorf("%w: %s=%v not in [%v, %v]", ErrOutOfRange, name, value, p.Range.Low, p.Range.High)
	}

	if err := c.requester.SetParameter(name, value, p.Type); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}

	c.logger.Info("Parameter set requested",
		zap.String("name", name),
		zap.Float64("value", value))
	return nil
}

// Parameter returns a copy of the named parameter.
func (c *Coordinator) Parameter(name string) (types.Parameter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collector.Get(name)
}

// State returns the current sync state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deriveState(c.loaded, c.total)
}

// Snapshot returns the current parameter set and progress.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(c.clock.Now())
}

// Status returns the progress counters without the parameter list.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		SessionID:     c.sessionID,
		State:         deriveState(c.loaded, c.total),
		LoadedCount:   c.loaded,
		TotalCount:    copyInt(c.total),
		MetadataReady: c.metadataReady,
		Resolving:     c.resolving,
		Restarting:    c.restarting,
		Epoch:         c.epoch,
		Retries:       c.retries,
		Identity:      c.identity.Identity(),
	}
	if !c.lastRetry.IsZero() {
		t := c.lastRetry
		st.LastRetry = &t
	}
	if !c.lastFlush.IsZero() {
		t := c.lastFlush
		st.LastFlush = &t
	}
	if c.metadataErr != nil {
		st.MetadataError = c.metadataErr.Error()
	}
	return st
}

func (c *Coordinator) snapshotLocked(now time.Time) Snapshot {
	return Snapshot{
		SessionID:     c.sessionID,
		State:         deriveState(c.loaded, c.total),
		Parameters:    c.collector.List(),
		LoadedCount:   c.loaded,
		TotalCount:    copyInt(c.total),
		MetadataReady: c.metadataReady,
		Identity:      c.identity.Identity(),
		TakenAt:       now,
	}
}

func (c *Coordinator) flushLocked(now time.Time) {
	c.lastFlush = now

	total := 0
	if c.total != nil {
		total = *c.total
	}

	c.observer.SetMetadataLoaded(c.metadataReady)
	c.observer.SetLoadedCount(c.loaded)
	c.observer.SetTotalCount(total)
	c.observer.SetParameters(c.collector.List())
}

func (c *Coordinator) startResolutionLocked() {
	if c.resolver == nil || c.resolving {
		return
	}

	ctx, cancel := context.WithCancel(c.baseCtx)
	c.attempt++
	c.resolving = true
	c.cancelResolve = cancel

	go c.resolve(ctx, c.epoch, c.attempt)
}

func (c *Coordinator) cancelResolutionLocked() {
	if c.cancelResolve != nil {
		c.cancelResolve()
		c.cancelResolve = nil
	}
	c.resolving = false
}

// resolve waits for a known vehicle identity, then resolves its metadata.
func (c *Coordinator) resolve(ctx context.Context, epoch, attempt uint64) {
	id, err := c.awaitIdentity(ctx)
	if err != nil {
		c.finishResolution(epoch, attempt, id, nil, err)
		return
	}

	rctx := ctx
	if c.cfg.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, c.cfg.ResolveTimeout)
		defer cancel()
	}

	m, err := c.resolver.Resolve(rctx, id)
	c.finishResolution(epoch, attempt, id, m, err)
}

func (c *Coordinator) awaitIdentity(ctx context.Context) (vehicle.Identity, error) {
	id := c.identity.Identity()
	if identityKnown(id) && !needsVersion(id) {
		return id, nil
	}

	interval := c.cfg.IdentityPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// armed once kind and firmware are known
	var versionDeadline <-chan time.Time
	if identityKnown(id) {
		versionDeadline = c.versionDeadline()
	}

	for {
		select {
		case <-ctx.Done():
			return id, ctx.Err()
		case <-versionDeadline:
			c.logger.Debug("Firmware version not reported, resolving without it",
				zap.String("vehicle", id.String()))
			return id, nil
		case <-ticker.C:
			id = c.identity.Identity()
			if !identityKnown(id) {
				continue
			}
			if !needsVersion(id) {
				return id, nil
			}
			if versionDeadline == nil {
				versionDeadline = c.versionDeadline()
			}
		}
	}
}

func (c *Coordinator) versionDeadline() <-chan time.Time {
	if c.cfg.VersionWait <= 0 {
		ch := make(chan time.Time)
		close(ch)
		return ch
	}
	return time.After(c.cfg.VersionWait)
}

// needsVersion reports whether document selection depends on a version
// that has not been reported yet.
func needsVersion(id vehicle.Identity) bool {
	return id.Firmware == vehicle.FirmwareArduPilot && !id.Version.Known()
}

func identityKnown(id vehicle.Identity) bool {
	return id.KnownKind() && id.Firmware != vehicle.FirmwareUnknown
}

func (c *Coordinator) finishResolution(epoch, attempt uint64, id vehicle.Identity, m types.MetadataMap, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A reset bumps the epoch; a stop and start only starts a new attempt.
	// Either way the result belongs to a superseded resolution.
	if epoch != c.epoch || attempt != c.attempt {
		c.logger.Debug("Discarding metadata from superseded resolution",
			zap.Uint64("epoch", epoch),
			zap.Uint64("attempt", attempt),
			zap.Uint64("current_epoch", c.epoch),
			zap.Uint64("current_attempt", c.attempt))
		return
	}

	if c.cancelResolve != nil {
		c.cancelResolve()
		c.cancelResolve = nil
	}
	c.resolving = false

	if err != nil {
		c.metadataErr = err
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("Metadata resolution failed",
				zap.String("vehicle", id.String()),
				zap.Error(err))
		}
		return
	}

	c.collector.SetMetadata(m)
	c.collector.ReEnrichAll()
	c.metadataReady = true
	c.metadataSeen = false
	c.metadataErr = nil
	c.resolvedIdentity = id
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
