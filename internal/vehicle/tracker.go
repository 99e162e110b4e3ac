package vehicle

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// MAV_STATE values the tracker cares about.
const (
	stateBoot = 1
)

// MAV_TYPE / MAV_AUTOPILOT values of heartbeats that are not from an autopilot.
const (
	mavTypeGCS              = 6
	mavAutopilotInvalid     = 8
	autopilotComponentID    = 1
	defaultHeartbeatTimeout = 5 * time.Second
)

// Heartbeat is the subset of HEARTBEAT the tracker consumes.
type Heartbeat struct {
	SystemID     uint8
	ComponentID  uint8
	Type         int
	Autopilot    int
	SystemStatus int
}

// RestartListener is told when the vehicle reboots.
type RestartListener interface {
	SetRestarting(restarting bool)
	Reset()
}

// Tracker derives the vehicle identity from HEARTBEAT and AUTOPILOT_VERSION
// messages and detects autopilot restarts.
type Tracker struct {
	mu       sync.RWMutex
	systemID uint8
	identity Identity
	booting  bool
	lastSeen time.Time

	// override pins fields from config; zero values are ignored.
	override Identity

	timeout  time.Duration
	now      func() time.Time
	listener RestartListener
	logger   *zap.Logger
}

// NewTracker creates a tracker for heartbeats from systemID.
// timeout is the heartbeat silence after which a returning autopilot is
// treated as restarted; zero uses the default, negative disables it.
func NewTracker(systemID uint8, timeout time.Duration, logger *zap.Logger) *Tracker {
	if timeout == 0 {
		timeout = defaultHeartbeatTimeout
	}
	return &Tracker{
		systemID: systemID,
		identity: Identity{Kind: KindUnknown},
		override: Identity{Kind: KindUnknown},
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
	}
}

// SetListener registers the component notified about restarts.
func (t *Tracker) SetListener(l RestartListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listener = l
}

// Pin overrides detected identity fields with configured values.
func (t *Tracker) Pin(id Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.override = id
}

// Identity returns the detected identity with pinned fields applied.
func (t *Tracker) Identity() Identity {
	t.mu.RLock()
	defer t.mu.RUnlock()

	id := t.identity
	if t.override.Kind != KindUnknown {
		id.Kind = t.override.Kind
	}
	if t.override.Firmware != FirmwareUnknown {
		id.Firmware = t.override.Firmware
	}
	if t.override.Version != (Version{}) {
		id.Version = t.override.Version
	}
	return id
}

// HandleHeartbeat updates kind and firmware and watches the system status.
func (t *Tracker) HandleHeartbeat(hb Heartbeat) {
	if hb.SystemID != t.systemID || hb.ComponentID != autopilotComponentID {
		return
	}
	if hb.Type == mavTypeGCS || hb.Autopilot == mavAutopilotInvalid {
		return
	}

	now := t.now()

	t.mu.Lock()
	var restarting, restarted bool

	if t.timeout > 0 && !t.lastSeen.IsZero() && now.Sub(t.lastSeen) > t.timeout {
		t.logger.Info("Heartbeat resumed after silence, treating as restart",
			zap.Duration("silence", now.Sub(t.lastSeen)))
		restarted = true
	}
	t.lastSeen = now

	kind := Kind(hb.Type)
	firmware := FirmwareFromAutopilot(hb.Autopilot)
	if kind != t.identity.Kind || firmware != t.identity.Firmware {
		t.logger.Info("Vehicle identified",
			zap.String("kind", kind.String()),
			zap.String("firmware", string(firmware)))
	}
	t.identity.Kind = kind
	t.identity.Firmware = firmware

	booting := hb.SystemStatus == stateBoot
	switch {
	case booting && !t.booting:
		restarting = true
	case !booting && t.booting:
		restarted = true
	}
	t.booting = booting
	listener := t.listener
	t.mu.Unlock()

	if listener == nil {
		return
	}
	if restarting {
		listener.SetRestarting(true)
	}
	if restarted {
		listener.SetRestarting(false)
		listener.Reset()
	}
}

// HandleAutopilotVersion records the firmware version.
func (t *Tracker) HandleAutopilotVersion(systemID uint8, flightSW uint32) {
	if systemID != t.systemID {
		return
	}
	v := VersionFromFlightSW(flightSW)

	t.mu.Lock()
	defer t.mu.Unlock()
	if v != t.identity.Version {
		t.logger.Info("Firmware version detected", zap.String("version", v.String()))
	}
	t.identity.Version = v
}
