package system

import (
	"context"
	"testing"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("PB_SERVER_HTTP_PORT", "0")
	t.Setenv("PB_BRIDGE_URL", "ws://127.0.0.1:1/mavlink")
	t.Setenv("PB_BRIDGE_DIAL_TIMEOUT", "100ms")

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Metadata.SearchPaths = []string{t.TempDir()}
	return cfg
}

func TestLifecycleManager_StartAndShutdown(t *testing.T) {
	lm, err := NewLifecycleManager(nil, testConfig(t), zap.NewNop())
	require.NoError(t, err)

	assert.Nil(t, lm.Snapshots())
	assert.Equal(t, StateInitializing, lm.State())

	require.NoError(t, lm.Start(context.Background()))
	assert.Equal(t, StateRunning, lm.State())

	status := lm.GetCurrentStatus()
	assert.Equal(t, "RUNNING", status.State)
	assert.Equal(t, "IDLE", status.SyncState)
	assert.False(t, status.BridgeConnected)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, lm.Shutdown(ctx))
	assert.Equal(t, StateStopped, lm.State())

	// second call is a no-op
	assert.NoError(t, lm.Shutdown(ctx))
}

func TestNewLifecycleManager_RejectsBadVehicleConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vehicle.Firmware = "betaflight"

	_, err := NewLifecycleManager(nil, cfg, zap.NewNop())
	assert.Error(t, err)
}
