package metadata

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const subDocument = `{
  "json": {"version": 0},
  "SURFACE_": {
    "SURFACE_DEPTH": {
      "DisplayName": "Depth reading at surface",
      "Description": "The depth the external pressure sensor will read when the vehicle is considered at the surface",
      "Range": {"low": "-100", "high": "0"},
      "Units": "cm",
      "User": "Standard"
    },
    "marker": 1
  },
  "FRAME_": {
    "FRAME_CONFIG": {
      "DisplayName": "Frame configuration",
      "Values": {"0": "BlueROV1", "1": "Vectored"},
      "RebootRequired": "True"
    }
  }
}`

func testStore() *FSStore {
	return NewFSStore(fstest.MapFS{
		"Sub-4.1.json":          {Data: []byte(subDocument)},
		"Sub-4.0/apm.pdef.json": {Data: []byte(`{"X_": {"OLD_PARAM": {"DisplayName": "old"}}}`)},
		"Rover-4.2/notes.txt":   {Data: []byte("no pdef here")},
		"README.md":             {Data: []byte("docs")},
	})
}

func TestVehicleFolder(t *testing.T) {
	assert.Equal(t, FolderSub, VehicleFolder(vehicle.KindSubmarine))
	assert.Equal(t, FolderRover, VehicleFolder(vehicle.KindSurfaceBoat))
	assert.Equal(t, FolderPlane, VehicleFolder(vehicle.KindFixedWing))
	assert.Equal(t, FolderCopter, VehicleFolder(vehicle.KindHexarotor))
	assert.Equal(t, DefaultFolder, VehicleFolder(vehicle.KindGeneric))
}

func TestSelectDocument(t *testing.T) {
	names := []string{"Sub-4.0", "Sub-4.1", "Copter-4.5"}

	name, ok := SelectDocument(names, FolderSub, vehicle.Version{Major: 4, Minor: 3, Patch: 2})
	assert.True(t, ok)
	assert.Equal(t, "Sub-4.1", name)

	name, ok = SelectDocument(names, FolderSub, vehicle.Version{Major: 4, Minor: 0})
	assert.True(t, ok)
	assert.Equal(t, "Sub-4.0", name)

	_, ok = SelectDocument(names, FolderSub, vehicle.Version{Major: 3, Minor: 6})
	assert.False(t, ok)
}

func TestFallbackDocument(t *testing.T) {
	name, ok := FallbackDocument([]string{"Sub-3.9", "Sub-4.1", "Sub-4.0", "Copter-4.5"}, FolderSub)
	assert.True(t, ok)
	assert.Equal(t, "Sub-4.1", name)

	name, ok = FallbackDocument([]string{"Sub-4.1", "Copter-4.5"}, FolderRover)
	assert.True(t, ok)
	assert.Equal(t, "Copter-4.5", name)

	_, ok = FallbackDocument(nil, FolderSub)
	assert.False(t, ok)
}

func TestParseArduPilot(t *testing.T) {
	m, err := ParseArduPilot([]byte(subDocument))
	require.NoError(t, err)

	want := types.MetadataMap{
		"SURFACE_DEPTH": {
			DisplayName: "Depth reading at surface",
			Description: "The depth the external pressure sensor will read when the vehicle is considered at the surface",
			Range:       &types.MetadataRange{Low: "-100", High: "0"},
			Units:       "cm",
			User:        "Standard",
		},
		"FRAME_CONFIG": {
			DisplayName:    "Frame configuration",
			Values:         map[string]string{"0": "BlueROV1", "1": "Vectored"},
			RebootRequired: "True",
		},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("ParseArduPilot mismatch (-want +got):\n%s", diff)
	}

	_, err = ParseArduPilot([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestArduPilotSource_Resolve(t *testing.T) {
	validator, err := NewValidator()
	require.NoError(t, err)
	src := NewArduPilotSource(testStore(), validator, zaptest.NewLogger(t))

	// 4.3 has no document of its own and falls back to the closest minor
	m, err := src.Resolve(context.Background(), vehicle.Identity{
		Kind:     vehicle.KindSubmarine,
		Firmware: vehicle.FirmwareArduPilot,
		Version:  vehicle.Version{Major: 4, Minor: 3},
	})
	require.NoError(t, err)
	assert.Contains(t, m, "SURFACE_DEPTH")

	m, err = src.Resolve(context.Background(), vehicle.Identity{
		Kind:     vehicle.KindSubmarine,
		Firmware: vehicle.FirmwareArduPilot,
		Version:  vehicle.Version{Major: 4, Minor: 0},
	})
	require.NoError(t, err)
	assert.Contains(t, m, "OLD_PARAM")

	// No matching major version uses the newest document of the folder
	m, err = src.Resolve(context.Background(), vehicle.Identity{
		Kind:     vehicle.KindSubmarine,
		Firmware: vehicle.FirmwareArduPilot,
		Version:  vehicle.Version{Major: 3, Minor: 5},
	})
	require.NoError(t, err)
	assert.Contains(t, m, "FRAME_CONFIG")
}

func TestArduPilotSource_Errors(t *testing.T) {
	validator, err := NewValidator()
	require.NoError(t, err)
	id := vehicle.Identity{Kind: vehicle.KindSubmarine, Firmware: vehicle.FirmwareArduPilot}

	empty := NewArduPilotSource(NewFSStore(fstest.MapFS{}), validator, zaptest.NewLogger(t))
	_, err = empty.Resolve(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoDocuments)

	invalid := NewArduPilotSource(NewFSStore(fstest.MapFS{
		"Sub-4.1.json": {Data: []byte(`{}`)},
	}), validator, zaptest.NewLogger(t))
	_, err = invalid.Resolve(context.Background(), id)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewArduPilotSource(testStore(), validator, zaptest.NewLogger(t)).Resolve(ctx, id)
	assert.ErrorIs(t, err, context.Canceled)
}
