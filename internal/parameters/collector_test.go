package parameters

import (
	"testing"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testMetadata() types.MetadataMap {
	return types.MetadataMap{
		"PILOT_SPEED": {
			DisplayName: "Pilot speed",
			Description: "Maximum horizontal speed",
			Units:       "cm/s",
			Range:       &types.MetadataRange{Low: "50", High: "2000"},
			Increment:   "10",
			Default:     "500",
		},
		"FRAME_CONFIG": {
			DisplayName:    "Frame configuration",
			RebootRequired: "True",
			Values:         map[string]string{"0": "BlueROV1", "1": "Vectored", "10": "Custom"},
		},
		"STAT_BOOTCNT": {
			DisplayName: "Boot count",
			ReadOnly:    "True",
		},
		"LOG_BITMASK": {
			DisplayName: "Log bitmask",
			Bitmask:     map[string]string{"0": "ATTITUDE_FAST", "2": "GPS", "x": "junk"},
		},
	}
}

func TestCollector_AddAndGet(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t))
	c.AddParam(types.Parameter{Name: "B", Index: 1, Value: 2})
	c.AddParam(types.Parameter{Name: "A", Index: 0, Value: 1})

	assert.Equal(t, 2, c.Size())

	p, ok := c.Get("B")
	require.True(t, ok)
	assert.Equal(t, 2.0, p.Value)

	_, ok = c.Get("C")
	assert.False(t, ok)

	want := []types.Parameter{{Name: "A", Index: 0, Value: 1}, {Name: "B", Index: 1, Value: 2}}
	if diff := cmp.Diff(want, c.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollector_AddIsIdempotent(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t))
	p := types.Parameter{Name: "A", Index: 4, Value: 1}

	c.AddParam(p)
	c.AddParam(p)
	assert.Equal(t, 1, c.Size())
}

func TestCollector_NameMovesToNewIndex(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t))
	c.AddParam(types.Parameter{Name: "A", Index: 0, Value: 1})
	c.AddParam(types.Parameter{Name: "A", Index: 5, Value: 2})

	require.Equal(t, 1, c.Size())
	p, _ := c.Get("A")
	assert.Equal(t, uint16(5), p.Index)
	assert.Equal(t, 2.0, p.Value)
}

func TestCollector_UpdateParam(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t))
	c.AddParam(types.Parameter{Name: "A", Index: 0, Value: 1})

	assert.True(t, c.UpdateParam("A", float64(float32(1.000061))))
	p, _ := c.Get("A")
	assert.Equal(t, 1.0001, p.Value)

	assert.False(t, c.UpdateParam("NOPE", 3))
	assert.Equal(t, 1, c.Size())
}

func TestCollector_EnrichesOnAddAndReEnrich(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t))
	c.AddParam(types.Parameter{Name: "PILOT_SPEED", Index: 0, Value: 100})

	p, _ := c.Get("PILOT_SPEED")
	assert.Empty(t, p.ShortDescription)
	assert.False(t, c.HasMetadata())

	c.SetMetadata(testMetadata())
	assert.True(t, c.HasMetadata())

	// Installing metadata alone leaves stored parameters as they are
	p, _ = c.Get("PILOT_SPEED")
	assert.Empty(t, p.ShortDescription)

	c.ReEnrichAll()
	p, _ = c.Get("PILOT_SPEED")
	assert.Equal(t, "Pilot speed", p.ShortDescription)
	assert.Equal(t, 100.0, p.Value)

	c.AddParam(types.Parameter{Name: "STAT_BOOTCNT", Index: 1, Value: 7})
	p, _ = c.Get("STAT_BOOTCNT")
	assert.True(t, p.ReadOnly)

	// Parameters without an entry stay unenriched
	c.AddParam(types.Parameter{Name: "UNKNOWN", Index: 2, Value: 1})
	p, _ = c.Get("UNKNOWN")
	assert.Empty(t, p.ShortDescription)
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t))
	c.SetMetadata(testMetadata())
	c.AddParam(types.Parameter{Name: "A", Index: 0})

	c.Reset()
	assert.Zero(t, c.Size())
	assert.False(t, c.HasMetadata())
	assert.Empty(t, c.List())
}

func TestEnrich(t *testing.T) {
	md := testMetadata()

	p := types.Parameter{Name: "PILOT_SPEED", Index: 3, Value: 100, Type: types.ParamTypeReal32}
	Enrich(&p, md["PILOT_SPEED"])

	inc, def := 10.0, 500.0
	want := types.Parameter{
		Name:             "PILOT_SPEED",
		Index:            3,
		Value:            100,
		Type:             types.ParamTypeReal32,
		Description:      "Maximum horizontal speed",
		ShortDescription: "Pilot speed",
		Units:            "cm/s",
		Range:            &types.Range{Low: 50, High: 2000},
		Increment:        &inc,
		Default:          &def,
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Enrich mismatch (-want +got):\n%s", diff)
	}

	frame := types.Parameter{Name: "FRAME_CONFIG"}
	Enrich(&frame, md["FRAME_CONFIG"])
	assert.True(t, frame.RebootRequired)
	assert.Equal(t, []types.Option{{Value: 0, Label: "BlueROV1"}, {Value: 1, Label: "Vectored"}, {Value: 10, Label: "Custom"}}, frame.Options)

	logs := types.Parameter{Name: "LOG_BITMASK"}
	Enrich(&logs, md["LOG_BITMASK"])
	assert.Equal(t, map[int]string{0: "ATTITUDE_FAST", 2: "GPS"}, logs.Bitmask)
}

func TestEnrich_IncompleteRangeDropped(t *testing.T) {
	p := types.Parameter{Name: "X", Range: &types.Range{Low: 1, High: 2}}
	Enrich(&p, types.MetadataEntry{Range: &types.MetadataRange{Low: "0", High: "n/a"}})
	assert.Nil(t, p.Range)
}
