package paramsync

import (
	"encoding/json"
	"testing"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiObserver_FansOut(t *testing.T) {
	a := &recordingObserver{}
	b := &recordingObserver{}
	m := NewMultiObserver(a, nil, b)

	params := []types.Parameter{{Name: "A", Index: 0}}
	m.SetMetadataLoaded(true)
	m.SetLoadedCount(1)
	m.SetTotalCount(3)
	m.SetParameters(params)
	m.OnComplete(Snapshot{LoadedCount: 1})

	for _, o := range []*recordingObserver{a, b} {
		assert.Equal(t, 1, o.Flushes())
		assert.Equal(t, params, o.Params())
		assert.True(t, o.metadata)
		assert.Equal(t, 1, o.loaded)
		assert.Equal(t, 3, o.total)
		assert.Len(t, o.completed, 1)
	}
}

func TestMultiObserver_SkipsNonListeners(t *testing.T) {
	rec := &recordingObserver{}
	m := NewMultiObserver(NoopObserver{}, rec)

	assert.NotPanics(t, func() { m.OnComplete(Snapshot{}) })
	assert.Len(t, rec.completed, 1)
}

func TestCompletionOnly(t *testing.T) {
	rec := &recordingObserver{}
	m := NewMultiObserver(CompletionOnly(rec))

	m.SetParameters([]types.Parameter{{Name: "A"}})
	m.OnComplete(Snapshot{LoadedCount: 1})

	assert.Zero(t, rec.Flushes())
	require.Len(t, rec.completed, 1)
	assert.Equal(t, 1, rec.completed[0].LoadedCount)
}

func TestState_Text(t *testing.T) {
	for _, s := range []State{StateIdle, StateCollecting, StateComplete} {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var got State
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, s, got)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("DONE")))
	assert.Equal(t, "UNKNOWN", State(9).String())
}

func TestDeriveState(t *testing.T) {
	two := 2
	assert.Equal(t, StateIdle, deriveState(0, nil))
	assert.Equal(t, StateCollecting, deriveState(1, nil))
	assert.Equal(t, StateCollecting, deriveState(1, &two))
	assert.Equal(t, StateComplete, deriveState(2, &two))
	assert.Equal(t, StateComplete, deriveState(3, &two))
}
