package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/api/websocket"
	"github.com/KevinKickass/ParamBridge/internal/auth"
	"github.com/KevinKickass/ParamBridge/internal/config"
	"github.com/KevinKickass/ParamBridge/internal/interfaces"
	"github.com/KevinKickass/ParamBridge/internal/mavlink"
	"github.com/KevinKickass/ParamBridge/internal/paramsync"
	"github.com/KevinKickass/ParamBridge/internal/storage"
	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-test-secret-test-secret"

type fakeSync struct {
	mu         sync.Mutex
	params     []types.Parameter
	setErr     error
	sets       map[string]float64
	resets     int
	refreshes  int
	restarting bool
}

func (f *fakeSync) Snapshot() paramsync.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := len(f.params)
	return paramsync.Snapshot{
		State:       paramsync.StateComplete,
		Parameters:  append([]types.Parameter(nil), f.params...),
		LoadedCount: total,
		TotalCount:  &total,
		TakenAt:     time.Now(),
	}
}

func (f *fakeSync) Status() paramsync.Status {
	return paramsync.Status{State: paramsync.StateComplete, LoadedCount: len(f.params)}
}

func (f *fakeSync) Parameter(name string) (types.Parameter, bool) {
	for _, p := range f.params {
		if p.Name == name {
			return p, true
		}
	}
	return types.Parameter{}, false
}

func (f *fakeSync) SetParameter(_ context.Context, name string, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	if f.sets == nil {
		f.sets = map[string]float64{}
	}
	f.sets[name] = value
	return nil
}

func (f *fakeSync) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeSync) RequestParameterList() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

func (f *fakeSync) SetRestarting(restarting bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarting = restarting
}

type fakeSnapshots struct {
	stored *storage.Snapshot
}

func (f *fakeSnapshots) ListSnapshots(context.Context, int) ([]storage.SnapshotSummary, error) {
	if f.stored == nil {
		return []storage.SnapshotSummary{}, nil
	}
	return []storage.SnapshotSummary{f.stored.SnapshotSummary}, nil
}

func (f *fakeSnapshots) LoadSnapshot(_ context.Context, id uuid.UUID) (*storage.Snapshot, error) {
	if f.stored == nil || f.stored.ID != id {
		return nil, storage.ErrSnapshotNotFound
	}
	return f.stored, nil
}

type fakeLifecycle struct {
	cfg       *config.Config
	sync      *fakeSync
	snapshots interfaces.SnapshotReader
}

func (l *fakeLifecycle) Config() *config.Config               { return l.cfg }
func (l *fakeLifecycle) Sync() interfaces.ParameterSync       { return l.sync }
func (l *fakeLifecycle) Snapshots() interfaces.SnapshotReader { return l.snapshots }
func (l *fakeLifecycle) Shutdown(context.Context) error       { return nil }

func (l *fakeLifecycle) GetCurrentStatus() interfaces.SystemStatus {
	return interfaces.SystemStatus{State: "RUNNING", SyncState: "COMPLETE"}
}

func newTestServer(t *testing.T, authEnabled bool) (*Server, *fakeLifecycle) {
	t.Helper()

	cfg := &config.Config{}
	lm := &fakeLifecycle{
		cfg: cfg,
		sync: &fakeSync{params: []types.Parameter{
			{Name: "PILOT_SPEED", Value: 100, Type: types.ParamTypeReal32},
			{Name: "SYSID_THISMAV", Value: 1, Type: types.ParamTypeInt32},
		}},
	}

	authn := auth.NewAuthenticator(auth.NewJWTHandler(testSecret, time.Hour, "parambridge"), authEnabled, zap.NewNop())
	s := NewServer(cfg, lm, authn, websocket.NewHub(zap.NewNop()), zap.NewNop())
	return s, lm
}

func request(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, true)
	w := request(t, s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestListParameters(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := request(t, s, http.MethodGet, "/api/v1/parameters", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap paramsync.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, paramsync.StateComplete, snap.State)
	assert.Len(t, snap.Parameters, 2)

	w = request(t, s, http.MethodGet, "/api/v1/parameters?search=pilot", "", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Parameters, 1)
	assert.Equal(t, "PILOT_SPEED", snap.Parameters[0].Name)
}

func TestListParameters_SearchIgnoresNameCase(t *testing.T) {
	s, lm := newTestServer(t, false)
	lm.sync.params = append(lm.sync.params, types.Parameter{Name: "Pilot_Trim", Index: 7})

	w := request(t, s, http.MethodGet, "/api/v1/parameters?search=pIlOt_T", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap paramsync.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Parameters, 1)
	assert.Equal(t, "Pilot_Trim", snap.Parameters[0].Name)
}

func TestGetParameter(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := request(t, s, http.MethodGet, "/api/v1/parameters/SYSID_THISMAV", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var p types.Parameter
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, 1.0, p.Value)

	w = request(t, s, http.MethodGet, "/api/v1/parameters/NOPE", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PARAM_404", errorCode(t, w))
}

func TestSetParameter(t *testing.T) {
	s, lm := newTestServer(t, false)

	w := request(t, s, http.MethodPut, "/api/v1/parameters/PILOT_SPEED", `{"value": 150}`, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 150.0, lm.sync.sets["PILOT_SPEED"])

	w = request(t, s, http.MethodPut, "/api/v1/parameters/PILOT_SPEED", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	cases := []struct {
		err  error
		code int
		body string
	}{
		{paramsync.ErrUnknownParameter, http.StatusNotFound, "PARAM_404"},
		{paramsync.ErrReadOnly, http.StatusConflict, "PARAM_409"},
		{paramsync.ErrOutOfRange, http.StatusUnprocessableEntity, "PARAM_422"},
		{mavlink.ErrNotConnected, http.StatusServiceUnavailable, "PARAM_503"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "PARAM_500"},
	}
	for _, tc := range cases {
		lm.sync.setErr = tc.err
		w := request(t, s, http.MethodPut, "/api/v1/parameters/PILOT_SPEED", `{"value": 1}`, "")
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
		assert.Equal(t, tc.body, errorCode(t, w))
	}
}

func TestExportParameters(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := request(t, s, http.MethodGet, "/api/v1/parameters/export?format=yaml", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "name: PILOT_SPEED")
	assert.Contains(t, w.Body.String(), "complete: true")

	w = request(t, s, http.MethodGet, "/api/v1/parameters/export?format=param", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PILOT_SPEED,100\n")

	w = request(t, s, http.MethodGet, "/api/v1/parameters/export?format=xml", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncControl(t *testing.T) {
	s, lm := newTestServer(t, false)

	assert.Equal(t, http.StatusAccepted, request(t, s, http.MethodPost, "/api/v1/sync/reset", "", "").Code)
	assert.Equal(t, http.StatusAccepted, request(t, s, http.MethodPost, "/api/v1/sync/refresh", "", "").Code)
	assert.Equal(t, http.StatusOK, request(t, s, http.MethodPost, "/api/v1/sync/restarting", `{"restarting": true}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, request(t, s, http.MethodPost, "/api/v1/sync/restarting", `{}`, "").Code)

	assert.Equal(t, 1, lm.sync.resets)
	assert.Equal(t, 1, lm.sync.refreshes)
	assert.True(t, lm.sync.restarting)

	w := request(t, s, http.MethodGet, "/api/v1/sync/status", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"COMPLETE"`)
}

func TestPermissions(t *testing.T) {
	s, _ := newTestServer(t, true)
	h := auth.NewJWTHandler(testSecret, time.Hour, "parambridge")

	viewer, err := h.GenerateAccessToken("guest", auth.RoleViewer)
	require.NoError(t, err)
	operator, err := h.GenerateAccessToken("pilot", auth.RoleOperator)
	require.NoError(t, err)
	admin, err := h.GenerateAccessToken("root", auth.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, request(t, s, http.MethodGet, "/api/v1/parameters", "", "").Code)
	assert.Equal(t, http.StatusOK, request(t, s, http.MethodGet, "/api/v1/parameters", "", viewer).Code)

	assert.Equal(t, http.StatusForbidden, request(t, s, http.MethodPost, "/api/v1/sync/reset", "", viewer).Code)
	assert.Equal(t, http.StatusAccepted, request(t, s, http.MethodPost, "/api/v1/sync/reset", "", operator).Code)

	assert.Equal(t, http.StatusForbidden, request(t, s, http.MethodPut, "/api/v1/parameters/PILOT_SPEED", `{"value": 1}`, operator).Code)
	assert.Equal(t, http.StatusAccepted, request(t, s, http.MethodPut, "/api/v1/parameters/PILOT_SPEED", `{"value": 1}`, admin).Code)
}

func TestSnapshots(t *testing.T) {
	s, lm := newTestServer(t, false)

	w := request(t, s, http.MethodGet, "/api/v1/snapshots", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	stored := &storage.Snapshot{
		SnapshotSummary: storage.SnapshotSummary{ID: uuid.New(), ParamCount: 1},
		Parameters:      []types.Parameter{{Name: "PILOT_SPEED", Value: 100}},
	}
	lm.snapshots = &fakeSnapshots{stored: stored}

	w = request(t, s, http.MethodGet, "/api/v1/snapshots?limit=5", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), stored.ID.String())

	assert.Equal(t, http.StatusBadRequest, request(t, s, http.MethodGet, "/api/v1/snapshots?limit=x", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, request(t, s, http.MethodGet, "/api/v1/snapshots/not-a-uuid", "", "").Code)
	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodGet, "/api/v1/snapshots/"+uuid.NewString(), "", "").Code)

	w = request(t, s, http.MethodGet, "/api/v1/snapshots/"+stored.ID.String(), "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PILOT_SPEED")
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/parameters", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
