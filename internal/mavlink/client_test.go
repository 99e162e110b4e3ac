package mavlink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type paramSink struct {
	ch chan types.ParamMessage
}

func (s *paramSink) HandleMessage(msg types.ParamMessage) {
	s.ch <- msg
}

type identitySink struct {
	mu         sync.Mutex
	heartbeats []vehicle.Heartbeat
	versions   []uint32
}

func (s *identitySink) HandleHeartbeat(hb vehicle.Heartbeat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats = append(s.heartbeats, hb)
}

func (s *identitySink) HandleAutopilotVersion(_ uint8, flightSW uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = append(s.versions, flightSW)
}

func (s *identitySink) Heartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heartbeats)
}

// bridgeServer plays the bridge side: it pushes frames and records what
// the client sends.
func bridgeServer(t *testing.T, frames []string, received chan<- []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_DispatchesAndSends(t *testing.T) {
	frames := []string{
		paramValueFrame,
		`{"header":{"system_id":2,"component_id":1},"message":{"type":"PARAM_VALUE","param_id":"OTHER","param_value":1,"param_type":{"type":"MAV_PARAM_TYPE_REAL32"},"param_count":1,"param_index":0}}`,
		`{"header":{"system_id":1,"component_id":1},"message":{"type":"HEARTBEAT","mavtype":{"type":"MAV_TYPE_SUBMARINE"},"autopilot":{"type":"MAV_AUTOPILOT_ARDUPILOTMEGA"},"system_status":{"type":"MAV_STATE_ACTIVE"}}}`,
		`garbage`,
	}
	received := make(chan []byte, 4)
	srv := bridgeServer(t, frames, received)

	params := &paramSink{ch: make(chan types.ParamMessage, 4)}
	identity := &identitySink{}
	client := NewClient(Config{
		URL:             wsURL(srv),
		SystemID:        255,
		ComponentID:     240,
		TargetSystem:    1,
		TargetComponent: 1,
	}, params, identity, zaptest.NewLogger(t))

	connected := make(chan struct{}, 1)
	client.OnConnect(func() {
		assert.NoError(t, client.RequestParameterList())
		connected <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
	}

	select {
	case msg := <-params.ch:
		assert.Equal(t, "RC1_MIN", msg.Name)
		assert.Equal(t, uint16(401), msg.Index)
	case <-time.After(2 * time.Second):
		t.Fatal("no PARAM_VALUE dispatched")
	}

	select {
	case data := <-received:
		assert.Contains(t, string(data), `"type":"PARAM_REQUEST_LIST"`)
		assert.Contains(t, string(data), `"target_system":1`)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not receive the list request")
	}

	require.Eventually(t, func() bool { return identity.Heartbeats() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, params.ch, "frames from other systems are ignored")

	require.NoError(t, client.SetParameter("PILOT_SPEED", 250, types.ParamTypeReal32))
	select {
	case data := <-received:
		assert.Contains(t, string(data), `"type":"PARAM_SET"`)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not receive the set request")
	}

	require.Eventually(t, func() bool {
		rx, _ := client.Stats()
		return rx == 4
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
	}
	assert.False(t, client.Connected())
}

func TestClient_NotConnected(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:1/none"}, nil, nil, zaptest.NewLogger(t))

	assert.ErrorIs(t, client.RequestParameterList(), ErrNotConnected)
	assert.ErrorIs(t, client.SetParameter("A", 1, types.ParamTypeReal32), ErrNotConnected)
	assert.ErrorIs(t, client.RequestAutopilotVersion(), ErrNotConnected)
}

func TestClient_RequestsAutopilotVersionOnConnect(t *testing.T) {
	received := make(chan []byte, 4)
	srv := bridgeServer(t, nil, received)

	client := NewClient(Config{
		URL:             wsURL(srv),
		SystemID:        255,
		ComponentID:     240,
		TargetSystem:    1,
		TargetComponent: 1,
	}, nil, nil, zaptest.NewLogger(t))
	client.OnConnect(func() {
		assert.NoError(t, client.RequestAutopilotVersion())
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	select {
	case data := <-received:
		msg := string(data)
		assert.Contains(t, msg, `"type":"COMMAND_LONG"`)
		assert.Contains(t, msg, `"command":{"type":"MAV_CMD_REQUEST_MESSAGE"}`)
		assert.Contains(t, msg, `"param1":148`)
		assert.Contains(t, msg, `"target_system":1`)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not receive the version request")
	}
}

func TestClient_RunStopsWhileRetrying(t *testing.T) {
	client := NewClient(Config{
		URL:            "ws://127.0.0.1:1/none",
		DialTimeout:    100 * time.Millisecond,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	}, nil, nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := client.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
