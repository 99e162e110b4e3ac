// Package mavlink talks to a JSON MAVLink bridge over a websocket. It
// decodes the messages the parameter sync consumes and sends its
// requests back to the autopilot.
package mavlink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/KevinKickass/ParamBridge/internal/vehicle"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrNotConnected   = errors.New("bridge not connected")
	ErrSendBufferFull = errors.New("bridge send buffer full")
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

// Config configures the bridge connection.
type Config struct {
	URL string

	// Header stamped on outbound messages.
	SystemID    uint8
	ComponentID uint8

	// Autopilot addressed by requests.
	TargetSystem    uint8
	TargetComponent uint8

	DialTimeout    time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ParamHandler consumes PARAM_VALUE messages.
type ParamHandler interface {
	HandleMessage(msg types.ParamMessage)
}

// ParamHandlerFunc adapts a function to ParamHandler.
type ParamHandlerFunc func(msg types.ParamMessage)

func (f ParamHandlerFunc) HandleMessage(msg types.ParamMessage) { f(msg) }

// IdentityHandler consumes the messages that identify the vehicle.
type IdentityHandler interface {
	HandleHeartbeat(hb vehicle.Heartbeat)
	HandleAutopilotVersion(systemID uint8, flightSW uint32)
}

// Client keeps a websocket connection to the bridge open and dispatches
// decoded frames. It implements the sync requester.
type Client struct {
	cfg      Config
	params   ParamHandler
	identity IdentityHandler
	dialer   *websocket.Dialer
	logger   *zap.Logger

	// onConnect runs after every successful dial
	onConnect func()

	mu        sync.RWMutex
	connected bool
	send      chan []byte
	sequence  uint8

	statsMu  sync.Mutex
	received uint64
	dropped  uint64
}

func NewClient(cfg Config, params ParamHandler, identity IdentityHandler, logger *zap.Logger) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	return &Client{
		cfg:      cfg,
		params:   params,
		identity: identity,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		logger: logger,
	}
}

// OnConnect registers fn to run after each (re)connect.
func (c *Client) OnConnect(fn func()) {
	c.onConnect = fn
}

// Connected reports whether a bridge connection is up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Stats returns the number of frames received and dropped outbound messages.
func (c *Client) Stats() (received, dropped uint64) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.received, c.dropped
}

// Run connects and serves the bridge until ctx is cancelled, reconnecting
// with exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	delay := c.cfg.InitialBackoff
	attempt := 0

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			c.logger.Warn("Bridge connect failed",
				zap.String("url", c.cfg.URL),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", delay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			delay *= 2
			if delay > c.cfg.MaxBackoff {
				delay = c.cfg.MaxBackoff
			}
			continue
		}

		c.logger.Info("Bridge connected",
			zap.String("url", c.cfg.URL),
			zap.Int("attempt", attempt+1))
		delay = c.cfg.InitialBackoff
		attempt = 0

		c.serve(ctx, conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("Bridge connection lost, reconnecting", zap.String("url", c.cfg.URL))
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// serve runs the read and write pumps of one connection until it fails.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	send := make(chan []byte, sendBufferSize)
	done := make(chan struct{})

	c.mu.Lock()
	c.connected = true
	c.send = send
	c.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(conn, send, done)
	}()

	// unblock the read pump on shutdown
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	if c.onConnect != nil {
		c.onConnect()
	}

	c.readPump(conn)

	stop()
	c.mu.Lock()
	c.connected = false
	c.send = nil
	c.mu.Unlock()

	close(done)
	conn.Close()
	wg.Wait()
}

func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				c.logger.Warn("Bridge read error", zap.Error(err))
			}
			return
		}

		c.statsMu.Lock()
		c.received++
		c.statsMu.Unlock()

		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	frame, err := Decode(data)
	if err != nil {
		c.logger.Debug("Ignoring undecodable bridge message", zap.Error(err))
		return
	}

	switch {
	case frame.Param != nil:
		if frame.Header.SystemID != c.cfg.TargetSystem {
			return
		}
		if c.params != nil {
			c.params.HandleMessage(*frame.Param)
		}
	case frame.Heartbeat != nil:
		if c.identity != nil {
			c.identity.HandleHeartbeat(*frame.Heartbeat)
		}
	case frame.AutopilotVersion != nil:
		if c.identity != nil {
			c.identity.HandleAutopilotVersion(frame.Header.SystemID, *frame.AutopilotVersion)
		}
	}
}

func (c *Client) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	for {
		select {
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warn("Bridge write error", zap.Error(err))
				conn.Close()
				return
			}
		}
	}
}

// enqueue hands msg to the write pump without blocking.
func (c *Client) enqueue(msg []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}
	select {
	case c.send <- msg:
		return nil
	default:
		c.statsMu.Lock()
		c.dropped++
		c.statsMu.Unlock()
		return ErrSendBufferFull
	}
}

func (c *Client) header() Header {
	c.mu.Lock()
	c.sequence++
	seq := c.sequence
	c.mu.Unlock()

	return Header{
		SystemID:    c.cfg.SystemID,
		ComponentID: c.cfg.ComponentID,
		Sequence:    seq,
	}
}

// RequestParameterList sends PARAM_REQUEST_LIST to the autopilot.
func (c *Client) RequestParameterList() error {
	msg, err := EncodeParamRequestList(c.header(), c.cfg.TargetSystem, c.cfg.TargetComponent)
	if err != nil {
		return err
	}
	return c.enqueue(msg)
}

// RequestAutopilotVersion asks the autopilot for AUTOPILOT_VERSION.
func (c *Client) RequestAutopilotVersion() error {
	msg, err := EncodeRequestAutopilotVersion(c.header(), c.cfg.TargetSystem, c.cfg.TargetComponent)
	if err != nil {
		return err
	}
	return c.enqueue(msg)
}

// SetParameter sends PARAM_SET to the autopilot.
func (c *Client) SetParameter(name string, value float64, paramType types.ParamType) error {
	msg, err := EncodeParamSet(c.header(), c.cfg.TargetSystem, c.cfg.TargetComponent, name, value, paramType)
	if err != nil {
		return err
	}
	return c.enqueue(msg)
}
