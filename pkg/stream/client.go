// Package stream is a reconnecting WebSocket client for market-data
// feeds. Reconnects are bounded: after MaxConsecutiveFailures dial
// attempts without a successful read the client trips and reports the
// failure through OnGiveUp instead of retrying forever.
package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const defaultMaxConsecutiveFailures = 10

// Config defines the client runtime configuration.
type Config struct {
	URL                    string
	Backoff                Backoff
	MaxConsecutiveFailures int
	PingInterval           time.Duration

	// OnConnect runs on every (re)connect before reads begin. Returning
	// an error drops the connection and counts as a failed attempt.
	OnConnect func(ctx context.Context, c *Client) error
	// OnMessage receives each text/binary payload.
	OnMessage func(payload []byte)
	// OnDisconnect runs after a read loop ends, before the next attempt.
	OnDisconnect func(err error)
	// OnGiveUp runs once when the reconnect budget is exhausted.
	OnGiveUp func(err error)
}

// Client owns one WebSocket connection and its reconnect loop.
type Client struct {
	cfg       Config
	conn      atomic.Pointer[websocket.Conn]
	connected atomic.Bool
	gotData   atomic.Bool
	done      chan struct{}
}

// New validates config and builds a client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNilURL
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	return &Client{cfg: cfg, done: make(chan struct{})}, nil
}

// Connected reports whether a live connection exists right now.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// WriteJSON sends a JSON control payload on the current connection.
func (c *Client) WriteJSON(v any) error {
	conn := c.conn.Load()
	if conn == nil {
		return ErrNotRunning
	}
	return conn.WriteJSON(v)
}

// Run dials and reads until ctx is done or the reconnect budget is
// exhausted. It blocks; callers run it in a goroutine.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.done)

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.gotData.Store(false)
		err := c.runOnce(ctx)
		if c.cfg.OnDisconnect != nil {
			c.cfg.OnDisconnect(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A connection that delivered data counts as a recovery, not a
		// failed attempt.
		if c.gotData.Load() {
			failures = 0
		}
		failures++
		if failures > c.cfg.MaxConsecutiveFailures {
			gaveUp := errors.Wrap(ErrCircuitOpen, c.cfg.URL)
			if c.cfg.OnGiveUp != nil {
				c.cfg.OnGiveUp(gaveUp)
			}
			return gaveUp
		}

		wait := c.cfg.Backoff.Next(failures)
		logs.Infof("stream reconnect in %s, attempt %d/%d, url: %s",
			wait, failures, c.cfg.MaxConsecutiveFailures, c.cfg.URL)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Done is closed when Run returns.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	c.conn.Store(conn)
	defer func() {
		c.connected.Store(false)
		c.conn.Store(nil)
		_ = conn.Close()
	}()

	if c.cfg.OnConnect != nil {
		if err := c.cfg.OnConnect(ctx, c); err != nil {
			return errors.Wrap(err, "on connect")
		}
	}
	c.connected.Store(true)

	stopPing := c.startPing(ctx, conn)
	defer stopPing()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read")
		}
		c.gotData.Store(true)
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(payload)
		}
	}
}

func (c *Client) startPing(ctx context.Context, conn *websocket.Conn) (stop func()) {
	if c.cfg.PingInterval <= 0 {
		return func() {}
	}
	pingCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()
	return cancel
}
