// Package alerts ingests external trading signals and persists them
// as pending alert rows for the runner to consume.
package alerts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
)

// Subject carries TradingView-style webhook alerts relayed onto the
// bus by the ingress edge.
const Subject = "alerts.tradingview"

// Payload is the wire form of one alert.
type Payload struct {
	PortID         uint64  `json:"port_id"`
	Kind           string  `json:"kind"`
	LotsMultiplier float64 `json:"lots_multiplier"`
}

// Consumer subscribes to the alert subject and writes pending alert
// rows. Malformed or unknown payloads are logged and dropped; the
// runner never sees them.
type Consumer struct {
	nc    *nats.Conn
	store store.Store
	sub   *nats.Subscription
}

func NewConsumer(url string, st store.Store) (*Consumer, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logs.Errorf("alert bus disconnected, err: %+v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logs.Info("alert bus reconnected")
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect alert bus")
	}
	return &Consumer{nc: nc, store: st}, nil
}

// Start begins consuming. It returns once the subscription is live.
func (c *Consumer) Start() error {
	sub, err := c.nc.Subscribe(Subject, c.handle)
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", Subject)
	}
	c.sub = sub
	logs.Infof("alert consumer listening on %s", Subject)
	return nil
}

// Close drains in-flight messages before disconnecting.
func (c *Consumer) Close() error {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			logs.Errorf("unsubscribe failed, err: %+v", err)
		}
	}
	return c.nc.Drain()
}

func (c *Consumer) handle(msg *nats.Msg) {
	var p Payload
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		logs.Errorf("drop malformed alert, err: %+v", err)
		return
	}

	kind := enum.AlertKind(p.Kind)
	if p.PortID == 0 || !kind.IsAvailable() {
		logs.Errorf("drop alert, port: %d, kind: %s", p.PortID, p.Kind)
		return
	}

	alert := &model.Alert{
		PortID:         p.PortID,
		Kind:           kind,
		LotsMultiplier: p.LotsMultiplier,
		CreatedAt:      time.Now(),
	}
	if err := c.store.AddAlert(context.Background(), alert); err != nil {
		logs.Errorf("persist alert failed, port: %d, err: %+v", p.PortID, err)
		return
	}
	logs.Infof("alert queued, port: %d, kind: %s", p.PortID, kind)
}
