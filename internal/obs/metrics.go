// Package obs registers the Prometheus metrics the trading core
// updates during operation, served at /metrics by cmd/trader.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_placed_total",
			Help: "Orders handed to a broker, by trade mode and side",
		},
		[]string{"mode", "side"},
	)

	OrderRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_order_rejections_total",
			Help: "Orders the broker rejected",
		},
	)

	LegExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_leg_exits_total",
			Help: "Leg exits by reason",
		},
		[]string{"reason"},
	)

	ReconcileResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_reconcile_results_total",
			Help: "Order reconciliation outcomes",
		},
		[]string{"outcome"},
	)

	WsReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_ws_reconnects_total",
			Help: "Quote stream (re)connections",
		},
	)

	AccountPnl = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_account_pnl",
			Help: "Aggregate running+booked PnL per account",
		},
		[]string{"account"},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trader_tick_duration_seconds",
			Help:    "StrategyRunner tick wall time",
			Buckets: prometheus.DefBuckets,
		},
	)
)
