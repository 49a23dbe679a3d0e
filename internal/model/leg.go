package model

import "main/internal/model/enum"

// Leg is a single option or future position with its own entry and
// exit order lifecycle. EntryExecutedPrice and ExitExecutedPrice hold
// the quantity-weighted average across accumulated fills, recomputed
// incrementally on every partial fill.
type Leg struct {
	ID     uint64 `gorm:"column:id;primaryKey"`
	PortID uint64 `gorm:"column:port_id;index"`
	Name   string `gorm:"column:name"`

	Status enum.LegStatus `gorm:"column:status"`

	Side      enum.OrderSide `gorm:"column:side"`
	OrderType enum.OrderType `gorm:"column:order_type"`
	Lots      float64        `gorm:"column:lots"`
	IsHedge   bool           `gorm:"column:is_hedge"`
	IsIdle    bool           `gorm:"column:is_idle"`

	// Instrument selection.
	OptionType  enum.OptionType `gorm:"column:option_type"`
	StrikeAlgo  enum.StrikeAlgo `gorm:"column:strike_algo"`
	StrikeParam float64         `gorm:"column:strike_param"`
	ExpiryDate  string          `gorm:"column:expiry_date"`

	// Resolved instrument, populated at entry time.
	Segment       string  `gorm:"column:segment"`
	Token         string  `gorm:"column:token"`
	TradingSymbol string  `gorm:"column:trading_symbol"`
	LotSize       int     `gorm:"column:lot_size"`
	Strike        float64 `gorm:"column:strike"`

	// Entry order tracking.
	EntryOrderID              string  `gorm:"column:entry_order_id"`
	EntryOrderStatus          string  `gorm:"column:entry_order_status"`
	EntryOrderMessage         string  `gorm:"column:entry_order_message"`
	EntryNumModificationsDone int     `gorm:"column:entry_num_modifications_done"`
	EntryFilledQty            int     `gorm:"column:entry_filled_qty"`
	EntryExecutedPrice        float64 `gorm:"column:entry_executed_price"`
	EntryQty                  int     `gorm:"column:entry_qty"`
	EntryUnderlyingPrice      float64 `gorm:"column:entry_underlying_price"`

	// Exit order tracking.
	ExitOrderID              string  `gorm:"column:exit_order_id"`
	ExitOrderStatus          string  `gorm:"column:exit_order_status"`
	ExitOrderMessage         string  `gorm:"column:exit_order_message"`
	ExitNumModificationsDone int     `gorm:"column:exit_num_modifications_done"`
	ExitFilledQty            int     `gorm:"column:exit_filled_qty"`
	ExitExecutedPrice        float64 `gorm:"column:exit_executed_price"`

	// Bounded cancel/replace. A leg undergoes at most
	// NumModifications+1 order attempts per side.
	NumModifications  int     `gorm:"column:num_modifications"`
	LimitPct          float64 `gorm:"column:limit_pct"`
	DefaultLimitPct   float64 `gorm:"column:default_limit_pct"`
	LimitOrderWaitSec int     `gorm:"column:limit_order_wait_sec"`

	// Premium stop-loss / target and underlying stop-loss.
	StopLoss     float64 `gorm:"column:stop_loss"`
	Target       float64 `gorm:"column:target"`
	UnderlyingSL float64 `gorm:"column:underlying_sl"`

	// Per-leg profit trailing.
	IfProfitReaches        float64 `gorm:"column:if_profit_reaches"`
	LockMinProfitAt        float64 `gorm:"column:lock_min_profit_at"`
	ForEveryIncreaseProfit float64 `gorm:"column:for_every_increase_in_profit"`
	TrailProfitBy          float64 `gorm:"column:trail_profit_by"`

	RunningPnl           float64 `gorm:"column:running_pnl"`
	BookedPnl            float64 `gorm:"column:booked_pnl"`
	LockedProfit         float64 `gorm:"column:locked_profit"`
	LastProfitTrailPoint float64 `gorm:"column:last_profit_trail_point"`
}

func (Leg) TableName() string { return "legs" }

// Pnl is the leg's contribution to port and account aggregates.
func (l *Leg) Pnl() float64 { return l.RunningPnl + l.BookedPnl }

// ResetPosition returns the leg to its no_position defaults, keeping
// configuration fields and accumulated BookedPnl intact.
func (l *Leg) ResetPosition() {
	l.Status = enum.LegStatusNoPosition
	l.EntryOrderID = ""
	l.EntryOrderStatus = ""
	l.EntryOrderMessage = ""
	l.EntryNumModificationsDone = 0
	l.EntryFilledQty = 0
	l.EntryExecutedPrice = 0
	l.EntryQty = 0
	l.EntryUnderlyingPrice = 0
	l.ExitOrderID = ""
	l.ExitOrderStatus = ""
	l.ExitOrderMessage = ""
	l.ExitNumModificationsDone = 0
	l.ExitFilledQty = 0
	l.ExitExecutedPrice = 0
	l.RunningPnl = 0
	l.LockedProfit = 0
	l.LastProfitTrailPoint = 0
}
