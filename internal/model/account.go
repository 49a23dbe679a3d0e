package model

import "main/internal/model/enum"

// Account is the persisted per-account risk state. IsLocked is set by
// a risk breach and only cleared by an operator out-of-band.
// MaxProfitReached and MaxLossReached ratchet to new extremes and
// never move back. LockedProfit1 <= LockedProfit2 always holds while
// the two-stage lock-in is armed; both reset to 0 on exit.
type Account struct {
	ID   string `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`

	TradeMode  enum.TradeMode `gorm:"column:trade_mode"`
	Multiplier float64        `gorm:"column:multiplier"`

	APIKey    string `gorm:"column:api_key"`
	APISecret string `gorm:"column:api_secret"`

	IsWsConnected bool `gorm:"column:is_ws_connected"`
	IsLocked      bool `gorm:"column:is_locked"`

	MaxProfitReached float64 `gorm:"column:max_profit_reached"`
	MaxLossReached   float64 `gorm:"column:max_loss_reached"`

	MaxLoss             float64 `gorm:"column:max_loss"`
	IfProfitReaches     float64 `gorm:"column:if_profit_reaches"`
	LockMinProfitAt     float64 `gorm:"column:lock_min_profit_at"`
	EveryIncreaseProfit float64 `gorm:"column:every_increase_in_profit"`
	TrailProfitBy       float64 `gorm:"column:trail_profit_by"`
	LockedProfit1       float64 `gorm:"column:locked_profit_1"`
	LockedProfit2       float64 `gorm:"column:locked_profit_2"`

	SquareoffTime      string `gorm:"column:squareoff_time"`
	SquareoffRequested bool   `gorm:"column:squareoff_requested"`
}

func (Account) TableName() string { return "accounts" }
