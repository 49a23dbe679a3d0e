package model

// Strategy is the top-level owner of ports. MaxLossHit is a one-way
// flag; nothing in this subsystem clears it.
type Strategy struct {
	ID        uint64 `gorm:"column:id;primaryKey"`
	Name      string `gorm:"column:name"`
	AccountID string `gorm:"column:account_id"`

	Enabled            bool    `gorm:"column:enabled"`
	MaxLoss            float64 `gorm:"column:max_loss"`
	MaxLossHit         bool    `gorm:"column:max_loss_hit"`
	TotalPnl           float64 `gorm:"column:total_pnl"`
	LotsMultiplier     float64 `gorm:"column:lots_multiplier"`
	SquareoffRequested bool    `gorm:"column:squareoff_requested"`
}

func (Strategy) TableName() string { return "strategies" }
