package model

import (
	"time"

	"main/internal/model/enum"
)

// Order is the audit row written for every order handed to a broker.
type Order struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	AccountID string `gorm:"column:account_id;index"`
	LegID     uint64 `gorm:"column:leg_id;index"`

	BrokerOrderID string         `gorm:"column:broker_order_id"`
	Segment       string         `gorm:"column:segment"`
	Token         string         `gorm:"column:token"`
	Side          enum.OrderSide `gorm:"column:side"`
	OrderType     enum.OrderType `gorm:"column:order_type"`
	Qty           int            `gorm:"column:qty"`
	Price         float64        `gorm:"column:price"`
	Message       string         `gorm:"column:message"`

	PlacedAt time.Time `gorm:"column:placed_at"`
}

func (Order) TableName() string { return "orders" }
