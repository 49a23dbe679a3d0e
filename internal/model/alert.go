package model

import (
	"time"

	"main/internal/model/enum"
)

// Alert is a pending external trading signal addressed to one port.
// The runner consumes at most one alert per leg per tick; consumed
// alerts are never revisited.
type Alert struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	PortID uint64 `gorm:"column:port_id;index"`

	Kind           enum.AlertKind `gorm:"column:kind"`
	LotsMultiplier float64        `gorm:"column:lots_multiplier"`
	Consumed       bool           `gorm:"column:consumed"`

	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Alert) TableName() string { return "alerts" }
