package model

import (
	"time"

	"main/internal/model/enum"
)

// Log is an operator-visible audit entry.
type Log struct {
	ID     uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	PortID uint64 `gorm:"column:port_id;index"`

	Level enum.LogLevel `gorm:"column:level"`
	Text  string        `gorm:"column:text"`

	At time.Time `gorm:"column:at"`
}

func (Log) TableName() string { return "logs" }
