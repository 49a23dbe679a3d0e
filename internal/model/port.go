package model

// Port is one configured sub-strategy: a single underlying, its legs,
// and its own schedule and combined-exit thresholds. CombinedExitDone
// is a one-way flag. A port with ToReExecute set is cloned under a
// "_REXn" name when its combined exit fires; the clone gets fresh legs
// and IsReExecutedPort set, the original is never mutated again by
// that flow.
type Port struct {
	ID         uint64 `gorm:"column:id;primaryKey"`
	StrategyID uint64 `gorm:"column:strategy_id;index"`
	Name       string `gorm:"column:name"`

	// Intraday schedule, "HH:MM:SS" in exchange-local time.
	StartTime     string `gorm:"column:start_time"`
	StopTime      string `gorm:"column:stop_time"`
	SquareoffTime string `gorm:"column:squareoff_time"`

	CombinedSL       float64 `gorm:"column:combined_sl"`
	CombinedTarget   float64 `gorm:"column:combined_target"`
	CombinedExitDone bool    `gorm:"column:combined_exit_done"`

	ToReExecute      bool `gorm:"column:to_re_execute"`
	IsReExecutedPort bool `gorm:"column:is_re_executed_port"`

	// Underlying descriptor used for strike selection and monitoring.
	UnderlyingSegment string  `gorm:"column:underlying_segment"`
	UnderlyingToken   string  `gorm:"column:underlying_token"`
	UnderlyingName    string  `gorm:"column:underlying_name"`
	StrikeInterval    float64 `gorm:"column:strike_interval"`

	// Optional realtime monitoring band on the underlying. Entry fires
	// when LTP crosses outside [RangeLow, RangeHigh].
	MonitorRange bool    `gorm:"column:monitor_range"`
	RangeLow     float64 `gorm:"column:range_low"`
	RangeHigh    float64 `gorm:"column:range_high"`

	// Manual execute button, consumed by the runner.
	ExecuteRequested bool `gorm:"column:execute_requested"`
}

func (Port) TableName() string { return "ports" }
