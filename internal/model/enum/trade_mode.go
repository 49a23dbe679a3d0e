package enum

// TradeMode selects between live broker orders and simulated fills.
type TradeMode string

const (
	TradeModeLive  TradeMode = "Live"
	TradeModePaper TradeMode = "Paper"
)

func (m TradeMode) IsAvailable() bool {
	return m == TradeModeLive || m == TradeModePaper
}

func (m TradeMode) IsPaper() bool {
	return m == TradeModePaper
}
