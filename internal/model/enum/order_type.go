package enum

type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

func (t OrderType) IsAvailable() bool {
	return t == OrderTypeLimit || t == OrderTypeMarket
}
