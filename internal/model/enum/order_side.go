package enum

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

func (s OrderSide) IsAvailable() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// Opposite returns the side used to flatten a position opened on s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}
