package enum

// PositionType is the direction a leg profits in, derived from the
// instrument kind and the trade side.
type PositionType string

const (
	PositionTypeBullish PositionType = "BULLISH"
	PositionTypeBearish PositionType = "BEARISH"
)

// DerivePositionType maps instrument kind x trade side to a direction.
// Long calls and long futures are bullish, long puts bearish; selling
// flips the direction.
func DerivePositionType(opt OptionType, side OrderSide) PositionType {
	bullish := opt == OptionTypeCall || opt == OptionTypeFuture
	if opt == OptionTypePut {
		bullish = false
	}
	if side == OrderSideSell {
		bullish = !bullish
	}
	if bullish {
		return PositionTypeBullish
	}
	return PositionTypeBearish
}
