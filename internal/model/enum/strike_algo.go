package enum

// StrikeAlgo selects how a leg resolves its strike from the option chain.
type StrikeAlgo string

const (
	// StrikeAlgoATM picks the strike nearest the underlying price.
	StrikeAlgoATM StrikeAlgo = "ATM"
	// StrikeAlgoATMOffset picks ATM shifted by N strike intervals.
	StrikeAlgoATMOffset StrikeAlgo = "ATM_OFFSET"
	// StrikeAlgoPremiumNearest picks the strike whose premium is closest
	// to the configured target premium.
	StrikeAlgoPremiumNearest StrikeAlgo = "PREMIUM_NEAREST"
	// StrikeAlgoPremiumLE picks the nearest strike with premium at or
	// below the target.
	StrikeAlgoPremiumLE StrikeAlgo = "PREMIUM_LE"
	// StrikeAlgoPremiumGE picks the nearest strike with premium at or
	// above the target.
	StrikeAlgoPremiumGE StrikeAlgo = "PREMIUM_GE"
	// StrikeAlgoATMDifference scans outward from ATM for the strike pair
	// with the smallest call/put premium difference.
	StrikeAlgoATMDifference StrikeAlgo = "ATM_DIFFERENCE"
)

func (a StrikeAlgo) IsAvailable() bool {
	switch a {
	case StrikeAlgoATM, StrikeAlgoATMOffset, StrikeAlgoPremiumNearest,
		StrikeAlgoPremiumLE, StrikeAlgoPremiumGE, StrikeAlgoATMDifference:
		return true
	default:
		return false
	}
}
