package enum

// OptionType is the instrument kind a leg trades.
type OptionType string

const (
	OptionTypeCall   OptionType = "CE"
	OptionTypePut    OptionType = "PE"
	OptionTypeFuture OptionType = "FUT"
)

func (t OptionType) IsAvailable() bool {
	switch t {
	case OptionTypeCall, OptionTypePut, OptionTypeFuture:
		return true
	default:
		return false
	}
}

// IsOption reports whether t has a strike.
func (t OptionType) IsOption() bool {
	return t == OptionTypeCall || t == OptionTypePut
}
