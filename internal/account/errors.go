package account

import "errors"

// Sentinels callers match with errors.Is. Defined on the standard
// library so wrapping them for context keeps the chain intact.
var (
	ErrLtpTimeout        = errors.New("account: ltp not available within poll window")
	ErrSessionUnusable   = errors.New("account: session unusable, retry later")
	ErrNoMasterContract  = errors.New("account: master contract not available")
	ErrUnknownInstrument = errors.New("account: instrument not in catalog")
)
