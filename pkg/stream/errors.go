package stream

import "errors"

// Sentinels callers match with errors.Is. Defined on the standard
// library so wrapping them for context keeps the chain intact.
var (
	ErrNilURL      = errors.New("stream: empty url")
	ErrNotRunning  = errors.New("stream: client not running")
	ErrCircuitOpen = errors.New("stream: reconnect budget exhausted")
)
