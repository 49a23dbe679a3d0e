package model

import (
	"fmt"
	"strings"
	"time"

	"main/internal/model/enum"
)

// Instrument is one master-contract row.
type Instrument struct {
	Segment        string
	Token          string
	Name           string
	Series         string
	OptionType     enum.OptionType
	StrikePrice    float64
	Expiry         time.Time
	LotSize        int
	TickSize       float64
	UnderlyingName string
}

// QuoteKey is the quote-cache key for a subscribed instrument.
func QuoteKey(segment, token string) string {
	return fmt.Sprintf("%s:%s", segment, token)
}

// SplitQuoteKey is the inverse of QuoteKey.
func SplitQuoteKey(key string) (segment, token string, ok bool) {
	i := strings.IndexByte(key, ':')
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
