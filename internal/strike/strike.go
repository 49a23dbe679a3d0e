// Package strike resolves which option contract a leg should trade.
// All algorithms are pure over an option chain plus a quote lookup.
package strike

import (
	"context"
	"errors"
	"fmt"
	"math"

	"main/internal/model"
	"main/internal/model/enum"
)

// Sentinels callers match with errors.Is.
var (
	ErrEmptyChain    = errors.New("strike: empty option chain")
	ErrNoMatch       = errors.New("strike: no instrument matches")
	ErrBadAlgo       = errors.New("strike: unknown selection algorithm")
	ErrScanExhausted = errors.New("strike: scan depth exhausted")
)

// QuoteFunc returns the last traded price for an instrument.
type QuoteFunc func(ctx context.Context, segment, token string) (float64, error)

// ChainProvider returns the catalog rows for one underlying, expiry
// and option kind, sorted by strike.
type ChainProvider interface {
	OptionChain(underlying, expiry string, optType enum.OptionType) []model.Instrument
}

// ATM rounds the underlying price to the nearest strike interval.
func ATM(underlying, interval float64) float64 {
	if interval <= 0 {
		return underlying
	}
	return math.Round(underlying/interval) * interval
}

// Resolve picks the instrument for a leg using its configured
// algorithm. underlyingLtp is the live underlying price.
func Resolve(ctx context.Context, leg model.Leg, port model.Port, chains ChainProvider, quote QuoteFunc, underlyingLtp float64) (model.Instrument, error) {
	if leg.OptionType == enum.OptionTypeFuture {
		return nearestFuture(chains.OptionChain(port.UnderlyingName, leg.ExpiryDate, enum.OptionTypeFuture))
	}

	chain := chains.OptionChain(port.UnderlyingName, leg.ExpiryDate, leg.OptionType)
	if len(chain) == 0 {
		return model.Instrument{}, fmt.Errorf("%s: %w", port.UnderlyingName, ErrEmptyChain)
	}

	atm := ATM(underlyingLtp, port.StrikeInterval)

	switch leg.StrikeAlgo {
	case enum.StrikeAlgoATM:
		return byStrike(chain, atm)
	case enum.StrikeAlgoATMOffset:
		return ByATMOffset(chain, atm, port.StrikeInterval, leg.StrikeParam, leg.OptionType)
	case enum.StrikeAlgoPremiumNearest:
		return ByPremium(ctx, chain, quote, leg.StrikeParam, premiumNearest)
	case enum.StrikeAlgoPremiumLE:
		return ByPremium(ctx, chain, quote, leg.StrikeParam, premiumLE)
	case enum.StrikeAlgoPremiumGE:
		return ByPremium(ctx, chain, quote, leg.StrikeParam, premiumGE)
	case enum.StrikeAlgoATMDifference:
		strike, err := ByATMDifference(ctx, chains, port, leg.ExpiryDate, quote, atm)
		if err != nil {
			return model.Instrument{}, err
		}
		return byStrike(chain, strike)
	default:
		return model.Instrument{}, fmt.Errorf("%s: %w", leg.StrikeAlgo, ErrBadAlgo)
	}
}

// ByATMOffset shifts the ATM strike by offset intervals away from the
// money: higher strikes for calls, lower for puts. A negative offset
// selects in-the-money strikes.
func ByATMOffset(chain []model.Instrument, atm, interval, offset float64, optType enum.OptionType) (model.Instrument, error) {
	target := atm + offset*interval
	if optType == enum.OptionTypePut {
		target = atm - offset*interval
	}
	return byStrike(chain, target)
}

type premiumCompare uint8

const (
	premiumNearest premiumCompare = iota
	premiumLE
	premiumGE
)

// ByPremium scans the whole chain for the instrument whose live
// premium best satisfies the comparison against the target premium.
func ByPremium(ctx context.Context, chain []model.Instrument, quote QuoteFunc, target float64, cmp premiumCompare) (model.Instrument, error) {
	if len(chain) == 0 {
		return model.Instrument{}, ErrEmptyChain
	}

	best := model.Instrument{}
	bestDiff := math.MaxFloat64
	found := false
	for _, inst := range chain {
		premium, err := quote(ctx, inst.Segment, inst.Token)
		if err != nil {
			continue
		}
		diff := math.Abs(premium - target)
		switch cmp {
		case premiumLE:
			if premium > target {
				continue
			}
		case premiumGE:
			if premium < target {
				continue
			}
		}
		if diff < bestDiff {
			best, bestDiff, found = inst, diff, true
		}
	}
	if !found {
		return model.Instrument{}, ErrNoMatch
	}
	return best, nil
}

// atmDifferenceMaxSteps bounds the outward scan.
const atmDifferenceMaxSteps = 10

// ByATMDifference walks outward from ATM one interval per iteration,
// stepping both checking strikes cumulatively, and returns the strike
// where the call and put premiums are closest. The synthetic ATM this
// yields is where the market prices the underlying, which may differ
// from the spot-derived ATM around events.
func ByATMDifference(ctx context.Context, chains ChainProvider, port model.Port, expiry string, quote QuoteFunc, atm float64) (float64, error) {
	calls := chains.OptionChain(port.UnderlyingName, expiry, enum.OptionTypeCall)
	puts := chains.OptionChain(port.UnderlyingName, expiry, enum.OptionTypePut)
	if len(calls) == 0 || len(puts) == 0 {
		return 0, ErrEmptyChain
	}

	premiumDiff := func(strikePrice float64) (float64, bool) {
		call, errC := byStrike(calls, strikePrice)
		put, errP := byStrike(puts, strikePrice)
		if errC != nil || errP != nil {
			return 0, false
		}
		callLtp, errC := quote(ctx, call.Segment, call.Token)
		putLtp, errP := quote(ctx, put.Segment, put.Token)
		if errC != nil || errP != nil {
			return 0, false
		}
		return math.Abs(callLtp - putLtp), true
	}

	bestStrike := atm
	bestDiff, ok := premiumDiff(atm)
	if !ok {
		bestDiff = math.MaxFloat64
	}

	checking1, checking2 := atm, atm
	for step := 0; step < atmDifferenceMaxSteps; step++ {
		checking1 -= port.StrikeInterval
		checking2 += port.StrikeInterval
		for _, candidate := range []float64{checking1, checking2} {
			diff, ok := premiumDiff(candidate)
			if !ok {
				continue
			}
			if diff < bestDiff {
				bestStrike, bestDiff = candidate, diff
			}
		}
	}

	if bestDiff == math.MaxFloat64 {
		return 0, ErrScanExhausted
	}
	return bestStrike, nil
}

func byStrike(chain []model.Instrument, strikePrice float64) (model.Instrument, error) {
	if len(chain) == 0 {
		return model.Instrument{}, ErrEmptyChain
	}
	best := chain[0]
	bestDiff := math.Abs(chain[0].StrikePrice - strikePrice)
	for _, inst := range chain[1:] {
		diff := math.Abs(inst.StrikePrice - strikePrice)
		if diff < bestDiff {
			best, bestDiff = inst, diff
		}
	}
	return best, nil
}

func nearestFuture(chain []model.Instrument) (model.Instrument, error) {
	if len(chain) == 0 {
		return model.Instrument{}, ErrEmptyChain
	}
	best := chain[0]
	for _, inst := range chain[1:] {
		if inst.Expiry.Before(best.Expiry) {
			best = inst
		}
	}
	return best, nil
}
