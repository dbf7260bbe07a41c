package market

import (
	"fmt"
	"math"
)

// Signal is a strategy's claim that one side of a market is mispriced. It
// arrives from strategy code and is treated as untrusted input: every numeric
// range is checked before the core acts on it.
type Signal struct {
	Ticker         string
	Side           Side
	EdgePct        float64 // claimed edge net of fees, e.g. 5.0 for 5%
	WinProbability float64 // model probability the chosen side wins, (0,1)
	SuggestedPrice Price
	Reason         string
}

// Validate rejects malformed signals before they reach sizing or the gate.
func (s Signal) Validate() error {
	if s.Ticker == "" {
		return fmt.Errorf("signal: empty ticker")
	}
	if !s.Side.Valid() {
		return fmt.Errorf("signal %s: invalid side %q", s.Ticker, s.Side)
	}
	if math.IsNaN(s.EdgePct) || math.IsInf(s.EdgePct, 0) || s.EdgePct <= 0 {
		return fmt.Errorf("signal %s: edge %.4f out of range", s.Ticker, s.EdgePct)
	}
	if math.IsNaN(s.WinProbability) || s.WinProbability <= 0 || s.WinProbability >= 1 {
		return fmt.Errorf("signal %s: win probability %.4f out of (0,1)", s.Ticker, s.WinProbability)
	}
	if !s.SuggestedPrice.Valid() {
		return fmt.Errorf("signal %s: price %d outside 1..99", s.Ticker, s.SuggestedPrice)
	}
	return nil
}
