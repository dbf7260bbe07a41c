// Package risk turns a strategy's claimed edge into a bounded bet size and
// gates every order through one synchronous checkpoint. Both halves are pure
// functions over their inputs: no shared state, no I/O, no suspension.
package risk

import "math"

// Stage configures sizing caps for the agent's current graduation stage.
// Early stages carry tight absolute caps regardless of bankroll.
type Stage struct {
	MinEdgePct     float64 // reject signals claiming less edge than this
	KellyFraction  float64 // conservative multiplier on full Kelly, e.g. 0.25
	MaxBetUSD      float64 // stage absolute cap per order
	MaxBankrollPct float64 // stage cap as fraction of bankroll
	GlobalCapUSD   float64 // absolute ceiling no stage may exceed
}

// SizeInputs are the sizing parameters taken from a validated signal and the
// current ledger snapshot.
type SizeInputs struct {
	EdgePct        float64
	WinProbability float64
	Bankroll       float64
}

// Size computes a fractional-Kelly bet in USD, clamped to the lowest of the
// stage absolute cap, the stage percentage-of-bankroll cap, and the global
// ceiling. The lowest cap always wins.
//
// Full Kelly is f* = (p·b − q)/b with p the win probability, q = 1−p, and b
// the payout odds implied by the market price the edge is measured against.
// Returns ok=false when any input is invalid, the edge is below the stage
// minimum, or Kelly recommends no bet.
func Size(in SizeInputs, stage Stage) (float64, bool) {
	if in.Bankroll <= 0 || in.EdgePct <= 0 {
		return 0, false
	}
	if in.WinProbability <= 0 || in.WinProbability >= 1 {
		return 0, false
	}
	if math.IsNaN(in.EdgePct) || math.IsNaN(in.WinProbability) {
		return 0, false
	}
	if in.EdgePct < stage.MinEdgePct {
		return 0, false
	}

	// The edge is the model's advantage over the market-implied probability,
	// so the implied price is winProb − edge.
	implied := in.WinProbability - in.EdgePct/100.0
	if implied <= 0 || implied >= 1 {
		return 0, false
	}

	p := in.WinProbability
	q := 1 - p
	b := (1 - implied) / implied // payout odds at the implied price
	f := (p*b - q) / b
	if f <= 0 {
		return 0, false
	}

	size := stage.KellyFraction * f * in.Bankroll

	size = math.Min(size, stage.MaxBetUSD)
	size = math.Min(size, stage.MaxBankrollPct*in.Bankroll)
	size = math.Min(size, stage.GlobalCapUSD)
	if size <= 0 {
		return 0, false
	}
	return size, true
}
