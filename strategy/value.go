package strategy

import (
	"context"
	"fmt"

	"predictor/market"
)

func init() {
	Register("value", func() Strategy { return &Value{MaxAsk: 40, WinProbability: 0.52} })
	Register("noop", func() Strategy { return Noop{} })
}

// Value is a deliberately simple baseline: it buys YES when the ask is cheap
// relative to a fixed model probability. It exists so the agent can run
// end-to-end in simulated mode and produce calibration evidence; it is not
// expected to have real edge.
type Value struct {
	MaxAsk         market.Price
	WinProbability float64
}

func (v *Value) ID() string { return "value" }

func (v *Value) Evaluate(_ context.Context, q market.Quote) (market.Signal, bool, error) {
	if !q.Bid.Valid() || !q.Ask.Valid() || q.Ask > v.MaxAsk {
		return market.Signal{}, false, nil
	}
	// Edge is measured against the book midpoint; the order still pays the
	// ask.
	mid := q.Mid()
	edge := (v.WinProbability - mid.Prob()) * 100
	if edge <= 0 {
		return market.Signal{}, false, nil
	}
	return market.Signal{
		Ticker:         q.Ticker,
		Side:           market.SideYes,
		EdgePct:        edge,
		WinProbability: v.WinProbability,
		SuggestedPrice: q.Ask,
		Reason:         fmt.Sprintf("model prob %.2f above mid %d, ask %d", v.WinProbability, mid, q.Ask),
	}, true, nil
}

// Noop never signals. Useful for wiring tests and as an explicit off switch.
type Noop struct{}

func (Noop) ID() string { return "noop" }

func (Noop) Evaluate(context.Context, market.Quote) (market.Signal, bool, error) {
	return market.Signal{}, false, nil
}
