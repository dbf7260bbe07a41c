package exec

import (
	"context"
	"time"

	"predictor/market"
)

// Compile-time interface check.
var _ Executor = (*Simulated)(nil)

// Simulated executes orders without any network I/O. Fills are derived from
// the order's own limit price with a configurable adverse-slippage
// adjustment: real fills are rarely better than quoted, so the paper
// pipeline leans conservative.
type Simulated struct {
	// SlippageTicks is how many cents of adverse movement to apply to every
	// fill. Zero is allowed; the default constructor uses one tick.
	SlippageTicks int

	now func() time.Time
}

// NewSimulated returns a Simulated executor with one tick of adverse
// slippage.
func NewSimulated() *Simulated {
	return &Simulated{SlippageTicks: 1, now: time.Now}
}

// Execute fills the order at its limit price pushed SlippageTicks against
// the bettor, clamped to the tradable 1..99 range. Buying either side means
// paying the price, so adverse always means paying more.
func (s *Simulated) Execute(_ context.Context, order market.Order) (Fill, error) {
	fillPrice := (order.LimitPrice + market.Price(s.SlippageTicks)).Clamp()

	now := s.now
	if now == nil {
		now = time.Now
	}
	return Fill{
		OrderID:  order.ID,
		Price:    fillPrice,
		FilledAt: now(),
	}, nil
}

// Settle applies the shared settlement formula.
func (s *Simulated) Settle(order market.Order, fill Fill, outcome market.Outcome, at time.Time) SettledTrade {
	return Settle(order, fill, outcome, at)
}
