package market

import "time"

// Order is an immutable bet request. Once built it is never mutated; a
// correction requires a new Order with a new ID.
type Order struct {
	ID         string
	Ticker     string
	Side       Side
	LimitPrice Price
	SizeUSD    float64
	Contracts  int
	StrategyID string
	Simulated  bool
	Reason     string
	CreatedAt  time.Time
}

// ContractsFor converts a dollar size into whole contracts at the given
// limit price. Each contract costs price cents.
func ContractsFor(sizeUSD float64, limit Price) int {
	if sizeUSD <= 0 || !limit.Valid() {
		return 0
	}
	return int(sizeUSD * 100.0 / float64(limit))
}

// CostUSD is the capital committed if the order fills at its limit price.
func (o Order) CostUSD() float64 {
	return float64(o.Contracts) * float64(o.LimitPrice) / 100.0
}
