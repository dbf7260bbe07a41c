// Package market defines the domain value types shared across the trading
// core: contract prices in cents, YES/NO sides, market outcomes and quotes.
package market

import "time"

// Price is a contract price in whole cents. A binary contract pays 100 cents
// to the winning side, so every tradable price sits strictly inside 1..99 —
// a price of 0 or 100 would mean a settled market.
type Price int

const (
	MinPrice Price = 1
	MaxPrice Price = 99
)

// Valid reports whether p is a tradable price.
func (p Price) Valid() bool {
	return p >= MinPrice && p <= MaxPrice
}

// Prob returns the market-implied probability for a YES contract at price p.
func (p Price) Prob() float64 {
	return float64(p) / 100.0
}

// Clamp forces p back into the tradable 1..99 range.
func (p Price) Clamp() Price {
	if p < MinPrice {
		return MinPrice
	}
	if p > MaxPrice {
		return MaxPrice
	}
	return p
}

// Side is one of the two mutually exclusive contract outcomes a bet can back.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Outcome is the terminal result of a market once it settles.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Won reports whether a bet on side wins under this outcome.
func (o Outcome) Won(side Side) bool {
	return string(o) == string(side)
}

// Quote is a point-in-time view of a market's book.
type Quote struct {
	Ticker         string
	Bid            Price
	Ask            Price
	MinutesToClose float64
	Time           time.Time
}

// Mid returns the midpoint of bid and ask, rounded down.
func (q Quote) Mid() Price {
	return (q.Bid + q.Ask) / 2
}
