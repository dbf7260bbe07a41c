// Package exec turns allowed orders into recorded fills. The simulated and
// real executors share one contract and one settlement formula; the fill
// price model is the only thing that differs between them.
package exec

import (
	"context"
	"time"

	"predictor/market"
)

// Fill is the realized outcome of executing an Order. Written once by the
// executor that produced it.
type Fill struct {
	OrderID  string
	Price    market.Price
	FilledAt time.Time
	VenueRef string // venue's own reference id; empty for simulated fills
}

// SettledTrade joins an Order and Fill with the market's terminal outcome.
type SettledTrade struct {
	Order     market.Order
	Fill      Fill
	Outcome   market.Outcome
	Won       bool
	PnLUSD    float64
	FeeUSD    float64
	SettledAt time.Time
}

// Executor is the shared execution contract.
type Executor interface {
	// Execute turns an allowed order into a fill. A failure is explicit;
	// it never silently downgrades to a successful fill.
	Execute(ctx context.Context, order market.Order) (Fill, error)

	// Settle computes the trade's terminal P&L from the fill and outcome.
	Settle(order market.Order, fill Fill, outcome market.Outcome, at time.Time) SettledTrade
}

// feeRate is the venue's taker fee coefficient: fee = 0.07 · C · p · (1−p)
// dollars for C contracts filled at probability p.
const feeRate = 0.07

// Settle is the single settlement formula used by every executor. The
// historical failure mode here is fixing the formula in one executor and not
// the other, so neither implementation carries its own copy.
//
// A win pays (100 − fill) cents per contract minus the fee; a loss forfeits
// the fill price per contract and is charged no fee. The fee is computed on
// the realized fill price, not the requested limit.
func Settle(order market.Order, fill Fill, outcome market.Outcome, at time.Time) SettledTrade {
	st := SettledTrade{
		Order:     order,
		Fill:      fill,
		Outcome:   outcome,
		Won:       outcome.Won(order.Side),
		SettledAt: at,
	}

	q := float64(order.Contracts)
	p := fill.Price.Prob()
	if st.Won {
		st.FeeUSD = feeRate * q * p * (1 - p)
		st.PnLUSD = float64(100-fill.Price)/100.0*q - st.FeeUSD
	} else {
		st.PnLUSD = -float64(fill.Price) / 100.0 * q
	}
	return st
}
