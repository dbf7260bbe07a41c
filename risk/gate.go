package risk

import (
	"fmt"

	"predictor/ledger"
	"predictor/market"
)

// Policy configures the gate's limits. The gate itself holds no mutable
// state; the caller supplies the ledger snapshot and open-order check taken
// inside the same lock domain as the decision.
type Policy struct {
	BankrollFloorUSD  float64 // no order may drop bankroll below this
	MaxOrderPct       float64 // max order size as fraction of bankroll
	MinMinutesToClose float64 // refuse markets closing sooner than this
}

// Decision is the gate's answer. A denial is a first-class result, not an
// error: the code and reason exist for the audit trail.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

func deny(code, format string, args ...any) Decision {
	return Decision{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// GateInputs carries everything the gate consults. OpenOrderExists must be
// evaluated against the order store at the same logical instant as this
// call — the engine holds its submission lock across check, size and record.
type GateInputs struct {
	Order           market.Order
	Ledger          ledger.Snapshot
	MinutesToClose  float64
	OpenOrderExists bool
}

// Allow runs the mandatory pre-execution checks in order and stops at the
// first failure. It observes the ledger snapshot, never mutates it.
func (p Policy) Allow(in GateInputs) Decision {
	o := in.Order

	if !o.LimitPrice.Valid() {
		return deny("BAD_PRICE", "limit price %d outside 1..99", o.LimitPrice)
	}
	if o.SizeUSD <= 0 || o.Contracts <= 0 {
		return deny("BAD_SIZE", "size $%.2f / %d contracts not positive", o.SizeUSD, o.Contracts)
	}
	if !o.Side.Valid() {
		return deny("BAD_SIDE", "invalid side %q", o.Side)
	}

	switch in.Ledger.Mode {
	case ledger.ModeHardStopped:
		return deny("HARD_STOPPED", "trading hard-stopped: %s", in.Ledger.TripReason)
	case ledger.ModeSoftStopped:
		return deny("SOFT_STOPPED", "trading soft-stopped until %s: %s",
			in.Ledger.CoolingUntil.Format("15:04:05Z"), in.Ledger.TripReason)
	}

	// Capital checks run against the cost of the whole contracts actually
	// bought, not the pre-truncation dollar size. The absolute floor is the
	// harder constraint and must not be masked by a looser percentage check
	// passing first.
	cost := o.CostUSD()
	if in.Ledger.Bankroll-cost < p.BankrollFloorUSD {
		return deny("BANKROLL_FLOOR", "order $%.2f would drop bankroll $%.2f below floor $%.2f",
			cost, in.Ledger.Bankroll, p.BankrollFloorUSD)
	}
	if cost > p.MaxOrderPct*in.Ledger.Bankroll {
		return deny("SIZE_PCT", "order $%.2f exceeds %.0f%% of bankroll $%.2f",
			cost, 100*p.MaxOrderPct, in.Ledger.Bankroll)
	}

	if in.MinutesToClose <= p.MinMinutesToClose {
		return deny("MARKET_CLOSING", "%.1f minutes to close, need more than %.1f",
			in.MinutesToClose, p.MinMinutesToClose)
	}

	if in.OpenOrderExists {
		return deny("DUPLICATE_OPEN", "open order already exists for %s/%s",
			o.Ticker, o.StrategyID)
	}

	return Decision{Allowed: true, Code: "OK"}
}
