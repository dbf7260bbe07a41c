// Package journal persists the core's records: orders, fills, settlements,
// ledger snapshots and safety-trip records, all keyed by order id. Every
// write failure propagates as a hard error; callers must treat an
// unconfirmed write as a reason to stop, not to proceed.
package journal

import (
	"time"

	"predictor/exec"
	"predictor/ledger"
	"predictor/market"
)

// Order status lifecycle. An order is recorded "open" inside the gate's lock
// domain, becomes "filled" when its executor returns, "settled" when the
// resolver applies a terminal outcome, and "failed" if execution errored —
// a terminal state that frees the market+strategy slot.
const (
	StatusOpen    = "open"
	StatusFilled  = "filled"
	StatusSettled = "settled"
	StatusFailed  = "failed"
)

// OpenTrade is a filled, not-yet-settled order as the resolver sees it.
type OpenTrade struct {
	Order          market.Order
	Fill           exec.Fill
	WinProbability float64
}

// StrategyAggregate summarizes settled trades for one strategy, split by
// pipeline. CalibrationMSE is the mean squared error between the entry win
// probability and the realized 0/1 outcome.
type StrategyAggregate struct {
	StrategyID     string
	Simulated      bool
	Settled        int
	Wins           int
	WinRate        float64
	PnLUSD         float64
	CalibrationMSE float64
}

// DailyPnL is realized P&L for one UTC day and pipeline.
type DailyPnL struct {
	Day       string // YYYY-MM-DD
	Simulated bool
	Settled   int
	Wins      int
	PnLUSD    float64
	FeesUSD   float64
}

// Journal is the persistence contract the core writes through.
type Journal interface {
	// RecordOrder persists a gate-approved order with status "open".
	RecordOrder(order market.Order, winProbability float64) error
	// RecordFill persists the fill and moves the order to "filled".
	RecordFill(fill exec.Fill) error
	// MarkOrderFailed terminally fails an order whose execution errored.
	MarkOrderFailed(orderID, reason string) error

	// HasOpenOrder reports whether an unsettled order exists for the same
	// market+strategy+pipeline. The engine calls this inside its
	// submission lock so the answer holds at decision time.
	HasOpenOrder(ticker, strategyID string, simulated bool) (bool, error)

	// PendingSettlement lists filled orders awaiting an outcome.
	PendingSettlement() ([]OpenTrade, error)
	// RecordSettlement persists the settled trade with the ledger update
	// still pending.
	RecordSettlement(st exec.SettledTrade) error
	// MarkLedgerApplied flags the settlement as applied and stores the
	// post-apply ledger snapshot in one transaction, closing the
	// settlement's recovery unit.
	MarkLedgerApplied(orderID, pipeline string, snap ledger.Snapshot) error
	// UnappliedSettlements lists settlements whose ledger update is still
	// pending; the resolver re-drives these at startup and on every poll
	// cycle, exactly once per trade id.
	UnappliedSettlements() ([]exec.SettledTrade, error)

	// LoadLedgerSnapshot returns the last persisted snapshot for a
	// pipeline, if any.
	LoadLedgerSnapshot(pipeline string) (ledger.Snapshot, bool, error)
	SaveLedgerSnapshot(pipeline string, snap ledger.Snapshot) error

	// RecordTrip appends a safety-trip record. Satisfies ledger.TripSink.
	RecordTrip(t ledger.Trip) error

	Close() error
}

// Reporter is the read side consumed by operator tooling.
type Reporter interface {
	GetTrade(orderID string) (OpenTrade, error)
	ListTradesSettledBetween(start, end time.Time) ([]exec.SettledTrade, error)
	StrategyAggregates() ([]StrategyAggregate, error)
	DailyReport(start, end time.Time) ([]DailyPnL, error)
	ListTrips(limit int) ([]ledger.Trip, error)
}
