// Package ledger holds the process-wide safety state for the trading agent:
// bankroll, loss counters, stop modes and the durable hard-stop marker.
//
// Real and simulated trading keep fully independent counter sets behind
// independent locks, so a stop on real trading never blocks the simulated
// pipeline that collects calibration evidence.
package ledger

import "time"

// Mode is the ledger's trading permission state.
type Mode string

const (
	ModeActive      Mode = "ACTIVE"
	ModeSoftStopped Mode = "SOFT_STOPPED"
	ModeHardStopped Mode = "HARD_STOPPED"
)

// Limits configures the safety trip thresholds.
type Limits struct {
	// LifetimeLossPct trips a hard stop when lifetime losses reach this
	// fraction of the starting bankroll.
	LifetimeLossPct float64
	// BankrollFloorUSD trips a hard stop when bankroll falls to or below it.
	BankrollFloorUSD float64
	// MaxAuthFailures trips a hard stop after this many consecutive
	// authentication failures against the venue.
	MaxAuthFailures int
	// DailyLossPct trips a soft stop until the next UTC day when daily
	// losses reach this fraction of the starting bankroll.
	DailyLossPct float64
	// MaxConsecutiveLosses trips a soft stop for CoolingDuration.
	MaxConsecutiveLosses int
	CoolingDuration      time.Duration
}

// DefaultLimits returns the stock trip thresholds.
func DefaultLimits() Limits {
	return Limits{
		LifetimeLossPct:      0.30,
		BankrollFloorUSD:     25,
		MaxAuthFailures:      3,
		DailyLossPct:         0.15,
		MaxConsecutiveLosses: 4,
		CoolingDuration:      2 * time.Hour,
	}
}

// state is the mutable counter set for one pipeline (real or simulated).
// Every field is guarded by the owning book's mutex.
type state struct {
	mode              Mode
	startingBankroll  float64
	bankroll          float64
	dailyLossUSD      float64
	lifetimeLossUSD   float64
	consecutiveLosses int
	coolingUntil      time.Time
	authFailures      int
	tripReason        string
	day               time.Time // UTC day anchor for the daily counter
}

// Snapshot is a read-only copy of one pipeline's state. Callers get values,
// never a handle that can mutate the ledger.
type Snapshot struct {
	Mode              Mode
	StartingBankroll  float64
	Bankroll          float64
	DailyLossUSD      float64
	LifetimeLossUSD   float64
	ConsecutiveLosses int
	CoolingUntil      time.Time
	AuthFailures      int
	TripReason        string
}

func (s *state) snapshot() Snapshot {
	return Snapshot{
		Mode:              s.mode,
		StartingBankroll:  s.startingBankroll,
		Bankroll:          s.bankroll,
		DailyLossUSD:      s.dailyLossUSD,
		LifetimeLossUSD:   s.lifetimeLossUSD,
		ConsecutiveLosses: s.consecutiveLosses,
		CoolingUntil:      s.coolingUntil,
		AuthFailures:      s.authFailures,
		TripReason:        s.tripReason,
	}
}

// Trip is the durable, human-readable record of a safety trip: which rule
// fired and the exact values that fired it.
type Trip struct {
	At       time.Time
	Pipeline string // "real" or "sim"
	Mode     Mode
	Code     string
	Reason   string
}

// TripSink receives trip records for durable storage.
type TripSink interface {
	RecordTrip(Trip) error
}

// utcDay returns the UTC midnight anchor for t.
func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
