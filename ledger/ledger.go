package ledger

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"predictor/internal/id"
)

// Pipeline names used in trip records and log lines.
const (
	PipelineReal = "real"
	PipelineSim  = "sim"
)

// book is one pipeline's counters behind its own lock. Locking one book
// never touches the other.
type book struct {
	mu       sync.Mutex
	pipeline string
	marker   *Marker
	st       state
}

// Ledger is the single source of truth for whether trading is permitted and
// the only place loss and streak counters are mutated. All operations are
// synchronous and perform no network I/O; the only side effects are the
// hard-stop marker write and trip-record append.
type Ledger struct {
	limits Limits
	trips  TripSink
	log    *slog.Logger
	now    func() time.Time

	real book
	sim  book
}

// New builds a Ledger and immediately loads both hard-stop markers. A marker
// found on disk pins that pipeline to HARD_STOPPED before anything else runs,
// an unreadable one included; the other pipeline starts independently.
func New(limits Limits, bankroll float64, realMarker, simMarker *Marker, trips TripSink, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	l := &Ledger{
		limits: limits,
		trips:  trips,
		log:    log,
		now:    time.Now,
	}
	l.real = book{pipeline: PipelineReal, marker: realMarker}
	l.sim = book{pipeline: PipelineSim, marker: simMarker}

	day := utcDay(l.now())
	for _, b := range []*book{&l.real, &l.sim} {
		b.st = state{
			mode:             ModeActive,
			startingBankroll: bankroll,
			bankroll:         bankroll,
			day:              day,
		}
		rec, found, err := b.marker.Load()
		if !found {
			continue
		}
		b.st.mode = ModeHardStopped
		if err != nil {
			// Unreadable marker still means a stop happened. Stay stopped.
			b.st.tripReason = fmt.Sprintf("unreadable hard-stop marker: %v", err)
			l.log.Error("hard-stop marker unreadable, refusing to trade",
				"pipeline", b.pipeline, "path", b.marker.Path(), "err", err)
			continue
		}
		b.st.tripReason = rec.Reason
		l.log.Warn("hard stop restored from marker",
			"pipeline", b.pipeline, "code", rec.Code, "tripped_at", rec.TrippedAt)
	}
	return l
}

// Restore overwrites one pipeline's counters from a persisted snapshot.
// Called once at startup, before any loop runs, so that settlement recovery
// re-applies outcomes against the exact state that was last made durable.
// The hard-stop marker always wins over the snapshot's mode: a pipeline
// pinned HARD_STOPPED at load stays that way.
func (l *Ledger) Restore(simulated bool, snap Snapshot) {
	b := l.book(simulated)
	b.mu.Lock()
	defer b.mu.Unlock()

	hard := b.st.mode == ModeHardStopped
	reason := b.st.tripReason
	b.st.startingBankroll = snap.StartingBankroll
	b.st.bankroll = snap.Bankroll
	b.st.dailyLossUSD = snap.DailyLossUSD
	b.st.lifetimeLossUSD = snap.LifetimeLossUSD
	b.st.consecutiveLosses = snap.ConsecutiveLosses
	b.st.coolingUntil = snap.CoolingUntil
	b.st.authFailures = snap.AuthFailures
	if !hard {
		b.st.mode = snap.Mode
		b.st.tripReason = snap.TripReason
		if b.st.mode == ModeHardStopped {
			// A snapshot may claim HARD_STOPPED while the marker is gone
			// (operator cleared it out of band). The marker is the durable
			// authority, so fall back to a fresh check.
			b.st.mode = ModeActive
			b.st.tripReason = ""
		}
	} else {
		b.st.tripReason = reason
	}
}

func (l *Ledger) book(simulated bool) *book {
	if simulated {
		return &l.sim
	}
	return &l.real
}

// Snapshot returns a read-only copy of one pipeline's state.
func (l *Ledger) Snapshot(simulated bool) Snapshot {
	b := l.book(simulated)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st.snapshot()
}

// RecordOutcome applies a settled trade's P&L to the owning pipeline's
// counters and evaluates the trip rules. Losses grow the daily and lifetime
// counters and the streak; wins reset the streak. The returned error is
// non-nil only when a triggered hard stop could not be made durable.
func (l *Ledger) RecordOutcome(pnlUSD float64, simulated bool) error {
	b := l.book(simulated)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	l.rolloverLocked(b, now)

	b.st.bankroll += pnlUSD
	if pnlUSD < 0 {
		loss := -pnlUSD
		b.st.dailyLossUSD += loss
		b.st.lifetimeLossUSD += loss
		b.st.consecutiveLosses++
	} else {
		b.st.consecutiveLosses = 0
	}

	mode, err := l.transitionLocked(b, now)
	if err != nil {
		return err
	}

	// The loss-streak stop is triggered by the loss itself, with its cooling
	// window measured from that loss. It is not re-evaluated on later checks,
	// so an elapsed window clears it even while the streak stands.
	if pnlUSD < 0 && mode == ModeActive &&
		b.st.consecutiveLosses >= l.limits.MaxConsecutiveLosses {
		l.tripSoftLocked(b, now, "LOSS_STREAK",
			fmt.Sprintf("%d consecutive losses (max %d)",
				b.st.consecutiveLosses, l.limits.MaxConsecutiveLosses),
			now.Add(l.limits.CoolingDuration))
	}
	return nil
}

// CheckTransition re-evaluates the trip rules and returns the resulting
// mode. Soft stops auto-revert here once their condition clears; hard stops
// never do.
func (l *Ledger) CheckTransition(simulated bool) Mode {
	b := l.book(simulated)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	l.rolloverLocked(b, now)
	mode, err := l.transitionLocked(b, now)
	if err != nil {
		l.log.Error("hard-stop transition blocked", "pipeline", b.pipeline, "err", err)
	}
	return mode
}

// NoteAuthFailure records a failed venue authentication on the real
// pipeline. Three in a row trip a hard stop.
func (l *Ledger) NoteAuthFailure() error {
	b := &l.real
	b.mu.Lock()
	defer b.mu.Unlock()

	b.st.authFailures++
	l.log.Warn("venue auth failure", "count", b.st.authFailures)
	_, err := l.transitionLocked(b, l.now())
	return err
}

// NoteAuthSuccess clears the consecutive auth-failure counter.
func (l *Ledger) NoteAuthSuccess() {
	b := &l.real
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.authFailures = 0
}

// rolloverLocked resets the daily loss counter when the UTC day has changed.
func (l *Ledger) rolloverLocked(b *book, now time.Time) {
	today := utcDay(now)
	if b.st.day.Equal(today) {
		return
	}
	b.st.day = today
	b.st.dailyLossUSD = 0
	l.log.Info("utc day rollover, daily loss counter reset", "pipeline", b.pipeline)
}

// transitionLocked evaluates the trip rules in their fixed order and applies
// the first one that fires. With no rule firing, an elapsed soft stop
// reverts to ACTIVE.
func (l *Ledger) transitionLocked(b *book, now time.Time) (Mode, error) {
	if b.st.mode == ModeHardStopped {
		return ModeHardStopped, nil
	}

	st := &b.st
	lifetimeLimit := l.limits.LifetimeLossPct * st.startingBankroll
	dailyLimit := l.limits.DailyLossPct * st.startingBankroll

	switch {
	case st.lifetimeLossUSD >= lifetimeLimit:
		return l.tripHardLocked(b, now, "LIFETIME_LOSS",
			fmt.Sprintf("lifetime loss $%.2f reached %.0f%% of starting bankroll $%.2f",
				st.lifetimeLossUSD, 100*l.limits.LifetimeLossPct, st.startingBankroll))

	case st.bankroll <= l.limits.BankrollFloorUSD:
		return l.tripHardLocked(b, now, "BANKROLL_FLOOR",
			fmt.Sprintf("bankroll $%.2f at or below floor $%.2f",
				st.bankroll, l.limits.BankrollFloorUSD))

	case st.authFailures >= l.limits.MaxAuthFailures:
		return l.tripHardLocked(b, now, "AUTH_FAILURES",
			fmt.Sprintf("%d consecutive venue auth failures (max %d)",
				st.authFailures, l.limits.MaxAuthFailures))

	case st.dailyLossUSD >= dailyLimit:
		l.tripSoftLocked(b, now, "DAILY_LOSS",
			fmt.Sprintf("daily loss $%.2f reached %.0f%% of starting bankroll $%.2f",
				st.dailyLossUSD, 100*l.limits.DailyLossPct, st.startingBankroll),
			utcDay(now).Add(24*time.Hour))
		return ModeSoftStopped, nil
	}

	if st.mode == ModeSoftStopped && !now.Before(st.coolingUntil) {
		st.mode = ModeActive
		st.tripReason = ""
		st.coolingUntil = time.Time{}
		l.log.Info("soft stop cleared", "pipeline", b.pipeline)
	}
	return st.mode, nil
}

// tripHardLocked makes the hard stop durable before acknowledging it. If the
// marker write fails the ledger stays in its previous mode: better to remain
// in the old, safe state than to claim a stop that did not durably happen.
func (l *Ledger) tripHardLocked(b *book, now time.Time, code, reason string) (Mode, error) {
	rec := MarkerRecord{
		TrippedAt: now,
		Pipeline:  b.pipeline,
		Code:      code,
		Reason:    reason,
		ResetCode: id.New(),
	}
	if err := b.marker.Write(rec); err != nil {
		return b.st.mode, fmt.Errorf("hard stop %s not durable: %w", code, err)
	}

	b.st.mode = ModeHardStopped
	b.st.tripReason = reason
	l.log.Error("HARD STOP tripped", "pipeline", b.pipeline, "code", code,
		"reason", reason, "reset_code", rec.ResetCode)

	if l.trips != nil {
		if err := l.trips.RecordTrip(Trip{
			At: now, Pipeline: b.pipeline, Mode: ModeHardStopped, Code: code, Reason: reason,
		}); err != nil {
			// The marker is already durable; the stop stands regardless.
			l.log.Error("trip record append failed", "err", err)
			return ModeHardStopped, err
		}
	}
	return ModeHardStopped, nil
}

func (l *Ledger) tripSoftLocked(b *book, now time.Time, code, reason string, until time.Time) {
	if b.st.mode == ModeSoftStopped {
		// One soft stop at a time; a second trigger neither extends the
		// window nor appends another trip record.
		return
	}
	b.st.mode = ModeSoftStopped
	b.st.tripReason = reason
	if until.After(b.st.coolingUntil) {
		b.st.coolingUntil = until
	}
	l.log.Warn("soft stop tripped", "pipeline", b.pipeline, "code", code,
		"reason", reason, "until", b.st.coolingUntil)
	if l.trips != nil {
		if err := l.trips.RecordTrip(Trip{
			At: now, Pipeline: b.pipeline, Mode: ModeSoftStopped, Code: code, Reason: reason,
		}); err != nil {
			l.log.Error("trip record append failed", "err", err)
		}
	}
}

// ResetHardStop clears a hard stop. The token must match the reset code that
// was written into the marker (and logged) when the stop tripped; anything
// else fails closed. On success the pipeline re-anchors its starting
// bankroll to the current bankroll and zeroes every counter.
func (l *Ledger) ResetHardStop(simulated bool, token string) error {
	b := l.book(simulated)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st.mode != ModeHardStopped {
		return fmt.Errorf("%s pipeline is not hard-stopped", b.pipeline)
	}

	rec, found, err := b.marker.Load()
	if err != nil {
		return fmt.Errorf("load hard-stop marker: %w", err)
	}
	if !found {
		return fmt.Errorf("no hard-stop marker on disk for %s pipeline", b.pipeline)
	}
	if token == "" || token != rec.ResetCode {
		return fmt.Errorf("reset token does not match marker for %s pipeline", b.pipeline)
	}
	if err := b.marker.Clear(); err != nil {
		return err
	}

	b.st.mode = ModeActive
	b.st.tripReason = ""
	b.st.coolingUntil = time.Time{}
	b.st.startingBankroll = b.st.bankroll
	b.st.dailyLossUSD = 0
	b.st.lifetimeLossUSD = 0
	b.st.consecutiveLosses = 0
	b.st.authFailures = 0
	l.log.Warn("hard stop reset by operator", "pipeline", b.pipeline,
		"bankroll", b.st.bankroll)
	return nil
}
