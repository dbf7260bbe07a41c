// Package settle closes the loop between filled trades and the safety
// ledger: it polls for market outcomes, settles trades through the owning
// executor and feeds realized P&L back into the ledger exactly once.
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"predictor/exec"
	"predictor/journal"
	"predictor/ledger"
	"predictor/market"
	"predictor/metrics"
)

// OutcomeSource answers settlement queries. ok is false while the market has
// no terminal outcome yet.
type OutcomeSource interface {
	GetOutcome(ctx context.Context, ticker string) (outcome market.Outcome, ok bool, err error)
}

// Resolver reconciles filled, unsettled trades against external outcomes on
// a fixed interval.
type Resolver struct {
	journal  journal.Journal
	ledger   *ledger.Ledger
	outcomes OutcomeSource
	simExec  exec.Executor
	realExec exec.Executor
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time

	// applied holds order ids whose P&L is in the ledger but whose
	// journal flag write has not succeeded yet. Retrying the flag write
	// must not feed the P&L in a second time.
	applied map[string]struct{}
}

func NewResolver(j journal.Journal, l *ledger.Ledger, src OutcomeSource,
	simExec, realExec exec.Executor, interval time.Duration, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		journal:  j,
		ledger:   l,
		outcomes: src,
		simExec:  simExec,
		realExec: realExec,
		interval: interval,
		log:      log,
		now:      time.Now,
		applied:  make(map[string]struct{}),
	}
}

// Run recovers any half-applied settlements from a previous crash, then
// polls until the context is cancelled. A failed cycle logs and waits for
// the next tick; it never takes the process down.
func (r *Resolver) Run(ctx context.Context) error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("settlement recovery: %w", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Poll(ctx); err != nil {
				r.log.Error("settlement poll failed", "err", err)
			}
		}
	}
}

// Recover re-drives settlements whose ledger update is still unflagged. At
// startup these are rows persisted before a crash; mid-run they are rows
// whose flag write failed on an earlier cycle. Idempotent by trade id: the
// applied flag and the ledger snapshot commit together, and the applied set
// covers the window where the flag write itself is what failed.
func (r *Resolver) Recover() error {
	pending, err := r.journal.UnappliedSettlements()
	if err != nil {
		return err
	}
	for _, st := range pending {
		if err := r.applyToLedger(st); err != nil {
			return err
		}
		r.log.Warn("re-drove ledger update for settlement",
			"order_id", st.Order.ID, "pnl_usd", st.PnLUSD)
	}
	return nil
}

// Poll runs one settlement cycle: one outcome query per unique ticker, then
// settlement of every trade whose market has resolved.
func (r *Resolver) Poll(ctx context.Context) error {
	// A settlement whose flag write failed on an earlier cycle is retried
	// before new work. Left alone, the row would sit unflagged while its
	// P&L lives only in this process's ledger, and a later snapshot
	// restore would apply it a second time.
	if err := r.Recover(); err != nil {
		return fmt.Errorf("unapplied settlement retry: %w", err)
	}

	open, err := r.journal.PendingSettlement()
	if err != nil {
		return err
	}
	if len(open) == 0 {
		return nil
	}

	// One external call per unique market, never one per trade.
	byTicker := make(map[string][]journal.OpenTrade)
	for _, t := range open {
		byTicker[t.Order.Ticker] = append(byTicker[t.Order.Ticker], t)
	}

	for ticker, trades := range byTicker {
		outcome, ok, err := r.outcomes.GetOutcome(ctx, ticker)
		if err != nil {
			// Surfaced, logged, retried next cycle. One market's failure
			// must not block the others.
			r.log.Error("outcome query failed", "ticker", ticker, "err", err)
			continue
		}
		if !ok {
			continue
		}
		for _, t := range trades {
			if err := r.settleOne(t, outcome); err != nil {
				r.log.Error("settlement failed",
					"order_id", t.Order.ID, "ticker", ticker, "err", err)
			}
		}
	}
	return nil
}

func (r *Resolver) settleOne(t journal.OpenTrade, outcome market.Outcome) error {
	ex := r.realExec
	if t.Order.Simulated {
		ex = r.simExec
	}
	st := ex.Settle(t.Order, t.Fill, outcome, r.now())

	// Persist first, then apply to the ledger. A crash between the two
	// leaves an unapplied settlement that Recover re-drives.
	if err := r.journal.RecordSettlement(st); err != nil {
		return err
	}
	if err := r.applyToLedger(st); err != nil {
		return err
	}

	pipeline := ledger.PipelineReal
	if st.Order.Simulated {
		pipeline = ledger.PipelineSim
	}
	result := "loss"
	if st.Won {
		result = "win"
	}
	metrics.TradesSettled.WithLabelValues(pipeline, result).Inc()

	r.log.Info("trade settled",
		"order_id", st.Order.ID,
		"ticker", st.Order.Ticker,
		"outcome", string(outcome),
		"won", st.Won,
		"pnl_usd", st.PnLUSD,
		"simulated", st.Order.Simulated)
	return nil
}

// applyToLedger feeds realized P&L into the ledger, then flags the row and
// stores the post-apply snapshot in one transaction. Outcomes already fed in
// this process are skipped, so a retried flag write never counts the P&L
// twice.
func (r *Resolver) applyToLedger(st exec.SettledTrade) error {
	if _, done := r.applied[st.Order.ID]; !done {
		if err := r.ledger.RecordOutcome(st.PnLUSD, st.Order.Simulated); err != nil {
			return err
		}
		r.applied[st.Order.ID] = struct{}{}
	}
	pipeline := ledger.PipelineReal
	if st.Order.Simulated {
		pipeline = ledger.PipelineSim
	}
	snap := r.ledger.Snapshot(st.Order.Simulated)
	if err := r.journal.MarkLedgerApplied(st.Order.ID, pipeline, snap); err != nil {
		return err
	}
	delete(r.applied, st.Order.ID)
	return nil
}
