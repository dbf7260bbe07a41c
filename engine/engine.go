// Package engine runs the trading agent: one polling loop per strategy plus
// the settlement loop, all funneling through a single order gate. The
// gate-check, sizing decision and open-order record happen under one lock so
// no two loops can pass the gate for the same market+strategy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"predictor/exec"
	"predictor/internal/id"
	"predictor/journal"
	"predictor/ledger"
	"predictor/market"
	"predictor/metrics"
	"predictor/risk"
	"predictor/settle"
	"predictor/strategy"
	"predictor/venue"
)

// QuoteSource supplies current market state for signal evaluation and the
// gate's minutes-to-close check.
type QuoteSource interface {
	GetQuote(ctx context.Context, ticker string) (market.Quote, error)
}

// Loop binds one strategy to the markets it polls and the pipeline its
// orders belong to.
type Loop struct {
	Strategy  strategy.Strategy
	Markets   []string
	Simulated bool
}

// Engine owns the loops and the single submission lock.
type Engine struct {
	quotes   QuoteSource
	journal  journal.Journal
	ledger   *ledger.Ledger
	gate     risk.Policy
	stage    risk.Stage
	simExec  exec.Executor
	realExec exec.Executor
	resolver *settle.Resolver
	interval time.Duration
	log      *slog.Logger

	// submitMu is the mutual-exclusion domain around gate check, sizing
	// decision and open-order record. Executor I/O happens outside it.
	submitMu sync.Mutex

	loops []Loop
}

func New(quotes QuoteSource, j journal.Journal, l *ledger.Ledger,
	gate risk.Policy, stage risk.Stage,
	simExec, realExec exec.Executor, resolver *settle.Resolver,
	interval time.Duration, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		quotes:   quotes,
		journal:  j,
		ledger:   l,
		gate:     gate,
		stage:    stage,
		simExec:  simExec,
		realExec: realExec,
		resolver: resolver,
		interval: interval,
		log:      log,
	}
}

// AddLoop registers a strategy loop before Run is called.
func (e *Engine) AddLoop(l Loop) {
	e.loops = append(e.loops, l)
}

// Run restores ledger state from the journal, starts every loop at a
// staggered offset plus the settlement loop, and blocks until the context
// is cancelled. On the way out it reconciles unflagged settlements, then
// persists final ledger snapshots.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.restoreLedger(); err != nil {
		return err
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := e.resolver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Error("settlement loop exited", "err", err)
		}
	}()

	stagger := e.interval / time.Duration(len(e.loops)+1)
	for i, loop := range e.loops {
		wg.Add(1)
		go func(offset time.Duration, l Loop) {
			defer wg.Done()
			e.runLoop(ctx, offset, l)
		}(time.Duration(i)*stagger, loop)
	}

	<-ctx.Done()
	wg.Wait()

	// In-flight executor calls have finished or failed by now. Any
	// settlement still unflagged gets one more reconcile pass before the
	// final snapshots are written; if the flag write still fails, the
	// snapshots stay untouched so the next startup restores the last
	// flag-consistent state and re-drives the row once.
	if err := e.resolver.Recover(); err != nil {
		e.log.Error("settlement reconcile failed, keeping previous snapshots", "err", err)
		return ctx.Err()
	}
	if err := e.persistSnapshots(); err != nil {
		return fmt.Errorf("persist final ledger state: %w", err)
	}
	e.log.Info("engine stopped")
	return ctx.Err()
}

func (e *Engine) restoreLedger() error {
	for _, p := range []struct {
		name      string
		simulated bool
	}{{ledger.PipelineReal, false}, {ledger.PipelineSim, true}} {
		snap, found, err := e.journal.LoadLedgerSnapshot(p.name)
		if err != nil {
			return err
		}
		if found {
			e.ledger.Restore(p.simulated, snap)
			e.log.Info("ledger restored", "pipeline", p.name,
				"bankroll", snap.Bankroll, "mode", string(e.ledger.Snapshot(p.simulated).Mode))
		}
		e.publishLedger(p.simulated)
	}
	return nil
}

func (e *Engine) persistSnapshots() error {
	for _, p := range []struct {
		name      string
		simulated bool
	}{{ledger.PipelineReal, false}, {ledger.PipelineSim, true}} {
		if err := e.journal.SaveLedgerSnapshot(p.name, e.ledger.Snapshot(p.simulated)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) publishLedger(simulated bool) {
	pipeline := ledger.PipelineReal
	if simulated {
		pipeline = ledger.PipelineSim
	}
	snap := e.ledger.Snapshot(simulated)
	metrics.Bankroll.WithLabelValues(pipeline).Set(snap.Bankroll)
	metrics.LedgerMode.WithLabelValues(pipeline).Set(metrics.ModeValue(string(snap.Mode)))
}

func (e *Engine) runLoop(ctx context.Context, offset time.Duration, l Loop) {
	log := e.log.With("strategy", l.Strategy.ID(), "simulated", l.Simulated)

	select {
	case <-ctx.Done():
		return
	case <-time.After(offset):
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.pollOnce(ctx, l, log)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce evaluates the strategy against each of its markets. An error on
// one market logs and moves on: a single failed order must never halt
// unrelated work.
func (e *Engine) pollOnce(ctx context.Context, l Loop, log *slog.Logger) {
	e.ledger.CheckTransition(l.Simulated)
	e.publishLedger(l.Simulated)

	for _, tkr := range l.Markets {
		quote, err := e.quotes.GetQuote(ctx, tkr)
		if err != nil {
			log.Error("quote fetch failed", "ticker", tkr, "err", err)
			continue
		}

		sig, ok, err := l.Strategy.Evaluate(ctx, quote)
		if err != nil {
			log.Error("strategy evaluation failed", "ticker", tkr, "err", err)
			continue
		}
		if !ok {
			continue
		}
		if err := sig.Validate(); err != nil {
			log.Warn("rejected malformed signal", "err", err)
			continue
		}

		if err := e.submit(ctx, sig, l.Strategy.ID(), l.Simulated, quote.MinutesToClose); err != nil {
			log.Error("submission failed", "ticker", tkr, "err", err)
		}
	}
}

// submit sizes the signal, runs the gate and records the order as one
// non-interruptible sequence, then executes outside the lock.
func (e *Engine) submit(ctx context.Context, sig market.Signal, strategyID string, simulated bool, minutesToClose float64) error {
	pipeline := ledger.PipelineReal
	ex := e.realExec
	if simulated {
		pipeline = ledger.PipelineSim
		ex = e.simExec
	}

	e.submitMu.Lock()

	snap := e.ledger.Snapshot(simulated)
	sizeUSD, ok := risk.Size(risk.SizeInputs{
		EdgePct:        sig.EdgePct,
		WinProbability: sig.WinProbability,
		Bankroll:       snap.Bankroll,
	}, e.stage)
	if !ok {
		e.submitMu.Unlock()
		return nil
	}

	order := market.Order{
		ID:         id.New(),
		Ticker:     sig.Ticker,
		Side:       sig.Side,
		LimitPrice: sig.SuggestedPrice,
		SizeUSD:    sizeUSD,
		Contracts:  market.ContractsFor(sizeUSD, sig.SuggestedPrice),
		StrategyID: strategyID,
		Simulated:  simulated,
		Reason:     sig.Reason,
		CreatedAt:  time.Now(),
	}

	openExists, err := e.journal.HasOpenOrder(order.Ticker, order.StrategyID, simulated)
	if err != nil {
		e.submitMu.Unlock()
		return err
	}

	dec := e.gate.Allow(risk.GateInputs{
		Order:           order,
		Ledger:          snap,
		MinutesToClose:  minutesToClose,
		OpenOrderExists: openExists,
	})
	if !dec.Allowed {
		e.submitMu.Unlock()
		metrics.OrdersDenied.WithLabelValues(strategyID, dec.Code).Inc()
		e.log.Info("order denied", "strategy", strategyID, "ticker", order.Ticker,
			"code", dec.Code, "reason", dec.Reason)
		return nil
	}

	if err := e.journal.RecordOrder(order, sig.WinProbability); err != nil {
		e.submitMu.Unlock()
		return fmt.Errorf("record order: %w", err)
	}
	e.submitMu.Unlock()

	metrics.OrdersAllowed.WithLabelValues(strategyID, pipeline).Inc()

	// Executor I/O runs outside the submission lock; the recorded open
	// order already holds this market+strategy slot.
	fill, err := ex.Execute(ctx, order)
	if err != nil {
		metrics.OrdersFailed.WithLabelValues(strategyID, pipeline).Inc()
		if !simulated && errors.Is(err, venue.ErrAuth) {
			if authErr := e.ledger.NoteAuthFailure(); authErr != nil {
				e.log.Error("auth-failure hard stop not durable", "err", authErr)
			}
		}
		if markErr := e.journal.MarkOrderFailed(order.ID, err.Error()); markErr != nil {
			return errors.Join(err, markErr)
		}
		// No automatic resubmission: a retried real order risks a
		// duplicate position. The next poll cycle decides.
		return err
	}
	if !simulated {
		e.ledger.NoteAuthSuccess()
	}

	if err := e.journal.RecordFill(fill); err != nil {
		return fmt.Errorf("record fill: %w", err)
	}

	e.log.Info("order filled",
		"order_id", order.ID,
		"ticker", order.Ticker,
		"side", string(order.Side),
		"limit", int(order.LimitPrice),
		"fill", int(fill.Price),
		"contracts", order.Contracts,
		"size_usd", order.SizeUSD,
		"pipeline", pipeline,
		"venue_ref", fill.VenueRef)
	return nil
}
