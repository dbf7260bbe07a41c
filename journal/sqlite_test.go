package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predictor/exec"
	"predictor/ledger"
	"predictor/market"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func testOrder(id string) market.Order {
	return market.Order{
		ID:         id,
		Ticker:     "RAIN-NYC-2026",
		Side:       market.SideYes,
		LimitPrice: 45,
		SizeUSD:    4.50,
		Contracts:  10,
		StrategyID: "value",
		Simulated:  true,
		Reason:     "ask below model probability",
		CreatedAt:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func testFill(orderID string) exec.Fill {
	return exec.Fill{
		OrderID:  orderID,
		Price:    46,
		FilledAt: time.Date(2026, 3, 10, 12, 0, 1, 0, time.UTC),
	}
}

func settleTrade(t *testing.T, j *SQLite, id string, outcome market.Outcome) exec.SettledTrade {
	t.Helper()
	o := testOrder(id)
	require.NoError(t, j.RecordOrder(o, 0.65))
	require.NoError(t, j.RecordFill(testFill(id)))
	st := exec.Settle(o, testFill(id), outcome, time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC))
	require.NoError(t, j.RecordSettlement(st))
	return st
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	for _, want := range []string{"orders", "fills", "settlements", "ledger_snapshots", "trips"} {
		assert.True(t, found[want], "missing table %s", want)
	}
}

func TestOrderLifecycle(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	o := testOrder("O1")
	require.NoError(t, j.RecordOrder(o, 0.65))

	// Open order blocks the market/strategy slot for its own pipeline only.
	open, err := j.HasOpenOrder(o.Ticker, o.StrategyID, true)
	require.NoError(t, err)
	assert.True(t, open)
	open, err = j.HasOpenOrder(o.Ticker, o.StrategyID, false)
	require.NoError(t, err)
	assert.False(t, open)
	open, err = j.HasOpenOrder(o.Ticker, "other-strategy", true)
	require.NoError(t, err)
	assert.False(t, open)

	// Filled still blocks the slot.
	require.NoError(t, j.RecordFill(testFill("O1")))
	open, err = j.HasOpenOrder(o.Ticker, o.StrategyID, true)
	require.NoError(t, err)
	assert.True(t, open)

	pending, err := j.PendingSettlement()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "O1", pending[0].Order.ID)
	assert.Equal(t, market.Price(46), pending[0].Fill.Price)
	assert.Equal(t, 0.65, pending[0].WinProbability)

	// Settled frees it.
	st := exec.Settle(o, testFill("O1"), market.OutcomeYes, time.Now().UTC())
	require.NoError(t, j.RecordSettlement(st))
	open, err = j.HasOpenOrder(o.Ticker, o.StrategyID, true)
	require.NoError(t, err)
	assert.False(t, open)

	pending, err = j.PendingSettlement()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDuplicateOrderIDRejected(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	require.NoError(t, j.RecordOrder(testOrder("O1"), 0.65))
	assert.Error(t, j.RecordOrder(testOrder("O1"), 0.65))
}

func TestMarkOrderFailedFreesSlot(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	o := testOrder("O1")
	require.NoError(t, j.RecordOrder(o, 0.65))
	require.NoError(t, j.MarkOrderFailed("O1", "venue 502"))

	open, err := j.HasOpenOrder(o.Ticker, o.StrategyID, true)
	require.NoError(t, err)
	assert.False(t, open)

	got, err := j.GetTrade("O1")
	require.NoError(t, err)
	assert.Contains(t, got.Order.Reason, "failed: venue 502")

	assert.Error(t, j.MarkOrderFailed("NOPE", "x"))
}

func TestSettlementRecoveryUnit(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	settleTrade(t, j, "O1", market.OutcomeYes)
	settleTrade(t, j, "O2", market.OutcomeNo)

	// Both settlements persisted but neither applied to the ledger yet.
	unapplied, err := j.UnappliedSettlements()
	require.NoError(t, err)
	require.Len(t, unapplied, 2)
	assert.Equal(t, "O1", unapplied[0].Order.ID)
	assert.True(t, unapplied[0].Won)
	assert.False(t, unapplied[1].Won)

	snap := ledger.Snapshot{Mode: ledger.ModeActive, StartingBankroll: 100, Bankroll: 104}
	require.NoError(t, j.MarkLedgerApplied("O1", ledger.PipelineSim, snap))

	unapplied, err = j.UnappliedSettlements()
	require.NoError(t, err)
	require.Len(t, unapplied, 1)
	assert.Equal(t, "O2", unapplied[0].Order.ID)

	// The flag and the snapshot committed together.
	got, found, err := j.LoadLedgerSnapshot(ledger.PipelineSim)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 104.0, got.Bankroll)

	assert.Error(t, j.MarkLedgerApplied("NOPE", ledger.PipelineSim, snap))
}

func TestLedgerSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	_, found, err := j.LoadLedgerSnapshot(ledger.PipelineReal)
	require.NoError(t, err)
	assert.False(t, found)

	snap := ledger.Snapshot{
		Mode:              ledger.ModeSoftStopped,
		StartingBankroll:  100,
		Bankroll:          82,
		DailyLossUSD:      18,
		LifetimeLossUSD:   18,
		ConsecutiveLosses: 2,
		CoolingUntil:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		AuthFailures:      1,
		TripReason:        "daily loss",
	}
	require.NoError(t, j.SaveLedgerSnapshot(ledger.PipelineReal, snap))

	got, found, err := j.LoadLedgerSnapshot(ledger.PipelineReal)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap.Mode, got.Mode)
	assert.Equal(t, snap.Bankroll, got.Bankroll)
	assert.Equal(t, snap.DailyLossUSD, got.DailyLossUSD)
	assert.Equal(t, snap.ConsecutiveLosses, got.ConsecutiveLosses)
	assert.True(t, snap.CoolingUntil.Equal(got.CoolingUntil))
	assert.Equal(t, snap.TripReason, got.TripReason)

	// Upsert: a second save replaces, never duplicates.
	snap.Bankroll = 85
	require.NoError(t, j.SaveLedgerSnapshot(ledger.PipelineReal, snap))
	got, _, err = j.LoadLedgerSnapshot(ledger.PipelineReal)
	require.NoError(t, err)
	assert.Equal(t, 85.0, got.Bankroll)
}

func TestRecordTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	trip := ledger.Trip{
		At:       time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Pipeline: ledger.PipelineReal,
		Mode:     ledger.ModeHardStopped,
		Code:     "LIFETIME_LOSS",
		Reason:   "lifetime loss",
	}
	require.NoError(t, j.RecordTrip(trip))

	trips, err := j.ListTrips(5)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, trip.Code, trips[0].Code)
	assert.Equal(t, trip.Mode, trips[0].Mode)
}
