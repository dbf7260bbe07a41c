package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"predictor/exec"
	"predictor/ledger"
	"predictor/market"
)

// SQLite implements Journal and Reporter on a single database file.
type SQLite struct {
	db *sql.DB
}

// Compile-time interface checks.
var (
	_ Journal         = (*SQLite)(nil)
	_ Reporter        = (*SQLite)(nil)
	_ ledger.TripSink = (*SQLite)(nil)
)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time keeps the check-and-record sequence simple;
	// the engine serializes submissions anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(o market.Order, winProbability float64) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(order_id, ticker, side, limit_price, size_usd, contracts, strategy_id,
		 simulated, reason, win_prob_at_entry, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Ticker, string(o.Side), int(o.LimitPrice), o.SizeUSD, o.Contracts,
		o.StrategyID, o.Simulated, o.Reason, winProbability, o.CreatedAt, StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("record order %s: %w", o.ID, err)
	}
	return nil
}

func (j *SQLite) RecordFill(f exec.Fill) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO fills (order_id, fill_price, filled_at, venue_ref)
		VALUES (?, ?, ?, ?)`,
		f.OrderID, int(f.Price), f.FilledAt, f.VenueRef,
	); err != nil {
		return fmt.Errorf("record fill %s: %w", f.OrderID, err)
	}
	if _, err := tx.Exec(`UPDATE orders SET status = ? WHERE order_id = ?`,
		StatusFilled, f.OrderID); err != nil {
		return fmt.Errorf("mark order %s filled: %w", f.OrderID, err)
	}
	return tx.Commit()
}

func (j *SQLite) MarkOrderFailed(orderID, reason string) error {
	res, err := j.db.Exec(`
		UPDATE orders SET status = ?, reason = reason || '; failed: ' || ?
		WHERE order_id = ?`,
		StatusFailed, reason, orderID)
	if err != nil {
		return fmt.Errorf("mark order %s failed: %w", orderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark order %s failed: not found", orderID)
	}
	return nil
}

func (j *SQLite) HasOpenOrder(ticker, strategyID string, simulated bool) (bool, error) {
	var n int
	err := j.db.QueryRow(`
		SELECT COUNT(*) FROM orders
		WHERE ticker = ? AND strategy_id = ? AND simulated = ?
		  AND status IN (?, ?)`,
		ticker, strategyID, simulated, StatusOpen, StatusFilled,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("open-order check %s/%s: %w", ticker, strategyID, err)
	}
	return n > 0, nil
}

func (j *SQLite) PendingSettlement() ([]OpenTrade, error) {
	rows, err := j.db.Query(`
		SELECT o.order_id, o.ticker, o.side, o.limit_price, o.size_usd, o.contracts,
		       o.strategy_id, o.simulated, o.reason, o.win_prob_at_entry, o.created_at,
		       f.fill_price, f.filled_at, f.venue_ref
		FROM orders o JOIN fills f ON f.order_id = o.order_id
		WHERE o.status = ?
		ORDER BY o.order_id ASC`, StatusFilled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OpenTrade
	for rows.Next() {
		var t OpenTrade
		var side string
		var limit, fillPrice int
		if err := rows.Scan(
			&t.Order.ID, &t.Order.Ticker, &side, &limit, &t.Order.SizeUSD,
			&t.Order.Contracts, &t.Order.StrategyID, &t.Order.Simulated,
			&t.Order.Reason, &t.WinProbability, &t.Order.CreatedAt,
			&fillPrice, &t.Fill.FilledAt, &t.Fill.VenueRef,
		); err != nil {
			return nil, err
		}
		t.Order.Side = market.Side(side)
		t.Order.LimitPrice = market.Price(limit)
		t.Fill.OrderID = t.Order.ID
		t.Fill.Price = market.Price(fillPrice)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLite) RecordSettlement(st exec.SettledTrade) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO settlements
		(order_id, outcome, won, pnl_usd, fee_usd, settled_at, ledger_applied)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		st.Order.ID, string(st.Outcome), st.Won, st.PnLUSD, st.FeeUSD, st.SettledAt,
	); err != nil {
		return fmt.Errorf("record settlement %s: %w", st.Order.ID, err)
	}
	if _, err := tx.Exec(`UPDATE orders SET status = ? WHERE order_id = ?`,
		StatusSettled, st.Order.ID); err != nil {
		return fmt.Errorf("mark order %s settled: %w", st.Order.ID, err)
	}
	return tx.Commit()
}

// MarkLedgerApplied closes a settlement's recovery unit: the applied flag
// and the post-apply ledger snapshot commit together or not at all.
func (j *SQLite) MarkLedgerApplied(orderID, pipeline string, snap ledger.Snapshot) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE settlements SET ledger_applied = 1 WHERE order_id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("mark ledger applied %s: %w", orderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark ledger applied %s: settlement not found", orderID)
	}
	if err := saveSnapshotTx(tx, pipeline, snap); err != nil {
		return err
	}
	return tx.Commit()
}

func (j *SQLite) UnappliedSettlements() ([]exec.SettledTrade, error) {
	rows, err := j.db.Query(`
		SELECT o.order_id, o.ticker, o.side, o.limit_price, o.size_usd, o.contracts,
		       o.strategy_id, o.simulated, o.reason, o.created_at,
		       f.fill_price, f.filled_at, f.venue_ref,
		       s.outcome, s.won, s.pnl_usd, s.fee_usd, s.settled_at
		FROM settlements s
		JOIN orders o ON o.order_id = s.order_id
		JOIN fills f ON f.order_id = s.order_id
		WHERE s.ledger_applied = 0
		ORDER BY o.order_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []exec.SettledTrade
	for rows.Next() {
		st, err := scanSettled(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (j *SQLite) SaveLedgerSnapshot(pipeline string, snap ledger.Snapshot) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := saveSnapshotTx(tx, pipeline, snap); err != nil {
		return err
	}
	return tx.Commit()
}

func saveSnapshotTx(tx *sql.Tx, pipeline string, s ledger.Snapshot) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_snapshots
		(pipeline, version, mode, starting_bankroll, bankroll, daily_loss_usd,
		 lifetime_loss_usd, consecutive_losses, cooling_until, auth_failures,
		 trip_reason, updated_at)
		VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(pipeline) DO UPDATE SET
			version = version + 1,
			mode = excluded.mode,
			starting_bankroll = excluded.starting_bankroll,
			bankroll = excluded.bankroll,
			daily_loss_usd = excluded.daily_loss_usd,
			lifetime_loss_usd = excluded.lifetime_loss_usd,
			consecutive_losses = excluded.consecutive_losses,
			cooling_until = excluded.cooling_until,
			auth_failures = excluded.auth_failures,
			trip_reason = excluded.trip_reason,
			updated_at = CURRENT_TIMESTAMP`,
		pipeline, string(s.Mode), s.StartingBankroll, s.Bankroll, s.DailyLossUSD,
		s.LifetimeLossUSD, s.ConsecutiveLosses, s.CoolingUntil, s.AuthFailures,
		s.TripReason,
	)
	if err != nil {
		return fmt.Errorf("save ledger snapshot %s: %w", pipeline, err)
	}
	return nil
}

func (j *SQLite) LoadLedgerSnapshot(pipeline string) (ledger.Snapshot, bool, error) {
	var s ledger.Snapshot
	err := j.db.QueryRow(`
		SELECT mode, starting_bankroll, bankroll, daily_loss_usd, lifetime_loss_usd,
		       consecutive_losses, cooling_until, auth_failures, trip_reason
		FROM ledger_snapshots WHERE pipeline = ?`, pipeline,
	).Scan(&s.Mode, &s.StartingBankroll, &s.Bankroll, &s.DailyLossUSD,
		&s.LifetimeLossUSD, &s.ConsecutiveLosses, &s.CoolingUntil,
		&s.AuthFailures, &s.TripReason)
	if err == sql.ErrNoRows {
		return ledger.Snapshot{}, false, nil
	}
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("load ledger snapshot %s: %w", pipeline, err)
	}
	return s, true, nil
}

func (j *SQLite) RecordTrip(t ledger.Trip) error {
	_, err := j.db.Exec(`
		INSERT INTO trips (at, pipeline, mode, code, reason)
		VALUES (?, ?, ?, ?, ?)`,
		t.At, t.Pipeline, string(t.Mode), t.Code, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("record trip: %w", err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
