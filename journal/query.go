package journal

import (
	"database/sql"
	"fmt"
	"time"

	"predictor/exec"
	"predictor/ledger"
	"predictor/market"
)

// GetTrade returns one order with its fill (zero Fill if not yet filled).
func (j *SQLite) GetTrade(orderID string) (OpenTrade, error) {
	var t OpenTrade
	var side string
	var limit int
	var fillPrice sql.NullInt64
	var filledAt sql.NullTime
	var venueRef sql.NullString

	row := j.db.QueryRow(`
		SELECT o.order_id, o.ticker, o.side, o.limit_price, o.size_usd, o.contracts,
		       o.strategy_id, o.simulated, o.reason, o.win_prob_at_entry, o.created_at,
		       f.fill_price, f.filled_at, f.venue_ref
		FROM orders o LEFT JOIN fills f ON f.order_id = o.order_id
		WHERE o.order_id = ?`, orderID)

	err := row.Scan(
		&t.Order.ID, &t.Order.Ticker, &side, &limit, &t.Order.SizeUSD,
		&t.Order.Contracts, &t.Order.StrategyID, &t.Order.Simulated,
		&t.Order.Reason, &t.WinProbability, &t.Order.CreatedAt,
		&fillPrice, &filledAt, &venueRef,
	)
	if err == sql.ErrNoRows {
		return OpenTrade{}, fmt.Errorf("order %q not found", orderID)
	}
	if err != nil {
		return OpenTrade{}, err
	}

	t.Order.Side = market.Side(side)
	t.Order.LimitPrice = market.Price(limit)
	if fillPrice.Valid {
		t.Fill = exec.Fill{
			OrderID:  t.Order.ID,
			Price:    market.Price(fillPrice.Int64),
			FilledAt: filledAt.Time,
			VenueRef: venueRef.String,
		}
	}
	return t, nil
}

// settledRows is the column list shared by settlement scans.
const settledCols = `
	o.order_id, o.ticker, o.side, o.limit_price, o.size_usd, o.contracts,
	o.strategy_id, o.simulated, o.reason, o.created_at,
	f.fill_price, f.filled_at, f.venue_ref,
	s.outcome, s.won, s.pnl_usd, s.fee_usd, s.settled_at`

func scanSettled(rows *sql.Rows) (exec.SettledTrade, error) {
	var st exec.SettledTrade
	var side, outcome string
	var limit, fillPrice int
	if err := rows.Scan(
		&st.Order.ID, &st.Order.Ticker, &side, &limit, &st.Order.SizeUSD,
		&st.Order.Contracts, &st.Order.StrategyID, &st.Order.Simulated,
		&st.Order.Reason, &st.Order.CreatedAt,
		&fillPrice, &st.Fill.FilledAt, &st.Fill.VenueRef,
		&outcome, &st.Won, &st.PnLUSD, &st.FeeUSD, &st.SettledAt,
	); err != nil {
		return exec.SettledTrade{}, err
	}
	st.Order.Side = market.Side(side)
	st.Order.LimitPrice = market.Price(limit)
	st.Fill.OrderID = st.Order.ID
	st.Fill.Price = market.Price(fillPrice)
	st.Outcome = market.Outcome(outcome)
	return st, nil
}

// ListTradesSettledBetween returns trades whose settled_at is within
// [start, end), oldest first.
func (j *SQLite) ListTradesSettledBetween(start, end time.Time) ([]exec.SettledTrade, error) {
	rows, err := j.db.Query(`
		SELECT `+settledCols+`
		FROM settlements s
		JOIN orders o ON o.order_id = s.order_id
		JOIN fills f ON f.order_id = s.order_id
		WHERE s.settled_at >= ? AND s.settled_at < ?
		ORDER BY s.settled_at ASC`, start, end)
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

// StrategyAggregates returns per-strategy settled-trade summaries split by
// pipeline: trade count, win rate, realized P&L and calibration MSE (mean
// squared error of entry win probability against the 0/1 outcome).
func (j *SQLite) StrategyAggregates() ([]StrategyAggregate, error) {
	rows, err := j.db.Query(`
		SELECT o.strategy_id, o.simulated,
		       COUNT(*) AS settled,
		       SUM(s.won) AS wins,
		       SUM(s.pnl_usd) AS pnl,
		       AVG((o.win_prob_at_entry - s.won) * (o.win_prob_at_entry - s.won)) AS mse
		FROM settlements s
		JOIN orders o ON o.order_id = s.order_id
		GROUP BY o.strategy_id, o.simulated
		ORDER BY o.strategy_id, o.simulated`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StrategyAggregate
	for rows.Next() {
		var a StrategyAggregate
		if err := rows.Scan(&a.StrategyID, &a.Simulated, &a.Settled,
			&a.Wins, &a.PnLUSD, &a.CalibrationMSE); err != nil {
			return nil, err
		}
		if a.Settled > 0 {
			a.WinRate = float64(a.Wins) / float64(a.Settled)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DailyReport returns realized P&L partitioned by UTC day and pipeline for
// settlements within [start, end).
func (j *SQLite) DailyReport(start, end time.Time) ([]DailyPnL, error) {
	rows, err := j.db.Query(`
		SELECT date(s.settled_at), o.simulated, COUNT(*),
		       SUM(s.won), SUM(s.pnl_usd), SUM(s.fee_usd)
		FROM settlements s
		JOIN orders o ON o.order_id = s.order_id
		WHERE s.settled_at >= ? AND s.settled_at < ?
		GROUP BY date(s.settled_at), o.simulated
		ORDER BY date(s.settled_at) ASC, o.simulated`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyPnL
	for rows.Next() {
		var d DailyPnL
		if err := rows.Scan(&d.Day, &d.Simulated, &d.Settled,
			&d.Wins, &d.PnLUSD, &d.FeesUSD); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListTrips returns the most recent safety-trip records, newest first.
func (j *SQLite) ListTrips(limit int) ([]ledger.Trip, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(`
		SELECT at, pipeline, mode, code, reason
		FROM trips ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Trip
	for rows.Next() {
		var t ledger.Trip
		if err := rows.Scan(&t.At, &t.Pipeline, &t.Mode, &t.Code, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
