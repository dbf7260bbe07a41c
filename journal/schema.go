// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	side TEXT NOT NULL,
	limit_price INTEGER NOT NULL,
	size_usd REAL NOT NULL,
	contracts INTEGER NOT NULL,
	strategy_id TEXT NOT NULL,
	simulated INTEGER NOT NULL,
	reason TEXT NOT NULL,
	win_prob_at_entry REAL NOT NULL,
	created_at DATETIME NOT NULL,
	status TEXT NOT NULL DEFAULT 'open'
);

CREATE INDEX IF NOT EXISTS idx_orders_market
	ON orders(ticker, strategy_id, simulated, status);

CREATE TABLE IF NOT EXISTS fills (
	order_id TEXT PRIMARY KEY REFERENCES orders(order_id),
	fill_price INTEGER NOT NULL,
	filled_at DATETIME NOT NULL,
	venue_ref TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS settlements (
	order_id TEXT PRIMARY KEY REFERENCES orders(order_id),
	outcome TEXT NOT NULL,
	won INTEGER NOT NULL,
	pnl_usd REAL NOT NULL,
	fee_usd REAL NOT NULL,
	settled_at DATETIME NOT NULL,
	ledger_applied INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_settlements_at ON settlements(settled_at);

CREATE TABLE IF NOT EXISTS ledger_snapshots (
	pipeline TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	mode TEXT NOT NULL,
	starting_bankroll REAL NOT NULL,
	bankroll REAL NOT NULL,
	daily_loss_usd REAL NOT NULL,
	lifetime_loss_usd REAL NOT NULL,
	consecutive_losses INTEGER NOT NULL,
	cooling_until DATETIME,
	auth_failures INTEGER NOT NULL,
	trip_reason TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trips (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at DATETIME NOT NULL,
	pipeline TEXT NOT NULL,
	mode TEXT NOT NULL,
	code TEXT NOT NULL,
	reason TEXT NOT NULL
);
`
