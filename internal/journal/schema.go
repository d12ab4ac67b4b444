package journal

const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	kind TEXT NOT NULL,
	symbol TEXT NOT NULL,
	order_id TEXT NOT NULL,
	qty INTEGER NOT NULL,
	entry REAL NOT NULL,
	trigger_price REAL NOT NULL,
	limit_price REAL NOT NULL,
	step INTEGER NOT NULL,
	price REAL NOT NULL,
	pnl REAL NOT NULL,
	detail TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
CREATE INDEX IF NOT EXISTS idx_events_symbol ON events(symbol, order_id);
`
