package store

// Schema is applied on every open; statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id TEXT NOT NULL,
	topic TEXT NOT NULL,
	window_at DATETIME NOT NULL,
	status TEXT NOT NULL,
	payload TEXT DEFAULT '{}',
	error_text TEXT DEFAULT '',
	attempt INTEGER NOT NULL DEFAULT 1,
	produced_at DATETIME NOT NULL,
	trace_id TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_results_topic ON results(topic);
CREATE INDEX IF NOT EXISTS idx_results_window ON results(window_at);
CREATE INDEX IF NOT EXISTS idx_results_trace ON results(trace_id);

CREATE TABLE IF NOT EXISTS insights (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	insight_id TEXT UNIQUE NOT NULL,
	window_at DATETIME NOT NULL,
	summary TEXT NOT NULL,
	recommendations TEXT DEFAULT '[]',
	contributing TEXT DEFAULT '[]',
	missing TEXT DEFAULT '[]',
	partial BOOLEAN NOT NULL DEFAULT 0,
	generated_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_insights_window ON insights(window_at);
CREATE INDEX IF NOT EXISTS idx_insights_generated ON insights(generated_at);
`
