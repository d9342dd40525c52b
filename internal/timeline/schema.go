package timeline

// Schema defines the run log tables. Applied idempotently on open.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running',
	answer TEXT NOT NULL DEFAULT '',
	turns INTEGER NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	turn INTEGER NOT NULL,
	finish_reason TEXT NOT NULL DEFAULT '',
	tool_calls INTEGER NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_turns_run ON turns(run_id);

CREATE TABLE IF NOT EXISTS tool_spans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	turn INTEGER NOT NULL,
	call_id TEXT NOT NULL DEFAULT '',
	tool TEXT NOT NULL,
	ok BOOLEAN NOT NULL DEFAULT 1,
	result_len INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tool_spans_run ON tool_spans(run_id);
`
