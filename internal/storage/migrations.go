package storage

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS monitors (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	term               TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	keywords           TEXT NOT NULL DEFAULT '[]',
	exclude_keywords   TEXT NOT NULL DEFAULT '[]',
	frequency          TEXT NOT NULL DEFAULT 'daily',
	severity_threshold TEXT NOT NULL DEFAULT 'medium',
	active             INTEGER NOT NULL DEFAULT 1,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL,
	last_scan_at       DATETIME,
	next_scan_at       DATETIME,
	scan_count         INTEGER NOT NULL DEFAULT 0,
	alert_count        INTEGER NOT NULL DEFAULT 0,
	notification_settings TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS alerts (
	id                   TEXT PRIMARY KEY,
	monitor_id           TEXT NOT NULL,
	user_id              TEXT NOT NULL,
	title                TEXT NOT NULL,
	summary              TEXT NOT NULL DEFAULT '',
	severity             TEXT NOT NULL,
	confidence_score     REAL NOT NULL DEFAULT 0,
	source_count         INTEGER NOT NULL DEFAULT 0,
	sources              TEXT NOT NULL DEFAULT '[]',
	threat_indicators    TEXT NOT NULL DEFAULT '{}',
	status               TEXT NOT NULL DEFAULT 'new',
	user_feedback        TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL,
	notification_sent    INTEGER NOT NULL DEFAULT 0,
	notification_sent_at DATETIME
);

CREATE TABLE IF NOT EXISTS scan_records (
	id                 TEXT PRIMARY KEY,
	monitor_id         TEXT NOT NULL,
	scan_timestamp     DATETIME NOT NULL,
	scan_duration_ms   INTEGER NOT NULL DEFAULT 0,
	articles_processed INTEGER NOT NULL DEFAULT 0,
	alerts_generated   INTEGER NOT NULL DEFAULT 0,
	search_queries     INTEGER NOT NULL DEFAULT 0,
	llm_input_tokens   INTEGER NOT NULL DEFAULT 0,
	llm_output_tokens  INTEGER NOT NULL DEFAULT 0,
	llm_tokens         INTEGER NOT NULL DEFAULT 0,
	total_cost         TEXT NOT NULL DEFAULT '0',
	query              TEXT NOT NULL DEFAULT '',
	timeframe          TEXT NOT NULL DEFAULT '',
	errors             TEXT NOT NULL DEFAULT '[]',
	success            INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_monitors_user ON monitors(user_id);
CREATE INDEX IF NOT EXISTS idx_monitors_due ON monitors(active, next_scan_at);
CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id);
CREATE INDEX IF NOT EXISTS idx_alerts_monitor ON alerts(monitor_id);
CREATE INDEX IF NOT EXISTS idx_alerts_dedup ON alerts(user_id, monitor_id, title, created_at);
CREATE INDEX IF NOT EXISTS idx_scan_records_monitor ON scan_records(monitor_id);
CREATE INDEX IF NOT EXISTS idx_scan_records_ts ON scan_records(scan_timestamp);
`,
	},
}
