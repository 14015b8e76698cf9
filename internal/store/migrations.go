package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations lists schema changes in ascending version order. The runner
// records each applied version itself.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS connectors (
	id                  TEXT PRIMARY KEY,
	type                TEXT NOT NULL,
	config              TEXT NOT NULL DEFAULT '{}',
	allowed_agent_types TEXT NOT NULL DEFAULT '[]',
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS records (
	item_id      TEXT PRIMARY KEY,
	connector_id TEXT NOT NULL,
	source_uri   TEXT NOT NULL,
	retrieved_at DATETIME NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '{}',
	payload      TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_records_connector_id ON records(connector_id);
CREATE INDEX IF NOT EXISTS idx_records_source_uri ON records(source_uri);
CREATE INDEX IF NOT EXISTS idx_records_retrieved_at ON records(retrieved_at);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS sync_runs (
	id           TEXT PRIMARY KEY,
	connector_id TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL,
	records      INTEGER NOT NULL DEFAULT 0,
	processed    INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_connector_started
	ON sync_runs(connector_id, started_at);
`,
	},
}
