package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the console tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS services (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		endpoint       TEXT NOT NULL,
		state          TEXT NOT NULL DEFAULT 'Unknown',
		pre_registered INTEGER NOT NULL DEFAULT 0,
		workflow_ids   TEXT NOT NULL DEFAULT '[]',
		run_ids        TEXT NOT NULL DEFAULT '[]',
		service_info   TEXT NOT NULL DEFAULT '{}',
		added_date     TEXT NOT NULL,
		updated_date   TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS workflows (
		id             TEXT PRIMARY KEY,
		service_id     TEXT NOT NULL,
		name           TEXT NOT NULL,
		type           TEXT NOT NULL DEFAULT '',
		version        TEXT NOT NULL DEFAULT '',
		url            TEXT NOT NULL DEFAULT '',
		content        TEXT NOT NULL DEFAULT '',
		pre_registered INTEGER NOT NULL DEFAULT 0,
		attachments    TEXT NOT NULL DEFAULT '[]',
		run_ids        TEXT NOT NULL DEFAULT '[]',
		added_date     TEXT NOT NULL,
		updated_date   TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT NOT NULL,
		service_id   TEXT NOT NULL,
		workflow_id  TEXT NOT NULL,
		name         TEXT NOT NULL DEFAULT '',
		state        TEXT NOT NULL DEFAULT 'UNKNOWN',
		run_log      TEXT NOT NULL DEFAULT '{}',
		added_date   TEXT NOT NULL,
		updated_date TEXT NOT NULL,
		PRIMARY KEY (id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_workflows_service_id ON workflows(service_id)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_service_id ON runs(service_id)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_workflow_id ON runs(workflow_id)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
