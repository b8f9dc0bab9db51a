package database

import "fmt"

// Migrate brings the schema up to date. Statements are idempotent so every
// service can run this at startup without coordination.
func Migrate(db *DB) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS hostpulse`,
		`CREATE TABLE IF NOT EXISTS hostpulse.accounts (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS hostpulse.hosts (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES hostpulse.accounts(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			ip TEXT,
			token TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'offline',
			last_seen_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hosts_account ON hostpulse.hosts(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_hosts_status_last_seen ON hostpulse.hosts(status, last_seen_at)`,
		`CREATE TABLE IF NOT EXISTS hostpulse.samples (
			id BIGSERIAL PRIMARY KEY,
			host_id UUID NOT NULL REFERENCES hostpulse.hosts(id) ON DELETE CASCADE,
			captured_at TIMESTAMPTZ NOT NULL,
			cpu_pct DOUBLE PRECISION NOT NULL,
			ram_pct DOUBLE PRECISION NOT NULL,
			ram_total DOUBLE PRECISION NOT NULL,
			ram_used DOUBLE PRECISION NOT NULL,
			disk_pct DOUBLE PRECISION NOT NULL,
			disk_total DOUBLE PRECISION NOT NULL,
			disk_used DOUBLE PRECISION NOT NULL,
			net_in DOUBLE PRECISION NOT NULL,
			net_out DOUBLE PRECISION NOT NULL,
			load1 DOUBLE PRECISION NOT NULL,
			uptime_seconds BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_host_captured ON hostpulse.samples(host_id, captured_at DESC)`,
		`CREATE TABLE IF NOT EXISTS hostpulse.alerts (
			id BIGSERIAL PRIMARY KEY,
			host_id UUID NOT NULL REFERENCES hostpulse.hosts(id) ON DELETE CASCADE,
			metric TEXT NOT NULL CHECK (metric IN ('cpu', 'ram', 'disk')),
			threshold DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('active', 'resolved')),
			opened_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_host_opened ON hostpulse.alerts(host_id, opened_at DESC)`,
		// Backstop for the at-most-one-active invariant. The ingest path
		// serializes per host, this catches anything that slips past it.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_alerts_one_active
			ON hostpulse.alerts(host_id, metric) WHERE status = 'active'`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
