package storage

import (
	"time"
)

// Migration represents a database migration
type Migration struct {
	ID          int       `db:"id"`
	Version     string    `db:"version"`
	Description string    `db:"description"`
	SQL         string    `db:"sql"`
	AppliedAt   time.Time `db:"applied_at"`
}

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create tracked_addresses table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tracked_addresses (
					subscriber_id TEXT NOT NULL,
					address TEXT NOT NULL,
					label TEXT NOT NULL,
					checkpoint_hash TEXT NOT NULL DEFAULT '',
					checkpoint_time DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (subscriber_id, address)
				);

				CREATE INDEX IF NOT EXISTS idx_tracked_subscriber ON tracked_addresses(subscriber_id);
				CREATE INDEX IF NOT EXISTS idx_tracked_address ON tracked_addresses(address);
				CREATE INDEX IF NOT EXISTS idx_tracked_label ON tracked_addresses(subscriber_id, label);
			`,
		},
		{
			Version:     "002",
			Description: "Create deliveries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS deliveries (
					id TEXT PRIMARY KEY,
					subscriber_id TEXT NOT NULL,
					address TEXT NOT NULL DEFAULT '',
					tx_hash TEXT NOT NULL DEFAULT '',
					channel TEXT NOT NULL,
					message TEXT NOT NULL,
					status TEXT DEFAULT 'pending',
					attempts INTEGER DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					sent_at DATETIME,
					error TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_deliveries_subscriber ON deliveries(subscriber_id);
				CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);
				CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries(created_at);
			`,
		},
		{
			Version:     "003",
			Description: "Create system_state table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_state (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				INSERT OR IGNORE INTO system_state (key, value) VALUES ('last_sweep_at', '');
			`,
		},
		{
			Version:     "004",
			Description: "Create migrations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS migrations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					version TEXT NOT NULL UNIQUE,
					description TEXT NOT NULL,
					applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create tracked_addresses table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tracked_addresses (
					subscriber_id TEXT NOT NULL,
					address TEXT NOT NULL,
					label TEXT NOT NULL,
					checkpoint_hash TEXT NOT NULL DEFAULT '',
					checkpoint_time TIMESTAMP WITH TIME ZONE NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					PRIMARY KEY (subscriber_id, address)
				);

				CREATE INDEX IF NOT EXISTS idx_tracked_subscriber ON tracked_addresses(subscriber_id);
				CREATE INDEX IF NOT EXISTS idx_tracked_address ON tracked_addresses(address);
				CREATE INDEX IF NOT EXISTS idx_tracked_label ON tracked_addresses(subscriber_id, label);
			`,
		},
		{
			Version:     "002",
			Description: "Create deliveries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS deliveries (
					id TEXT PRIMARY KEY,
					subscriber_id TEXT NOT NULL,
					address TEXT NOT NULL DEFAULT '',
					tx_hash TEXT NOT NULL DEFAULT '',
					channel TEXT NOT NULL,
					message TEXT NOT NULL,
					status TEXT DEFAULT 'pending',
					attempts INTEGER DEFAULT 0,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					sent_at TIMESTAMP WITH TIME ZONE,
					error TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_deliveries_subscriber ON deliveries(subscriber_id);
				CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);
				CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries(created_at);
			`,
		},
		{
			Version:     "003",
			Description: "Create system_state table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_state (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				INSERT INTO system_state (key, value) VALUES ('last_sweep_at', '')
				ON CONFLICT (key) DO NOTHING;
			`,
		},
		{
			Version:     "004",
			Description: "Create migrations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS migrations (
					id SERIAL PRIMARY KEY,
					version TEXT NOT NULL UNIQUE,
					description TEXT NOT NULL,
					applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);
			`,
		},
	}
}
