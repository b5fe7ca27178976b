// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements Storage interface using SQLite
type SQLiteStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Logger
	migrations []*Migration
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetSQLiteMigrations(),
	}
}

// Connect establishes database connection
func (s *SQLiteStorage) Connect() error {
	// Ensure directory exists
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
		}
	}

	// busy_timeout is per-connection, so it must go in the DSN to cover
	// every pooled connection; otherwise concurrent writers fail with
	// SQLITE_BUSY instead of waiting.
	dsn := s.config.ConnectionString
	if strings.Contains(dsn, "?") {
		dsn += "&_pragma=busy_timeout(5000)"
	} else {
		dsn += "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetMaxIdleConns(s.config.MaxConnections / 2)
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to enable WAL mode", err.Error())
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to enable foreign keys", err.Error())
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("SQLite database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStorage) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *SQLiteStorage) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	s.logger.Info("Starting database migrations")

	for _, migration := range s.migrations {
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applying migration")

		if _, err := s.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	// Record applied versions; the scripts themselves are idempotent
	for _, migration := range s.migrations {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO migrations (version, description) VALUES (?, ?)",
			migration.Version, migration.Description)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to record migration", err.Error())
		}
	}

	s.logger.Info("Database migrations completed")
	return nil
}

// UpsertTrackedAddress inserts or replaces a tracked address row. Re-tracking
// the same (subscriber_id, address) overwrites label and checkpoint.
func (s *SQLiteStorage) UpsertTrackedAddress(ctx context.Context, row *models.TrackedAddress) error {
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	query := `
		INSERT INTO tracked_addresses
		(subscriber_id, address, label, checkpoint_hash, checkpoint_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subscriber_id, address) DO UPDATE SET
			label = excluded.label,
			checkpoint_hash = excluded.checkpoint_hash,
			checkpoint_time = excluded.checkpoint_time,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		row.SubscriberID, row.Address, row.Label,
		row.CheckpointHash, row.CheckpointTime.UTC(), row.CreatedAt, row.UpdatedAt)

	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to upsert tracked address", err.Error())
	}

	return nil
}

// GetTrackedAddress retrieves one row by its primary key
func (s *SQLiteStorage) GetTrackedAddress(ctx context.Context, subscriberID, address string) (*models.TrackedAddress, error) {
	query := `
		SELECT subscriber_id, address, label, checkpoint_hash, checkpoint_time, created_at, updated_at
		FROM tracked_addresses WHERE subscriber_id = ? AND address = ?
	`

	row := s.db.QueryRowContext(ctx, query, subscriberID, address)

	var tracked models.TrackedAddress
	err := row.Scan(&tracked.SubscriberID, &tracked.Address, &tracked.Label,
		&tracked.CheckpointHash, &tracked.CheckpointTime, &tracked.CreatedAt, &tracked.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get tracked address", err.Error())
	}

	return &tracked, nil
}

// ListTrackedAddresses retrieves all rows for a subscriber
func (s *SQLiteStorage) ListTrackedAddresses(ctx context.Context, subscriberID string) ([]*models.TrackedAddress, error) {
	query := `
		SELECT subscriber_id, address, label, checkpoint_hash, checkpoint_time, created_at, updated_at
		FROM tracked_addresses WHERE subscriber_id = ? ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, subscriberID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query tracked addresses", err.Error())
	}
	defer rows.Close()

	return scanTrackedRows(rows)
}

// AllTrackedAddresses retrieves the full snapshot for a poller sweep. Always
// reads straight from the database so removals committed before the call are
// never resurrected by a stale cache.
func (s *SQLiteStorage) AllTrackedAddresses(ctx context.Context) ([]*models.TrackedAddress, error) {
	query := `
		SELECT subscriber_id, address, label, checkpoint_hash, checkpoint_time, created_at, updated_at
		FROM tracked_addresses ORDER BY subscriber_id ASC, created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query tracked addresses", err.Error())
	}
	defer rows.Close()

	return scanTrackedRows(rows)
}

// RemoveTrackedAddress deletes rows whose address OR label equals identifier.
// Matching is exact-string and case-sensitive.
func (s *SQLiteStorage) RemoveTrackedAddress(ctx context.Context, subscriberID, identifier string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM tracked_addresses WHERE subscriber_id = ? AND (address = ? OR label = ?)",
		subscriberID, identifier, identifier)
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to remove tracked address", err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get rows affected", err.Error())
	}

	return rowsAffected > 0, nil
}

// AdvanceCheckpoint overwrites checkpoint fields for exactly one row. A row
// removed mid-sweep silently no-ops: removal wins over an in-flight advance.
func (s *SQLiteStorage) AdvanceCheckpoint(ctx context.Context, subscriberID, address, checkpointHash string, checkpointTime time.Time) error {
	query := `
		UPDATE tracked_addresses
		SET checkpoint_hash = ?, checkpoint_time = ?, updated_at = ?
		WHERE subscriber_id = ? AND address = ?
	`

	_, err := s.db.ExecContext(ctx, query,
		checkpointHash, checkpointTime.UTC(), time.Now().UTC(), subscriberID, address)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to advance checkpoint", err.Error())
	}

	return nil
}

// CountTrackedAddresses returns the number of tracked rows
func (s *SQLiteStorage) CountTrackedAddresses(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracked_addresses").Scan(&count)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count tracked addresses", err.Error())
	}
	return count, nil
}

func scanTrackedRows(rows *sql.Rows) ([]*models.TrackedAddress, error) {
	var tracked []*models.TrackedAddress
	for rows.Next() {
		var row models.TrackedAddress
		err := rows.Scan(&row.SubscriberID, &row.Address, &row.Label,
			&row.CheckpointHash, &row.CheckpointTime, &row.CreatedAt, &row.UpdatedAt)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan tracked address", err.Error())
		}
		tracked = append(tracked, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to iterate tracked addresses", err.Error())
	}

	return tracked, nil
}
