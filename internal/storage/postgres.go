package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Logger
	migrations []*Migration
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetPostgresMigrations(),
	}
}

// Connect establishes database connection
func (p *PostgreSQLStorage) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
	}

	// Configure connection pool
	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxConnections / 2)
	db.SetConnMaxLifetime(p.config.MaxIdleTime)

	// Test connection
	if err := db.Ping(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
	}

	p.db = db
	p.logger.Info("PostgreSQL database connected")

	return nil
}

// Close closes the database connection
func (p *PostgreSQLStorage) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.logger.Info("PostgreSQL database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgreSQLStorage) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return p.db.Ping()
}

// Migrate runs database migrations
func (p *PostgreSQLStorage) Migrate() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	p.logger.Info("Starting PostgreSQL database migrations")

	for _, migration := range p.migrations {
		p.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applying migration")

		if _, err := p.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	for _, migration := range p.migrations {
		_, err := p.db.Exec(
			"INSERT INTO migrations (version, description) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING",
			migration.Version, migration.Description)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to record migration", err.Error())
		}
	}

	p.logger.Info("PostgreSQL database migrations completed")
	return nil
}

// UpsertTrackedAddress inserts or replaces a tracked address row
func (p *PostgreSQLStorage) UpsertTrackedAddress(ctx context.Context, row *models.TrackedAddress) error {
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	query := `
		INSERT INTO tracked_addresses
		(subscriber_id, address, label, checkpoint_hash, checkpoint_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subscriber_id, address) DO UPDATE SET
			label = EXCLUDED.label,
			checkpoint_hash = EXCLUDED.checkpoint_hash,
			checkpoint_time = EXCLUDED.checkpoint_time,
			updated_at = EXCLUDED.updated_at
	`

	_, err := p.db.ExecContext(ctx, query,
		row.SubscriberID, row.Address, row.Label,
		row.CheckpointHash, row.CheckpointTime.UTC(), row.CreatedAt, row.UpdatedAt)

	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to upsert tracked address", err.Error())
	}

	return nil
}

// GetTrackedAddress retrieves one row by its primary key
func (p *PostgreSQLStorage) GetTrackedAddress(ctx context.Context, subscriberID, address string) (*models.TrackedAddress, error) {
	query := `
		SELECT subscriber_id, address, label, checkpoint_hash, checkpoint_time, created_at, updated_at
		FROM tracked_addresses WHERE subscriber_id = $1 AND address = $2
	`

	row := p.db.QueryRowContext(ctx, query, subscriberID, address)

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
func (p *PostgreSQLStorage) ListTrackedAddresses(ctx context.Context, subscriberID string) ([]*models.TrackedAddress, error) {
	query := `
		SELECT subscriber_id, address, label, checkpoint_hash, checkpoint_time, created_at, updated_at
		FROM tracked_addresses WHERE subscriber_id = $1 ORDER BY created_at ASC
	`

	rows, err := p.db.QueryContext(ctx, query, subscriberID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query tracked addresses", err.Error())
	}
	defer rows.Close()

	return scanTrackedRows(rows)
}

// AllTrackedAddresses retrieves the full snapshot for a poller sweep
func (p *PostgreSQLStorage) AllTrackedAddresses(ctx context.Context) ([]*models.TrackedAddress, error) {
	query := `
		SELECT subscriber_id, address, label, checkpoint_hash, checkpoint_time, created_at, updated_at
		FROM tracked_addresses ORDER BY subscriber_id ASC, created_at ASC
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query tracked addresses", err.Error())
	}
	defer rows.Close()

	return scanTrackedRows(rows)
}

// RemoveTrackedAddress deletes rows whose address OR label equals identifier
func (p *PostgreSQLStorage) RemoveTrackedAddress(ctx context.Context, subscriberID, identifier string) (bool, error) {
	result, err := p.db.ExecContext(ctx,
		"DELETE FROM tracked_addresses WHERE subscriber_id = $1 AND (address = $2 OR label = $3)",
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

// AdvanceCheckpoint overwrites checkpoint fields for exactly one row,
// silently no-oping when the row has been removed
func (p *PostgreSQLStorage) AdvanceCheckpoint(ctx context.Context, subscriberID, address, checkpointHash string, checkpointTime time.Time) error {
	query := `
		UPDATE tracked_addresses
		SET checkpoint_hash = $1, checkpoint_time = $2, updated_at = $3
		WHERE subscriber_id = $4 AND address = $5
	`

	_, err := p.db.ExecContext(ctx, query,
		checkpointHash, checkpointTime.UTC(), time.Now().UTC(), subscriberID, address)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to advance checkpoint", err.Error())
	}

	return nil
}

// CountTrackedAddresses returns the number of tracked rows
func (p *PostgreSQLStorage) CountTrackedAddresses(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracked_addresses").Scan(&count)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count tracked addresses", err.Error())
	}
	return count, nil
}

// SaveDeliveryRecord persists one notification attempt
func (p *PostgreSQLStorage) SaveDeliveryRecord(ctx context.Context, record *models.DeliveryRecord) error {
	query := `
		INSERT INTO deliveries
		(id, subscriber_id, address, tx_hash, channel, message, status, attempts, created_at, sent_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			sent_at = EXCLUDED.sent_at,
			error = EXCLUDED.error
	`

	_, err := p.db.ExecContext(ctx, query,
		record.ID, record.SubscriberID, record.Address, record.TxHash,
		record.Channel, record.Message, record.Status, record.Attempts,
		record.CreatedAt, record.SentAt, record.Error)

	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save delivery record", err.Error())
	}

	return nil
}

// GetDeliveryRecords retrieves delivery records matching the filter
func (p *PostgreSQLStorage) GetDeliveryRecords(ctx context.Context, filter models.DeliveryFilter) ([]*models.DeliveryRecord, error) {
	query := `
		SELECT id, subscriber_id, address, tx_hash, channel, message, status, attempts, created_at, sent_at, error
		FROM deliveries WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if filter.SubscriberID != nil {
		query += fmt.Sprintf(" AND subscriber_id = $%d", argIndex)
		args = append(args, *filter.SubscriberID)
		argIndex++
	}

	if filter.Address != nil {
		query += fmt.Sprintf(" AND address = $%d", argIndex)
		args = append(args, *filter.Address)
		argIndex++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query delivery records", err.Error())
	}
	defer rows.Close()

	var records []*models.DeliveryRecord
	for rows.Next() {
		var record models.DeliveryRecord
		var sentAt sql.NullTime
		var errorStr sql.NullString

		err := rows.Scan(&record.ID, &record.SubscriberID, &record.Address, &record.TxHash,
			&record.Channel, &record.Message, &record.Status, &record.Attempts,
			&record.CreatedAt, &sentAt, &errorStr)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan delivery record", err.Error())
		}

		if sentAt.Valid {
			record.SentAt = &sentAt.Time
		}
		if errorStr.Valid {
			record.Error = &errorStr.String
		}

		records = append(records, &record)
	}

	return records, nil
}

// GetLastSweepTime returns the completion time of the most recent sweep
func (p *PostgreSQLStorage) GetLastSweepTime() (*time.Time, error) {
	var value string
	err := p.db.QueryRow("SELECT value FROM system_state WHERE key = 'last_sweep_at'").Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get last sweep time", err.Error())
	}

	if value == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to parse last sweep time", err.Error())
	}

	return &t, nil
}

// SetLastSweepTime records the completion time of a sweep
func (p *PostgreSQLStorage) SetLastSweepTime(t time.Time) error {
	_, err := p.db.Exec(
		"INSERT INTO system_state (key, value, updated_at) VALUES ('last_sweep_at', $1, $2) "+
			"ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at",
		t.UTC().Format(time.RFC3339Nano), time.Now().UTC())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to set last sweep time", err.Error())
	}
	return nil
}

// GetStorageStats returns storage statistics
func (p *PostgreSQLStorage) GetStorageStats() (*StorageStats, error) {
	stats := &StorageStats{}

	if err := p.db.QueryRow("SELECT COUNT(*) FROM tracked_addresses").Scan(&stats.TotalTracked); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count tracked addresses", err.Error())
	}

	if err := p.db.QueryRow("SELECT COUNT(DISTINCT subscriber_id) FROM tracked_addresses").Scan(&stats.TotalSubscribers); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count subscribers", err.Error())
	}

	if err := p.db.QueryRow("SELECT COUNT(*) FROM deliveries").Scan(&stats.TotalDeliveries); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count deliveries", err.Error())
	}

	if err := p.db.QueryRow("SELECT COUNT(*) FROM deliveries WHERE status = 'failed'").Scan(&stats.FailedDeliveries); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count failed deliveries", err.Error())
	}

	var oldest, latest sql.NullTime
	err := p.db.QueryRow("SELECT MIN(created_at), MAX(created_at) FROM deliveries").Scan(&oldest, &latest)
	if err != nil && err != sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get delivery time range", err.Error())
	}
	if oldest.Valid {
		stats.OldestDelivery = &oldest.Time
	}
	if latest.Valid {
		stats.LatestDelivery = &latest.Time
	}

	if err := p.db.QueryRow("SELECT pg_database_size(current_database())").Scan(&stats.DatabaseSize); err != nil {
		stats.DatabaseSize = 0
	}

	lastSweep, err := p.GetLastSweepTime()
	if err == nil {
		stats.LastSweep = lastSweep
	}

	return stats, nil
}

// Cleanup deletes delivery records older than the retention window
func (p *PostgreSQLStorage) Cleanup(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	result, err := p.db.ExecContext(ctx, "DELETE FROM deliveries WHERE created_at < $1", cutoff)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to cleanup deliveries", err.Error())
	}

	if deleted, err := result.RowsAffected(); err == nil && deleted > 0 {
		p.logger.WithField("deleted", deleted).Info("Cleaned up old delivery records")
	}

	return nil
}

// Vacuum reclaims unused database space
func (p *PostgreSQLStorage) Vacuum() error {
	if _, err := p.db.Exec("VACUUM"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to vacuum database", err.Error())
	}
	return nil
}
