package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// SaveDeliveryRecord persists one notification attempt
func (s *SQLiteStorage) SaveDeliveryRecord(ctx context.Context, record *models.DeliveryRecord) error {
	query := `
		INSERT OR REPLACE INTO deliveries
		(id, subscriber_id, address, tx_hash, channel, message, status, attempts, created_at, sent_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.SubscriberID, record.Address, record.TxHash,
		record.Channel, record.Message, record.Status, record.Attempts,
		record.CreatedAt, record.SentAt, record.Error)

	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save delivery record", err.Error())
	}

	return nil
}

// GetDeliveryRecords retrieves delivery records matching the filter,
// newest first
func (s *SQLiteStorage) GetDeliveryRecords(ctx context.Context, filter models.DeliveryFilter) ([]*models.DeliveryRecord, error) {
	query := `
		SELECT id, subscriber_id, address, tx_hash, channel, message, status, attempts, created_at, sent_at, error
		FROM deliveries WHERE 1=1
	`
	args := []interface{}{}

	if filter.SubscriberID != nil {
		query += " AND subscriber_id = ?"
		args = append(args, *filter.SubscriberID)
	}

	if filter.Address != nil {
		query += " AND address = ?"
		args = append(args, *filter.Address)
	}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// GetLastSweepTime returns the completion time of the most recent sweep,
// or nil if no sweep has completed yet
func (s *SQLiteStorage) GetLastSweepTime() (*time.Time, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM system_state WHERE key = 'last_sweep_at'").Scan(&value)
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
func (s *SQLiteStorage) SetLastSweepTime(t time.Time) error {
	_, err := s.db.Exec(
		"INSERT INTO system_state (key, value, updated_at) VALUES ('last_sweep_at', ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		t.UTC().Format(time.RFC3339Nano), time.Now().UTC())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to set last sweep time", err.Error())
	}
	return nil
}

// GetStorageStats returns storage statistics
func (s *SQLiteStorage) GetStorageStats() (*StorageStats, error) {
	stats := &StorageStats{}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM tracked_addresses").Scan(&stats.TotalTracked); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count tracked addresses", err.Error())
	}

	if err := s.db.QueryRow("SELECT COUNT(DISTINCT subscriber_id) FROM tracked_addresses").Scan(&stats.TotalSubscribers); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count subscribers", err.Error())
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM deliveries").Scan(&stats.TotalDeliveries); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count deliveries", err.Error())
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM deliveries WHERE status = 'failed'").Scan(&stats.FailedDeliveries); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count failed deliveries", err.Error())
	}

	// Select the column directly instead of MIN()/MAX(): the sqlite driver
	// only maps DATETIME columns to time.Time for direct column references,
	// so aggregate results would scan as strings.
	var oldest, latest sql.NullTime
	err := s.db.QueryRow("SELECT created_at FROM deliveries ORDER BY created_at ASC LIMIT 1").Scan(&oldest)
	if err != nil && err != sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get delivery time range", err.Error())
	}
	err = s.db.QueryRow("SELECT created_at FROM deliveries ORDER BY created_at DESC LIMIT 1").Scan(&latest)
	if err != nil && err != sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get delivery time range", err.Error())
	}
	if oldest.Valid {
		stats.OldestDelivery = &oldest.Time
	}
	if latest.Valid {
		stats.LatestDelivery = &latest.Time
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSize = pageCount * pageSize
		}
	}

	lastSweep, err := s.GetLastSweepTime()
	if err == nil {
		stats.LastSweep = lastSweep
	}

	return stats, nil
}

// Cleanup deletes delivery records older than the retention window
func (s *SQLiteStorage) Cleanup(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	result, err := s.db.ExecContext(ctx, "DELETE FROM deliveries WHERE created_at < ?", cutoff)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to cleanup deliveries", err.Error())
	}

	if deleted, err := result.RowsAffected(); err == nil && deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Cleaned up old delivery records")
	}

	return nil
}

// Vacuum reclaims unused database space
func (s *SQLiteStorage) Vacuum() error {
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to vacuum database", err.Error())
	}
	return nil
}
