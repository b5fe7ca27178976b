// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
)

// Storage defines the interface for tracked-address persistence. All
// writes to a (subscriber_id, address) row are serialized by the backend;
// reads always reflect previously committed writes (no caching layer).
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Tracked address operations
	UpsertTrackedAddress(ctx context.Context, row *models.TrackedAddress) error
	GetTrackedAddress(ctx context.Context, subscriberID, address string) (*models.TrackedAddress, error)
	ListTrackedAddresses(ctx context.Context, subscriberID string) ([]*models.TrackedAddress, error)
	AllTrackedAddresses(ctx context.Context) ([]*models.TrackedAddress, error)
	RemoveTrackedAddress(ctx context.Context, subscriberID, identifier string) (bool, error)
	AdvanceCheckpoint(ctx context.Context, subscriberID, address, checkpointHash string, checkpointTime time.Time) error
	CountTrackedAddresses(ctx context.Context) (int64, error)

	// Delivery record operations
	SaveDeliveryRecord(ctx context.Context, record *models.DeliveryRecord) error
	GetDeliveryRecords(ctx context.Context, filter models.DeliveryFilter) ([]*models.DeliveryRecord, error)

	// Sweep bookkeeping
	GetLastSweepTime() (*time.Time, error)
	SetLastSweepTime(t time.Time) error

	// Statistics and monitoring
	GetStorageStats() (*StorageStats, error)

	// Maintenance operations
	Cleanup(ctx context.Context, retentionDays int) error
	Vacuum() error
}

// StorageStats provides storage statistics
type StorageStats struct {
	TotalTracked     int64      `json:"total_tracked"`
	TotalSubscribers int64      `json:"total_subscribers"`
	TotalDeliveries  int64      `json:"total_deliveries"`
	FailedDeliveries int64      `json:"failed_deliveries"`
	OldestDelivery   *time.Time `json:"oldest_delivery,omitempty"`
	LatestDelivery   *time.Time `json:"latest_delivery,omitempty"`
	DatabaseSize     int64      `json:"database_size_bytes"`
	LastSweep        *time.Time `json:"last_sweep,omitempty"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
	RetentionDays    int           `json:"retention_days"`
}
