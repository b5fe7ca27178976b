package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/metrics"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
)

// StorageWithMetrics wraps a storage implementation with metrics
type StorageWithMetrics struct {
	Storage
	metricsManager *metrics.Manager
}

// NewStorageWithMetrics creates a storage wrapper with metrics
func NewStorageWithMetrics(storage Storage, metricsManager *metrics.Manager) *StorageWithMetrics {
	return &StorageWithMetrics{
		Storage:        storage,
		metricsManager: metricsManager,
	}
}

// UpsertTrackedAddress upserts a row and records metrics
func (s *StorageWithMetrics) UpsertTrackedAddress(ctx context.Context, row *models.TrackedAddress) error {
	start := time.Now()

	err := s.Storage.UpsertTrackedAddress(ctx, row)

	s.record("upsert", "tracked_addresses", start, err)
	return err
}

// RemoveTrackedAddress removes rows and records metrics
func (s *StorageWithMetrics) RemoveTrackedAddress(ctx context.Context, subscriberID, identifier string) (bool, error) {
	start := time.Now()

	removed, err := s.Storage.RemoveTrackedAddress(ctx, subscriberID, identifier)

	s.record("delete", "tracked_addresses", start, err)
	return removed, err
}

// AdvanceCheckpoint advances a checkpoint and records metrics
func (s *StorageWithMetrics) AdvanceCheckpoint(ctx context.Context, subscriberID, address, checkpointHash string, checkpointTime time.Time) error {
	start := time.Now()

	err := s.Storage.AdvanceCheckpoint(ctx, subscriberID, address, checkpointHash, checkpointTime)

	s.record("update", "tracked_addresses", start, err)
	return err
}

// SaveDeliveryRecord saves a delivery record and records metrics
func (s *StorageWithMetrics) SaveDeliveryRecord(ctx context.Context, record *models.DeliveryRecord) error {
	start := time.Now()

	err := s.Storage.SaveDeliveryRecord(ctx, record)

	s.record("insert", "deliveries", start, err)
	return err
}

// AllTrackedAddresses reads the sweep snapshot and records metrics
func (s *StorageWithMetrics) AllTrackedAddresses(ctx context.Context) ([]*models.TrackedAddress, error) {
	start := time.Now()

	rows, err := s.Storage.AllTrackedAddresses(ctx)

	s.record("select", "tracked_addresses", start, err)
	if err == nil {
		s.metricsManager.GetPrometheusMetrics().UpdateTrackedAddresses(len(rows))
	}
	return rows, err
}

func (s *StorageWithMetrics) record(operation, table string, start time.Time, err error) {
	if s.metricsManager == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(
		operation,
		table,
		status,
		time.Since(start),
	)
}
