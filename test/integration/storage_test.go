// File: test/integration/storage_test.go
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/storage"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

func TestSQLiteStorage(t *testing.T) {
	// Setup test database
	testDB := "./test_tracked.db"
	defer os.Remove(testDB)

	cfg := &config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: testDB,
		MaxConnections:   10,
		MaxIdleTime:      time.Minute * 15,
	}

	// Initialize logger
	utils.InitLogger("info", "text", "stdout", "")

	// Create storage
	store, err := storage.NewStorage(cfg)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	// Test connection
	err = store.Connect()
	if err != nil {
		t.Fatalf("Failed to connect to storage: %v", err)
	}

	// Test migration
	err = store.Migrate()
	if err != nil {
		t.Fatalf("Failed to migrate storage: %v", err)
	}

	// Test ping
	err = store.Ping()
	if err != nil {
		t.Fatalf("Failed to ping storage: %v", err)
	}

	t.Logf("✓ Storage connection and migration successful")

	// Run tests
	t.Run("Tracked Address Operations", func(t *testing.T) { testTrackedAddressOperations(t, store) })
	t.Run("Checkpoint Tracking", func(t *testing.T) { testCheckpointTracking(t, store) })
	t.Run("Delivery Operations", func(t *testing.T) { testDeliveryOperations(t, store) })
	t.Run("Sweep Tracking", func(t *testing.T) { testSweepTracking(t, store) })
	t.Run("Statistics", func(t *testing.T) { testStorageStatistics(t, store) })
	t.Run("Retention Cleanup", func(t *testing.T) { testRetentionCleanup(t, store) })
}

func testTrackedAddressOperations(t *testing.T, store storage.Storage) {
	ctx := context.Background()

	// Create test row
	row := &models.TrackedAddress{
		SubscriberID:   "2001",
		Address:        "0x4444444444444444444444444444444444444444",
		Label:          "savings",
		CheckpointHash: "0xaaa1",
		CheckpointTime: feedBase,
	}

	// Test upsert
	err := store.UpsertTrackedAddress(ctx, row)
	if err != nil {
		t.Fatalf("Failed to upsert tracked address: %v", err)
	}
	t.Logf("✓ Tracked address saved successfully")

	// Test get
	retrieved, err := store.GetTrackedAddress(ctx, "2001", row.Address)
	if err != nil {
		t.Fatalf("Failed to get tracked address: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Tracked address not found")
	}
	if retrieved.Label != "savings" {
		t.Errorf("Expected label savings, got %s", retrieved.Label)
	}
	if retrieved.CheckpointHash != "0xaaa1" {
		t.Errorf("Expected checkpoint 0xaaa1, got %s", retrieved.CheckpointHash)
	}
	t.Logf("✓ Tracked address retrieved successfully")

	// Re-tracking the same pair overwrites label and checkpoint without
	// creating a second row.
	row.Label = "cold wallet"
	row.CheckpointHash = "0xaaa2"
	row.CheckpointTime = feedBase.Add(time.Minute)
	err = store.UpsertTrackedAddress(ctx, row)
	if err != nil {
		t.Fatalf("Failed to re-upsert tracked address: %v", err)
	}

	retrieved, err = store.GetTrackedAddress(ctx, "2001", row.Address)
	if err != nil {
		t.Fatalf("Failed to get tracked address after re-upsert: %v", err)
	}
	if retrieved.Label != "cold wallet" {
		t.Errorf("Expected label cold wallet, got %s", retrieved.Label)
	}
	if retrieved.CheckpointHash != "0xaaa2" {
		t.Errorf("Expected checkpoint 0xaaa2, got %s", retrieved.CheckpointHash)
	}

	rows, err := store.ListTrackedAddresses(ctx, "2001")
	if err != nil {
		t.Fatalf("Failed to list tracked addresses: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 tracked row after re-upsert, got %d", len(rows))
	}
	t.Logf("✓ Re-upsert overwrote the existing row")

	// Second row for the same subscriber
	second := &models.TrackedAddress{
		SubscriberID:   "2001",
		Address:        "0x5555555555555555555555555555555555555555",
		Label:          "0x5555555555555555555555555555555555555555",
		CheckpointHash: "0xaaa3",
		CheckpointTime: feedBase,
	}
	if err := store.UpsertTrackedAddress(ctx, second); err != nil {
		t.Fatalf("Failed to upsert second tracked address: %v", err)
	}

	rows, err = store.ListTrackedAddresses(ctx, "2001")
	if err != nil {
		t.Fatalf("Failed to list tracked addresses: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 tracked rows, got %d", len(rows))
	}
	if rows[0].Address != row.Address {
		t.Errorf("Expected oldest row first, got %s", rows[0].Address)
	}
	t.Logf("✓ Listed %d tracked rows in insertion order", len(rows))

	// The same address tracked by a different subscriber is a separate row.
	other := &models.TrackedAddress{
		SubscriberID:   "2002",
		Address:        row.Address,
		Label:          "watched",
		CheckpointHash: "0xaaa4",
		CheckpointTime: feedBase,
	}
	if err := store.UpsertTrackedAddress(ctx, other); err != nil {
		t.Fatalf("Failed to upsert row for second subscriber: %v", err)
	}

	all, err := store.AllTrackedAddresses(ctx)
	if err != nil {
		t.Fatalf("Failed to get tracked snapshot: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 rows in snapshot, got %d", len(all))
	}

	count, err := store.CountTrackedAddresses(ctx)
	if err != nil {
		t.Fatalf("Failed to count tracked addresses: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
	t.Logf("✓ Snapshot and count verified: %d rows", count)

	// Label match is exact and case sensitive.
	removed, err := store.RemoveTrackedAddress(ctx, "2001", "Cold Wallet")
	if err != nil {
		t.Fatalf("Failed to remove by label: %v", err)
	}
	if removed {
		t.Error("Label match must be case sensitive")
	}

	removed, err = store.RemoveTrackedAddress(ctx, "2001", "cold wallet")
	if err != nil {
		t.Fatalf("Failed to remove by label: %v", err)
	}
	if !removed {
		t.Fatal("Expected removal by exact label to succeed")
	}

	removed, err = store.RemoveTrackedAddress(ctx, "2001", second.Address)
	if err != nil {
		t.Fatalf("Failed to remove by address: %v", err)
	}
	if !removed {
		t.Fatal("Expected removal by address to succeed")
	}

	gone, err := store.GetTrackedAddress(ctx, "2001", second.Address)
	if err != nil {
		t.Fatalf("Failed to get removed address: %v", err)
	}
	if gone != nil {
		t.Error("Removed row should not be found")
	}

	// The other subscriber's row is untouched.
	kept, err := store.GetTrackedAddress(ctx, "2002", row.Address)
	if err != nil {
		t.Fatalf("Failed to get other subscriber's row: %v", err)
	}
	if kept == nil {
		t.Fatal("Removal must not cross subscriber boundaries")
	}
	t.Logf("✓ Removal by label and address working")
}

func testCheckpointTracking(t *testing.T, store storage.Storage) {
	ctx := context.Background()

	row := &models.TrackedAddress{
		SubscriberID:   "2003",
		Address:        "0x6666666666666666666666666666666666666666",
		Label:          "hot wallet",
		CheckpointHash: "0xbbb1",
		CheckpointTime: feedBase,
	}
	if err := store.UpsertTrackedAddress(ctx, row); err != nil {
		t.Fatalf("Failed to upsert tracked address: %v", err)
	}

	// Advance the checkpoint the way a sweep commit does.
	checkpointTime := feedBase.Add(2 * time.Minute)
	err := store.AdvanceCheckpoint(ctx, "2003", row.Address, "0xbbb2", checkpointTime)
	if err != nil {
		t.Fatalf("Failed to advance checkpoint: %v", err)
	}

	retrieved, err := store.GetTrackedAddress(ctx, "2003", row.Address)
	if err != nil {
		t.Fatalf("Failed to get tracked address: %v", err)
	}
	if retrieved.CheckpointHash != "0xbbb2" {
		t.Errorf("Expected checkpoint 0xbbb2, got %s", retrieved.CheckpointHash)
	}
	if !retrieved.CheckpointTime.Equal(checkpointTime) {
		t.Errorf("Expected checkpoint time %v, got %v", checkpointTime, retrieved.CheckpointTime)
	}
	t.Logf("✓ Checkpoint advanced to %s", retrieved.CheckpointHash)

	// Advancing a removed row is a silent no-op: a commit racing an untrack
	// must not resurrect the row.
	err = store.AdvanceCheckpoint(ctx, "2003", "0x7777777777777777777777777777777777777777", "0xbbb3", checkpointTime)
	if err != nil {
		t.Fatalf("Advance on missing row should not error: %v", err)
	}

	resurrected, err := store.GetTrackedAddress(ctx, "2003", "0x7777777777777777777777777777777777777777")
	if err != nil {
		t.Fatalf("Failed to probe for resurrected row: %v", err)
	}
	if resurrected != nil {
		t.Error("Advance on missing row must not create it")
	}
	t.Logf("✓ Checkpoint advance on removed row is a no-op")
}

func testDeliveryOperations(t *testing.T, store storage.Storage) {
	ctx := context.Background()

	// Create test delivery attempt
	record := &models.DeliveryRecord{
		ID:           "test-delivery-1",
		SubscriberID: "2003",
		Address:      "0x6666666666666666666666666666666666666666",
		TxHash:       "0xbbb2",
		Channel:      models.ChannelTelegram,
		Message:      "🔔 [NEW TRANSACTION] 🔔",
		Status:       models.DeliveryStatusPending,
		Attempts:     1,
		CreatedAt:    time.Now().UTC(),
	}

	// Test save
	err := store.SaveDeliveryRecord(ctx, record)
	if err != nil {
		t.Fatalf("Failed to save delivery record: %v", err)
	}
	t.Logf("✓ Delivery record saved successfully")

	// Re-saving the same ID updates the outcome in place.
	sentAt := time.Now().UTC()
	record.Status = models.DeliveryStatusSent
	record.SentAt = &sentAt
	err = store.SaveDeliveryRecord(ctx, record)
	if err != nil {
		t.Fatalf("Failed to update delivery record: %v", err)
	}

	subscriber := "2003"
	records, err := store.GetDeliveryRecords(ctx, models.DeliveryFilter{SubscriberID: &subscriber})
	if err != nil {
		t.Fatalf("Failed to get delivery records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 delivery record, got %d", len(records))
	}
	if records[0].Status != models.DeliveryStatusSent {
		t.Errorf("Expected status sent, got %s", records[0].Status)
	}
	if records[0].SentAt == nil {
		t.Error("Expected sent_at to be set")
	}
	t.Logf("✓ Delivery record updated in place")

	// A failed attempt keeps its error.
	failure := "telegram unreachable"
	failed := &models.DeliveryRecord{
		ID:           "test-delivery-2",
		SubscriberID: "2003",
		Address:      "0x6666666666666666666666666666666666666666",
		TxHash:       "0xbbb3",
		Channel:      models.ChannelTelegram,
		Message:      "🔔 [NEW TRANSACTION] 🔔",
		Status:       models.DeliveryStatusFailed,
		Attempts:     1,
		CreatedAt:    time.Now().UTC(),
		Error:        &failure,
	}
	if err := store.SaveDeliveryRecord(ctx, failed); err != nil {
		t.Fatalf("Failed to save failed delivery record: %v", err)
	}

	status := models.DeliveryStatusFailed
	records, err = store.GetDeliveryRecords(ctx, models.DeliveryFilter{Status: &status})
	if err != nil {
		t.Fatalf("Failed to filter delivery records by status: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 failed delivery, got %d", len(records))
	}
	if records[0].Error == nil || *records[0].Error != failure {
		t.Errorf("Expected error %q on failed delivery", failure)
	}
	t.Logf("✓ Delivery records filtered by status: found %d", len(records))

	// Limit caps the page.
	records, err = store.GetDeliveryRecords(ctx, models.DeliveryFilter{SubscriberID: &subscriber, Limit: 1})
	if err != nil {
		t.Fatalf("Failed to get limited delivery records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected limit to cap results at 1, got %d", len(records))
	}
	t.Logf("✓ Delivery record paging working")
}

func testSweepTracking(t *testing.T, store storage.Storage) {
	// No sweep has completed on a fresh database.
	lastSweep, err := store.GetLastSweepTime()
	if err != nil {
		t.Fatalf("Failed to get last sweep time: %v", err)
	}
	if lastSweep != nil {
		t.Fatalf("Expected no sweep time on fresh database, got %v", lastSweep)
	}

	sweepAt := time.Now().UTC()
	if err := store.SetLastSweepTime(sweepAt); err != nil {
		t.Fatalf("Failed to set last sweep time: %v", err)
	}

	lastSweep, err = store.GetLastSweepTime()
	if err != nil {
		t.Fatalf("Failed to get last sweep time: %v", err)
	}
	if lastSweep == nil {
		t.Fatal("Last sweep time not found")
	}
	if !lastSweep.Equal(sweepAt) {
		t.Errorf("Expected sweep time %v, got %v", sweepAt, lastSweep)
	}

	// A later sweep overwrites the marker.
	next := sweepAt.Add(time.Minute)
	if err := store.SetLastSweepTime(next); err != nil {
		t.Fatalf("Failed to overwrite last sweep time: %v", err)
	}
	lastSweep, err = store.GetLastSweepTime()
	if err != nil {
		t.Fatalf("Failed to get last sweep time: %v", err)
	}
	if !lastSweep.Equal(next) {
		t.Errorf("Expected sweep time %v, got %v", next, lastSweep)
	}
	t.Logf("✓ Sweep clock round-trip working: %v", lastSweep)
}

func testStorageStatistics(t *testing.T, store storage.Storage) {
	stats, err := store.GetStorageStats()
	if err != nil {
		t.Fatalf("Failed to get storage stats: %v", err)
	}

	if stats.TotalTracked != 2 {
		t.Errorf("Expected 2 tracked rows, got %d", stats.TotalTracked)
	}
	if stats.TotalSubscribers != 2 {
		t.Errorf("Expected 2 subscribers, got %d", stats.TotalSubscribers)
	}
	if stats.TotalDeliveries != 2 {
		t.Errorf("Expected 2 deliveries, got %d", stats.TotalDeliveries)
	}
	if stats.FailedDeliveries != 1 {
		t.Errorf("Expected 1 failed delivery, got %d", stats.FailedDeliveries)
	}
	if stats.OldestDelivery == nil || stats.LatestDelivery == nil {
		t.Error("Expected delivery time range to be set")
	}
	if stats.DatabaseSize == 0 {
		t.Error("Expected non-zero database size")
	}
	if stats.LastSweep == nil {
		t.Error("Expected last sweep in stats")
	}

	t.Logf("✓ Storage stats retrieved: %d tracked, %d deliveries (%d failed)",
		stats.TotalTracked, stats.TotalDeliveries, stats.FailedDeliveries)
}

func testRetentionCleanup(t *testing.T, store storage.Storage) {
	ctx := context.Background()

	// Plant a delivery well past the retention window.
	stale := &models.DeliveryRecord{
		ID:           "test-delivery-stale",
		SubscriberID: "2004",
		Address:      "0x6666666666666666666666666666666666666666",
		TxHash:       "0xold1",
		Channel:      models.ChannelTelegram,
		Message:      "old",
		Status:       models.DeliveryStatusSent,
		Attempts:     1,
		CreatedAt:    time.Now().UTC().AddDate(0, 0, -40),
	}
	if err := store.SaveDeliveryRecord(ctx, stale); err != nil {
		t.Fatalf("Failed to save stale delivery record: %v", err)
	}

	if err := store.Cleanup(ctx, 30); err != nil {
		t.Fatalf("Failed to run cleanup: %v", err)
	}

	subscriber := "2004"
	records, err := store.GetDeliveryRecords(ctx, models.DeliveryFilter{SubscriberID: &subscriber})
	if err != nil {
		t.Fatalf("Failed to get delivery records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected stale delivery to be cleaned up, found %d", len(records))
	}

	// Recent deliveries survive.
	stats, err := store.GetStorageStats()
	if err != nil {
		t.Fatalf("Failed to get storage stats: %v", err)
	}
	if stats.TotalDeliveries != 2 {
		t.Errorf("Expected 2 recent deliveries to survive cleanup, got %d", stats.TotalDeliveries)
	}

	if err := store.Vacuum(); err != nil {
		t.Fatalf("Failed to vacuum database: %v", err)
	}
	t.Logf("✓ Retention cleanup and vacuum working")
}
