// File: test/integration/notification_test.go
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/notification"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/storage"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

const deliveryTestAddress = "0x4444444444444444444444444444444444444444"

func TestNotificationDelivery(t *testing.T) {
	// Setup test database
	testDB := "./test_deliveries.db"
	defer os.Remove(testDB)

	// Initialize logger
	utils.InitLogger("info", "text", "stdout", "")

	storageConfig := &config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: testDB,
		MaxConnections:   10,
		MaxIdleTime:      time.Minute * 15,
	}

	store, err := storage.NewStorage(storageConfig)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	if err := store.Connect(); err != nil {
		t.Fatalf("Failed to connect to storage: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("Failed to migrate storage: %v", err)
	}

	t.Logf("✓ Delivery audit storage ready")

	// Run tests
	t.Run("Manager Lifecycle", func(t *testing.T) { testManagerLifecycle(t, store) })
	t.Run("Dispatch Audit Trail", func(t *testing.T) { testDispatchAuditTrail(t, store) })
	t.Run("Dispatch Failure", func(t *testing.T) { testDispatchFailure(t, store) })
	t.Run("Webhook Delivery", func(t *testing.T) { testWebhookDelivery(t, store) })
	t.Run("Log Channel", func(t *testing.T) { testLogChannel(t, store) })
}

func testManagerLifecycle(t *testing.T, store storage.Storage) {
	cfg := &config.NotificationConfig{
		DefaultChannel: models.ChannelTelegram,
		Timeout:        5 * time.Second,
		RetryCount:     1,
		RetryDelay:     10 * time.Millisecond,
	}
	manager := notification.NewManager(cfg, store, nil)

	// Starting without a notifier for the default channel is a
	// configuration error, not a latent runtime failure.
	err := manager.Start(context.Background())
	if err == nil {
		t.Fatal("Start without a default channel notifier must fail")
	}
	if !utils.HasCode(err, utils.ErrCodeConfiguration) {
		t.Errorf("Expected CONFIGURATION_ERROR, got %v", err)
	}

	manager.AddNotifier(newCaptureChannel())
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start manager: %v", err)
	}
	if !manager.IsHealthy() {
		t.Error("Manager should be healthy after start")
	}

	if err := manager.Start(context.Background()); err == nil {
		t.Error("Double start must be rejected")
	}

	if err := manager.Stop(); err != nil {
		t.Fatalf("Failed to stop manager: %v", err)
	}
	if manager.IsHealthy() {
		t.Error("Manager should not be healthy after stop")
	}
	if err := manager.Stop(); err != nil {
		t.Errorf("Stopping twice should be harmless: %v", err)
	}

	t.Logf("✓ Manager lifecycle working")
}

func testDispatchAuditTrail(t *testing.T, store storage.Storage) {
	ctx := context.Background()

	cfg := &config.NotificationConfig{
		DefaultChannel: models.ChannelTelegram,
		Timeout:        5 * time.Second,
		RetryCount:     1,
		RetryDelay:     10 * time.Millisecond,
	}
	channel := newCaptureChannel()
	manager := notification.NewManager(cfg, store, nil)
	manager.AddNotifier(channel)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Failed to start manager: %v", err)
	}
	defer manager.Stop()

	message := "🔔 [NEW TRANSACTION] 🔔\nLabel: savings"
	err := manager.Dispatch(ctx, "3001", deliveryTestAddress, "0xddd1", message)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if channel.deliveredCount() != 1 {
		t.Fatalf("Expected 1 delivered message, got %d", channel.deliveredCount())
	}
	if channel.delivered()[0] != message {
		t.Errorf("Delivered message does not match dispatched message")
	}
	t.Logf("✓ Message delivered to the default channel")

	subscriber := "3001"
	records, err := store.GetDeliveryRecords(ctx, models.DeliveryFilter{SubscriberID: &subscriber})
	if err != nil {
		t.Fatalf("Failed to get delivery records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 delivery record, got %d", len(records))
	}

	record := records[0]
	if record.ID == "" {
		t.Error("Delivery record should have an ID")
	}
	if record.Status != models.DeliveryStatusSent {
		t.Errorf("Expected status sent, got %s", record.Status)
	}
	if record.Channel != models.ChannelTelegram {
		t.Errorf("Expected channel telegram, got %s", record.Channel)
	}
	if record.TxHash != "0xddd1" {
		t.Errorf("Expected tx hash 0xddd1, got %s", record.TxHash)
	}
	if record.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", record.Attempts)
	}
	if record.SentAt == nil {
		t.Error("Sent record should carry a sent_at time")
	}
	t.Logf("✓ Audit record persisted: %s", record.ID)

	stats := manager.GetStats()
	if stats.TotalSent != 1 {
		t.Errorf("Expected 1 sent, got %d", stats.TotalSent)
	}
	if stats.ActiveChannels != 1 {
		t.Errorf("Expected 1 active channel, got %d", stats.ActiveChannels)
	}
	t.Logf("✓ Manager stats: Sent=%d, Channels=%d", stats.TotalSent, stats.ActiveChannels)
}

func testDispatchFailure(t *testing.T, store storage.Storage) {
	ctx := context.Background()

	cfg := &config.NotificationConfig{
		DefaultChannel: models.ChannelTelegram,
		Timeout:        5 * time.Second,
		RetryCount:     1,
		RetryDelay:     10 * time.Millisecond,
	}
	channel := newCaptureChannel()
	channel.setFailure(errors.New("telegram unreachable"))
	manager := notification.NewManager(cfg, store, nil)
	manager.AddNotifier(channel)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Failed to start manager: %v", err)
	}
	defer manager.Stop()

	err := manager.Dispatch(ctx, "3002", deliveryTestAddress, "0xddd2", "doomed message")
	if err == nil {
		t.Fatal("Expected dispatch to fail")
	}
	if !utils.HasCode(err, utils.ErrCodeNotification) {
		t.Errorf("Expected NOTIFICATION_ERROR, got %v", err)
	}

	subscriber := "3002"
	records, err := store.GetDeliveryRecords(ctx, models.DeliveryFilter{SubscriberID: &subscriber})
	if err != nil {
		t.Fatalf("Failed to get delivery records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 delivery record, got %d", len(records))
	}

	record := records[0]
	if record.Status != models.DeliveryStatusFailed {
		t.Errorf("Expected status failed, got %s", record.Status)
	}
	if record.Error == nil {
		t.Fatal("Failed record should carry the channel error")
	}
	if !strings.Contains(*record.Error, "telegram unreachable") {
		t.Errorf("Expected the channel error on the record, got %s", *record.Error)
	}
	if record.SentAt != nil {
		t.Error("Failed record should not carry a sent_at time")
	}

	stats := manager.GetStats()
	if stats.TotalFailed != 1 {
		t.Errorf("Expected 1 failed, got %d", stats.TotalFailed)
	}
	if stats.LastError == nil {
		t.Error("Expected last error in stats")
	}
	t.Logf("✓ Failed dispatch recorded: %s", *record.Error)
}

func testWebhookDelivery(t *testing.T, store storage.Storage) {
	ctx := context.Background()

	var (
		mu       sync.Mutex
		requests int
		payload  notification.WebhookPayload
	)
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("Failed to decode webhook payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	cfg := &config.NotificationConfig{
		DefaultChannel: models.ChannelWebhook,
		Timeout:        5 * time.Second,
		RetryCount:     2,
		RetryDelay:     10 * time.Millisecond,
		EnableWebhook:  true,
		WebhookURL:     endpoint.URL,
	}
	manager := notification.NewManager(cfg, store, nil)
	manager.AddNotifier(notification.NewWebhookSender(cfg, notification.NewNotificationLogger()))
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Failed to start manager: %v", err)
	}
	defer manager.Stop()

	err := manager.Dispatch(ctx, "3003", deliveryTestAddress, "0xddd3", "webhook message")
	if err != nil {
		t.Fatalf("Dispatch over webhook failed: %v", err)
	}

	mu.Lock()
	gotRequests := requests
	gotPayload := payload
	mu.Unlock()

	if gotRequests != 2 {
		t.Errorf("Expected one retry after the 500, got %d requests", gotRequests)
	}
	if gotPayload.SubscriberID != "3003" {
		t.Errorf("Expected subscriber 3003 in payload, got %s", gotPayload.SubscriberID)
	}
	if gotPayload.TxHash != "0xddd3" {
		t.Errorf("Expected tx hash 0xddd3 in payload, got %s", gotPayload.TxHash)
	}
	if gotPayload.Message != "webhook message" {
		t.Errorf("Expected message in payload, got %s", gotPayload.Message)
	}
	if gotPayload.Source != "kaia-wallet-tracker" {
		t.Errorf("Expected payload source, got %s", gotPayload.Source)
	}
	t.Logf("✓ Webhook delivered after retry: %d requests", gotRequests)

	subscriber := "3003"
	records, err := store.GetDeliveryRecords(ctx, models.DeliveryFilter{SubscriberID: &subscriber})
	if err != nil {
		t.Fatalf("Failed to get delivery records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 delivery record, got %d", len(records))
	}
	if records[0].Channel != models.ChannelWebhook {
		t.Errorf("Expected channel webhook, got %s", records[0].Channel)
	}
	if records[0].Status != models.DeliveryStatusSent {
		t.Errorf("Expected status sent, got %s", records[0].Status)
	}
	t.Logf("✓ Webhook delivery audited")
}

func testLogChannel(t *testing.T, store storage.Storage) {
	ctx := context.Background()

	cfg := &config.NotificationConfig{
		DefaultChannel: models.ChannelLog,
		Timeout:        5 * time.Second,
		RetryCount:     1,
		RetryDelay:     10 * time.Millisecond,
		EnableLog:      true,
	}
	manager := notification.NewManager(cfg, store, nil)
	manager.AddNotifier(notification.NewLogSender())
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Failed to start manager: %v", err)
	}
	defer manager.Stop()

	if err := manager.Dispatch(ctx, "3004", deliveryTestAddress, "0xddd4", "log message"); err != nil {
		t.Fatalf("Dispatch over log channel failed: %v", err)
	}

	subscriber := "3004"
	records, err := store.GetDeliveryRecords(ctx, models.DeliveryFilter{SubscriberID: &subscriber})
	if err != nil {
		t.Fatalf("Failed to get delivery records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 delivery record, got %d", len(records))
	}
	if records[0].Channel != models.ChannelLog {
		t.Errorf("Expected channel log, got %s", records[0].Channel)
	}
	if records[0].Status != models.DeliveryStatusSent {
		t.Errorf("Expected status sent, got %s", records[0].Status)
	}
	t.Logf("✓ Log channel delivery recorded")
}
