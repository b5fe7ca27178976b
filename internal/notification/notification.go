// File: internal/notification/notification.go
package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/metrics"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/storage"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// Notifier delivers one rendered notification over a single channel
type Notifier interface {
	Name() string
	Send(ctx context.Context, record *models.DeliveryRecord) error
}

// Manager routes notifications to the configured channel and keeps a
// delivery record for every attempt
type Manager struct {
	config  *config.NotificationConfig
	storage storage.Storage
	logger  *NotificationLogger

	mu        sync.RWMutex
	running   bool
	notifiers map[string]Notifier

	// Statistics
	stats          NotificationStats
	metricsManager *metrics.Manager
}

// NotificationStats provides notification statistics
type NotificationStats struct {
	TotalSent           uint64        `json:"total_sent"`
	TotalFailed         uint64        `json:"total_failed"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	ActiveChannels      int           `json:"active_channels"`
	LastError           *string       `json:"last_error,omitempty"`
	LastErrorTime       *time.Time    `json:"last_error_time,omitempty"`
}

// NewManager creates a new notification manager
func NewManager(cfg *config.NotificationConfig, store storage.Storage, metricsManager *metrics.Manager) *Manager {
	return &Manager{
		config:         cfg,
		storage:        store,
		logger:         NewNotificationLogger(),
		notifiers:      make(map[string]Notifier),
		metricsManager: metricsManager,
	}
}

// AddNotifier registers a delivery channel
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	m.notifiers[n.Name()] = n
	m.mu.Unlock()

	m.logger.LogChannelOperation("add", n.Name())
}

// Start starts the notification manager
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Notification manager already running", "")
	}

	if _, ok := m.notifiers[m.config.DefaultChannel]; !ok {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			"no notifier registered for default channel", m.config.DefaultChannel)
	}

	m.running = true
	m.logger.Info("Notification manager started", map[string]interface{}{
		"default_channel": m.config.DefaultChannel,
		"channels":        len(m.notifiers),
	})
	return nil
}

// Stop stops the notification manager
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	m.logger.Info("Notification manager stopped")
	return nil
}

// IsHealthy returns whether the notification manager is healthy
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Dispatch sends one rendered notification to the subscriber over the
// default channel and persists the delivery record. The error return is the
// poller's signal to hold the checkpoint: a failed dispatch means the
// transaction is re-detected and retried on the next sweep.
func (m *Manager) Dispatch(ctx context.Context, subscriberID, address, txHash, message string) error {
	start := time.Now()
	channel := m.config.DefaultChannel

	record := &models.DeliveryRecord{
		ID:           uuid.NewString(),
		SubscriberID: subscriberID,
		Address:      address,
		TxHash:       txHash,
		Channel:      channel,
		Message:      message,
		Status:       models.DeliveryStatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	m.mu.RLock()
	notifier, ok := m.notifiers[channel]
	m.mu.RUnlock()

	if !ok {
		err := utils.NewAppError(utils.ErrCodeConfiguration, "no notifier registered for channel", channel)
		m.finishRecord(record, start, err)
		return err
	}

	m.logger.LogDispatchAttempt(record.ID, channel, subscriberID)

	sendCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	record.Attempts = 1
	err := notifier.Send(sendCtx, record)
	m.finishRecord(record, start, err)

	if err != nil {
		m.logger.LogDispatchFailure(record.ID, channel, err, time.Since(start))
		return utils.NewAppError(utils.ErrCodeNotification, "notification dispatch failed", err.Error())
	}

	m.logger.LogDispatchSuccess(record.ID, channel, time.Since(start))
	return nil
}

// GetStats returns notification statistics
func (m *Manager) GetStats() NotificationStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := m.stats
	stats.ActiveChannels = len(m.notifiers)
	return stats
}

// finishRecord stamps the delivery outcome on the record, persists it and
// updates statistics. Persistence runs on its own short context: the audit
// trail should survive a dispatch context that is already near its deadline.
func (m *Manager) finishRecord(record *models.DeliveryRecord, start time.Time, err error) {
	now := time.Now().UTC()
	if err != nil {
		record.Status = models.DeliveryStatusFailed
		msg := err.Error()
		record.Error = &msg
	} else {
		record.Status = models.DeliveryStatusSent
		record.SentAt = &now
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if saveErr := m.storage.SaveDeliveryRecord(saveCtx, record); saveErr != nil {
		m.logger.Warn("Failed to persist delivery record", map[string]interface{}{
			"delivery_id": record.ID,
			"error":       saveErr.Error(),
		})
	}

	m.updateStats(start, err)

	if m.metricsManager != nil {
		prom := m.metricsManager.GetPrometheusMetrics()
		if err != nil {
			prom.RecordNotificationFailure(record.Channel, "transaction", errorType(err))
		} else {
			prom.RecordNotificationSent(record.Channel, "transaction", time.Since(start))
		}
	}
}

// updateStats updates notification statistics
func (m *Manager) updateStats(start time.Time, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.stats.TotalFailed++
		errorStr := err.Error()
		m.stats.LastError = &errorStr
		now := time.Now()
		m.stats.LastErrorTime = &now
	} else {
		m.stats.TotalSent++
	}

	responseTime := time.Since(start)
	if m.stats.TotalSent+m.stats.TotalFailed == 1 {
		m.stats.AverageResponseTime = responseTime
	} else {
		m.stats.AverageResponseTime = (m.stats.AverageResponseTime + responseTime) / 2
	}
}

// errorType maps an error to a low-cardinality metrics label
func errorType(err error) string {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "unknown"
}
