// File: internal/notification/webhook.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// WebhookSender posts notifications to a configured HTTP endpoint
type WebhookSender struct {
	config     *config.NotificationConfig
	logger     *NotificationLogger
	httpClient *http.Client
}

var _ Notifier = (*WebhookSender)(nil)

// WebhookPayload is the JSON body posted to the webhook endpoint
type WebhookPayload struct {
	SubscriberID string    `json:"subscriber_id"`
	Address      string    `json:"address"`
	TxHash       string    `json:"tx_hash"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
	Version      string    `json:"version"`
}

// webhookResponse captures the outcome of one webhook request
type webhookResponse struct {
	StatusCode   int
	ResponseTime time.Duration
	Success      bool
	Error        error
}

// NewWebhookSender creates a new webhook delivery channel
func NewWebhookSender(cfg *config.NotificationConfig, logger *NotificationLogger) *WebhookSender {
	return &WebhookSender{
		config: cfg,
		logger: logger.WithField("channel", models.ChannelWebhook),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Name returns the channel identifier
func (ws *WebhookSender) Name() string {
	return models.ChannelWebhook
}

// Send posts the delivery record to the configured endpoint, retrying with
// exponential backoff on failure
func (ws *WebhookSender) Send(ctx context.Context, record *models.DeliveryRecord) error {
	ws.logger.LogWebhookAttempt(ws.config.WebhookURL, http.MethodPost)

	payload := &WebhookPayload{
		SubscriberID: record.SubscriberID,
		Address:      record.Address,
		TxHash:       record.TxHash,
		Message:      record.Message,
		Timestamp:    time.Now().UTC(),
		Source:       "kaia-wallet-tracker",
		Version:      "1.0",
	}

	response := ws.sendWithRetry(ctx, payload)
	ws.logger.LogWebhookResponse(ws.config.WebhookURL, response.StatusCode, response.ResponseTime, response.Error)

	return response.Error
}

// sendWithRetry sends a webhook with retry logic
func (ws *WebhookSender) sendWithRetry(ctx context.Context, payload *WebhookPayload) *webhookResponse {
	maxAttempts := ws.config.RetryCount
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastResponse *webhookResponse

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := ws.retryDelay(attempt)
			ws.logger.LogRetryAttempt("webhook", attempt, maxAttempts, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &webhookResponse{Success: false, Error: ctx.Err()}
			}
		}

		response := ws.sendSingle(ctx, payload)
		lastResponse = response

		if response.Success {
			return response
		}
	}

	return lastResponse
}

// sendSingle sends one webhook request
func (ws *WebhookSender) sendSingle(ctx context.Context, payload *WebhookPayload) *webhookResponse {
	startTime := time.Now()
	response := &webhookResponse{Success: false}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeInternal, "Failed to marshal webhook payload", err.Error())
		response.ResponseTime = time.Since(startTime)
		return response
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeInternal, "Failed to create webhook request", err.Error())
		response.ResponseTime = time.Since(startTime)
		return response
	}

	ws.setRequestHeaders(req)

	resp, err := ws.httpClient.Do(req)
	response.ResponseTime = time.Since(startTime)

	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeExternal, "Failed to send webhook", err.Error())
		return response
	}
	defer resp.Body.Close()

	response.StatusCode = resp.StatusCode

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		response.Success = true
	} else {
		response.Error = utils.NewAppError(utils.ErrCodeExternal,
			"Webhook returned non-success status", fmt.Sprintf("status: %d", resp.StatusCode))
	}

	return response
}

// setRequestHeaders sets HTTP request headers
func (ws *WebhookSender) setRequestHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Kaia-Wallet-Tracker/1.0")
	req.Header.Set("X-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// retryDelay computes exponential backoff capped at 30 seconds
func (ws *WebhookSender) retryDelay(attempt int) time.Duration {
	delay := time.Duration(int64(ws.config.RetryDelay) << uint(attempt-2))

	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	if delay <= 0 {
		delay = ws.config.RetryDelay
	}

	return delay
}
