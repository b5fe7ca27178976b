package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

func newWebhookSender(url string, retries int) *WebhookSender {
	cfg := &config.NotificationConfig{
		DefaultChannel: models.ChannelWebhook,
		Timeout:        5 * time.Second,
		RetryCount:     retries,
		RetryDelay:     time.Millisecond,
		EnableWebhook:  true,
		WebhookURL:     url,
	}
	return NewWebhookSender(cfg, NewNotificationLogger())
}

func webhookRecord() *models.DeliveryRecord {
	return &models.DeliveryRecord{
		ID:           "d1",
		SubscriberID: "100",
		Address:      notifyTestAddress,
		TxHash:       "0xabc",
		Channel:      models.ChannelWebhook,
		Message:      "🔔 new transaction",
	}
}

func TestWebhookSenderPostsPayload(t *testing.T) {
	var payload WebhookPayload
	var gotRequestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Kaia-Wallet-Tracker/1.0", r.Header.Get("User-Agent"))
		gotRequestID = r.Header.Get("X-Request-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := newWebhookSender(server.URL, 1)

	require.NoError(t, sender.Send(context.Background(), webhookRecord()))

	assert.Equal(t, "100", payload.SubscriberID)
	assert.Equal(t, notifyTestAddress, payload.Address)
	assert.Equal(t, "0xabc", payload.TxHash)
	assert.Equal(t, "🔔 new transaction", payload.Message)
	assert.Equal(t, "kaia-wallet-tracker", payload.Source)
	assert.NotEmpty(t, gotRequestID, "every delivery carries a request id")
	assert.False(t, payload.Timestamp.IsZero())
}

func TestWebhookSenderRetriesUntilSuccess(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := newWebhookSender(server.URL, 3)

	require.NoError(t, sender.Send(context.Background(), webhookRecord()))
	assert.Equal(t, int32(2), requests.Load(), "the first failure is retried")
}

func TestWebhookSenderGivesUpAfterRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sender := newWebhookSender(server.URL, 2)

	err := sender.Send(context.Background(), webhookRecord())
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeExternal))
	assert.Contains(t, err.Error(), "non-success")
	assert.Equal(t, int32(2), requests.Load(), "attempts stop at the configured retry count")
}

func TestWebhookSenderHonorsContextCancellation(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := &config.NotificationConfig{
		DefaultChannel: models.ChannelWebhook,
		Timeout:        5 * time.Second,
		RetryCount:     5,
		RetryDelay:     200 * time.Millisecond,
		WebhookURL:     server.URL,
	}
	sender := NewWebhookSender(cfg, NewNotificationLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := sender.Send(ctx, webhookRecord())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, requests.Load(), int32(5), "cancellation cuts the retry loop short")
}
