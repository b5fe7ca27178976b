// File: internal/notification/telegram.go
package notification

import (
	"context"
	"strconv"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/telegram"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// TelegramSender delivers notifications through the Telegram Bot API. The
// subscriber ID is the decimal chat ID the tracking command was issued from.
type TelegramSender struct {
	client telegram.Client
	logger *NotificationLogger
}

var _ Notifier = (*TelegramSender)(nil)

// NewTelegramSender creates a new Telegram delivery channel
func NewTelegramSender(client telegram.Client, logger *NotificationLogger) *TelegramSender {
	return &TelegramSender{
		client: client,
		logger: logger.WithField("channel", models.ChannelTelegram),
	}
}

// Name returns the channel identifier
func (s *TelegramSender) Name() string {
	return models.ChannelTelegram
}

// Send delivers the rendered message to the subscriber's chat
func (s *TelegramSender) Send(ctx context.Context, record *models.DeliveryRecord) error {
	chatID, err := strconv.ParseInt(record.SubscriberID, 10, 64)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeValidation,
			"subscriber id is not a telegram chat id", record.SubscriberID)
	}

	return s.client.SendMessage(ctx, chatID, record.Message)
}
