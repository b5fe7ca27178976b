// File: internal/notification/log.go
package notification

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// LogSender writes notifications to the application log. It is the channel
// of last resort for deployments without a live chat or webhook endpoint.
type LogSender struct {
	logger *logrus.Logger
}

var _ Notifier = (*LogSender)(nil)

// NewLogSender creates a new log delivery channel
func NewLogSender() *LogSender {
	return &LogSender{logger: utils.GetLogger()}
}

// Name returns the channel identifier
func (s *LogSender) Name() string {
	return models.ChannelLog
}

// Send writes the rendered message to the log
func (s *LogSender) Send(ctx context.Context, record *models.DeliveryRecord) error {
	s.logger.WithFields(logrus.Fields{
		"delivery_id": record.ID,
		"subscriber":  record.SubscriberID,
		"address":     record.Address,
		"tx_hash":     record.TxHash,
	}).Info(record.Message)

	return nil
}
