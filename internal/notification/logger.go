// File: internal/notification/logger.go
package notification

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// NotificationLogger handles logging for notification operations
type NotificationLogger struct {
	logger  *logrus.Logger
	context map[string]interface{}
}

// NewNotificationLogger creates a new notification logger
func NewNotificationLogger() *NotificationLogger {
	return &NotificationLogger{
		logger:  utils.GetLogger(),
		context: make(map[string]interface{}),
	}
}

// WithContext adds context to the logger
func (nl *NotificationLogger) WithContext(context map[string]interface{}) *NotificationLogger {
	newLogger := &NotificationLogger{
		logger:  nl.logger,
		context: make(map[string]interface{}),
	}

	for k, v := range nl.context {
		newLogger.context[k] = v
	}
	for k, v := range context {
		newLogger.context[k] = v
	}

	return newLogger
}

// WithField adds a single field to the logger context
func (nl *NotificationLogger) WithField(key string, value interface{}) *NotificationLogger {
	return nl.WithContext(map[string]interface{}{key: value})
}

// Debug logs a debug message
func (nl *NotificationLogger) Debug(message string, context ...map[string]interface{}) {
	nl.log(logrus.DebugLevel, message, context...)
}

// Info logs an info message
func (nl *NotificationLogger) Info(message string, context ...map[string]interface{}) {
	nl.log(logrus.InfoLevel, message, context...)
}

// Warn logs a warning message
func (nl *NotificationLogger) Warn(message string, context ...map[string]interface{}) {
	nl.log(logrus.WarnLevel, message, context...)
}

// Error logs an error message
func (nl *NotificationLogger) Error(message string, context ...map[string]interface{}) {
	nl.log(logrus.ErrorLevel, message, context...)
}

// log is the internal logging method
func (nl *NotificationLogger) log(level logrus.Level, message string, context ...map[string]interface{}) {
	mergedContext := make(map[string]interface{})

	for k, v := range nl.context {
		mergedContext[k] = v
	}
	for _, ctx := range context {
		for k, v := range ctx {
			mergedContext[k] = v
		}
	}
	mergedContext["component"] = "notification"

	entry := nl.logger.WithFields(logrus.Fields(mergedContext))

	switch level {
	case logrus.DebugLevel:
		entry.Debug(message)
	case logrus.InfoLevel:
		entry.Info(message)
	case logrus.WarnLevel:
		entry.Warn(message)
	case logrus.ErrorLevel:
		entry.Error(message)
	}
}

// LogDispatchAttempt logs the start of a dispatch
func (nl *NotificationLogger) LogDispatchAttempt(deliveryID, channel, subscriberID string) {
	nl.Debug("Dispatch started", map[string]interface{}{
		"delivery_id": deliveryID,
		"channel":     channel,
		"subscriber":  subscriberID,
	})
}

// LogDispatchSuccess logs a successful dispatch
func (nl *NotificationLogger) LogDispatchSuccess(deliveryID, channel string, duration time.Duration) {
	nl.Info("Notification sent successfully", map[string]interface{}{
		"delivery_id": deliveryID,
		"channel":     channel,
		"duration_ms": duration.Milliseconds(),
	})
}

// LogDispatchFailure logs a failed dispatch
func (nl *NotificationLogger) LogDispatchFailure(deliveryID, channel string, err error, duration time.Duration) {
	nl.Error("Notification failed", map[string]interface{}{
		"delivery_id": deliveryID,
		"channel":     channel,
		"error":       err.Error(),
		"duration_ms": duration.Milliseconds(),
	})
}

// LogWebhookAttempt logs a webhook attempt
func (nl *NotificationLogger) LogWebhookAttempt(url, method string) {
	nl.Debug("Webhook attempt started", map[string]interface{}{
		"url":    url,
		"method": method,
	})
}

// LogWebhookResponse logs a webhook response
func (nl *NotificationLogger) LogWebhookResponse(url string, statusCode int, duration time.Duration, err error) {
	context := map[string]interface{}{
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		context["error"] = err.Error()
		nl.Error("Webhook failed", context)
	} else {
		nl.Info("Webhook completed", context)
	}
}

// LogRetryAttempt logs a retry attempt
func (nl *NotificationLogger) LogRetryAttempt(operation string, attempt int, maxAttempts int, delay time.Duration) {
	nl.Warn("Retrying operation", map[string]interface{}{
		"operation":    operation,
		"attempt":      attempt,
		"max_attempts": maxAttempts,
		"retry_delay":  delay.String(),
	})
}

// LogChannelOperation logs channel registration changes
func (nl *NotificationLogger) LogChannelOperation(operation, channel string) {
	nl.Info("Channel operation", map[string]interface{}{
		"operation": operation,
		"channel":   channel,
	})
}
