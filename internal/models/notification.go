package models

import (
	"time"
)

// Delivery channel names
const (
	ChannelTelegram = "telegram"
	ChannelWebhook  = "webhook"
	ChannelLog      = "log"
)

// Delivery statuses
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSent    = "sent"
	DeliveryStatusFailed  = "failed"
)

// DeliveryRecord is one outbound notification attempt for a subscriber.
type DeliveryRecord struct {
	ID           string     `json:"id" db:"id"`
	SubscriberID string     `json:"subscriber_id" db:"subscriber_id"`
	Address      string     `json:"address,omitempty" db:"address"`
	TxHash       string     `json:"tx_hash,omitempty" db:"tx_hash"`
	Channel      string     `json:"channel" db:"channel"`
	Message      string     `json:"message" db:"message"`
	Status       string     `json:"status" db:"status"`
	Attempts     int        `json:"attempts" db:"attempts"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	SentAt       *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	Error        *string    `json:"error,omitempty" db:"error"`
}

// DeliveryFilter narrows delivery record queries.
type DeliveryFilter struct {
	SubscriberID *string `json:"subscriber_id,omitempty"`
	Address      *string `json:"address,omitempty"`
	Status       *string `json:"status,omitempty"`
	Limit        int     `json:"limit,omitempty"`
	Offset       int     `json:"offset,omitempty"`
}
