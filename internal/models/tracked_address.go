package models

import (
	"time"
)

// CheckpointNone is the sentinel checkpoint hash stored when an address
// had no observed transaction history at registration time. Detection
// falls back to timestamp filtering until a real checkpoint is committed.
const CheckpointNone = ""

// TrackedAddress is one subscriber's registration of a wallet address.
// Rows are keyed by (subscriber_id, address); the checkpoint marks the
// last transaction already delivered for this row.
type TrackedAddress struct {
	SubscriberID   string    `json:"subscriber_id" db:"subscriber_id"`
	Address        string    `json:"address" db:"address"`
	Label          string    `json:"label" db:"label"`
	CheckpointHash string    `json:"checkpoint_hash" db:"checkpoint_hash"`
	CheckpointTime time.Time `json:"checkpoint_time" db:"checkpoint_time"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Checkpoint returns the row's checkpoint pair.
func (t *TrackedAddress) Checkpoint() Checkpoint {
	return Checkpoint{Hash: t.CheckpointHash, Time: t.CheckpointTime}
}

// Checkpoint is the (hash, timestamp) pair marking the most recently
// processed transaction for a tracked address.
type Checkpoint struct {
	Hash string    `json:"hash"`
	Time time.Time `json:"time"`
}

// IsSentinel reports whether the checkpoint still holds the registration
// placeholder rather than a real transaction.
func (c Checkpoint) IsSentinel() bool {
	return c.Hash == CheckpointNone
}
