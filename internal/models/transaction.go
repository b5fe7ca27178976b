package models

import (
	"time"
)

// Transaction is one entry of an address's transaction feed. The shape is
// owned by the feed source; values are immutable once fetched.
type Transaction struct {
	Hash            string    `json:"hash"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Timestamp       time.Time `json:"timestamp"`
	Kind            string    `json:"kind"`
	Amount          string    `json:"amount"`
	Fee             string    `json:"fee"`
	MethodSignature string    `json:"method_signature,omitempty"`
}

// DetectedTransaction pairs a new transaction with the checkpoint that
// applies once that transaction has been processed, enabling
// one-transaction-at-a-time commits.
type DetectedTransaction struct {
	Transaction Transaction `json:"transaction"`
	Next        Checkpoint  `json:"next"`
}
