// File: internal/tracker/detector.go
package tracker

import (
	"sort"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
)

// DetectNewTransactions returns the transactions in page that are newer than
// the checkpoint, oldest first, each paired with the checkpoint to commit once
// that transaction has been notified.
//
// The page is newest-first as the feed serves it. When the checkpoint hash is
// present in the page, everything strictly above it is new; the hash cut keeps
// same-timestamp siblings that a pure time comparison would drop. When the
// hash is absent (sentinel checkpoint, hash paged out of the window, or a
// rewritten history) a transaction is new iff its timestamp is strictly later
// than the checkpoint time.
//
// Committed checkpoint times never move backward: every entry's Next.Time is
// the running maximum of the checkpoint time and the transaction timestamps
// seen so far.
func DetectNewTransactions(page []models.Transaction, cp models.Checkpoint) []models.DetectedTransaction {
	if len(page) == 0 {
		return nil
	}

	var fresh []models.Transaction
	if cut := indexOfHash(page, cp.Hash); cut >= 0 {
		fresh = append(fresh, page[:cut]...)
	} else {
		for _, tx := range page {
			if tx.Timestamp.After(cp.Time) {
				fresh = append(fresh, tx)
			}
		}
	}

	if len(fresh) == 0 {
		return nil
	}

	// Reverse to oldest-first, then stable-sort by timestamp so a disordered
	// page still commits in chronological order while equal timestamps keep
	// their chain order.
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Timestamp.Before(fresh[j].Timestamp)
	})

	detected := make([]models.DetectedTransaction, 0, len(fresh))
	lastTime := cp.Time
	for _, tx := range fresh {
		if tx.Timestamp.After(lastTime) {
			lastTime = tx.Timestamp
		}
		detected = append(detected, models.DetectedTransaction{
			Transaction: tx,
			Next: models.Checkpoint{
				Hash: tx.Hash,
				Time: lastTime,
			},
		})
	}

	return detected
}

func indexOfHash(page []models.Transaction, hash string) int {
	if hash == models.CheckpointNone {
		return -1
	}
	for i := range page {
		if page[i].Hash == hash {
			return i
		}
	}
	return -1
}
