// File: internal/tracker/formatter.go
package tracker

import (
	"fmt"
	"strings"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
)

// explorerTxURL is the block explorer deep link prefix appended to every
// notification so recipients can inspect the transaction.
const explorerTxURL = "https://kaiascan.io/tx/"

// FormatTransaction renders the notification message for one new transaction.
// It performs no I/O; the same inputs always produce the same message.
func FormatTransaction(tx models.Transaction, label string) string {
	var b strings.Builder

	b.WriteString("🔔 [NEW TRANSACTION] 🔔\n\n")
	if label != "" {
		fmt.Fprintf(&b, "Label: %s\n", label)
	}
	fmt.Fprintf(&b, "Time: %s\n", tx.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Hash: %s\n", tx.Hash)
	fmt.Fprintf(&b, "From: %s\n", tx.From)
	fmt.Fprintf(&b, "To: %s\n", tx.To)
	fmt.Fprintf(&b, "Type: %s\n", tx.Kind)
	fmt.Fprintf(&b, "Amount: %s KAIA\n", tx.Amount)
	fmt.Fprintf(&b, "Fee: %s\n", tx.Fee)

	method := tx.MethodSignature
	if method == "" {
		method = "unknown"
	}
	fmt.Fprintf(&b, "Method: %s\n", method)

	fmt.Fprintf(&b, "\n%s%s\n", explorerTxURL, tx.Hash)

	return b.String()
}
