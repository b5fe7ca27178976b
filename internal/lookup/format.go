// File: internal/lookup/format.go
package lookup

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
)

// FormatBalance renders the native balance reply with its USD value
func FormatBalance(balance *models.AccountBalance, price *models.KaiaPrice) string {
	usdValue := balance.Balance * price.USDPrice

	var b strings.Builder
	b.WriteString("🏦 [ADDRESS BALANCE] 🏦\n\n")
	fmt.Fprintf(&b, "Address: %s\n", balance.Address)
	fmt.Fprintf(&b, "Balance: %s KAIA ( $%.2f USD )\n",
		strconv.FormatFloat(balance.Balance, 'f', -1, 64), usdValue)

	return b.String()
}

// FormatTokens renders the fungible token holdings reply
func FormatTokens(address string, holdings []models.TokenHolding) string {
	if len(holdings) == 0 {
		return "🔍 No tokens found for this wallet."
	}

	var b strings.Builder
	b.WriteString("💰 [TOKEN HOLDINGS] 💰\n\n")
	fmt.Fprintf(&b, "Address: %s\n\n", address)

	for _, holding := range holdings {
		fmt.Fprintf(&b, "- %s (%s): %s\n", holding.Name, holding.Symbol, holding.Balance)
	}

	return b.String()
}

// FormatNFTs renders the NFT holdings reply, grouped by contract standard
// with the largest collections first
func FormatNFTs(address string, kip17, kip37 []models.NFTHolding) string {
	if len(kip17) == 0 && len(kip37) == 0 {
		return "🔍 No NFTs found for this address."
	}

	var b strings.Builder
	b.WriteString("🖼️ [NFT HOLDINGS] 🖼️\n\n")
	fmt.Fprintf(&b, "Address: %s\n", address)

	if len(kip17) > 0 {
		b.WriteString("\n[KIP17]\n")
		for _, nft := range sortByCount(kip17) {
			fmt.Fprintf(&b, "- %s (%s): %d\n", nft.Name, nft.Symbol, nft.TokenCount)
		}
	}

	if len(kip37) > 0 {
		b.WriteString("\n[ERC1155]\n")
		for _, nft := range sortByCount(kip37) {
			fmt.Fprintf(&b, "- %s (%s): %d (%s)\n", nft.Name, nft.Symbol, nft.TokenCount, nft.TokenID)
		}
	}

	return b.String()
}

// sortByCount orders holdings by token count descending without mutating
// the caller's slice
func sortByCount(holdings []models.NFTHolding) []models.NFTHolding {
	sorted := make([]models.NFTHolding, len(holdings))
	copy(sorted, holdings)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TokenCount > sorted[j].TokenCount
	})

	return sorted
}
