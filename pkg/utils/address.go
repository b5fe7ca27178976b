package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// GenerateID generates a random hex ID
func GenerateID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// IsValidAddress checks if a string is a valid 20-byte hex address.
// Kaia addresses use the same format as Ethereum: 0x followed by 40
// hex characters.
func IsValidAddress(address string) bool {
	if !strings.HasPrefix(address, "0x") {
		return false
	}
	return common.IsHexAddress(address)
}

// NormalizeAddress normalizes an address to lowercase with 0x prefix
func NormalizeAddress(address string) string {
	if !strings.HasPrefix(address, "0x") {
		address = "0x" + address
	}
	return strings.ToLower(address)
}
