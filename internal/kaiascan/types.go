package kaiascan

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
)

// paging mirrors the paging envelope returned by list endpoints.
type paging struct {
	TotalCount  int64 `json:"total_count"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
}

// wireTransaction is one row of the accounts/{address}/transactions feed.
type wireTransaction struct {
	TransactionHash string      `json:"transaction_hash"`
	From            string      `json:"from"`
	To              string      `json:"to"`
	DateTime        string      `json:"datetime"`
	TransactionType string      `json:"transaction_type"`
	Amount          json.Number `json:"amount"`
	TransactionFee  json.Number `json:"transaction_fee"`
	MethodSignature string      `json:"method_signature"`
}

// toModel converts a feed row into the internal transaction shape. The
// feed reports datetime as RFC3339; anything else is a malformed payload.
func (w *wireTransaction) toModel() (models.Transaction, error) {
	ts, err := time.Parse(time.RFC3339, w.DateTime)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("invalid datetime %q: %w", w.DateTime, err)
	}

	return models.Transaction{
		Hash:            w.TransactionHash,
		From:            w.From,
		To:              w.To,
		Timestamp:       ts.UTC(),
		Kind:            w.TransactionType,
		Amount:          w.Amount.String(),
		Fee:             w.TransactionFee.String(),
		MethodSignature: w.MethodSignature,
	}, nil
}

// transactionsPage is the envelope of the transaction history endpoint.
type transactionsPage struct {
	Results []wireTransaction `json:"results"`
	Paging  paging            `json:"paging"`
}

// accountInfo is the accounts/{address} response.
type accountInfo struct {
	Address string      `json:"address"`
	Balance json.Number `json:"balance"`
}

// kaiaInfo is the kaia endpoint response carrying the native token price.
type kaiaInfo struct {
	KlayPrice struct {
		USDPrice json.Number `json:"usd_price"`
	} `json:"klay_price"`
}

// tokenDetail is one row of accounts/{address}/token-details.
type tokenDetail struct {
	Contract struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"contract"`
	Balance json.Number `json:"balance"`
}

// tokenDetailsPage is the envelope of the token details endpoint.
type tokenDetailsPage struct {
	Results []tokenDetail `json:"results"`
	Paging  paging        `json:"paging"`
}

// nftBalance is one row of accounts/{address}/nft-balances/{kind}.
type nftBalance struct {
	Contract struct {
		ContractAddress string `json:"contract_address"`
		ContractType    string `json:"contract_type"`
	} `json:"contract"`
	TokenCount json.Number `json:"token_count"`
	TokenID    string      `json:"token_id"`
}

// nftBalancesPage is the envelope of the NFT balances endpoint.
type nftBalancesPage struct {
	Results []nftBalance `json:"results"`
	Paging  paging       `json:"paging"`
}

// nftContractInfo is the nfts/{contractAddress} response.
type nftContractInfo struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}
