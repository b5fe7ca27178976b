package models

// AccountBalance is the native KAIA balance of an account.
type AccountBalance struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
}

// KaiaPrice holds the current KAIA market price.
type KaiaPrice struct {
	USDPrice float64 `json:"usd_price"`
}

// TokenHolding is one fungible token position of an account.
type TokenHolding struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Balance string `json:"balance"`
}

// NFT contract standards on Kaia.
const (
	NFTKindKIP17 = "kip17"
	NFTKindKIP37 = "kip37"
)

// NFTHolding is one NFT contract position of an account.
type NFTHolding struct {
	ContractAddress string `json:"contract_address"`
	ContractType    string `json:"contract_type"`
	Name            string `json:"name,omitempty"`
	Symbol          string `json:"symbol,omitempty"`
	TokenCount      int64  `json:"token_count"`
	TokenID         string `json:"token_id,omitempty"`
}

// NFTContract is the metadata of an NFT contract.
type NFTContract struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}
