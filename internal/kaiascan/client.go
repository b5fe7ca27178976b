// File: internal/kaiascan/client.go
package kaiascan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/metrics"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// Client defines the Kaiascan feed interface
type Client interface {
	LatestTransaction(ctx context.Context, address string) (*models.Transaction, error)
	TransactionHistory(ctx context.Context, address string, page, size int) ([]models.Transaction, error)
	AccountBalance(ctx context.Context, address string) (*models.AccountBalance, error)
	KaiaPrice(ctx context.Context) (*models.KaiaPrice, error)
	TokenBalances(ctx context.Context, address string) ([]models.TokenHolding, error)
	NFTBalances(ctx context.Context, address, kind string) ([]models.NFTHolding, error)
	NFTContract(ctx context.Context, contractAddress string) (*models.NFTContract, error)
	HealthCheck(ctx context.Context) error
	Stats() ClientStats
}

// HTTPClient implements the Client interface over the Kaiascan REST API
type HTTPClient struct {
	config         *config.KaiascanConfig
	baseURL        string
	httpClient     *retryablehttp.Client
	logger         *logrus.Logger
	metricsManager *metrics.Manager

	mu    sync.RWMutex
	stats ClientStats
}

// ClientStats holds feed client statistics
type ClientStats struct {
	TotalRequests   uint64    `json:"total_requests"`
	FailedRequests  uint64    `json:"failed_requests"`
	LastRequestAt   time.Time `json:"last_request_at"`
	LastHealthCheck time.Time `json:"last_health_check"`
	IsHealthy       bool      `json:"is_healthy"`
	LastError       string    `json:"last_error,omitempty"`
}

var _ Client = (*HTTPClient)(nil)

// tokenPageSize matches the page size the token details endpoint is queried
// with; holdings beyond it are not paged through.
const tokenPageSize = 2000

// NewClient creates a new Kaiascan client with retry support
func NewClient(cfg *config.KaiascanConfig, metricsManager *metrics.Manager) *HTTPClient {
	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil
	httpClient.HTTPClient.Timeout = cfg.RequestTimeout
	httpClient.RetryMax = cfg.RetryMax
	httpClient.RetryWaitMin = cfg.RetryWaitMin
	httpClient.RetryWaitMax = cfg.RetryWaitMax

	return &HTTPClient{
		config:         cfg,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     httpClient,
		logger:         utils.GetLogger(),
		metricsManager: metricsManager,
	}
}

// LatestTransaction returns the newest transaction of an address, or nil
// when the address has no history yet.
func (c *HTTPClient) LatestTransaction(ctx context.Context, address string) (*models.Transaction, error) {
	txs, err := c.TransactionHistory(ctx, address, 1, 1)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// TransactionHistory returns one page of an address's transaction feed,
// newest first. Pages are 1-based.
func (c *HTTPClient) TransactionHistory(ctx context.Context, address string, page, size int) ([]models.Transaction, error) {
	path := fmt.Sprintf("/accounts/%s/transactions?page=%d&size=%d", address, page, size)

	var envelope transactionsPage
	if err := c.get(ctx, "account_transactions", path, &envelope); err != nil {
		return nil, err
	}

	txs := make([]models.Transaction, 0, len(envelope.Results))
	for i := range envelope.Results {
		tx, err := envelope.Results[i].toModel()
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeFeed, "malformed transaction in feed response", err.Error())
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

// AccountBalance returns the native KAIA balance of an address
func (c *HTTPClient) AccountBalance(ctx context.Context, address string) (*models.AccountBalance, error) {
	var info accountInfo
	if err := c.get(ctx, "account", "/accounts/"+address, &info); err != nil {
		return nil, err
	}

	balance, err := info.Balance.Float64()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeFeed, "malformed balance in feed response", err.Error())
	}

	return &models.AccountBalance{
		Address: info.Address,
		Balance: balance,
	}, nil
}

// KaiaPrice returns the current USD price of the native token
func (c *HTTPClient) KaiaPrice(ctx context.Context) (*models.KaiaPrice, error) {
	var info kaiaInfo
	if err := c.get(ctx, "kaia_price", "/kaia", &info); err != nil {
		return nil, err
	}

	price, err := info.KlayPrice.USDPrice.Float64()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeFeed, "malformed price in feed response", err.Error())
	}

	return &models.KaiaPrice{USDPrice: price}, nil
}

// TokenBalances returns the fungible token holdings of an address
func (c *HTTPClient) TokenBalances(ctx context.Context, address string) ([]models.TokenHolding, error) {
	path := fmt.Sprintf("/accounts/%s/token-details?size=%d", address, tokenPageSize)

	var envelope tokenDetailsPage
	if err := c.get(ctx, "token_details", path, &envelope); err != nil {
		return nil, err
	}

	holdings := make([]models.TokenHolding, 0, len(envelope.Results))
	for _, detail := range envelope.Results {
		holdings = append(holdings, models.TokenHolding{
			Name:    detail.Contract.Name,
			Symbol:  detail.Contract.Symbol,
			Balance: detail.Balance.String(),
		})
	}

	return holdings, nil
}

// NFTBalances returns the NFT holdings of an address for one contract kind
// (kip17 or kip37). Contract name and symbol are not part of this endpoint
// and must be resolved through NFTContract.
func (c *HTTPClient) NFTBalances(ctx context.Context, address, kind string) ([]models.NFTHolding, error) {
	if kind != models.NFTKindKIP17 && kind != models.NFTKindKIP37 {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "invalid NFT kind", kind)
	}

	path := fmt.Sprintf("/accounts/%s/nft-balances/%s?size=%d", address, kind, tokenPageSize)

	var envelope nftBalancesPage
	if err := c.get(ctx, "nft_balances", path, &envelope); err != nil {
		return nil, err
	}

	holdings := make([]models.NFTHolding, 0, len(envelope.Results))
	for _, row := range envelope.Results {
		count, err := row.TokenCount.Int64()
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeFeed, "malformed token count in feed response", err.Error())
		}
		holdings = append(holdings, models.NFTHolding{
			ContractAddress: row.Contract.ContractAddress,
			ContractType:    row.Contract.ContractType,
			TokenCount:      count,
			TokenID:         row.TokenID,
		})
	}

	return holdings, nil
}

// NFTContract returns the name and symbol of an NFT contract
func (c *HTTPClient) NFTContract(ctx context.Context, contractAddress string) (*models.NFTContract, error) {
	var info nftContractInfo
	if err := c.get(ctx, "nft_contract", "/nfts/"+contractAddress, &info); err != nil {
		return nil, err
	}

	return &models.NFTContract{
		Name:   info.Name,
		Symbol: info.Symbol,
	}, nil
}

// HealthCheck verifies the feed is reachable
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	_, err := c.KaiaPrice(ctx)

	c.mu.Lock()
	c.stats.LastHealthCheck = time.Now()
	c.stats.IsHealthy = err == nil
	c.mu.Unlock()

	return err
}

// Stats returns feed client statistics
func (c *HTTPClient) Stats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// get performs one authenticated GET and decodes the JSON response into out.
func (c *HTTPClient) get(ctx context.Context, endpoint, path string, out interface{}) error {
	start := time.Now()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "failed to build feed request", err.Error())
	}

	req.Header.Set("Accept", "*/*")
	if c.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordRequest(endpoint, "error", start, err)
		c.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"error":    err.Error(),
		}).Warn("Feed request failed")
		return utils.NewAppError(utils.ErrCodeFeed, "feed unavailable", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status := fmt.Sprintf("%d", resp.StatusCode)
		c.recordRequest(endpoint, status, start, fmt.Errorf("status %s", status))
		c.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Warn("Feed returned non-success status")
		return utils.NewAppError(utils.ErrCodeFeed, fmt.Sprintf("feed returned status %d", resp.StatusCode), path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.recordRequest(endpoint, "malformed", start, err)
		return utils.NewAppError(utils.ErrCodeFeed, "malformed feed response", err.Error())
	}

	c.recordRequest(endpoint, "success", start, nil)
	return nil
}

func (c *HTTPClient) recordRequest(endpoint, status string, start time.Time, err error) {
	c.mu.Lock()
	c.stats.TotalRequests++
	c.stats.LastRequestAt = time.Now()
	if err != nil {
		c.stats.FailedRequests++
		c.stats.LastError = err.Error()
	}
	c.mu.Unlock()

	if c.metricsManager != nil {
		c.metricsManager.GetPrometheusMetrics().RecordFeedRequest(endpoint, status, time.Since(start))
	}
}
