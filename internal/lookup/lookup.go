// File: internal/lookup/lookup.go
package lookup

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/cache"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/kaiascan"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/metrics"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

const (
	priceCacheKey        = "kaiascan:price"
	nftContractKeyPrefix = "kaiascan:nft_contract:"
)

// Service answers on-demand wallet questions (balance, tokens, NFTs),
// keeping slow-changing feed data in the cache between requests
type Service struct {
	feed           kaiascan.Client
	cache          cache.Cache
	config         *config.CacheConfig
	logger         *logrus.Logger
	metricsManager *metrics.Manager
}

// NewService creates a new lookup service
func NewService(feed kaiascan.Client, c cache.Cache, cfg *config.CacheConfig, metricsManager *metrics.Manager) *Service {
	return &Service{
		feed:           feed,
		cache:          c,
		config:         cfg,
		logger:         utils.GetLogger(),
		metricsManager: metricsManager,
	}
}

// AccountBalance returns the native balance of an address together with the
// current KAIA price
func (s *Service) AccountBalance(ctx context.Context, address string) (*models.AccountBalance, *models.KaiaPrice, error) {
	if !utils.IsValidAddress(address) {
		return nil, nil, utils.NewAppError(utils.ErrCodeValidation, "invalid address format", address)
	}

	balance, err := s.feed.AccountBalance(ctx, utils.NormalizeAddress(address))
	if err != nil {
		return nil, nil, err
	}

	price, err := s.cachedPrice(ctx)
	if err != nil {
		return nil, nil, err
	}

	return balance, price, nil
}

// TokenHoldings returns the fungible token holdings of an address
func (s *Service) TokenHoldings(ctx context.Context, address string) ([]models.TokenHolding, error) {
	if !utils.IsValidAddress(address) {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "invalid address format", address)
	}

	return s.feed.TokenBalances(ctx, utils.NormalizeAddress(address))
}

// NFTHoldings returns the NFT holdings of an address, split by contract
// standard, with contract names and symbols resolved
func (s *Service) NFTHoldings(ctx context.Context, address string) (kip17, kip37 []models.NFTHolding, err error) {
	if !utils.IsValidAddress(address) {
		return nil, nil, utils.NewAppError(utils.ErrCodeValidation, "invalid address format", address)
	}
	normalized := utils.NormalizeAddress(address)

	rawKIP17, err := s.feed.NFTBalances(ctx, normalized, models.NFTKindKIP17)
	if err != nil {
		return nil, nil, err
	}

	rawKIP37, err := s.feed.NFTBalances(ctx, normalized, models.NFTKindKIP37)
	if err != nil {
		return nil, nil, err
	}

	return s.resolveContracts(ctx, rawKIP17), s.resolveContracts(ctx, rawKIP37), nil
}

// cachedPrice returns the KAIA price, refreshing the cached value from the
// feed when it has expired
func (s *Service) cachedPrice(ctx context.Context) (*models.KaiaPrice, error) {
	value, ok, err := s.cache.Get(ctx, priceCacheKey)
	if err != nil {
		s.logger.WithField("error", err.Error()).Debug("Price cache read failed")
	} else if ok {
		if usd, parseErr := strconv.ParseFloat(value, 64); parseErr == nil {
			s.recordCache("price", true)
			return &models.KaiaPrice{USDPrice: usd}, nil
		}
	}
	s.recordCache("price", false)

	price, err := s.feed.KaiaPrice(ctx)
	if err != nil {
		return nil, err
	}

	encoded := strconv.FormatFloat(price.USDPrice, 'f', -1, 64)
	if err := s.cache.Set(ctx, priceCacheKey, encoded, s.config.PriceTTL); err != nil {
		s.logger.WithField("error", err.Error()).Debug("Price cache write failed")
	}

	return price, nil
}

// resolveContracts fills in contract name and symbol, consulting the cache
// first. Holdings whose contract metadata cannot be fetched are dropped from
// the reply, matching what the explorer itself can name.
func (s *Service) resolveContracts(ctx context.Context, holdings []models.NFTHolding) []models.NFTHolding {
	resolved := make([]models.NFTHolding, 0, len(holdings))

	for _, holding := range holdings {
		contract, err := s.cachedContract(ctx, holding.ContractAddress)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"contract": holding.ContractAddress,
				"error":    err.Error(),
			}).Debug("NFT contract lookup failed, dropping holding from reply")
			continue
		}

		holding.Name = contract.Name
		holding.Symbol = contract.Symbol
		resolved = append(resolved, holding)
	}

	return resolved
}

// cachedContract returns one NFT contract's metadata, cached under the
// metadata TTL since names and symbols effectively never change
func (s *Service) cachedContract(ctx context.Context, contractAddress string) (*models.NFTContract, error) {
	key := nftContractKeyPrefix + contractAddress

	value, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithField("error", err.Error()).Debug("Contract cache read failed")
	} else if ok {
		var contract models.NFTContract
		if jsonErr := json.Unmarshal([]byte(value), &contract); jsonErr == nil {
			s.recordCache("nft_contract", true)
			return &contract, nil
		}
	}
	s.recordCache("nft_contract", false)

	contract, err := s.feed.NFTContract(ctx, contractAddress)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(contract); jsonErr == nil {
		if err := s.cache.Set(ctx, key, string(data), s.config.MetadataTTL); err != nil {
			s.logger.WithField("error", err.Error()).Debug("Contract cache write failed")
		}
	}

	return contract, nil
}

func (s *Service) recordCache(keyType string, hit bool) {
	if s.metricsManager == nil {
		return
	}

	prom := s.metricsManager.GetPrometheusMetrics()
	if hit {
		prom.RecordCacheHit(keyType)
	} else {
		prom.RecordCacheMiss(keyType)
	}
}
