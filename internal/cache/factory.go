package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// NewCache creates a cache instance based on configuration
func NewCache(ctx context.Context, cfg *config.CacheConfig) (Cache, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		return NewMemoryCache(), nil
	case "redis":
		return NewRedisCache(ctx, cfg)
	default:
		return nil, utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("unsupported cache type: %s", cfg.Type), "supported types: memory, redis")
	}
}
