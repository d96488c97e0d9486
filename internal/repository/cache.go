package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const balanceKeyPrefix = "balance"

// BalanceCache is a read-through cache for derived wallet balances. It is an
// optimization only: the ledger stays the single source of truth, and every
// ledger write for a wallet invalidates the cached value. Nil-safe: a nil
// cache or absent redis client disables caching without changing behavior.
type BalanceCache struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewBalanceCache(redis redis.Cmdable, ttl time.Duration) *BalanceCache {
	return &BalanceCache{redis: redis, ttl: ttl}
}

func (c *BalanceCache) Get(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, bool) {
	if c == nil || c.redis == nil {
		return decimal.Zero, false
	}
	val, err := c.redis.Get(ctx, balanceKey(walletID)).Result()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("balance cache read failed", zap.Error(err), zap.String("wallet_id", walletID.String()))
		}
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (c *BalanceCache) Set(ctx context.Context, walletID uuid.UUID, balance decimal.Decimal) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, balanceKey(walletID), balance.String(), c.ttl).Err(); err != nil {
		zap.L().Warn("balance cache write failed", zap.Error(err), zap.String("wallet_id", walletID.String()))
	}
}

// Invalidate drops the cached balance. Called after every unit of work that
// wrote an entry for the wallet, including webhook and poll resolutions.
func (c *BalanceCache) Invalidate(ctx context.Context, walletIDs ...uuid.UUID) {
	if c == nil || c.redis == nil {
		return
	}
	for _, id := range walletIDs {
		if err := c.redis.Del(ctx, balanceKey(id)).Err(); err != nil {
			zap.L().Warn("balance cache invalidation failed", zap.Error(err), zap.String("wallet_id", id.String()))
		}
	}
}

func balanceKey(walletID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", balanceKeyPrefix, walletID)
}
