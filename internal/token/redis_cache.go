package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xpool-finance/xpool-signer/internal/metrics"
	"github.com/xpool-finance/xpool-signer/pkg/logger"
)

const cacheKeyPrefix = "xpool:token:decimals:"

// CacheKey 代币精度的 Redis 键
func CacheKey(chainID int64, token common.Address) string {
	return fmt.Sprintf("%s%d:%s", cacheKeyPrefix, chainID, strings.ToLower(token.Hex()))
}

// RedisCache 跨进程共享精度查询结果, Redis 不可用时降级到下游 provider
type RedisCache struct {
	client  redis.Cmdable
	next    DecimalsProvider
	chainID int64
	ttl     time.Duration
}

var _ DecimalsProvider = (*RedisCache)(nil)

// NewRedisCache 创建读穿缓存
func NewRedisCache(client redis.Cmdable, next DecimalsProvider, chainID int64, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, next: next, chainID: chainID, ttl: ttl}
}

// Decimals 实现 DecimalsProvider
func (c *RedisCache) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	key := CacheKey(c.chainID, token)

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		d, perr := strconv.ParseUint(val, 10, 8)
		if perr == nil {
			metrics.RecordDecimalsLookup("cache", nil, 0)
			return uint8(d), nil
		}
		logger.WithContext(ctx).Warn("discarding corrupt decimals cache entry",
			zap.String("key", key), zap.String("value", val))
	case errors.Is(err, redis.Nil):
	default:
		metrics.RecordDecimalsLookup("cache", err, 0)
		logger.WithContext(ctx).Warn("decimals cache unavailable",
			zap.String("key", key), zap.Error(err))
	}

	d, err := c.next.Decimals(ctx, token)
	if err != nil {
		return 0, err
	}

	if err := c.client.Set(ctx, key, strconv.Itoa(int(d)), c.ttl).Err(); err != nil {
		logger.WithContext(ctx).Warn("failed to cache decimals",
			zap.String("key", key), zap.Error(err))
	}
	return d, nil
}

// Invalidate 删除缓存
func (c *RedisCache) Invalidate(ctx context.Context, token common.Address) error {
	return c.client.Del(ctx, CacheKey(c.chainID, token)).Err()
}
