// Package cache Redis 缓存层
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"NewsRadar/pkg/verify"
)

const keyPrefix = "newsradar:price:"

// NewClient 解析 redis:// URL 并检查连通性
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}
	return client, nil
}

// PriceCache 在价格源外加一层缓存，同一股票同一窗口只请求一次。
// Redis 不可用时直接回源
type PriceCache struct {
	source verify.PriceSource
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ verify.PriceSource = (*PriceCache)(nil)

func (c *PriceCache) Horizon() time.Duration { return verify.HorizonOf(c.source) }

// NewPriceCache 创建带 Redis 缓存的价格源
func NewPriceCache(source verify.PriceSource, client *redis.Client, ttl time.Duration, logger *slog.Logger) *PriceCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceCache{
		source: source,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "price_cache"),
	}
}

func (c *PriceCache) PriceChange(ctx context.Context, symbol string, window verify.Window) (float64, error) {
	key := Key(symbol, window)

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if change, perr := strconv.ParseFloat(val, 64); perr == nil {
			return change, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("读取价格缓存失败", "key", key, "error", err)
	}

	change, err := c.source.PriceChange(ctx, symbol, window)
	if err != nil {
		return 0, err
	}
	if err := c.client.Set(ctx, key, strconv.FormatFloat(change, 'f', -1, 64), c.ttl).Err(); err != nil {
		c.logger.Warn("写入价格缓存失败", "key", key, "error", err)
	}
	return change, nil
}

// Key 缓存键：股票代码 + 窗口起止(UTC 小时精度)
func Key(symbol string, window verify.Window) string {
	const layout = "2006010215"
	return keyPrefix + strings.ToUpper(strings.TrimSpace(symbol)) + ":" +
		window.From.UTC().Format(layout) + "-" + window.To.UTC().Format(layout)
}
