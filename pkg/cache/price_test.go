package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/redis/go-redis/v9"

	"NewsRadar/pkg/logging"
	"NewsRadar/pkg/verify"
)

type countingSource struct {
	calls  int
	change float64
	err    error
}

func (s *countingSource) PriceChange(ctx context.Context, symbol string, window verify.Window) (float64, error) {
	s.calls++
	return s.change, s.err
}

// unreachable 指向不可连接地址的客户端，用于验证降级回源
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestKey(t *testing.T) {
	w := verify.Window{
		From: time.Date(2025, 3, 10, 0, 30, 0, 0, time.UTC),
		To:   time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "newsradar:price:AAPL:2025031000-2025031100", Key(" aapl ", w))
}

func TestPriceCacheFallsBackWhenRedisDown(t *testing.T) {
	client := unreachable()
	defer client.Close()

	src := &countingSource{change: 1.25}
	c := NewPriceCache(src, client, time.Minute, logging.Discard())

	got, err := c.PriceChange(context.Background(), "AAPL", verify.Window{})
	assert.Equal(t, nil, err)
	assert.Equal(t, 1.25, got)
	assert.Equal(t, 1, src.calls)
}

func TestPriceCachePropagatesSourceError(t *testing.T) {
	client := unreachable()
	defer client.Close()

	src := &countingSource{err: verify.ErrPriceUnavailable}
	c := NewPriceCache(src, client, time.Minute, logging.Discard())

	_, err := c.PriceChange(context.Background(), "ZZZZ", verify.Window{})
	assert.Equal(t, true, errors.Is(err, verify.ErrPriceUnavailable))
}

func TestNewClientUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewClient(ctx, "redis://127.0.0.1:1/0")
	assert.NotEqual(t, nil, err)
}

type dailySource struct{ countingSource }

func (dailySource) Horizon() time.Duration { return 24 * time.Hour }

func TestPriceCacheHorizon(t *testing.T) {
	tests := []struct {
		name   string
		source verify.PriceSource
		want   time.Duration
	}{
		{"source without horizon", &countingSource{}, 0},
		{"daily quote source", &dailySource{}, 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPriceCache(tt.source, unreachable(), time.Minute, logging.Discard())
			assert.Equal(t, tt.want, verify.HorizonOf(c))
		})
	}
}
