package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
	"github.com/HyperCogAI/hypercognition-sub001/internal/manager"
)

var _ manager.SnapshotStore = (*SnapshotCache)(nil)

const DefaultSnapshotTTL = 5 * time.Minute

// SnapshotCache keeps the latest market data per exchange and symbol.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Ping checks the connection to the Redis server.
func (c *SnapshotCache) Ping(ctx context.Context) string {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Sprintf("down: %v", err)
	}
	return "up"
}

func keyFor(exchangeName, symbol string) string {
	return fmt.Sprintf("market:%s:%s", strings.ToLower(exchangeName), exchange.FormatSymbol(symbol))
}

// SaveMarketData overwrites the snapshot of every item in one pipeline.
func (c *SnapshotCache) SaveMarketData(ctx context.Context, data []exchange.MarketData) error {
	if len(data) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, md := range data {
		payload, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("encode snapshot %s/%s: %w", md.Exchange, md.Symbol, err)
		}
		pipe.Set(ctx, keyFor(md.Exchange, md.Symbol), payload, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Error("failed to save snapshots to redis", slog.Any("error", err))
		return err
	}
	return nil
}

// LatestMarketData returns nil without error when nothing is cached.
func (c *SnapshotCache) LatestMarketData(ctx context.Context, exchangeName, symbol string) (*exchange.MarketData, error) {
	raw, err := c.client.Get(ctx, keyFor(exchangeName, symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var md exchange.MarketData
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("decode snapshot %s/%s: %w", exchangeName, symbol, err)
	}
	return &md, nil
}

// LatestBySymbol returns the cached snapshot of symbol on every exchange.
func (c *SnapshotCache) LatestBySymbol(ctx context.Context, symbol string) ([]exchange.MarketData, error) {
	pattern := fmt.Sprintf("market:*:%s", exchange.FormatSymbol(symbol))

	var out []exchange.MarketData
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		raw, err := c.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var md exchange.MarketData
		if err := json.Unmarshal(raw, &md); err != nil {
			c.logger.Warn("could not decode cached snapshot",
				slog.String("key", iter.Val()),
				slog.Any("error", err))
			continue
		}
		out = append(out, md)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
