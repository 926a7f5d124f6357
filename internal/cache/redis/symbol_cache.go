package redis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

const defaultSymbolTTL = 24 * time.Hour

func symbolKey(addr string) string { return "symbol:" + strings.ToLower(addr) }

// SymbolCache is a read-through cache in front of the on-chain token
// registry, shared across bot instances. Cache failures degrade to the
// inner resolver.
type SymbolCache struct {
	rdb    *redis.Client
	inner  domain.SymbolResolver
	ttl    time.Duration
	logger *slog.Logger
}

// NewSymbolCache wraps inner with a Redis cache. ttl zero means 24 hours.
func NewSymbolCache(rdb *redis.Client, inner domain.SymbolResolver, ttl time.Duration, logger *slog.Logger) *SymbolCache {
	if ttl <= 0 {
		ttl = defaultSymbolTTL
	}
	return &SymbolCache{
		rdb:    rdb,
		inner:  inner,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "symbol_cache")),
	}
}

// Symbol returns the cached symbol when present, otherwise resolves via the
// inner resolver and caches the result.
func (sc *SymbolCache) Symbol(ctx context.Context, tokenAddr string) (string, error) {
	key := symbolKey(tokenAddr)

	sym, err := sc.rdb.Get(ctx, key).Result()
	if err == nil && sym != "" {
		return sym, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		sc.logger.Warn("symbol cache read failed",
			slog.String("token", tokenAddr),
			slog.String("error", err.Error()),
		)
	}

	sym, err = sc.inner.Symbol(ctx, tokenAddr)
	if err != nil {
		return "", err
	}

	if cacheErr := sc.rdb.Set(ctx, key, sym, sc.ttl).Err(); cacheErr != nil {
		sc.logger.Warn("symbol cache write failed",
			slog.String("token", tokenAddr),
			slog.String("error", cacheErr.Error()),
		)
	}
	return sym, nil
}

// Compile-time interface check.
var _ domain.SymbolResolver = (*SymbolCache)(nil)
