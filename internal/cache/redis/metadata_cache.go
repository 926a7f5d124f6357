package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

const defaultMetadataTTL = time.Hour

// metadataKey namespaces cached documents by content hash. The hash is
// content-addressed, so a cached document can never go stale, but a TTL
// keeps the keyspace bounded.
func metadataKey(hash string) string { return "meta:" + hash }

// MetadataCache is a read-through cache in front of an IPFS metadata
// source. Cache failures degrade to the inner source; a cached negative
// result is never stored, so transient gateway failures retry naturally.
type MetadataCache struct {
	rdb    *redis.Client
	inner  domain.MetadataSource
	ttl    time.Duration
	logger *slog.Logger
}

// NewMetadataCache wraps inner with a Redis cache. ttl zero means 1 hour.
func NewMetadataCache(rdb *redis.Client, inner domain.MetadataSource, ttl time.Duration, logger *slog.Logger) *MetadataCache {
	if ttl <= 0 {
		ttl = defaultMetadataTTL
	}
	return &MetadataCache{
		rdb:    rdb,
		inner:  inner,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "metadata_cache")),
	}
}

// Fetch returns the cached document when present, otherwise consults the
// inner source and caches a non-nil result.
func (mc *MetadataCache) Fetch(ctx context.Context, contentHash string) *domain.Metadata {
	if contentHash == "" {
		return nil
	}

	key := metadataKey(contentHash)
	raw, err := mc.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var md domain.Metadata
		if jsonErr := json.Unmarshal(raw, &md); jsonErr == nil {
			return &md
		}
		// Corrupt entry: drop it and fall through.
		_ = mc.rdb.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		mc.logger.Warn("metadata cache read failed",
			slog.String("hash", contentHash),
			slog.String("error", err.Error()),
		)
	}

	md := mc.inner.Fetch(ctx, contentHash)
	if md == nil {
		return nil
	}

	if data, jsonErr := json.Marshal(md); jsonErr == nil {
		if err := mc.rdb.Set(ctx, key, data, mc.ttl).Err(); err != nil {
			mc.logger.Warn("metadata cache write failed",
				slog.String("hash", contentHash),
				slog.String("error", err.Error()),
			)
		}
	}
	return md
}

// Compile-time interface check.
var _ domain.MetadataSource = (*MetadataCache)(nil)
