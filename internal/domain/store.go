package domain

import (
	"context"
	"time"
)

// MarketRecordStore is the deduplicating sync store over the side database.
//
// Insert must be safe to call concurrently and safe to retry: the store's
// unique constraint on market_id is the durable at-most-once boundary, and
// a constraint violation surfaces as ErrAlreadyExists rather than a failure.
type MarketRecordStore interface {
	// Exists reports whether a record for the market id is already present.
	Exists(ctx context.Context, marketID uint64) (bool, error)
	// Insert writes a new record. Returns ErrAlreadyExists when a row for
	// the market id is already present, ErrStoreUnavailable when the store
	// stayed unreachable after retries.
	Insert(ctx context.Context, rec MarketRecord) error
	// GetByID fetches a single record, ErrNotFound when absent.
	GetByID(ctx context.Context, marketID uint64) (MarketRecord, error)
	// Count returns the number of mirrored records.
	Count(ctx context.Context) (int64, error)
	// ListResolvedBefore returns records whose resolution window closed
	// strictly before the cutoff, for archival.
	ListResolvedBefore(ctx context.Context, before time.Time) ([]MarketRecord, error)
}

// MetadataSource resolves a content hash to its metadata document. A nil
// result with nil error means the metadata is unavailable; callers must
// treat that as a degraded but valid outcome.
type MetadataSource interface {
	Fetch(ctx context.Context, contentHash string) *Metadata
}

// SymbolResolver resolves an ERC-20 token address to a display symbol.
type SymbolResolver interface {
	Symbol(ctx context.Context, tokenAddr string) (string, error)
}
