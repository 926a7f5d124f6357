package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
	"github.com/Peer2Pepu/p2p-sub001/internal/retry"
)

// uniqueViolation is the PostgreSQL error code for a unique-constraint
// violation.
const uniqueViolation = "23505"

// MarketRecordStore implements domain.MarketRecordStore using PostgreSQL.
// The primary key on market_id enforces the at-most-one-row invariant; the
// store never issues updates from the ingestion path.
type MarketRecordStore struct {
	pool   *pgxpool.Pool
	policy retry.Policy
}

// NewMarketRecordStore creates a MarketRecordStore backed by the given
// connection pool. Transient write failures are retried up to maxAttempts
// times with a delay of retryDelay times the attempt number; zeros select
// the defaults of 3 attempts and 2 seconds.
func NewMarketRecordStore(pool *pgxpool.Pool, maxAttempts int, retryDelay time.Duration) *MarketRecordStore {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &MarketRecordStore{
		pool: pool,
		policy: retry.Policy{
			MaxAttempts: maxAttempts,
			Delay:       retry.Linear(retryDelay),
		},
	}
}

// Exists reports whether a record for the market id is already present.
func (s *MarketRecordStore) Exists(ctx context.Context, marketID uint64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM market WHERE market_id = $1)", int64(marketID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: exists market %d: %v", domain.ErrStoreUnavailable, marketID, err)
	}
	return exists, nil
}

// Insert writes a new record. A unique-constraint violation means another
// caller (or a previous run) won the race and is reported as
// domain.ErrAlreadyExists; the existing row is never overwritten. Transient
// failures are retried before surfacing domain.ErrStoreUnavailable.
func (s *MarketRecordStore) Insert(ctx context.Context, rec domain.MarketRecord) error {
	const query = `
		INSERT INTO market (
			market_id, ipfs_hash, image, creator, option_kind,
			token_symbol, stake_end_time, end_time, resolution_end_time,
			market_type, price_feed, price_threshold, assertion_made, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, NOW()
		)`

	err := s.policy.Do(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, query,
			int64(rec.MarketID), rec.IpfsHash, rec.Image, rec.Creator, string(rec.OptionKind),
			rec.TokenSymbol, nullableTime(rec.StakeEndTime), nullableTime(rec.EndTime), nullableTime(rec.ResolutionEndTime),
			string(rec.MarketType), rec.PriceFeed, rec.PriceThreshold, rec.AssertionMade,
		)
		if err != nil && isUniqueViolation(err) {
			return retry.Permanent(domain.ErrAlreadyExists)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		return domain.ErrAlreadyExists
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: insert market %d: %v", domain.ErrStoreUnavailable, rec.MarketID, err)
}

const recordCols = `market_id, ipfs_hash, image, creator, option_kind,
	token_symbol, stake_end_time, end_time, resolution_end_time,
	market_type, price_feed, price_threshold, assertion_made, created_at`

// GetByID fetches a single record by market id.
func (s *MarketRecordStore) GetByID(ctx context.Context, marketID uint64) (domain.MarketRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM market WHERE market_id = $1`, int64(marketID))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketRecord{}, domain.ErrNotFound
		}
		return domain.MarketRecord{}, fmt.Errorf("postgres: get market %d: %w", marketID, err)
	}
	return rec, nil
}

// Count returns the number of mirrored records.
func (s *MarketRecordStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM market").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// ListResolvedBefore returns records whose resolution window closed
// strictly before the cutoff, oldest first.
func (s *MarketRecordStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.MarketRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordCols+` FROM market
		 WHERE resolution_end_time IS NOT NULL AND resolution_end_time < $1
		 ORDER BY resolution_end_time ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets: %w", err)
	}
	defer rows.Close()

	var records []domain.MarketRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan resolved market: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets rows: %w", err)
	}
	return records, nil
}

// scanRecord scans a single market row.
func scanRecord(row pgx.Row) (domain.MarketRecord, error) {
	var (
		rec        domain.MarketRecord
		marketID   int64
		optionKind string
		marketType string
		stakeEnd   *time.Time
		end        *time.Time
		resEnd     *time.Time
	)
	err := row.Scan(
		&marketID, &rec.IpfsHash, &rec.Image, &rec.Creator, &optionKind,
		&rec.TokenSymbol, &stakeEnd, &end, &resEnd,
		&marketType, &rec.PriceFeed, &rec.PriceThreshold, &rec.AssertionMade, &rec.CreatedAt,
	)
	if err != nil {
		return domain.MarketRecord{}, err
	}
	rec.MarketID = uint64(marketID)
	rec.OptionKind = domain.OptionKind(optionKind)
	rec.MarketType = domain.MarketType(marketType)
	if stakeEnd != nil {
		rec.StakeEndTime = *stakeEnd
	}
	if end != nil {
		rec.EndTime = *end
	}
	if resEnd != nil {
		rec.ResolutionEndTime = *resEnd
	}
	return rec, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// isUniqueViolation reports whether err is a PostgreSQL duplicate-key
// error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Compile-time interface check.
var _ domain.MarketRecordStore = (*MarketRecordStore)(nil)
