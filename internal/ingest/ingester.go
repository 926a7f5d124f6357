// Package ingest implements the event ingestion loop: it polls the chain
// for MarketCreated logs in bounded block ranges, enriches each event with
// on-chain state, IPFS metadata, and a token symbol, and mirrors it into
// the sync store at most once.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

// ChainReader is the slice of the chain client the ingester needs.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterMarketCreated(ctx context.Context, fromBlock, toBlock uint64) ([]domain.MarketCreatedEvent, error)
	FilterMarketResolved(ctx context.Context, fromBlock, toBlock uint64) ([]domain.MarketResolvedEvent, error)
	GetMarket(ctx context.Context, marketID uint64) (domain.OnChainMarket, error)
}

// RecordStore is the slice of the sync store the ingester needs.
type RecordStore interface {
	Exists(ctx context.Context, marketID uint64) (bool, error)
	Insert(ctx context.Context, rec domain.MarketRecord) error
}

// ResolutionNotifier receives resolution events observed during steady
// state. Implementations must be best-effort and non-blocking on failure.
type ResolutionNotifier interface {
	MarketResolved(ctx context.Context, ev domain.MarketResolvedEvent)
}

// Config holds the ingester's tuning knobs.
type Config struct {
	// Interval between steady-state polls. Zero means 10s.
	Interval time.Duration
	// BootstrapWindow is how many blocks behind the head the bootstrap
	// scan starts. Zero means 500.
	BootstrapWindow uint64
	// MaxBlockRange caps a single log query; larger ranges are chunked.
	// Zero means 2000.
	MaxBlockRange uint64
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.BootstrapWindow == 0 {
		c.BootstrapWindow = 500
	}
	if c.MaxBlockRange == 0 {
		c.MaxBlockRange = 2000
	}
	return c
}

// Ingester mirrors MarketCreated events into the sync store. It runs as a
// single goroutine; the seen set and lastHeight are owned by the loop, and
// durability of dedup comes from the store's unique constraint, not from
// this in-process state, so restarts are safe.
type Ingester struct {
	chain    ChainReader
	store    RecordStore
	meta     domain.MetadataSource
	tokens   domain.SymbolResolver
	notifier ResolutionNotifier // may be nil
	cfg      Config
	logger   *slog.Logger

	lastHeight atomic.Uint64
	seen       map[domain.EventKey]struct{}
}

// New creates an Ingester. notifier may be nil when resolution
// notifications are not wanted.
func New(chain ChainReader, store RecordStore, meta domain.MetadataSource, tokens domain.SymbolResolver, notifier ResolutionNotifier, cfg Config, logger *slog.Logger) *Ingester {
	return &Ingester{
		chain:    chain,
		store:    store,
		meta:     meta,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(slog.String("component", "ingest")),
		seen:     make(map[domain.EventKey]struct{}),
	}
}

// LastProcessedHeight returns the highest fully processed block. It is safe
// to call from other goroutines (status endpoint).
func (ing *Ingester) LastProcessedHeight() uint64 {
	return ing.lastHeight.Load()
}

// Bootstrap scans a bounded historical window behind the current head for
// missed MarketCreated events and processes them sequentially. It is called
// once at startup; a failure here is fatal to the process.
func (ing *Ingester) Bootstrap(ctx context.Context) error {
	head, err := ing.chain.BlockNumber(ctx)
	if err != nil {
		return err
	}

	from := uint64(0)
	if head > ing.cfg.BootstrapWindow {
		from = head - ing.cfg.BootstrapWindow
	}

	ing.logger.Info("bootstrap scan",
		slog.Uint64("from", from),
		slog.Uint64("to", head),
	)

	if err := ing.scanRange(ctx, from, head); err != nil {
		return err
	}
	ing.lastHeight.Store(head)
	return nil
}

// RunLoop runs steady-state polling until the context is cancelled.
// Bootstrap must have completed first.
func (ing *Ingester) RunLoop(ctx context.Context) error {
	ticker := time.NewTicker(ing.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ing.logger.Info("ingestion loop stopped")
			return ctx.Err()
		case <-ticker.C:
			ing.step(ctx)
		}
	}
}

// step performs one steady-state poll cycle. All failures are contained
// here: a failed cycle leaves lastHeight untouched so the same range is
// retried next tick rather than silently skipped.
func (ing *Ingester) step(ctx context.Context) {
	cycle := uuid.NewString()
	logger := ing.logger.With(slog.String("cycle", cycle))

	head, err := ing.chain.BlockNumber(ctx)
	if err != nil {
		logger.Warn("height query failed, skipping cycle", slog.String("error", err.Error()))
		return
	}

	last := ing.lastHeight.Load()
	if head <= last {
		return
	}

	// Chunk large catch-up ranges so a single eth_getLogs stays bounded.
	from := last + 1
	for from <= head {
		to := from + ing.cfg.MaxBlockRange - 1
		if to > head {
			to = head
		}

		if err := ing.scanRange(ctx, from, to); err != nil {
			logger.Warn("scan failed, range will be retried next cycle",
				slog.Uint64("from", from),
				slog.Uint64("to", to),
				slog.String("error", err.Error()),
			)
			return
		}
		// Advance only after the chunk fully succeeded.
		ing.lastHeight.Store(to)
		from = to + 1
	}
}

// scanRange queries and processes one inclusive block range. It returns an
// error when the range must be re-scanned: the log query failed, or a store
// write was dropped (the existence check re-triggers it on the retry).
// Enrichment failures degrade the record but never fail the range.
func (ing *Ingester) scanRange(ctx context.Context, fromBlock, toBlock uint64) error {
	events, err := ing.chain.FilterMarketCreated(ctx, fromBlock, toBlock)
	if err != nil {
		return err
	}

	var dropped error
	for _, ev := range events {
		if err := ing.ProcessEvent(ctx, ev); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			ing.logger.Error("event processing failed",
				slog.Uint64("market_id", ev.MarketID),
				slog.String("tx", ev.TxHash),
				slog.String("error", err.Error()),
			)
			dropped = err
		}
	}

	ing.mirrorResolutions(ctx, fromBlock, toBlock)

	return dropped
}

// mirrorResolutions forwards MarketResolved events to the notifier. The
// resolution itself lives on chain; nothing is written to the store, so
// failures here are logged and forgotten.
func (ing *Ingester) mirrorResolutions(ctx context.Context, fromBlock, toBlock uint64) {
	if ing.notifier == nil {
		return
	}

	events, err := ing.chain.FilterMarketResolved(ctx, fromBlock, toBlock)
	if err != nil {
		ing.logger.Warn("resolution scan failed", slog.String("error", err.Error()))
		return
	}

	for _, ev := range events {
		if _, ok := ing.seen[ev.Key()]; ok {
			continue
		}
		ing.seen[ev.Key()] = struct{}{}
		ing.notifier.MarketResolved(ctx, ev)
	}
}

// ProcessEvent mirrors one MarketCreated event into the store. Reprocessing
// the same event any number of times produces at most one stored record;
// that guarantee comes from the store's unique constraint, the checks here
// only avoid wasted work.
func (ing *Ingester) ProcessEvent(ctx context.Context, ev domain.MarketCreatedEvent) error {
	if _, ok := ing.seen[ev.Key()]; ok {
		return nil
	}

	// Durable dedup boundary: a record inserted by a previous run or
	// another instance means this event is already handled.
	exists, err := ing.store.Exists(ctx, ev.MarketID)
	if err != nil {
		return err
	}
	if exists {
		ing.seen[ev.Key()] = struct{}{}
		return nil
	}

	rec := ing.buildRecord(ctx, ev)

	// Close the race window between the check above and the insert; the
	// unique constraint still backstops a race that slips through here.
	exists, err = ing.store.Exists(ctx, ev.MarketID)
	if err != nil {
		return err
	}
	if exists {
		ing.seen[ev.Key()] = struct{}{}
		return nil
	}

	if err := ing.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Benign: someone else won the race.
			ing.seen[ev.Key()] = struct{}{}
			return nil
		}
		return err
	}
	ing.seen[ev.Key()] = struct{}{}

	ing.logger.Info("market mirrored",
		slog.Uint64("market_id", ev.MarketID),
		slog.String("creator", rec.Creator),
		slog.String("type", string(rec.MarketType)),
		slog.String("symbol", rec.TokenSymbol),
	)
	return nil
}

// buildRecord assembles the stored record from the event plus best-effort
// enrichment. Every enrichment failure has a documented fallback: the
// chain-derived fields from the event itself are always populated.
func (ing *Ingester) buildRecord(ctx context.Context, ev domain.MarketCreatedEvent) domain.MarketRecord {
	rec := domain.MarketRecord{
		MarketID:          ev.MarketID,
		IpfsHash:          ev.IpfsHash,
		Creator:           ev.Creator,
		OptionKind:        ev.OptionKind(),
		StakeEndTime:      ev.StakeEndTime,
		EndTime:           ev.EndTime,
		ResolutionEndTime: ev.ResolutionEndTime,
		MarketType:        domain.MarketTypeP2POptimistic,
	}

	// On-chain enrichment: market type, price feed, threshold.
	if mk, err := ing.chain.GetMarket(ctx, ev.MarketID); err == nil {
		rec.MarketType = mk.MarketType
		rec.PriceFeed = mk.PriceFeed
		rec.AssertionMade = mk.AssertionMade
		if mk.PriceThreshold != nil && mk.PriceThreshold.Sign() != 0 {
			rec.PriceThreshold = mk.PriceThreshold.String()
		}
	} else {
		ing.logger.Warn("market read failed, defaulting to optimistic type",
			slog.Uint64("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
	}

	// Metadata enrichment: image only; nil means a plain record.
	if md := ing.meta.Fetch(ctx, ev.IpfsHash); md != nil {
		rec.Image = md.ImageURL
	}

	// Token symbol, falling back to the raw address.
	if sym, err := ing.tokens.Symbol(ctx, ev.PaymentToken); err == nil {
		rec.TokenSymbol = sym
	} else {
		ing.logger.Warn("symbol lookup failed, using raw address",
			slog.String("token", ev.PaymentToken),
			slog.String("error", err.Error()),
		)
		rec.TokenSymbol = ev.PaymentToken
	}

	return rec
}
