package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

// MarketClient is the slice of the chain client the driver needs.
type MarketClient interface {
	GetNextMarketID(ctx context.Context) (uint64, error)
	GetMarket(ctx context.Context, marketID uint64) (domain.OnChainMarket, error)
	EndMarket(ctx context.Context, marketID uint64) error
	ResolvePriceFeedMarket(ctx context.Context, marketID uint64) error
}

// Notifier receives end transitions. Implementations must be best-effort:
// they may log failures but never return them, so the driver is never
// blocked on delivery.
type Notifier interface {
	MarketEnded(ctx context.Context, marketID uint64, m domain.OnChainMarket)
}

// Config holds the driver's tuning knobs.
type Config struct {
	// Interval between polls. Zero means 5s.
	Interval time.Duration
	// SettleDelay is the pause before an inline resolve after an end
	// transaction, to avoid racing the prior transaction's state
	// propagation. Zero means 2s.
	SettleDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	return c
}

// Driver polls every known market and issues the transition its on-chain
// state calls for. All transaction failures are contained per market: a
// reverting market (usually already moved by another actor) is simply
// re-evaluated next cycle.
type Driver struct {
	markets  MarketClient
	notifier Notifier // may be nil
	cfg      Config
	logger   *slog.Logger

	// notified tracks end notifications sent this process lifetime. It is
	// intentionally not durable: notification is best-effort, and a
	// restart at worst repeats one message per market.
	notified map[uint64]struct{}
}

// New creates a Driver. notifier may be nil.
func New(markets MarketClient, notifier Notifier, cfg Config, logger *slog.Logger) *Driver {
	return &Driver{
		markets:  markets,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(slog.String("component", "lifecycle")),
		notified: make(map[uint64]struct{}),
	}
}

// RunLoop polls on the configured interval until the context is cancelled.
// The first poll runs immediately.
func (d *Driver) RunLoop(ctx context.Context) error {
	d.Step(ctx)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("lifecycle loop stopped")
			return ctx.Err()
		case <-ticker.C:
			d.Step(ctx)
		}
	}
}

// Step performs one poll over all known market ids. A failed id-range read
// skips the cycle; per-market failures never halt the sweep.
func (d *Driver) Step(ctx context.Context) {
	cycle := uuid.NewString()
	logger := d.logger.With(slog.String("cycle", cycle))

	next, err := d.markets.GetNextMarketID(ctx)
	if err != nil {
		logger.Warn("market id range query failed, skipping cycle", slog.String("error", err.Error()))
		return
	}

	for id := uint64(1); id < next; id++ {
		if ctx.Err() != nil {
			return
		}
		d.processMarket(ctx, logger, id)
	}
}

// processMarket reads one market, computes its decision, and acts on it.
func (d *Driver) processMarket(ctx context.Context, logger *slog.Logger, marketID uint64) {
	m, err := d.markets.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		logger.Warn("market read failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}

	switch action := Decide(m, time.Now().UTC()); action {
	case ActionEnd:
		d.endMarket(ctx, logger, marketID)
	case ActionAutoResolve:
		d.autoResolve(ctx, logger, marketID)
	case ActionNone, ActionSkip:
	}
}

// endMarket submits the end transaction and, when the now-ended market
// carries a price feed whose resolution window has already closed, attempts
// the resolve inline so a long-overdue market settles in one cycle.
func (d *Driver) endMarket(ctx context.Context, logger *slog.Logger, marketID uint64) {
	logger.Info("ending market", slog.Uint64("market_id", marketID))

	if err := d.markets.EndMarket(ctx, marketID); err != nil {
		if errors.Is(err, domain.ErrTxReverted) {
			// Another actor beat us to it; the fresh state shows up next poll.
			logger.Info("end reverted, market likely already ended",
				slog.Uint64("market_id", marketID),
			)
		} else {
			logger.Error("end transaction failed",
				slog.Uint64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	logger.Info("market ended", slog.Uint64("market_id", marketID))

	// Re-read to pick up the post-end state, both for the notification
	// snapshot and to resolve inline if the window is already closed.
	m, err := d.markets.GetMarket(ctx, marketID)
	if err != nil {
		logger.Warn("post-end read failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		d.notifyEnded(ctx, marketID, domain.OnChainMarket{})
		return
	}
	d.notifyEnded(ctx, marketID, m)

	if !m.HasPriceFeed() || m.IsResolved ||
		m.ResolutionEndTime.IsZero() || time.Now().UTC().Before(m.ResolutionEndTime) {
		return
	}

	// Let the end transaction's state settle before resolving on top of it.
	select {
	case <-ctx.Done():
		return
	case <-time.After(d.cfg.SettleDelay):
	}

	if err := d.markets.ResolvePriceFeedMarket(ctx, marketID); err != nil {
		logger.Warn("inline resolve failed, will retry next cycle",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("market auto-resolved inline", slog.Uint64("market_id", marketID))
}

// autoResolve submits the price-feed resolve transaction.
func (d *Driver) autoResolve(ctx context.Context, logger *slog.Logger, marketID uint64) {
	logger.Info("auto-resolving market", slog.Uint64("market_id", marketID))

	if err := d.markets.ResolvePriceFeedMarket(ctx, marketID); err != nil {
		if errors.Is(err, domain.ErrTxReverted) {
			logger.Info("resolve reverted, market likely already resolved",
				slog.Uint64("market_id", marketID),
			)
		} else {
			logger.Error("resolve transaction failed",
				slog.Uint64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	logger.Info("market auto-resolved", slog.Uint64("market_id", marketID))
}

// notifyEnded emits the end notification at most once per market per
// process lifetime.
func (d *Driver) notifyEnded(ctx context.Context, marketID uint64, m domain.OnChainMarket) {
	if d.notifier == nil {
		return
	}
	if _, ok := d.notified[marketID]; ok {
		return
	}
	d.notified[marketID] = struct{}{}
	d.notifier.MarketEnded(ctx, marketID, m)
}
