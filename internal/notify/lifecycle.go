package notify

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

// RecordGetter looks up a mirrored record, used to recover a resolved
// market's content hash when only the event is at hand. May be nil.
type RecordGetter interface {
	GetByID(ctx context.Context, marketID uint64) (domain.MarketRecord, error)
}

// LifecycleNotifier formats and dispatches market lifecycle messages. It
// performs its own metadata lookup with a generic "Market #id" fallback, so
// a missing or broken gateway never degrades anything but the message text.
type LifecycleNotifier struct {
	notifier *Notifier
	meta     domain.MetadataSource
	records  RecordGetter
}

// NewLifecycleNotifier creates a LifecycleNotifier. meta and records may be
// nil; formatting then always uses the generic fallback.
func NewLifecycleNotifier(notifier *Notifier, meta domain.MetadataSource, records RecordGetter) *LifecycleNotifier {
	return &LifecycleNotifier{
		notifier: notifier,
		meta:     meta,
		records:  records,
	}
}

// MarketEnded announces that staking has closed for a market.
func (ln *LifecycleNotifier) MarketEnded(ctx context.Context, marketID uint64, m domain.OnChainMarket) {
	title := ln.marketTitle(ctx, marketID, m.IpfsHash)

	var b strings.Builder
	fmt.Fprintf(&b, "%s has ended and is awaiting resolution.", title)
	if m.MarketType == domain.MarketTypePriceFeed && !m.ResolutionEndTime.IsZero() {
		fmt.Fprintf(&b, "\nAuto-resolution after %s.", m.ResolutionEndTime.Format("2006-01-02 15:04 UTC"))
	}

	_ = ln.notifier.Notify(ctx, EventMarketEnded, "Market Ended", b.String())
}

// MarketResolved announces a resolution observed on chain.
func (ln *LifecycleNotifier) MarketResolved(ctx context.Context, ev domain.MarketResolvedEvent) {
	ipfsHash := ""
	var md *domain.Metadata
	if ln.records != nil {
		if rec, err := ln.records.GetByID(ctx, ev.MarketID); err == nil {
			ipfsHash = rec.IpfsHash
		} else if !errors.Is(err, domain.ErrNotFound) {
			// Store hiccup: fall through to the generic text.
			ipfsHash = ""
		}
	}
	if ipfsHash != "" && ln.meta != nil {
		md = ln.meta.Fetch(ctx, ipfsHash)
	}

	title := fallbackTitle(ev.MarketID)
	winner := fmt.Sprintf("option %d", ev.Winner)
	if md != nil {
		if md.Title != "" {
			title = md.Title
		}
		if ev.Winner < uint64(len(md.Options)) {
			winner = md.Options[ev.Winner]
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s resolved.\nWinner: %s", title, winner)
	if payout := formatPayout(ev.TotalPayout); payout != "" {
		fmt.Fprintf(&b, "\nTotal payout: %s", payout)
	}

	_ = ln.notifier.Notify(ctx, EventMarketResolved, "Market Resolved", b.String())
}

// marketTitle resolves a display title via metadata, falling back to the
// generic "Market #id" form.
func (ln *LifecycleNotifier) marketTitle(ctx context.Context, marketID uint64, ipfsHash string) string {
	if ipfsHash != "" && ln.meta != nil {
		if md := ln.meta.Fetch(ctx, ipfsHash); md != nil && md.Title != "" {
			return md.Title
		}
	}
	return fallbackTitle(marketID)
}

func fallbackTitle(marketID uint64) string {
	return fmt.Sprintf("Market #%d", marketID)
}

// formatPayout renders a raw token amount, empty for nil or zero.
func formatPayout(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return ""
	}
	return v.String()
}
