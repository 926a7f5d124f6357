package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMarkets struct {
	nextID  uint64
	nextErr error

	markets map[uint64]domain.OnChainMarket

	endErr     map[uint64]error
	resolveErr map[uint64]error

	endCalls     []uint64
	resolveCalls []uint64
	readCalls    int

	// onEnd mutates state after a successful EndMarket, standing in for the
	// contract's own transition.
	onEnd func(id uint64)
}

func (f *fakeMarkets) GetNextMarketID(ctx context.Context) (uint64, error) {
	return f.nextID, f.nextErr
}

func (f *fakeMarkets) GetMarket(ctx context.Context, id uint64) (domain.OnChainMarket, error) {
	f.readCalls++
	m, ok := f.markets[id]
	if !ok {
		return domain.OnChainMarket{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarkets) EndMarket(ctx context.Context, id uint64) error {
	f.endCalls = append(f.endCalls, id)
	if err := f.endErr[id]; err != nil {
		return err
	}
	if f.onEnd != nil {
		f.onEnd(id)
	}
	return nil
}

func (f *fakeMarkets) ResolvePriceFeedMarket(ctx context.Context, id uint64) error {
	f.resolveCalls = append(f.resolveCalls, id)
	if err := f.resolveErr[id]; err != nil {
		return err
	}
	return nil
}

type endRecorder struct {
	ended []uint64
}

func (r *endRecorder) MarketEnded(ctx context.Context, marketID uint64, m domain.OnChainMarket) {
	r.ended = append(r.ended, marketID)
}

func newTestDriver(markets *fakeMarkets, notifier Notifier) *Driver {
	return New(markets, notifier, Config{
		Interval:    time.Second,
		SettleDelay: time.Millisecond,
	}, discardLogger())
}

func activeMarket(endsAgo time.Duration) domain.OnChainMarket {
	return domain.OnChainMarket{
		State:   domain.MarketStateActive,
		EndTime: time.Now().UTC().Add(-endsAgo),
	}
}

func TestStepEndsDueMarkets(t *testing.T) {
	markets := &fakeMarkets{
		nextID: 4,
		markets: map[uint64]domain.OnChainMarket{
			1: activeMarket(time.Hour),
			2: {State: domain.MarketStateActive, EndTime: time.Now().UTC().Add(time.Hour)},
			3: {State: domain.MarketStateResolved},
		},
		endErr:     map[uint64]error{},
		resolveErr: map[uint64]error{},
	}
	markets.onEnd = func(id uint64) {
		m := markets.markets[id]
		m.State = domain.MarketStateEnded
		markets.markets[id] = m
	}

	d := newTestDriver(markets, nil)
	d.Step(context.Background())

	if len(markets.endCalls) != 1 || markets.endCalls[0] != 1 {
		t.Fatalf("endCalls = %v, want [1]", markets.endCalls)
	}
	if len(markets.resolveCalls) != 0 {
		t.Fatalf("resolveCalls = %v, want none", markets.resolveCalls)
	}
}

func TestStepInlineResolveAfterEnd(t *testing.T) {
	// A long-overdue price-feed market: both the end time and the resolution
	// window are in the past, so one cycle should end AND resolve it.
	past := time.Now().UTC().Add(-time.Hour)
	markets := &fakeMarkets{
		nextID: 8,
		markets: map[uint64]domain.OnChainMarket{
			7: {
				State:             domain.MarketStateActive,
				EndTime:           past,
				PriceFeed:         "0xfeed",
				ResolutionEndTime: past,
			},
		},
		endErr:     map[uint64]error{},
		resolveErr: map[uint64]error{},
	}
	markets.onEnd = func(id uint64) {
		m := markets.markets[id]
		m.State = domain.MarketStateEnded
		markets.markets[id] = m
	}

	d := newTestDriver(markets, nil)
	d.Step(context.Background())

	if len(markets.endCalls) != 1 || markets.endCalls[0] != 7 {
		t.Fatalf("endCalls = %v, want [7]", markets.endCalls)
	}
	if len(markets.resolveCalls) != 1 || markets.resolveCalls[0] != 7 {
		t.Fatalf("resolveCalls = %v, want [7]", markets.resolveCalls)
	}
}

func TestStepNoInlineResolveWhenWindowOpen(t *testing.T) {
	markets := &fakeMarkets{
		nextID: 2,
		markets: map[uint64]domain.OnChainMarket{
			1: {
				State:             domain.MarketStateActive,
				EndTime:           time.Now().UTC().Add(-time.Minute),
				PriceFeed:         "0xfeed",
				ResolutionEndTime: time.Now().UTC().Add(time.Hour),
			},
		},
		endErr:     map[uint64]error{},
		resolveErr: map[uint64]error{},
	}
	markets.onEnd = func(id uint64) {
		m := markets.markets[id]
		m.State = domain.MarketStateEnded
		markets.markets[id] = m
	}

	d := newTestDriver(markets, nil)
	d.Step(context.Background())

	if len(markets.resolveCalls) != 0 {
		t.Fatalf("resolveCalls = %v, want none while window open", markets.resolveCalls)
	}
}

func TestStepAutoResolvesEndedMarkets(t *testing.T) {
	markets := &fakeMarkets{
		nextID: 2,
		markets: map[uint64]domain.OnChainMarket{
			1: {
				State:             domain.MarketStateEnded,
				PriceFeed:         "0xfeed",
				ResolutionEndTime: time.Now().UTC().Add(-time.Minute),
			},
		},
		endErr:     map[uint64]error{},
		resolveErr: map[uint64]error{},
	}

	d := newTestDriver(markets, nil)
	d.Step(context.Background())

	if len(markets.resolveCalls) != 1 || markets.resolveCalls[0] != 1 {
		t.Fatalf("resolveCalls = %v, want [1]", markets.resolveCalls)
	}
	if len(markets.endCalls) != 0 {
		t.Fatalf("endCalls = %v, want none", markets.endCalls)
	}
}

func TestStepContainsPerMarketFailures(t *testing.T) {
	// Market 1's end reverts; market 2 must still be processed.
	markets := &fakeMarkets{
		nextID: 3,
		markets: map[uint64]domain.OnChainMarket{
			1: activeMarket(time.Hour),
			2: activeMarket(time.Hour),
		},
		endErr: map[uint64]error{
			1: domain.ErrTxReverted,
		},
		resolveErr: map[uint64]error{},
	}
	markets.onEnd = func(id uint64) {
		m := markets.markets[id]
		m.State = domain.MarketStateEnded
		markets.markets[id] = m
	}

	d := newTestDriver(markets, nil)
	d.Step(context.Background())

	if len(markets.endCalls) != 2 {
		t.Fatalf("endCalls = %v, want both markets attempted", markets.endCalls)
	}
	if markets.markets[2].State != domain.MarketStateEnded {
		t.Fatal("market 2 was not ended after market 1 reverted")
	}
}

func TestStepSkipsCycleOnIDRangeFailure(t *testing.T) {
	markets := &fakeMarkets{
		nextID:  10,
		nextErr: errors.New("rpc down"),
		markets: map[uint64]domain.OnChainMarket{1: activeMarket(time.Hour)},
	}

	d := newTestDriver(markets, nil)
	d.Step(context.Background())

	if markets.readCalls != 0 {
		t.Fatalf("GetMarket called %d times during skipped cycle, want 0", markets.readCalls)
	}
}

func TestStepSkipsUnknownIDs(t *testing.T) {
	// Gap in the id sequence: GetMarket returns not-found for id 1.
	markets := &fakeMarkets{
		nextID: 3,
		markets: map[uint64]domain.OnChainMarket{
			2: activeMarket(time.Hour),
		},
		endErr:     map[uint64]error{},
		resolveErr: map[uint64]error{},
	}
	markets.onEnd = func(id uint64) {
		m := markets.markets[id]
		m.State = domain.MarketStateEnded
		markets.markets[id] = m
	}

	d := newTestDriver(markets, nil)
	d.Step(context.Background())

	if len(markets.endCalls) != 1 || markets.endCalls[0] != 2 {
		t.Fatalf("endCalls = %v, want [2]", markets.endCalls)
	}
}

func TestEndNotificationOncePerProcess(t *testing.T) {
	// EndMarket succeeds but the fake never transitions the state, so the
	// market stays due and a second cycle ends it again. The notification
	// must still fire only once.
	markets := &fakeMarkets{
		nextID: 2,
		markets: map[uint64]domain.OnChainMarket{
			1: activeMarket(time.Hour),
		},
		endErr:     map[uint64]error{},
		resolveErr: map[uint64]error{},
	}

	rec := &endRecorder{}
	d := newTestDriver(markets, rec)
	d.Step(context.Background())
	d.Step(context.Background())

	if len(markets.endCalls) != 2 {
		t.Fatalf("endCalls = %v, want two attempts", markets.endCalls)
	}
	if len(rec.ended) != 1 || rec.ended[0] != 1 {
		t.Fatalf("notifications = %v, want exactly one for market 1", rec.ended)
	}
}

func TestEndRevertSuppressesNotification(t *testing.T) {
	markets := &fakeMarkets{
		nextID: 2,
		markets: map[uint64]domain.OnChainMarket{
			1: activeMarket(time.Hour),
		},
		endErr: map[uint64]error{
			1: domain.ErrTxReverted,
		},
		resolveErr: map[uint64]error{},
	}

	rec := &endRecorder{}
	d := newTestDriver(markets, rec)
	d.Step(context.Background())

	if len(rec.ended) != 0 {
		t.Fatalf("notifications = %v, want none after revert", rec.ended)
	}
}
