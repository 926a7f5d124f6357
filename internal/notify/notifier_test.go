package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureSender struct {
	name     string
	err      error
	titles   []string
	messages []string
}

func (c *captureSender) Send(ctx context.Context, title, message string) error {
	if c.err != nil {
		return c.err
	}
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func (c *captureSender) Name() string { return c.name }

func TestNotifyDeliversToAllSenders(t *testing.T) {
	a := &captureSender{name: "a"}
	b := &captureSender{name: "b"}
	n := NewNotifier([]Sender{a, b}, nil, discardLogger())

	if err := n.Notify(context.Background(), EventMarketEnded, "Title", "Body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(a.messages) != 1 || len(b.messages) != 1 {
		t.Fatalf("deliveries a=%d b=%d, want 1 each", len(a.messages), len(b.messages))
	}
}

func TestNotifyEventFilter(t *testing.T) {
	s := &captureSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{EventMarketResolved}, discardLogger())

	if err := n.Notify(context.Background(), EventMarketEnded, "T", "M"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.messages) != 0 {
		t.Fatal("filtered event was delivered")
	}

	if err := n.Notify(context.Background(), EventMarketResolved, "T", "M"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.messages) != 1 {
		t.Fatal("allowed event was not delivered")
	}
}

func TestNotifyOneFailureDoesNotBlockOthers(t *testing.T) {
	bad := &captureSender{name: "bad", err: errors.New("timeout")}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), EventMarketEnded, "T", "M")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("Notify error = %v, want failure naming the bad sender", err)
	}
	if len(good.messages) != 1 {
		t.Fatal("healthy sender skipped after another sender failed")
	}
}

// fixedMeta serves one document for any hash.
type fixedMeta struct{ md *domain.Metadata }

func (f fixedMeta) Fetch(ctx context.Context, hash string) *domain.Metadata { return f.md }

type fixedRecords struct {
	rec domain.MarketRecord
	err error
}

func (f fixedRecords) GetByID(ctx context.Context, marketID uint64) (domain.MarketRecord, error) {
	return f.rec, f.err
}

func TestMarketEndedUsesMetadataTitle(t *testing.T) {
	s := &captureSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())
	ln := NewLifecycleNotifier(n, fixedMeta{md: &domain.Metadata{Title: "Will BTC close above 100k?"}}, nil)

	ln.MarketEnded(context.Background(), 7, domain.OnChainMarket{IpfsHash: "QmX"})

	if len(s.messages) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(s.messages))
	}
	if !strings.Contains(s.messages[0], "Will BTC close above 100k?") {
		t.Fatalf("message %q missing metadata title", s.messages[0])
	}
}

func TestMarketEndedFallsBackToGenericTitle(t *testing.T) {
	s := &captureSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())
	ln := NewLifecycleNotifier(n, fixedMeta{}, nil)

	ln.MarketEnded(context.Background(), 42, domain.OnChainMarket{IpfsHash: "QmX"})

	if !strings.Contains(s.messages[0], "Market #42") {
		t.Fatalf("message %q missing generic fallback", s.messages[0])
	}
}

func TestMarketResolvedNamesWinningOption(t *testing.T) {
	s := &captureSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())
	ln := NewLifecycleNotifier(n,
		fixedMeta{md: &domain.Metadata{Title: "Rain tomorrow?", Options: []string{"Yes", "No"}}},
		fixedRecords{rec: domain.MarketRecord{MarketID: 3, IpfsHash: "QmY"}},
	)

	ln.MarketResolved(context.Background(), domain.MarketResolvedEvent{MarketID: 3, Winner: 1})

	msg := s.messages[0]
	if !strings.Contains(msg, "Rain tomorrow?") {
		t.Fatalf("message %q missing title", msg)
	}
	if !strings.Contains(msg, "No") {
		t.Fatalf("message %q missing winner name", msg)
	}
}

func TestMarketResolvedOutOfRangeWinner(t *testing.T) {
	s := &captureSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())
	ln := NewLifecycleNotifier(n,
		fixedMeta{md: &domain.Metadata{Title: "T", Options: []string{"Yes", "No"}}},
		fixedRecords{rec: domain.MarketRecord{MarketID: 3, IpfsHash: "QmY"}},
	)

	ln.MarketResolved(context.Background(), domain.MarketResolvedEvent{MarketID: 3, Winner: 9})

	if !strings.Contains(s.messages[0], "option 9") {
		t.Fatalf("message %q should fall back to the raw option index", s.messages[0])
	}
}

func TestMarketResolvedHugeWinnerIndex(t *testing.T) {
	s := &captureSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())
	ln := NewLifecycleNotifier(n,
		fixedMeta{md: &domain.Metadata{Title: "T", Options: []string{"Yes", "No"}}},
		fixedRecords{rec: domain.MarketRecord{MarketID: 3, IpfsHash: "QmY"}},
	)

	// A winner value past the int range must fall back, not index Options.
	huge := uint64(1) << 63
	ln.MarketResolved(context.Background(), domain.MarketResolvedEvent{MarketID: 3, Winner: huge})

	if !strings.Contains(s.messages[0], fmt.Sprintf("option %d", huge)) {
		t.Fatalf("message %q should fall back to the raw option index", s.messages[0])
	}
}

func TestMarketResolvedWithoutStore(t *testing.T) {
	s := &captureSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())
	ln := NewLifecycleNotifier(n, nil, nil)

	ln.MarketResolved(context.Background(), domain.MarketResolvedEvent{MarketID: 12, Winner: 0})

	if !strings.Contains(s.messages[0], "Market #12") {
		t.Fatalf("message %q missing generic title", s.messages[0])
	}
}
