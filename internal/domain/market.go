// Package domain defines the core types shared by the sync bot: on-chain
// market snapshots, persisted market records, lifecycle events, and the
// store interfaces implemented by the infrastructure packages.
package domain

import (
	"math/big"
	"time"
)

// MarketState mirrors the numeric lifecycle state stored in the market
// manager contract.
type MarketState uint8

const (
	MarketStateActive    MarketState = 0
	MarketStateEnded     MarketState = 1
	MarketStateResolved  MarketState = 2
	MarketStateCancelled MarketState = 3
)

// String returns the human-readable name of the state.
func (s MarketState) String() string {
	switch s {
	case MarketStateActive:
		return "active"
	case MarketStateEnded:
		return "ended"
	case MarketStateResolved:
		return "resolved"
	case MarketStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarketType identifies how a market is resolved.
type MarketType string

const (
	// MarketTypeP2POptimistic markets resolve via assertion plus a
	// challenge-period vote, entirely outside this bot.
	MarketTypeP2POptimistic MarketType = "P2POPTIMISTIC"
	// MarketTypePriceFeed markets auto-resolve by comparing an on-chain
	// price feed against a threshold once the resolution window closes.
	MarketTypePriceFeed MarketType = "PRICE_FEED"
)

// MarketTypeFromChain maps the contract's numeric market type. Unknown
// values fall back to P2POPTIMISTIC: the bot never auto-resolves what it
// cannot classify.
func MarketTypeFromChain(raw uint8) MarketType {
	if raw == 1 {
		return MarketTypePriceFeed
	}
	return MarketTypeP2POptimistic
}

// OptionKind tags a market's option structure.
type OptionKind string

const (
	OptionKindLinear OptionKind = "linear"
	OptionKindMulti  OptionKind = "multi"
)

// OnChainMarket is a point-in-time read of a market from the manager
// contract. It is never cached beyond one poll cycle; the chain is the
// single source of truth for lifecycle decisions.
type OnChainMarket struct {
	Creator           string
	IpfsHash          string
	PaymentToken      string
	State             MarketState
	MarketType        MarketType
	EndTime           time.Time
	ResolutionEndTime time.Time
	IsResolved        bool
	// PriceFeed is the feed contract address, empty when the contract holds
	// the zero address.
	PriceFeed      string
	PriceThreshold *big.Int
	WinningOption  uint64
	AssertionMade  bool
}

// HasPriceFeed reports whether the market carries a usable price feed.
func (m OnChainMarket) HasPriceFeed() bool {
	return m.PriceFeed != ""
}

// MarketRecord is the row mirrored into the sync datastore when a
// MarketCreated event is first observed. Identity is MarketID; the
// ingestion path never updates or deletes a record after insert.
type MarketRecord struct {
	MarketID          uint64     `json:"market_id"`
	IpfsHash          string     `json:"ipfs_hash"`
	Image             string     `json:"image,omitempty"`
	Creator           string     `json:"creator"` // lower-cased hex address
	OptionKind        OptionKind `json:"option_kind"`
	TokenSymbol       string     `json:"token_symbol,omitempty"`
	StakeEndTime      time.Time  `json:"stake_end_time"`
	EndTime           time.Time  `json:"end_time"`
	ResolutionEndTime time.Time  `json:"resolution_end_time"`
	MarketType        MarketType `json:"market_type"`
	PriceFeed         string     `json:"price_feed,omitempty"`
	PriceThreshold    string     `json:"price_threshold,omitempty"` // decimal string, empty when absent
	AssertionMade     bool       `json:"assertion_made"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Metadata is the optional IPFS document referenced by a market's content
// hash. A market without metadata is still a valid market.
type Metadata struct {
	Title      string   `json:"title"`
	Options    []string `json:"options"`
	ImageURL   string   `json:"imageUrl"`
	Categories []string `json:"categories"`
}
