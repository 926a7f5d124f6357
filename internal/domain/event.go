package domain

import (
	"fmt"
	"math/big"
	"time"
)

// EventKey uniquely identifies an emitted log within one chain history:
// transaction hash plus log index. It is held only in process memory to
// suppress reprocessing within a single run; durable dedup is the store's
// unique constraint, so restarts remain safe.
type EventKey string

// NewEventKey builds an EventKey from a transaction hash and log index.
func NewEventKey(txHash string, logIndex uint) EventKey {
	return EventKey(fmt.Sprintf("%s:%d", txHash, logIndex))
}

// MarketCreatedEvent is a decoded MarketCreated log.
type MarketCreatedEvent struct {
	MarketID          uint64
	Creator           string
	IpfsHash          string
	IsMultiOption     bool
	MaxOptions        uint8
	PaymentToken      string
	MinStake          *big.Int
	StartTime         time.Time
	StakeEndTime      time.Time
	EndTime           time.Time
	ResolutionEndTime time.Time

	TxHash      string
	LogIndex    uint
	BlockNumber uint64
}

// Key returns the event's process-local dedup key.
func (e MarketCreatedEvent) Key() EventKey {
	return NewEventKey(e.TxHash, e.LogIndex)
}

// OptionKind derives the option-structure tag carried by the event.
func (e MarketCreatedEvent) OptionKind() OptionKind {
	if e.IsMultiOption {
		return OptionKindMulti
	}
	return OptionKindLinear
}

// MarketResolvedEvent is a decoded MarketResolved log.
type MarketResolvedEvent struct {
	MarketID    uint64
	Winner      uint64
	TotalPayout *big.Int

	TxHash      string
	LogIndex    uint
	BlockNumber uint64
}

// Key returns the event's process-local dedup key.
func (e MarketResolvedEvent) Key() EventKey {
	return NewEventKey(e.TxHash, e.LogIndex)
}
