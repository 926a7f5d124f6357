package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

// MarketManager is the typed client for the market manager contract. It
// exposes only the methods the sync bot needs and hides ABI plumbing.
type MarketManager struct {
	client *Client
	addr   common.Address
	txor   *Transactor // nil in read-only modes
}

// NewMarketManager creates a MarketManager at the given contract address.
// txor may be nil when the caller never submits transactions.
func NewMarketManager(client *Client, addr string, txor *Transactor) *MarketManager {
	return &MarketManager{
		client: client,
		addr:   common.HexToAddress(addr),
		txor:   txor,
	}
}

// BlockNumber returns the current chain head height.
func (m *MarketManager) BlockNumber(ctx context.Context) (uint64, error) {
	return m.client.BlockNumber(ctx)
}

// GetNextMarketID returns the id the contract will assign to the next
// created market. Existing ids are 1..next-1.
func (m *MarketManager) GetNextMarketID(ctx context.Context) (uint64, error) {
	data, err := managerABI.Pack("getNextMarketId")
	if err != nil {
		return 0, fmt.Errorf("chain: pack getNextMarketId: %w", err)
	}

	out, err := m.client.CallContract(ctx, m.addr, data)
	if err != nil {
		return 0, err
	}

	vals, err := managerABI.Unpack("getNextMarketId", out)
	if err != nil {
		return 0, fmt.Errorf("chain: unpack getNextMarketId: %w", err)
	}
	next, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("chain: getNextMarketId: unexpected output type %T", vals[0])
	}
	return next.Uint64(), nil
}

// GetMarket reads the full on-chain record for a market. A reverting call
// (unknown id) maps to domain.ErrNotFound.
func (m *MarketManager) GetMarket(ctx context.Context, marketID uint64) (domain.OnChainMarket, error) {
	data, err := managerABI.Pack("getMarket", new(big.Int).SetUint64(marketID))
	if err != nil {
		return domain.OnChainMarket{}, fmt.Errorf("chain: pack getMarket: %w", err)
	}

	out, err := m.client.CallContract(ctx, m.addr, data)
	if err != nil {
		if isPermanentCallError(err) {
			return domain.OnChainMarket{}, fmt.Errorf("%w: market %d", domain.ErrNotFound, marketID)
		}
		return domain.OnChainMarket{}, err
	}
	if len(out) == 0 {
		return domain.OnChainMarket{}, fmt.Errorf("%w: market %d", domain.ErrNotFound, marketID)
	}

	vals, err := managerABI.Unpack("getMarket", out)
	if err != nil {
		return domain.OnChainMarket{}, fmt.Errorf("chain: unpack getMarket %d: %w", marketID, err)
	}
	if len(vals) != 12 {
		return domain.OnChainMarket{}, fmt.Errorf("chain: getMarket %d: expected 12 outputs, got %d", marketID, len(vals))
	}

	mk := domain.OnChainMarket{
		Creator:           strings.ToLower(vals[0].(common.Address).Hex()),
		IpfsHash:          vals[1].(string),
		PaymentToken:      strings.ToLower(vals[2].(common.Address).Hex()),
		State:             domain.MarketState(vals[3].(uint8)),
		EndTime:           unixTime(vals[4].(*big.Int)),
		ResolutionEndTime: unixTime(vals[5].(*big.Int)),
		IsResolved:        vals[6].(bool),
		MarketType:        domain.MarketTypeFromChain(vals[7].(uint8)),
		PriceThreshold:    vals[9].(*big.Int),
		WinningOption:     vals[10].(*big.Int).Uint64(),
		AssertionMade:     vals[11].(bool),
	}
	if feed := vals[8].(common.Address); feed != zeroAddress {
		mk.PriceFeed = strings.ToLower(feed.Hex())
	}
	return mk, nil
}

// FilterMarketCreated returns MarketCreated events in [fromBlock, toBlock],
// in ascending block/log order as delivered by the node.
func (m *MarketManager) FilterMarketCreated(ctx context.Context, fromBlock, toBlock uint64) ([]domain.MarketCreatedEvent, error) {
	logs, err := m.client.FilterLogs(ctx, m.addr, marketCreatedSig, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}

	events := make([]domain.MarketCreatedEvent, 0, len(logs))
	for _, lg := range logs {
		ev, err := parseMarketCreated(lg)
		if err != nil {
			m.client.logger.Warn("skipping undecodable MarketCreated log",
				slog.String("tx", lg.TxHash.Hex()),
				slog.Uint64("index", uint64(lg.Index)),
				slog.String("error", err.Error()))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// FilterMarketResolved returns MarketResolved events in [fromBlock, toBlock].
func (m *MarketManager) FilterMarketResolved(ctx context.Context, fromBlock, toBlock uint64) ([]domain.MarketResolvedEvent, error) {
	logs, err := m.client.FilterLogs(ctx, m.addr, marketResolvedSig, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}

	events := make([]domain.MarketResolvedEvent, 0, len(logs))
	for _, lg := range logs {
		ev, err := parseMarketResolved(lg)
		if err != nil {
			m.client.logger.Warn("skipping undecodable MarketResolved log",
				slog.String("tx", lg.TxHash.Hex()),
				slog.Uint64("index", uint64(lg.Index)),
				slog.String("error", err.Error()))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// EndMarket submits endMarket(id) and waits for the transaction to be mined.
func (m *MarketManager) EndMarket(ctx context.Context, marketID uint64) error {
	return m.transact(ctx, "endMarket", marketID)
}

// ResolvePriceFeedMarket submits resolvePriceFeedMarket(id) and waits for
// the transaction to be mined.
func (m *MarketManager) ResolvePriceFeedMarket(ctx context.Context, marketID uint64) error {
	return m.transact(ctx, "resolvePriceFeedMarket", marketID)
}

func (m *MarketManager) transact(ctx context.Context, method string, marketID uint64) error {
	if m.txor == nil {
		return errors.New("chain: no transactor configured (read-only mode)")
	}
	data, err := managerABI.Pack(method, new(big.Int).SetUint64(marketID))
	if err != nil {
		return fmt.Errorf("chain: pack %s: %w", method, err)
	}
	return m.txor.SubmitAndWait(ctx, m.addr, data)
}

// parseMarketCreated decodes one MarketCreated log. marketId and creator
// are indexed topics; the remaining nine fields live in the data segment.
func parseMarketCreated(lg types.Log) (domain.MarketCreatedEvent, error) {
	if len(lg.Topics) < 3 {
		return domain.MarketCreatedEvent{}, fmt.Errorf("expected 3 topics, got %d", len(lg.Topics))
	}

	var data struct {
		IpfsHash          string
		IsMultiOption     bool
		MaxOptions        uint8
		PaymentToken      common.Address
		MinStake          *big.Int
		StartTime         *big.Int
		StakeEndTime      *big.Int
		EndTime           *big.Int
		ResolutionEndTime *big.Int
	}
	if err := managerABI.UnpackIntoInterface(&data, "MarketCreated", lg.Data); err != nil {
		return domain.MarketCreatedEvent{}, fmt.Errorf("unpack data: %w", err)
	}

	return domain.MarketCreatedEvent{
		MarketID:          new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64(),
		Creator:           strings.ToLower(common.BytesToAddress(lg.Topics[2].Bytes()).Hex()),
		IpfsHash:          data.IpfsHash,
		IsMultiOption:     data.IsMultiOption,
		MaxOptions:        data.MaxOptions,
		PaymentToken:      strings.ToLower(data.PaymentToken.Hex()),
		MinStake:          data.MinStake,
		StartTime:         unixTime(data.StartTime),
		StakeEndTime:      unixTime(data.StakeEndTime),
		EndTime:           unixTime(data.EndTime),
		ResolutionEndTime: unixTime(data.ResolutionEndTime),
		TxHash:            lg.TxHash.Hex(),
		LogIndex:          lg.Index,
		BlockNumber:       lg.BlockNumber,
	}, nil
}

// parseMarketResolved decodes one MarketResolved log.
func parseMarketResolved(lg types.Log) (domain.MarketResolvedEvent, error) {
	if len(lg.Topics) < 2 {
		return domain.MarketResolvedEvent{}, fmt.Errorf("expected 2 topics, got %d", len(lg.Topics))
	}

	var data struct {
		Winner      *big.Int
		TotalPayout *big.Int
	}
	if err := managerABI.UnpackIntoInterface(&data, "MarketResolved", lg.Data); err != nil {
		return domain.MarketResolvedEvent{}, fmt.Errorf("unpack data: %w", err)
	}

	return domain.MarketResolvedEvent{
		MarketID:    new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64(),
		Winner:      data.Winner.Uint64(),
		TotalPayout: data.TotalPayout,
		TxHash:      lg.TxHash.Hex(),
		LogIndex:    lg.Index,
		BlockNumber: lg.BlockNumber,
	}, nil
}

// unixTime converts a unix-seconds big.Int from the contract into UTC time.
// Zero stays the zero time.
func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}
