// Package chain wraps the blockchain RPC endpoint behind typed clients with
// a uniform retry policy. RPC endpoints are unreliable over long-lived
// polling processes; isolating the retry and error-classification logic here
// keeps the ingestion and lifecycle loops simple.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
	"github.com/Peer2Pepu/p2p-sub001/internal/retry"
)

// ClientConfig holds connection and retry parameters for the RPC client.
type ClientConfig struct {
	RPCURL string
	// MaxAttempts bounds retries per RPC operation. Zero means 4.
	MaxAttempts int
	// RetryDelay is the linear backoff step between attempts. Zero means 2s.
	RetryDelay time.Duration
}

// Client is a retrying wrapper around ethclient. Every read operation is
// attempted up to MaxAttempts times with linear backoff; exhaustion
// surfaces as domain.ErrChainUnavailable so callers can skip the cycle
// instead of crashing.
type Client struct {
	eth    *ethclient.Client
	policy retry.Policy
	logger *slog.Logger
}

// Dial connects to the RPC endpoint and verifies it responds.
func Dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 4
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	c := &Client{
		eth: eth,
		policy: retry.Policy{
			MaxAttempts: attempts,
			Delay:       retry.Linear(delay),
		},
		logger: logger.With(slog.String("component", "chain")),
	}

	if _, err := c.BlockNumber(ctx); err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: endpoint unreachable: %w", err)
	}
	return c, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Eth exposes the raw client for the transactor.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// withRetry runs fn under the client's retry policy and maps exhaustion to
// domain.ErrChainUnavailable.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && !isPermanentCallError(err) && attempt < c.policy.MaxAttempts {
			c.logger.Warn("rpc call failed, retrying",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isPermanentCallError(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrChainUnavailable, op, err)
}

// isPermanentCallError reports whether the RPC error is a contract-level
// failure that retrying cannot fix.
func isPermanentCallError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "invalid opcode") ||
		strings.Contains(msg, "out of gas")
}

// BlockNumber returns the current chain height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.withRetry(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		height, err = c.eth.BlockNumber(ctx)
		return err
	})
	return height, err
}

// CallContract performs a read-only contract call.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	msg := ethereum.CallMsg{To: &to, Data: data}
	err := c.withRetry(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		out, err = c.eth.CallContract(ctx, msg, nil)
		if err != nil && isPermanentCallError(err) {
			return retry.Permanent(err)
		}
		return err
	})
	return out, err
}

// FilterLogs queries logs for one contract and topic over a bounded,
// inclusive block range. The query is one-shot; the caller owns pagination.
func (c *Client) FilterLogs(ctx context.Context, addr common.Address, topic common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{{topic}},
	}

	var logs []types.Log
	err := c.withRetry(ctx, "eth_getLogs", func(ctx context.Context) error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, query)
		return err
	})
	return logs, err
}
