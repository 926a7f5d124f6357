package chain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TokenRegistry resolves payment-token display symbols. It reads the
// supported-token list from the admin contract and the symbol from each
// ERC-20 contract, memoizing results for the process lifetime (token
// symbols do not change).
type TokenRegistry struct {
	client *Client
	admin  common.Address
	logger *slog.Logger

	mu      sync.RWMutex
	symbols map[string]string // lower-cased address -> symbol
}

// NewTokenRegistry creates a TokenRegistry backed by the admin contract at
// the given address.
func NewTokenRegistry(client *Client, adminAddr string, logger *slog.Logger) *TokenRegistry {
	return &TokenRegistry{
		client:  client,
		admin:   common.HexToAddress(adminAddr),
		logger:  logger.With(slog.String("component", "tokens")),
		symbols: make(map[string]string),
	}
}

// SupportedTokens returns the addresses registered in the admin contract,
// lower-cased.
func (r *TokenRegistry) SupportedTokens(ctx context.Context) ([]string, error) {
	data, err := registryABI.Pack("getSupportedTokens")
	if err != nil {
		return nil, fmt.Errorf("chain: pack getSupportedTokens: %w", err)
	}

	out, err := r.client.CallContract(ctx, r.admin, data)
	if err != nil {
		return nil, err
	}

	vals, err := registryABI.Unpack("getSupportedTokens", out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack getSupportedTokens: %w", err)
	}
	addrs, ok := vals[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("chain: getSupportedTokens: unexpected output type %T", vals[0])
	}

	tokens := make([]string, 0, len(addrs))
	for _, a := range addrs {
		tokens = append(tokens, strings.ToLower(a.Hex()))
	}
	return tokens, nil
}

// Symbol resolves the display symbol for a token address via the ERC-20
// symbol() call. Results are memoized. Callers are expected to fall back to
// the raw address string on error.
func (r *TokenRegistry) Symbol(ctx context.Context, tokenAddr string) (string, error) {
	key := strings.ToLower(tokenAddr)

	r.mu.RLock()
	sym, ok := r.symbols[key]
	r.mu.RUnlock()
	if ok {
		return sym, nil
	}

	data, err := tokenABI.Pack("symbol")
	if err != nil {
		return "", fmt.Errorf("chain: pack symbol: %w", err)
	}

	out, err := r.client.CallContract(ctx, common.HexToAddress(tokenAddr), data)
	if err != nil {
		return "", err
	}

	vals, err := tokenABI.Unpack("symbol", out)
	if err != nil {
		return "", fmt.Errorf("chain: unpack symbol for %s: %w", tokenAddr, err)
	}
	sym, ok = vals[0].(string)
	if !ok || sym == "" {
		return "", fmt.Errorf("chain: token %s returned empty symbol", tokenAddr)
	}

	r.mu.Lock()
	r.symbols[key] = sym
	r.mu.Unlock()

	r.logger.Debug("resolved token symbol",
		slog.String("token", key),
		slog.String("symbol", sym),
	)
	return sym, nil
}
