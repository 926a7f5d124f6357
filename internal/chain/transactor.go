package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

// TransactorConfig holds signing and confirmation parameters.
type TransactorConfig struct {
	ChainID int64
	// ConfirmTimeout bounds how long SubmitAndWait polls for a receipt.
	// Zero means 2 minutes.
	ConfirmTimeout time.Duration
	// GasLimitBump is added on top of the node's gas estimate as headroom.
	// Zero means 20%.
	GasLimitBumpPct int64
}

// Transactor signs and submits state-changing calls and waits for their
// receipts. A mutex serializes submissions so one wallet nonce stream stays
// consistent within the process; cross-process races are resolved by the
// chain itself (the loser's transaction reverts).
type Transactor struct {
	client  *Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	cfg     TransactorConfig
	logger  *slog.Logger

	mu sync.Mutex
}

// NewTransactor creates a Transactor signing with the given key.
func NewTransactor(client *Client, key *ecdsa.PrivateKey, cfg TransactorConfig, logger *slog.Logger) *Transactor {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}
	if cfg.GasLimitBumpPct <= 0 {
		cfg.GasLimitBumpPct = 20
	}
	return &Transactor{
		client:  client,
		key:     key,
		from:    ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(cfg.ChainID),
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "transactor")),
	}
}

// From returns the sending wallet address.
func (t *Transactor) From() common.Address {
	return t.from
}

// SubmitAndWait signs a call to the given contract, broadcasts it, and
// blocks until the transaction is mined or the confirmation timeout
// elapses. A mined-but-reverted transaction returns domain.ErrTxReverted;
// an estimate-gas revert (the call would fail) is reported the same way,
// since both mean the market is not in the state the call requires.
func (t *Transactor) SubmitAndWait(ctx context.Context, to common.Address, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	eth := t.client.Eth()

	nonce, err := eth.PendingNonceAt(ctx, t.from)
	if err != nil {
		return fmt.Errorf("%w: pending nonce: %v", domain.ErrChainUnavailable, err)
	}

	gasPrice, err := eth.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("%w: gas price: %v", domain.ErrChainUnavailable, err)
	}

	gasLimit, err := eth.EstimateGas(ctx, ethereum.CallMsg{
		From: t.from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		if isPermanentCallError(err) {
			return fmt.Errorf("%w: estimate gas: %v", domain.ErrTxReverted, err)
		}
		return fmt.Errorf("%w: estimate gas: %v", domain.ErrChainUnavailable, err)
	}
	gasLimit += gasLimit * uint64(t.cfg.GasLimitBumpPct) / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), t.key)
	if err != nil {
		return fmt.Errorf("chain: signing transaction: %w", err)
	}

	if err := eth.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("%w: send transaction: %v", domain.ErrChainUnavailable, err)
	}

	t.logger.Info("transaction submitted",
		slog.String("tx", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas_limit", gasLimit),
	)

	return t.waitMined(ctx, signed.Hash())
}

// waitMined polls for the transaction receipt until it appears or the
// confirmation timeout elapses.
func (t *Transactor) waitMined(ctx context.Context, txHash common.Hash) error {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	eth := t.client.Eth()
	for {
		receipt, err := eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("%w: tx %s", domain.ErrTxReverted, txHash.Hex())
			}
			t.logger.Info("transaction confirmed",
				slog.String("tx", txHash.Hex()),
				slog.Uint64("block", receipt.BlockNumber.Uint64()),
			)
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			t.logger.Warn("receipt poll failed",
				slog.String("tx", txHash.Hex()),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: confirmation timeout for tx %s", domain.ErrChainUnavailable, txHash.Hex())
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
