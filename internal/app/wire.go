package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/Peer2Pepu/p2p-sub001/internal/blob/s3"
	"github.com/Peer2Pepu/p2p-sub001/internal/cache/redis"
	"github.com/Peer2Pepu/p2p-sub001/internal/chain"
	"github.com/Peer2Pepu/p2p-sub001/internal/config"
	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
	"github.com/Peer2Pepu/p2p-sub001/internal/keystore"
	"github.com/Peer2Pepu/p2p-sub001/internal/metadata"
	"github.com/Peer2Pepu/p2p-sub001/internal/notify"
	"github.com/Peer2Pepu/p2p-sub001/internal/store/postgres"
)

// Dependencies bundles every concrete dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Chain
	Chain         *chain.Client
	MarketManager *chain.MarketManager

	// Lookups (optionally cached through Redis)
	Metadata domain.MetadataSource
	Symbols  domain.SymbolResolver

	// Store (nil unless the mode needs persistence)
	RecordStore *postgres.MarketRecordStore

	// Object storage (nil unless S3 is enabled)
	S3Client *s3blob.Client

	// Notifications
	Notifier          *notify.Notifier
	LifecycleNotifier *notify.LifecycleNotifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Chain client (every mode reads the chain) ---
	chainClient, err := chain.Dial(ctx, chain.ClientConfig{
		RPCURL:      cfg.Chain.RPCURL,
		MaxAttempts: cfg.Chain.MaxRetries,
		RetryDelay:  cfg.Chain.RetryDelay.Duration,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, chainClient.Close)

	// --- Transactor (only for modes that sign transactions) ---
	var txor *chain.Transactor
	if cfg.NeedsWallet() {
		key, err := keystore.LoadECDSA(keystore.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		txor = chain.NewTransactor(chainClient, key, chain.TransactorConfig{
			ChainID:         cfg.Chain.ChainID,
			ConfirmTimeout:  cfg.Chain.ConfirmTimeout.Duration,
			GasLimitBumpPct: int64(cfg.Chain.GasLimitBumpPct),
		}, logger)
	}

	deps.Chain = chainClient
	deps.MarketManager = chain.NewMarketManager(chainClient, cfg.Chain.MarketManagerAddress, txor)

	// --- Lookups ---
	deps.Metadata = metadata.NewFetcher(cfg.IPFS.GatewayURL, cfg.IPFS.Timeout.Duration, logger)
	deps.Symbols = chain.NewTokenRegistry(chainClient, cfg.Chain.AdminAddress, logger)

	// --- Redis (optional read-through caches) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.Dial(ctx, redis.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Metadata = redis.NewMetadataCache(redisClient, deps.Metadata, time.Hour, logger)
		deps.Symbols = redis.NewSymbolCache(redisClient, deps.Symbols, 24*time.Hour, logger)
	}

	// --- PostgreSQL (only for modes that require persistence) ---
	if cfg.NeedsPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.RecordStore = postgres.NewMarketRecordStore(
			pgClient.Pool(),
			cfg.Supabase.MaxRetries,
			cfg.Supabase.RetryDelay.Duration,
		)
	}

	// --- S3 blob storage (only when the archiver runs) ---
	if cfg.S3.Enabled || cfg.Mode == "archive" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.S3Client = s3Client
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	var records notify.RecordGetter
	if deps.RecordStore != nil {
		records = deps.RecordStore
	}
	deps.LifecycleNotifier = notify.NewLifecycleNotifier(deps.Notifier, deps.Metadata, records)

	return deps, cleanup, nil
}
