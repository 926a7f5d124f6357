package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies P2PBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known P2PBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "P2PBOT_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "P2PBOT_CHAIN_CHAIN_ID")
	setStr(&cfg.Chain.MarketManagerAddress, "P2PBOT_CHAIN_MARKET_MANAGER_ADDRESS")
	setStr(&cfg.Chain.AdminAddress, "P2PBOT_CHAIN_ADMIN_ADDRESS")
	setInt(&cfg.Chain.MaxRetries, "P2PBOT_CHAIN_MAX_RETRIES")
	setDuration(&cfg.Chain.RetryDelay, "P2PBOT_CHAIN_RETRY_DELAY")
	setDuration(&cfg.Chain.ConfirmTimeout, "P2PBOT_CHAIN_CONFIRM_TIMEOUT")
	setInt(&cfg.Chain.GasLimitBumpPct, "P2PBOT_CHAIN_GAS_LIMIT_BUMP_PCT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "P2PBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "P2PBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "P2PBOT_WALLET_KEY_PASSWORD")

	// ── IPFS ──
	setStr(&cfg.IPFS.GatewayURL, "P2PBOT_IPFS_GATEWAY_URL")
	setDuration(&cfg.IPFS.Timeout, "P2PBOT_IPFS_TIMEOUT")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "P2PBOT_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "P2PBOT_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "P2PBOT_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "P2PBOT_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "P2PBOT_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "P2PBOT_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "P2PBOT_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "P2PBOT_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "P2PBOT_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "P2PBOT_SUPABASE_POOL_MIN_CONNS")
	setInt(&cfg.Supabase.MaxRetries, "P2PBOT_SUPABASE_MAX_RETRIES")
	setDuration(&cfg.Supabase.RetryDelay, "P2PBOT_SUPABASE_RETRY_DELAY")
	setBool(&cfg.Supabase.RunMigrations, "P2PBOT_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "P2PBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "P2PBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "P2PBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "P2PBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "P2PBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "P2PBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "P2PBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "P2PBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "P2PBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "P2PBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "P2PBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "P2PBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "P2PBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "P2PBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "P2PBOT_S3_FORCE_PATH_STYLE")

	// ── Ingest ──
	setDuration(&cfg.Ingest.Interval, "P2PBOT_INGEST_INTERVAL")
	setUint64(&cfg.Ingest.BootstrapWindow, "P2PBOT_INGEST_BOOTSTRAP_WINDOW")
	setUint64(&cfg.Ingest.MaxBlockRange, "P2PBOT_INGEST_MAX_BLOCK_RANGE")

	// ── Lifecycle ──
	setDuration(&cfg.Lifecycle.Interval, "P2PBOT_LIFECYCLE_INTERVAL")
	setDuration(&cfg.Lifecycle.SettleDelay, "P2PBOT_LIFECYCLE_SETTLE_DELAY")

	// ── Archive ──
	setDuration(&cfg.Archive.Interval, "P2PBOT_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "P2PBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "P2PBOT_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "P2PBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "P2PBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "P2PBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "P2PBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "P2PBOT_MODE")
	setStr(&cfg.LogLevel, "P2PBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
