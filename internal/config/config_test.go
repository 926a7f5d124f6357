package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns Defaults with the fields every mode requires filled in.
func validConfig() Config {
	cfg := Defaults()
	cfg.Chain.RPCURL = "https://sepolia.base.org"
	cfg.Chain.MarketManagerAddress = "0x1111111111111111111111111111111111111111"
	cfg.Chain.AdminAddress = "0x2222222222222222222222222222222222222222"
	cfg.Wallet.PrivateKey = "0xabc"
	return cfg
}

func TestValidateDefaultsWithRequiredFields(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	cfg.Chain.RPCURL = ""
	cfg.Ingest.MaxBlockRange = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted broken config")
	}
	for _, want := range []string{"unknown mode", "rpc_url", "max_block_range"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidateRequiresAdminAddress(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.AdminAddress = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "admin_address") {
		t.Fatalf("Validate = %v, want admin_address error", err)
	}
}

func TestValidateModeGating(t *testing.T) {
	t.Run("lifecycle requires wallet", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "lifecycle"
		cfg.Wallet = WalletConfig{}
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "wallet") {
			t.Fatalf("Validate = %v, want wallet error", err)
		}
	})

	t.Run("ingest ignores missing wallet", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "ingest"
		cfg.Wallet = WalletConfig{}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("ingest requires datastore", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "ingest"
		cfg.Supabase.Host = ""
		cfg.Supabase.DSN = ""
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "supabase") {
			t.Fatalf("Validate = %v, want supabase error", err)
		}
	})

	t.Run("dsn satisfies datastore check", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "ingest"
		cfg.Supabase.Host = ""
		cfg.Supabase.DSN = "postgres://u:p@db:5432/postgres"
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("archive requires s3", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "archive"
		cfg.S3.Bucket = ""
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "bucket") {
			t.Fatalf("Validate = %v, want bucket error", err)
		}
	})

	t.Run("encrypted key needs password", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "full"
		cfg.Wallet = WalletConfig{EncryptedKeyPath: "/keys/resolver.enc"}
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "key_password") {
			t.Fatalf("Validate = %v, want key_password error", err)
		}
	})
}

func TestNeedsWalletAndPostgres(t *testing.T) {
	tests := []struct {
		mode     string
		wallet   bool
		postgres bool
	}{
		{"ingest", false, true},
		{"lifecycle", true, false},
		{"archive", false, true},
		{"full", true, true},
	}
	for _, tt := range tests {
		cfg := Config{Mode: tt.mode}
		if got := cfg.NeedsWallet(); got != tt.wallet {
			t.Errorf("mode %s: NeedsWallet = %v, want %v", tt.mode, got, tt.wallet)
		}
		if got := cfg.NeedsPostgres(); got != tt.postgres {
			t.Errorf("mode %s: NeedsPostgres = %v, want %v", tt.mode, got, tt.postgres)
		}
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("5s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration != 5*time.Second {
		t.Fatalf("parsed %v, want 5s", d.Duration)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Fatal("UnmarshalText accepted garbage")
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "ingest"

[chain]
rpc_url = "https://sepolia.base.org"
market_manager_address = "0x1111111111111111111111111111111111111111"

[ingest]
interval = "15s"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("P2PBOT_CHAIN_RPC_URL", "https://rpc.internal:8545")
	t.Setenv("P2PBOT_SUPABASE_URL", "postgres://u:p@db:5432/postgres")
	t.Setenv("P2PBOT_INGEST_BOOTSTRAP_WINDOW", "900")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "ingest" {
		t.Errorf("Mode = %q, want ingest", cfg.Mode)
	}
	if cfg.Chain.RPCURL != "https://rpc.internal:8545" {
		t.Errorf("RPCURL = %q, env override lost", cfg.Chain.RPCURL)
	}
	if cfg.Supabase.DSN != "postgres://u:p@db:5432/postgres" {
		t.Errorf("DSN = %q, alias override lost", cfg.Supabase.DSN)
	}
	if cfg.Ingest.Interval.Duration != 15*time.Second {
		t.Errorf("Interval = %v, want 15s from file", cfg.Ingest.Interval.Duration)
	}
	if cfg.Ingest.BootstrapWindow != 900 {
		t.Errorf("BootstrapWindow = %d, want 900 from env", cfg.Ingest.BootstrapWindow)
	}
	// Untouched field keeps its default.
	if cfg.Ingest.MaxBlockRange != 2000 {
		t.Errorf("MaxBlockRange = %d, want default 2000", cfg.Ingest.MaxBlockRange)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("Load accepted a missing file")
	}
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.Wallet.KeyPassword = "hunter2"
	cfg.Supabase.Password = "pgpass"
	cfg.Redis.Password = "redispass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Notify.TelegramToken = "12345:token"

	red := RedactedConfig(&cfg)

	if red.Wallet.PrivateKey == cfg.Wallet.PrivateKey {
		t.Error("private key not masked")
	}
	if red.Supabase.Password == cfg.Supabase.Password {
		t.Error("postgres password not masked")
	}
	if red.Redis.Password == cfg.Redis.Password {
		t.Error("redis password not masked")
	}
	if red.S3.SecretKey == cfg.S3.SecretKey {
		t.Error("s3 secret not masked")
	}
	if red.Notify.TelegramToken == cfg.Notify.TelegramToken {
		t.Error("telegram token not masked")
	}
	// Non-secret fields survive untouched.
	if red.Chain.RPCURL != cfg.Chain.RPCURL {
		t.Error("rpc url should not be masked")
	}
}
