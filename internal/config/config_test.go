package config

import (
	"strings"
	"testing"
)

func TestValidateProductionRequiresAtLeastOneX402Wallet(t *testing.T) {
	cfg := validProductionConfig()
	cfg.X402 = X402Config{
		FacilitatorKeyID:  "key-1",
		FacilitatorSecret: "secret",
		Networks:          []string{"base", "solana"},
		DepegThreshold:    0.02,
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when no x402 wallet addresses are configured")
	}
	if !strings.Contains(err.Error(), "at least one X402 wallet address") {
		t.Fatalf("expected x402 wallet validation error, got: %v", err)
	}
}

func TestValidateProductionRequiresFacilitatorCredentials(t *testing.T) {
	cfg := validProductionConfig()
	cfg.X402.FacilitatorKeyID = ""
	cfg.X402.FacilitatorSecret = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when facilitator credentials are missing")
	}
	if !strings.Contains(err.Error(), "X402_FACILITATOR_KEY_ID") {
		t.Fatalf("expected facilitator credential validation error, got: %v", err)
	}
}

func TestValidateProductionRequiresMacaroonSecret(t *testing.T) {
	cfg := validProductionConfig()
	cfg.Lightning.MacaroonSecret = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when L402 macaroon secret is missing")
	}
	if !strings.Contains(err.Error(), "L402_MACAROON_SECRET") {
		t.Fatalf("expected macaroon secret validation error, got: %v", err)
	}
}

func TestValidateProductionAllowsEVMWallet(t *testing.T) {
	cfg := validProductionConfig()
	cfg.X402.EVMWalletAddress = "0x1234567890123456789012345678901234567890"
	cfg.X402.SolanaWalletAddress = ""
	cfg.X402.Networks = []string{"base"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected validation to pass with EVM wallet configured, got: %v", err)
	}
}

func TestValidateProductionAllowsSolanaWallet(t *testing.T) {
	cfg := validProductionConfig()
	cfg.X402.EVMWalletAddress = ""
	cfg.X402.SolanaWalletAddress = "7xKXtg2CWYuV7i8UEz5B2oS6x9fPVkDz7M8f8f8f8f8f"
	cfg.X402.Networks = []string{"solana"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected validation to pass with Solana wallet configured, got: %v", err)
	}
}

func TestValidateRejectsDepegThresholdOutOfRange(t *testing.T) {
	cfg := validProductionConfig()
	cfg.X402.DepegThreshold = 1.5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for out-of-range depeg threshold")
	}
	if !strings.Contains(err.Error(), "X402_DEPEG_THRESHOLD") {
		t.Fatalf("expected depeg threshold validation error, got: %v", err)
	}
}

func TestValidateDevelopmentPassesWithoutX402Wallets(t *testing.T) {
	cfg := &Config{
		Environment: EnvDevelopment,
		Database: DatabaseConfig{
			Password: "db-password",
		},
		KMS: KMSConfig{
			Region: "us-east-1",
			KeyID:  "alias/sho-signing-keys",
		},
		X402: X402Config{
			DepegThreshold: 0.02,
		}, // no wallets configured
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected validation to pass in development without x402 wallets, got: %v", err)
	}
}

func TestLoadX402NetworksReturnsEmptyWhenNoWalletsConfigured(t *testing.T) {
	t.Setenv("X402_NETWORKS", "")
	t.Setenv("X402_NETWORK", "")
	t.Setenv("X402_EVM_WALLET_ADDRESS", "")
	t.Setenv("X402_WALLET_ADDRESS", "")
	t.Setenv("X402_SOLANA_WALLET_ADDRESS", "")

	networks := loadX402Networks()
	if len(networks) != 0 {
		t.Fatalf("expected no networks when no wallets are configured, got: %v", networks)
	}
}

func TestLoadX402NetworksAutoDetectsWallets(t *testing.T) {
	t.Setenv("X402_NETWORKS", "")
	t.Setenv("X402_NETWORK", "")
	t.Setenv("X402_EVM_WALLET_ADDRESS", "0x1234567890123456789012345678901234567890")
	t.Setenv("X402_WALLET_ADDRESS", "")
	t.Setenv("X402_SOLANA_WALLET_ADDRESS", "")

	networks := loadX402Networks()
	if len(networks) != 1 || networks[0] != "base" {
		t.Fatalf("expected auto-detected base network, got: %v", networks)
	}
}

func TestLoadX402NetworksRespectsExplicitList(t *testing.T) {
	t.Setenv("X402_NETWORKS", "base, solana")
	t.Setenv("X402_EVM_WALLET_ADDRESS", "")
	t.Setenv("X402_WALLET_ADDRESS", "")
	t.Setenv("X402_SOLANA_WALLET_ADDRESS", "")

	networks := loadX402Networks()
	if len(networks) != 2 || networks[0] != "base" || networks[1] != "solana" {
		t.Fatalf("expected explicit network list to be respected, got: %v", networks)
	}
}

func TestWalletForNetwork(t *testing.T) {
	cfg := X402Config{
		EVMWalletAddress:    "0xEVM",
		SolanaWalletAddress: "SOLANA",
	}

	if got := cfg.WalletForNetwork("base"); got != "0xEVM" {
		t.Fatalf("expected base to resolve the EVM wallet, got: %s", got)
	}
	if got := cfg.WalletForNetwork("solana-devnet"); got != "SOLANA" {
		t.Fatalf("expected solana-devnet to resolve the Solana wallet, got: %s", got)
	}
	if got := cfg.WalletForNetwork("unknown"); got != "" {
		t.Fatalf("expected unknown network to resolve no wallet, got: %s", got)
	}
}

func validProductionConfig() *Config {
	return &Config{
		Environment: EnvProduction,
		Database: DatabaseConfig{
			Password: "db-password",
		},
		Lightning: LightningConfig{
			MacaroonSecret: "test-macaroon-secret",
		},
		X402: X402Config{
			EVMWalletAddress:  "0x1234567890123456789012345678901234567890",
			FacilitatorKeyID:  "key-1",
			FacilitatorSecret: "secret",
			Networks:          []string{"base"},
			DepegThreshold:    0.02,
		},
		KMS: KMSConfig{
			Region: "us-east-1",
			KeyID:  "alias/sho-signing-keys",
		},
	}
}
