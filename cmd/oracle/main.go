// Command oracle runs the price attestation service: the unauthenticated
// attestation/health/DLC surface, the L402-gated Lightning proxy, and the
// x402-gated USDC proxy, all three sharing one in-process feed aggregator
// and signer.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sho/internal/config"
	"sho/internal/db"
	"sho/internal/dlc"
	"sho/internal/fetchers"
	"sho/internal/server"
	"sho/internal/signer"
)

func main() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	})
	slog.SetDefault(slog.New(handler))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	registry, err := config.LoadRegistry("config/pairs.yaml")
	if err != nil {
		slog.Error("failed to load pair registry", "error", err)
		os.Exit(1)
	}

	var guard signer.KeyGuard
	if cfg.KMS.KeyID != "" || cfg.KMS.Region != "" {
		kmsGuard, err := signer.NewKMSGuard(context.Background(), cfg.KMS.Region, cfg.KMS.KeyID)
		if err != nil {
			slog.Error("failed to initialize KMS guard", "error", err)
			os.Exit(1)
		}
		guard = kmsGuard
	}

	sgnr, err := signer.Load(cfg.Signer.Secp256k1KeyPath, cfg.Signer.Ed25519KeyPath, guard)
	if err != nil {
		slog.Error("failed to load oracle signing keys", "error", err)
		os.Exit(1)
	}
	slog.Info("oracle keys loaded", "secp256k1_pubkey", sgnr.Secp256k1PubKeyHex(), "ed25519_pubkey", sgnr.Ed25519PubKeyHex())

	dlcStore, err := dlc.NewStore(cfg.DLC.DataDir)
	if err != nil {
		slog.Error("failed to open DLC store", "error", err)
		os.Exit(1)
	}

	var database *db.DB
	if cfg.Database.Host != "" {
		database, err = db.New(&db.Config{
			Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
			Password: cfg.Database.Password, Name: cfg.Database.Name,
			SSLMode: cfg.Database.SSLMode, MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			slog.Error("failed to connect to settlement audit log database", "error", err)
			os.Exit(1)
		}
		defer database.Close()

		if err := database.Migrate(context.Background()); err != nil {
			slog.Error("failed to migrate settlement audit log database", "error", err)
			os.Exit(1)
		}
		slog.Info("settlement audit log enabled", "host", cfg.Database.Host)
	}

	srv, err := server.New(cfg, registry, sgnr, sourceTables(), dlcStore, database)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		slog.Info("received signal", "signal", sig)
	case err := <-errChan:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("shutting down oracle")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}

	slog.Info("oracle stopped")
}

// sourceTables maps every non-cross-rate registry route to its static
// fetcher table. Cross-rate routes (btceur, xaueur) compose two other
// routes at aggregation time and need no table of their own.
func sourceTables() map[string][]fetchers.Source {
	return map[string][]fetchers.Source{
		"btcusd":      fetchers.BTCUSDSources(),
		"btcusd/vwap": fetchers.BTCUSDVWAPSources(),
		"ethusd":      fetchers.ETHUSDSources(),
		"eurusd":      fetchers.EURUSDSources(),
		"xauusd":      fetchers.XAUUSDTraditionalSources(),
	}
}
