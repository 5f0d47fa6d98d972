// Command dlc-scheduler runs the DLC sub-oracle's announce/attest cadence:
// it keeps a 24-hour horizon of hourly announcements ahead of the clock and
// attests each hour's event against the live feed aggregator once it
// matures. With --once it runs a single attest+announce pass and exits,
// for cron-driven deployment instead of the long-running loop.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sho/internal/aggregator"
	"sho/internal/config"
	"sho/internal/dlc"
	"sho/internal/fetchers"
	"sho/internal/signer"
)

func main() {
	once := flag.Bool("once", false, "run a single attest+announce pass and exit")
	pairsPath := flag.String("pairs", "config/pairs.yaml", "path to the pair registry")
	flag.Parse()

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	log := slog.New(handler)
	slog.SetDefault(log)

	cfg := config.Load()

	var guard signer.KeyGuard
	if cfg.KMS.KeyID != "" || cfg.KMS.Region != "" {
		kmsGuard, err := signer.NewKMSGuard(context.Background(), cfg.KMS.Region, cfg.KMS.KeyID)
		if err != nil {
			log.Error("failed to initialize KMS guard", "error", err)
			os.Exit(1)
		}
		guard = kmsGuard
	}

	key, err := dlc.LoadKey(cfg.DLC.KeyPath, guard)
	if err != nil {
		log.Error("failed to load DLC oracle key", "error", err)
		os.Exit(1)
	}
	log.Info("dlc oracle key loaded", "pubkey", key.PubkeyHex())

	store, err := dlc.NewStore(cfg.DLC.DataDir)
	if err != nil {
		log.Error("failed to open DLC store", "error", err)
		os.Exit(1)
	}

	registry, err := config.LoadRegistry(*pairsPath)
	if err != nil {
		log.Error("failed to load pair registry", "error", err)
		os.Exit(1)
	}
	spec, fetch, err := buildFetcher(registry, cfg.DLC.Pair)
	if err != nil {
		log.Error("failed to build price fetcher", "error", err)
		os.Exit(1)
	}
	log.Info("dlc pair configured", "pair", cfg.DLC.Pair, "symbol", spec.Symbol)

	attestor := dlc.NewAttestor(key, store)
	scheduler := dlc.NewScheduler(attestor, store, cfg.DLC.Pair, fetch, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := scheduler.RunOnce(ctx, time.Now()); err != nil {
			log.Error("dlc run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := scheduler.RunLoop(ctx, time.Now); err != nil && ctx.Err() == nil {
		log.Error("dlc scheduler loop exited", "error", err)
		os.Exit(1)
	}
	log.Info("dlc scheduler stopped")
}

// buildFetcher resolves pair to its source table and wraps Aggregate as a
// dlc.PriceFetcher, using the same quorum-gated aggregation the attestation
// endpoint serves over HTTP.
func buildFetcher(registry *config.Registry, pair string) (config.PairSpec, dlc.PriceFetcher, error) {
	route := routeForPair(pair)
	spec, ok := registry.Get(route)
	if !ok {
		return config.PairSpec{}, nil, os.ErrNotExist
	}

	sources := sourcesForPair(pair)
	fetch := func(ctx context.Context) (float64, []string, error) {
		quote, err := aggregator.Aggregate(ctx, sources, spec)
		if err != nil {
			return 0, nil, err
		}
		return quote.Price, quote.Sources, nil
	}
	return spec, fetch, nil
}

func routeForPair(pair string) string {
	switch pair {
	case "BTCUSD":
		return "btcusd"
	case "ETHUSD":
		return "ethusd"
	case "EURUSD":
		return "eurusd"
	case "XAUUSD":
		return "xauusd"
	default:
		return ""
	}
}

func sourcesForPair(pair string) []fetchers.Source {
	switch pair {
	case "BTCUSD":
		return fetchers.BTCUSDSources()
	case "ETHUSD":
		return fetchers.ETHUSDSources()
	case "EURUSD":
		return fetchers.EURUSDSources()
	case "XAUUSD":
		return fetchers.XAUUSDTraditionalSources()
	default:
		return nil
	}
}
