package fetchers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// goldSanityLo/Hi bound any USD/oz gold quote to reject corrupt scrapes.
const (
	goldSanityLo = 1000.0
	goldSanityHi = 20000.0
)

var dollarAmountRE = regexp.MustCompile(`\$[\d,]+\.\d+`)

// XAUUSDTraditionalSources is the traditional (non-tokenized) gold-price
// leg of the XAU/USD feed: Kitco's proxy endpoint and two HTML scrapes.
func XAUUSDTraditionalSources() []Source {
	return []Source{
		{Name: "kitco", Denom: DenomQuote, Fetch: fetchKitco},
		{Name: "jmbullion", Denom: DenomQuote, Fetch: fetchJMBullion},
		{Name: "goldbroker", Denom: DenomQuote, Fetch: fetchGoldBroker},
	}
}

// XAUUSDPAXGSources is the tokenized-gold (PAXG) leg, split into
// USD-native and USDT-denominated exchanges. No source table in
// cmd/oracle or cmd/dlc-scheduler includes it: the xauusd route
// aggregates XAUUSDTraditionalSources alone.
func XAUUSDPAXGSources() (usd []Source, usdt []Source) {
	usd = []Source{
		{Name: "coinbase", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchCoinbaseSpot(ctx, "PAXG-USD")
		}},
		{Name: "kraken", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchKrakenTicker(ctx, "PAXGUSD")
		}},
		{Name: "gemini", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchGeminiTicker(ctx, "paxgusd")
		}},
	}
	usdt = []Source{
		{Name: "binance", Denom: DenomUSDT, Fetch: func(ctx context.Context) (float64, error) {
			return fetchBinanceGlobalTicker(ctx, "PAXGUSDT")
		}},
		{Name: "okx", Denom: DenomUSDT, Fetch: func(ctx context.Context) (float64, error) {
			return fetchOKXTicker(ctx, "PAXG-USDT")
		}},
	}
	return usd, usdt
}

func fetchKitco(ctx context.Context) (float64, error) {
	body, err := getText(ctx, "https://proxy.kitco.com/getPM?symbol=AU&currency=USD", nil)
	if err != nil {
		return 0, err
	}
	parts := strings.Split(strings.TrimSpace(body), ",")
	if len(parts) < 6 {
		return 0, fmt.Errorf("fetchers: kitco response too short")
	}
	price, err := strconv.ParseFloat(parts[5], 64)
	if err != nil {
		return 0, fmt.Errorf("fetchers: kitco price parse: %w", err)
	}
	if err := sanityBand(price, goldSanityLo, goldSanityHi); err != nil {
		return 0, err
	}
	return price, nil
}

func fetchJMBullion(ctx context.Context) (float64, error) {
	body, err := getText(ctx, "https://www.jmbullion.com/charts/gold-price/", map[string]string{
		"User-Agent": "Mozilla/5.0",
	})
	if err != nil {
		return 0, err
	}
	matches := dollarAmountRE.FindAllString(body, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("fetchers: no price found on jmbullion")
	}
	price, err := parseDollarAmount(matches[0])
	if err != nil {
		return 0, err
	}
	if err := sanityBand(price, goldSanityLo, goldSanityHi); err != nil {
		return 0, err
	}
	return price, nil
}

func fetchGoldBroker(ctx context.Context) (float64, error) {
	body, err := getText(ctx, "https://www.goldbroker.com/charts/gold-price/usd", map[string]string{
		"User-Agent": "Mozilla/5.0",
	})
	if err != nil {
		return 0, err
	}
	for _, m := range dollarAmountRE.FindAllString(body, -1) {
		price, err := parseDollarAmount(m)
		if err != nil {
			continue
		}
		if sanityBand(price, goldSanityLo, goldSanityHi) == nil {
			return price, nil
		}
	}
	return 0, fmt.Errorf("fetchers: no valid price found on goldbroker")
}

func parseDollarAmount(s string) (float64, error) {
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(s, 64)
}
