package fetchers

import (
	"context"
	"fmt"
)

// Shared per-exchange ticker fetchers, parameterized by trading-pair
// symbol, reused across BTCUSD, ETHUSD, and the PAXG leg of XAUUSD.

func fetchCoinbaseTicker(ctx context.Context, productID string) (float64, error) {
	var out struct {
		Price string `json:"price"`
	}
	url := fmt.Sprintf("https://api.exchange.coinbase.com/products/%s/ticker", productID)
	if err := getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	return parseFloat(out.Price)
}

func fetchCoinbaseSpot(ctx context.Context, pair string) (float64, error) {
	var out struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	url := fmt.Sprintf("https://api.coinbase.com/v2/prices/%s/spot", pair)
	if err := getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	return parseFloat(out.Data.Amount)
}

func fetchKrakenTicker(ctx context.Context, pair string) (float64, error) {
	var out struct {
		Result map[string]struct {
			Close []string `json:"c"`
		} `json:"result"`
	}
	url := fmt.Sprintf("https://api.kraken.com/0/public/Ticker?pair=%s", pair)
	if err := getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	for _, v := range out.Result {
		if len(v.Close) > 0 {
			return parseFloat(v.Close[0])
		}
	}
	return 0, fmt.Errorf("fetchers: kraken returned no result for pair %s", pair)
}

func fetchBitstampTicker(ctx context.Context, pair string) (float64, error) {
	var out struct {
		Last string `json:"last"`
	}
	url := fmt.Sprintf("https://www.bitstamp.net/api/v2/ticker/%s/", pair)
	if err := getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	return parseFloat(out.Last)
}

func fetchGeminiTicker(ctx context.Context, pair string) (float64, error) {
	var out struct {
		Last string `json:"last"`
	}
	url := fmt.Sprintf("https://api.gemini.com/v1/pubticker/%s", pair)
	if err := getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	return parseFloat(out.Last)
}

func fetchBitfinexTicker(ctx context.Context, symbol string) (float64, error) {
	// Bitfinex v2 ticker responds with a positional array; index 6 is last price.
	var out []float64
	url := fmt.Sprintf("https://api-pub.bitfinex.com/v2/ticker/%s", symbol)
	if err := getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	if len(out) < 7 {
		return 0, fmt.Errorf("fetchers: bitfinex ticker response too short")
	}
	return out[6], nil
}

func fetchBinanceUSTicker(ctx context.Context, symbol string) (float64, error) {
	var out struct {
		Price string `json:"price"`
	}
	url := fmt.Sprintf("https://api.binance.us/api/v3/ticker/price?symbol=%s", symbol)
	if err := getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	return parseFloat(out.Price)
}

func fetchBinanceGlobalTicker(ctx context.Context, symbol string) (float64, error) {
	var out struct {
		Price string `json:"price"`
	}
	url := fmt.Sprintf("https://data-api.binance.vision/api/v3/ticker/price?symbol=%s", symbol)
	if err := getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	return parseFloat(out.Price)
}

func fetchOKXTicker(ctx context.Context, instID string) (float64, error) {
	var out struct {
		Data []struct {
			Last string `json:"last"`
		} `json:"data"`
	}
	url := fmt.Sprintf("https://www.okx.com/api/v5/market/ticker?instId=%s", instID)
	if err := getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	if len(out.Data) == 0 {
		return 0, fmt.Errorf("fetchers: okx returned no data for %s", instID)
	}
	return parseFloat(out.Data[0].Last)
}

func fetchGateioTicker(ctx context.Context, pair string) (float64, error) {
	var out []struct {
		Last string `json:"last"`
	}
	url := fmt.Sprintf("https://api.gateio.ws/api/v4/spot/tickers?currency_pair=%s", pair)
	if err := getJSON(ctx, url, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("fetchers: gate.io returned no data for %s", pair)
	}
	return parseFloat(out[0].Last)
}

func parseFloat(s string) (float64, error) {
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err != nil {
		return 0, fmt.Errorf("fetchers: cannot parse float %q: %w", s, err)
	}
	return f, nil
}
