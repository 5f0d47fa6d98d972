package fetchers

import "context"

// USDCUSDSources returns the five exchange-ticker fetchers the x402 depeg
// breaker samples to evaluate the USDC/USD peg.
func USDCUSDSources() []Source {
	return []Source{
		{Name: "kraken", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchKrakenTicker(ctx, "USDCUSD")
		}},
		{Name: "bitstamp", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchBitstampTicker(ctx, "usdcusd")
		}},
		{Name: "coinbase", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchCoinbaseTicker(ctx, "USDC-USD")
		}},
		{Name: "gemini", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchGeminiTicker(ctx, "usdcusd")
		}},
		{Name: "bitfinex", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchBitfinexTicker(ctx, "tUDCUSD")
		}},
	}
}
