package fetchers

import "context"

// ETHUSDSources is the 5-exchange ETH/USD source table, all USD-native.
func ETHUSDSources() []Source {
	return []Source{
		{Name: "coinbase", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchCoinbaseTicker(ctx, "ETH-USD")
		}},
		{Name: "kraken", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchKrakenTicker(ctx, "ETHUSD")
		}},
		{Name: "bitstamp", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchBitstampTicker(ctx, "ethusd")
		}},
		{Name: "gemini", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchGeminiTicker(ctx, "ethusd")
		}},
		{Name: "bitfinex", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchBitfinexTicker(ctx, "tETHUSD")
		}},
	}
}
