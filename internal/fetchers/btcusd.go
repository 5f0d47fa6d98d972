package fetchers

import "context"

// BTCUSDSources is the 9-source BTC/USD source table: six USD-native
// exchanges plus three USDT-denominated exchanges the aggregator
// normalizes using the USDT/USD rate.
func BTCUSDSources() []Source {
	return []Source{
		{Name: "coinbase", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchCoinbaseTicker(ctx, "BTC-USD")
		}},
		{Name: "kraken", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchKrakenTicker(ctx, "XBTUSD")
		}},
		{Name: "bitstamp", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchBitstampTicker(ctx, "btcusd")
		}},
		{Name: "gemini", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchGeminiTicker(ctx, "btcusd")
		}},
		{Name: "bitfinex", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchBitfinexTicker(ctx, "tBTCUSD")
		}},
		{Name: "binanceus", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchBinanceUSTicker(ctx, "BTCUSD")
		}},
		{Name: "binance", Denom: DenomUSDT, Fetch: func(ctx context.Context) (float64, error) {
			return fetchBinanceGlobalTicker(ctx, "BTCUSDT")
		}},
		{Name: "okx", Denom: DenomUSDT, Fetch: func(ctx context.Context) (float64, error) {
			return fetchOKXTicker(ctx, "BTC-USDT")
		}},
		{Name: "gateio", Denom: DenomUSDT, Fetch: func(ctx context.Context) (float64, error) {
			return fetchGateioTicker(ctx, "BTC_USDT")
		}},
	}
}
