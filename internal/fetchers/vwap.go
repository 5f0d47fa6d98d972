package fetchers

import (
	"context"
	"fmt"
	"time"
)

// VWAPWindow is the trailing window over which volume-weighted average
// price is computed.
const VWAPWindow = 300 * time.Second

// Trade is one executed trade, as reported by an exchange's public trade
// feed, filtered to the exchange's own timestamp field.
type Trade struct {
	Price  float64
	Size   float64
	Traded time.Time
}

// VWAPFromTrades computes Σ(price·size) / Σ(size) over trades within the
// last `window` of `now`. A window with zero total volume fails.
func VWAPFromTrades(trades []Trade, now time.Time, window time.Duration) (float64, error) {
	cutoff := now.Add(-window)
	var notional, volume float64
	for _, t := range trades {
		if t.Traded.Before(cutoff) {
			continue
		}
		notional += t.Price * t.Size
		volume += t.Size
	}
	if volume == 0 {
		return 0, fmt.Errorf("fetchers: vwap window has zero volume")
	}
	return notional / volume, nil
}

// VWAPFetchFunc fetches recent trades and reduces them to a VWAP.
type VWAPFetchFunc func(ctx context.Context) (float64, error)

func vwapSource(name string, denom Denomination, tradesFn func(ctx context.Context) ([]Trade, error)) Source {
	return Source{
		Name:  name,
		Denom: denom,
		Fetch: func(ctx context.Context) (float64, error) {
			trades, err := tradesFn(ctx)
			if err != nil {
				return 0, err
			}
			return VWAPFromTrades(trades, time.Now().UTC(), VWAPWindow)
		},
	}
}

// BTCUSDVWAPSources is the VWAP variant of the BTC/USD source table: five
// USD-native trade feeds plus two USDT-denominated ones, reduced over a
// 5-minute trailing window instead of last-trade tickers.
func BTCUSDVWAPSources() []Source {
	return []Source{
		vwapSource("coinbase", DenomQuote, func(ctx context.Context) ([]Trade, error) {
			return fetchCoinbaseTrades(ctx, "BTC-USD")
		}),
		vwapSource("kraken", DenomQuote, func(ctx context.Context) ([]Trade, error) {
			return fetchKrakenTrades(ctx, "XBTUSD")
		}),
		vwapSource("bitstamp", DenomQuote, func(ctx context.Context) ([]Trade, error) {
			return fetchBitstampTrades(ctx, "btcusd")
		}),
		vwapSource("gemini", DenomQuote, func(ctx context.Context) ([]Trade, error) {
			return fetchGeminiTrades(ctx, "btcusd")
		}),
		vwapSource("bitfinex", DenomQuote, func(ctx context.Context) ([]Trade, error) {
			return fetchBitfinexTrades(ctx, "tBTCUSD")
		}),
		vwapSource("okx", DenomUSDT, func(ctx context.Context) ([]Trade, error) {
			return fetchOKXTrades(ctx, "BTC-USDT")
		}),
		vwapSource("gateio", DenomUSDT, func(ctx context.Context) ([]Trade, error) {
			return fetchGateioTrades(ctx, "BTC_USDT")
		}),
	}
}

func fetchCoinbaseTrades(ctx context.Context, productID string) ([]Trade, error) {
	var out []struct {
		Price string    `json:"price"`
		Size  string    `json:"size"`
		Time  time.Time `json:"time"`
	}
	url := fmt.Sprintf("https://api.exchange.coinbase.com/products/%s/trades", productID)
	if err := getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	trades := make([]Trade, 0, len(out))
	for _, t := range out {
		price, err1 := parseFloat(t.Price)
		size, err2 := parseFloat(t.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		trades = append(trades, Trade{Price: price, Size: size, Traded: t.Time})
	}
	return trades, nil
}

func fetchKrakenTrades(ctx context.Context, pair string) ([]Trade, error) {
	var out struct {
		Result map[string][][]any `json:"result"`
	}
	url := fmt.Sprintf("https://api.kraken.com/0/public/Trades?pair=%s", pair)
	if err := getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	var trades []Trade
	for key, rows := range out.Result {
		if key == "last" {
			continue
		}
		for _, row := range rows {
			if len(row) < 3 {
				continue
			}
			price, _ := toFloat(row[0])
			size, _ := toFloat(row[1])
			ts, _ := toFloat(row[2])
			trades = append(trades, Trade{Price: price, Size: size, Traded: time.Unix(int64(ts), 0).UTC()})
		}
	}
	return trades, nil
}

func fetchBitstampTrades(ctx context.Context, pair string) ([]Trade, error) {
	var out []struct {
		Price string `json:"price"`
		Amount string `json:"amount"`
		Date   string `json:"date"`
	}
	url := fmt.Sprintf("https://www.bitstamp.net/api/v2/transactions/%s/", pair)
	if err := getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	trades := make([]Trade, 0, len(out))
	for _, t := range out {
		price, err1 := parseFloat(t.Price)
		size, err2 := parseFloat(t.Amount)
		epoch, err3 := parseFloat(t.Date)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		trades = append(trades, Trade{Price: price, Size: size, Traded: time.Unix(int64(epoch), 0).UTC()})
	}
	return trades, nil
}

func fetchGeminiTrades(ctx context.Context, pair string) ([]Trade, error) {
	var out []struct {
		Price     string `json:"price"`
		Amount    string `json:"amount"`
		Timestamp int64  `json:"timestamp"`
	}
	url := fmt.Sprintf("https://api.gemini.com/v1/trades/%s", pair)
	if err := getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	trades := make([]Trade, 0, len(out))
	for _, t := range out {
		price, err1 := parseFloat(t.Price)
		size, err2 := parseFloat(t.Amount)
		if err1 != nil || err2 != nil {
			continue
		}
		trades = append(trades, Trade{Price: price, Size: size, Traded: time.Unix(t.Timestamp, 0).UTC()})
	}
	return trades, nil
}

func fetchBitfinexTrades(ctx context.Context, symbol string) ([]Trade, error) {
	var out [][]float64 // [ID, MTS, AMOUNT, PRICE]
	url := fmt.Sprintf("https://api-pub.bitfinex.com/v2/trades/%s/hist", symbol)
	if err := getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	trades := make([]Trade, 0, len(out))
	for _, row := range out {
		if len(row) < 4 {
			continue
		}
		size := row[2]
		if size < 0 {
			size = -size
		}
		trades = append(trades, Trade{Price: row[3], Size: size, Traded: time.UnixMilli(int64(row[1])).UTC()})
	}
	return trades, nil
}

func fetchOKXTrades(ctx context.Context, instID string) ([]Trade, error) {
	var out struct {
		Data []struct {
			Px string `json:"px"`
			Sz string `json:"sz"`
			Ts string `json:"ts"`
		} `json:"data"`
	}
	url := fmt.Sprintf("https://www.okx.com/api/v5/market/trades?instId=%s", instID)
	if err := getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	trades := make([]Trade, 0, len(out.Data))
	for _, t := range out.Data {
		price, err1 := parseFloat(t.Px)
		size, err2 := parseFloat(t.Sz)
		ms, err3 := parseFloat(t.Ts)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		trades = append(trades, Trade{Price: price, Size: size, Traded: time.UnixMilli(int64(ms)).UTC()})
	}
	return trades, nil
}

func fetchGateioTrades(ctx context.Context, pair string) ([]Trade, error) {
	var out []struct {
		Price     string `json:"price"`
		Amount    string `json:"amount"`
		CreateTime string `json:"create_time"`
	}
	url := fmt.Sprintf("https://api.gateio.ws/api/v4/spot/trades?currency_pair=%s", pair)
	if err := getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	trades := make([]Trade, 0, len(out))
	for _, t := range out {
		price, err1 := parseFloat(t.Price)
		size, err2 := parseFloat(t.Amount)
		epoch, err3 := parseFloat(t.CreateTime)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		trades = append(trades, Trade{Price: price, Size: size, Traded: time.Unix(int64(epoch), 0).UTC()})
	}
	return trades, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return parseFloat(x)
	default:
		return 0, fmt.Errorf("fetchers: unexpected type %T for numeric field", v)
	}
}
