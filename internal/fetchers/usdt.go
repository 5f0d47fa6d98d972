package fetchers

import (
	"context"
	"sort"
)

// USDTRate returns the median USDT/USD rate sampled from Kraken and
// Bitstamp. Falls back to 1.0 if neither source responds, matching the
// reference feed's conservative assumption that USDT trades near par
// when no fresher signal is available.
func USDTRate(ctx context.Context) float64 {
	var rates []float64

	if r, err := fetchKrakenTicker(ctx, "USDTUSD"); err == nil {
		rates = append(rates, r)
	}
	if r, err := fetchBitstampTicker(ctx, "usdtusd"); err == nil {
		rates = append(rates, r)
	}

	if len(rates) == 0 {
		return 1.0
	}
	return median(rates)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
