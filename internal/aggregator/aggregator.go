// Package aggregator reduces a pair's raw source samples to one quorum-gated
// price: it normalizes stablecoin-denominated samples against a USDT/USD
// reference rate, runs a divergence circuit breaker between the spot median
// and the stablecoin-normalized median, and requires a minimum number of
// surviving sources before it will produce a price at all.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"sho/internal/config"
	"sho/internal/fetchers"
)

// Divergence thresholds: a spot aggregation tolerates tighter drift between
// its quote-native and stablecoin-normalized legs than a VWAP aggregation,
// which already smooths over a trading window.
const (
	SpotDivergence = 0.005
	VWAPDivergence = 0.01
)

// ErrInsufficientSources is returned when fewer sources survive fetching and
// divergence filtering than the pair's configured minimum quorum.
var ErrInsufficientSources = errors.New("aggregator: insufficient sources for quorum")

// Quote is one aggregation round's result.
type Quote struct {
	Price            float64
	Sources          []string
	Degraded         bool // quorum met only at the degraded (lower) threshold
	StablecoinDropped bool
}

// Aggregate fetches every source concurrently, normalizes any USDT-denominated
// samples against the live USDT/USD rate, applies the divergence breaker
// between the quote-native and stablecoin legs, and returns the quorum-gated
// median (or mean, for an even-sized surviving set).
func Aggregate(ctx context.Context, sources []fetchers.Source, spec config.PairSpec) (Quote, error) {
	samples := fetchAll(ctx, sources)

	var quoteSamples, usdtSamples []fetchers.Sample
	for _, s := range samples {
		switch s.Denom {
		case fetchers.DenomUSDT:
			usdtSamples = append(usdtSamples, s)
		default:
			quoteSamples = append(quoteSamples, s)
		}
	}

	threshold := SpotDivergence
	if spec.Method == config.MethodVWAP {
		threshold = VWAPDivergence
	}

	stablecoinDropped := false
	normalized := append([]fetchers.Sample{}, quoteSamples...)
	if len(usdtSamples) > 0 {
		rate := fetchers.USDTRate(ctx)
		usdtNormalized := make([]fetchers.Sample, len(usdtSamples))
		for i, s := range usdtSamples {
			usdtNormalized[i] = fetchers.Sample{Source: s.Source, Price: s.Price * rate, Denom: fetchers.DenomQuote}
		}

		if len(quoteSamples) > 0 && len(usdtNormalized) >= 2 {
			spotMedian := median(prices(quoteSamples))
			usdtMedian := median(prices(usdtNormalized))
			if spotMedian > 0 && divergence(spotMedian, usdtMedian) > threshold {
				stablecoinDropped = true
			}
		}
		if !stablecoinDropped {
			normalized = append(normalized, usdtNormalized...)
		}
	}

	quorum := spec.MinQuorum
	degraded := false
	if len(normalized) < quorum {
		if spec.MinQuorumDegraded > 0 && len(normalized) >= spec.MinQuorumDegraded {
			degraded = true
		} else {
			return Quote{}, fmt.Errorf("%w: got %d, need %d", ErrInsufficientSources, len(normalized), quorum)
		}
	}

	names := make([]string, len(normalized))
	for i, s := range normalized {
		names[i] = s.Source
	}
	sort.Strings(names)

	price := median(prices(normalized))
	decimalsScale := pow10(spec.Decimals)
	price = roundTo(price, decimalsScale)

	return Quote{
		Price:             price,
		Sources:           names,
		Degraded:          degraded,
		StablecoinDropped: stablecoinDropped,
	}, nil
}

func fetchAll(ctx context.Context, sources []fetchers.Source) []fetchers.Sample {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		samples []fetchers.Sample
	)
	for _, src := range sources {
		wg.Add(1)
		go func(src fetchers.Source) {
			defer wg.Done()
			price, err := src.Fetch(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			samples = append(samples, fetchers.Sample{Source: src.Name, Price: price, Denom: src.Denom})
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	return samples
}

func prices(samples []fetchers.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Price
	}
	return out
}

// median returns the middle value of a sorted copy of values, or the mean of
// the two middle values when len(values) is even.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func divergence(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	d := (b - a) / a
	if d < 0 {
		d = -d
	}
	return d
}

func pow10(n int) float64 {
	scale := 1.0
	for i := 0; i < n; i++ {
		scale *= 10
	}
	return scale
}

func roundTo(v, scale float64) float64 {
	if scale <= 0 {
		return v
	}
	shifted := v * scale
	floor := float64(int64(shifted))
	if shifted-floor >= 0.5 {
		floor++
	}
	return floor / scale
}
