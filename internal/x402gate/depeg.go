package x402gate

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DepegThreshold is the default maximum tolerated |rate - 1| before the
// breaker trips.
const DepegThreshold = 0.02

// depegCacheTTL is how long an evaluated peg rate is trusted before the
// breaker re-samples the exchanges.
const depegCacheTTL = 60 * time.Second

// depegTimeout bounds each exchange sample.
const depegTimeout = 5 * time.Second

// RateFetchFunc fetches one exchange's USDC/USD rate.
type RateFetchFunc func(ctx context.Context) (float64, error)

// DepegBreaker evaluates the USDC/USD peg from up to five exchange
// sources and trips when the median deviates from 1.0 by more than a
// threshold. A trip is fail-closed; an inconclusive read (fewer than two
// samples) leaves the previous state unchanged (fail-safe to current
// setting).
type DepegBreaker struct {
	sources   []RateFetchFunc
	threshold float64

	mu       sync.Mutex
	active   bool
	rate     float64
	checked  time.Time
}

// NewDepegBreaker builds a breaker over the given exchange rate sources.
func NewDepegBreaker(threshold float64, sources ...RateFetchFunc) *DepegBreaker {
	return &DepegBreaker{sources: sources, threshold: threshold}
}

// Evaluate returns the breaker's current state, re-sampling the exchanges
// if the cached reading is stale.
func (b *DepegBreaker) Evaluate(ctx context.Context) (active bool, rate float64) {
	b.mu.Lock()
	stale := time.Since(b.checked) >= depegCacheTTL
	cachedActive, cachedRate := b.active, b.rate
	b.mu.Unlock()

	if !stale {
		return cachedActive, cachedRate
	}

	samples := b.sample(ctx)
	if len(samples) < 2 {
		// Inconclusive: keep whatever state we had.
		return cachedActive, cachedRate
	}

	median := medianOf(samples)
	deviation := median - 1.0
	if deviation < 0 {
		deviation = -deviation
	}
	active = deviation > b.threshold

	b.mu.Lock()
	b.active = active
	b.rate = median
	b.checked = time.Now()
	b.mu.Unlock()

	return active, median
}

func (b *DepegBreaker) sample(ctx context.Context) []float64 {
	ctx, cancel := context.WithTimeout(ctx, depegTimeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		samples []float64
	)
	for _, fetch := range b.sources {
		wg.Add(1)
		go func(fetch RateFetchFunc) {
			defer wg.Done()
			rate, err := fetch(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			samples = append(samples, rate)
			mu.Unlock()
		}(fetch)
	}
	wg.Wait()
	return samples
}

func medianOf(values []float64) float64 {
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
