package x402gate

import "sho/internal/fetchers"

// DefaultDepegBreaker builds a breaker over the standard five-exchange
// USDC/USD source table at the spec's default 2% threshold.
func DefaultDepegBreaker() *DepegBreaker {
	sources := fetchers.USDCUSDSources()
	fetches := make([]RateFetchFunc, len(sources))
	for i, s := range sources {
		fetches[i] = RateFetchFunc(s.Fetch)
	}
	return NewDepegBreaker(DepegThreshold, fetches...)
}
