package aggregator

import (
	"context"
	"fmt"
	"sort"

	"sho/internal/config"
)

// Resolver looks up a previously-computed quote for a route, used to compose
// cross-rate pairs without re-running their underlying fetchers.
type Resolver func(ctx context.Context, route string) (Quote, error)

// ComposeCross resolves a cross-rate pair (e.g. BTCEUR = BTCUSD / EURUSD) by
// aggregating its two underlying pairs and dividing. The composed source
// list is the union of both legs', so a verifier can see every upstream
// source that fed the cross rate.
func ComposeCross(ctx context.Context, spec config.PairSpec, resolve Resolver) (Quote, error) {
	if !spec.IsCrossRate() {
		return Quote{}, fmt.Errorf("aggregator: %s is not a cross-rate pair", spec.Symbol)
	}

	from, err := resolve(ctx, spec.CrossFrom)
	if err != nil {
		return Quote{}, fmt.Errorf("aggregator: cross leg %s: %w", spec.CrossFrom, err)
	}
	via, err := resolve(ctx, spec.CrossVia)
	if err != nil {
		return Quote{}, fmt.Errorf("aggregator: cross leg %s: %w", spec.CrossVia, err)
	}
	if via.Price == 0 {
		return Quote{}, fmt.Errorf("aggregator: cross leg %s priced at zero", spec.CrossVia)
	}

	sources := unionSorted(from.Sources, via.Sources)
	price := roundTo(from.Price/via.Price, pow10(spec.Decimals))

	return Quote{
		Price:             price,
		Sources:           sources,
		Degraded:          from.Degraded || via.Degraded,
		StablecoinDropped: from.StablecoinDropped || via.StablecoinDropped,
	}, nil
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}
