package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sho/internal/usdc"
)

// PairMethod is the aggregation method for a pair.
type PairMethod string

const (
	MethodMedian PairMethod = "median"
	MethodVWAP   PairMethod = "vwap"
)

// PairSpec is the immutable, on-disk configuration for one trading pair.
// A pair with CrossFrom/CrossVia set composes two underlying pairs instead
// of running its own fetchers (e.g. BTCEUR from BTCUSD / EURUSD).
type PairSpec struct {
	Symbol     string     `yaml:"symbol"`
	Quote      string     `yaml:"quote"`
	Decimals   int        `yaml:"decimals"`
	Method     PairMethod `yaml:"method"`
	Nonce      string     `yaml:"nonce"`
	Sources    []string   `yaml:"sources"`
	MinQuorum  int        `yaml:"min_quorum"`
	MinQuorumDegraded int `yaml:"min_quorum_degraded"`
	SatsPrice  int64      `yaml:"sats_price"`
	USDCPrice  float64    `yaml:"usdc_price"` // human-readable, e.g. 0.001

	// Cross-rate composition: Symbol = CrossFrom / CrossVia (e.g. BTCEUR = BTCUSD / EURUSD).
	CrossFrom string `yaml:"cross_from"`
	CrossVia  string `yaml:"cross_via"`
}

// IsCrossRate reports whether this pair is composed from two other pairs.
func (p PairSpec) IsCrossRate() bool {
	return p.CrossFrom != "" && p.CrossVia != ""
}

// USDCPriceMicro returns the pair's x402 price in MicroUSDC.
func (p PairSpec) USDCPriceMicro() usdc.MicroUSDC {
	return usdc.FromFloat(p.USDCPrice)
}

// Registry is the static, loaded-once table of all configured pairs, keyed
// by the route path suffix (e.g. "btcusd", "btcusd/vwap").
type Registry struct {
	Pairs map[string]PairSpec
}

// LoadRegistry reads the pair registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read pair registry %s: %w", path, err)
	}

	var raw struct {
		Pairs []struct {
			Route string `yaml:"route"`
			PairSpec `yaml:",inline"`
		} `yaml:"pairs"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse pair registry %s: %w", path, err)
	}

	reg := &Registry{Pairs: make(map[string]PairSpec, len(raw.Pairs))}
	for _, p := range raw.Pairs {
		if p.Route == "" {
			return nil, fmt.Errorf("config: pair registry entry for %s missing route", p.Symbol)
		}
		reg.Pairs[p.Route] = p.PairSpec
	}
	return reg, nil
}

// Get returns the pair spec for a route, or false if unconfigured.
func (r *Registry) Get(route string) (PairSpec, bool) {
	p, ok := r.Pairs[route]
	return p, ok
}

// Routes returns all configured route paths.
func (r *Registry) Routes() []string {
	routes := make([]string, 0, len(r.Pairs))
	for route := range r.Pairs {
		routes = append(routes, route)
	}
	return routes
}
