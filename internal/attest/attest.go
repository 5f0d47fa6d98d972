// Package attest composes the fetcher/aggregator and signer packages into
// one operation: given a route, produce a freshly aggregated, canonically
// formatted, and signed price observation.
package attest

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"sho/internal/aggregator"
	"sho/internal/canon"
	"sho/internal/config"
	"sho/internal/fetchers"
	"sho/internal/signer"
)

// Response is the JSON body returned by an attestation endpoint.
type Response struct {
	Domain            string `json:"domain"`
	Canonical         string `json:"canonical"`
	Signature         string `json:"signature"`
	PubkeyHex         string `json:"pubkey"`
	Scheme            string `json:"scheme"`
	Degraded          bool   `json:"degraded,omitempty"`
	StablecoinDropped bool   `json:"stablecoin_dropped,omitempty"`
}

// Service holds the static per-route source tables and the process's
// signing keys, and produces attestations on demand. A Service is safe for
// concurrent use — every call fetches fresh sources, nothing is cached
// across requests.
type Service struct {
	registry *config.Registry
	sources  map[string][]fetchers.Source
	signer   *signer.Signer
}

// NewService builds an attestation Service over a pair registry and a
// loaded signer. Source tables are registered separately via RegisterSources
// since they are Go functions, not YAML-expressible data.
func NewService(registry *config.Registry, sgnr *signer.Signer) *Service {
	return &Service{
		registry: registry,
		sources:  make(map[string][]fetchers.Source),
		signer:   sgnr,
	}
}

// RegisterSources associates a route's static fetcher table with the
// Service. Cross-rate routes (PairSpec.IsCrossRate()) do not need sources;
// they compose two other routes instead.
func (s *Service) RegisterSources(route string, sources []fetchers.Source) {
	s.sources[route] = sources
}

// Attest aggregates the route's current price and signs the resulting
// canonical string with the given scheme.
func (s *Service) Attest(ctx context.Context, route string, scheme signer.Scheme) (Response, error) {
	spec, ok := s.registry.Get(route)
	if !ok {
		return Response{}, fmt.Errorf("attest: unknown route %q", route)
	}

	quote, err := s.aggregateRoute(ctx, route, spec)
	if err != nil {
		return Response{}, fmt.Errorf("attest: %s: %w", route, err)
	}

	canonical := canon.Build(canon.Observation{
		Symbol:    spec.Symbol,
		Price:     quote.Price,
		Quote:     spec.Quote,
		Decimals:  spec.Decimals,
		Timestamp: time.Now().UTC(),
		Nonce:     spec.Nonce,
		Sources:   quote.Sources,
		Method:    string(spec.Method),
	})
	digest := canon.Digest(canonical)

	sig, pubkeyHex, err := s.signer.Sign(digest, scheme)
	if err != nil {
		return Response{}, fmt.Errorf("attest: sign %s: %w", route, err)
	}

	return Response{
		Domain:            spec.Symbol,
		Canonical:         canonical,
		Signature:         base64.StdEncoding.EncodeToString(sig),
		PubkeyHex:         pubkeyHex,
		Scheme:            string(scheme),
		Degraded:          quote.Degraded,
		StablecoinDropped: quote.StablecoinDropped,
	}, nil
}

// aggregateRoute runs the route's own fetchers, or — for a cross-rate pair
// — recursively aggregates its two legs and divides them.
func (s *Service) aggregateRoute(ctx context.Context, route string, spec config.PairSpec) (aggregator.Quote, error) {
	if spec.IsCrossRate() {
		return aggregator.ComposeCross(ctx, spec, func(ctx context.Context, legRoute string) (aggregator.Quote, error) {
			legSpec, ok := s.registry.Get(legRoute)
			if !ok {
				return aggregator.Quote{}, fmt.Errorf("attest: cross leg %q not registered", legRoute)
			}
			return s.aggregateRoute(ctx, legRoute, legSpec)
		})
	}

	sources, ok := s.sources[route]
	if !ok {
		return aggregator.Quote{}, fmt.Errorf("attest: no source table registered for route %q", route)
	}
	return aggregator.Aggregate(ctx, sources, spec)
}
