// Package canon builds and parses the oracle's canonical observation
// string, the stable byte sequence that is hashed and signed.
package canon

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Version is the canonical-string format version prefix.
const Version = "v1"

// Observation is the set of fields that make up one canonical string.
type Observation struct {
	Symbol    string
	Price     float64
	Quote     string
	Decimals  int
	Timestamp time.Time
	Nonce     string
	Sources   []string
	Method    string
}

// Build formats an Observation into the pipe-delimited canonical string:
//
//	v1|<SYMBOL>|<price>|<QUOTE>|<decimals>|<timestamp>|<nonce>|<sources-csv>|<method>
//
// Sources are deduplicated and sorted lexicographically so the string is
// reproducible regardless of fetcher completion order.
func Build(o Observation) string {
	sources := dedupSorted(o.Sources)
	priceStr := fmt.Sprintf("%.*f", o.Decimals, o.Price)
	ts := o.Timestamp.UTC().Format("2006-01-02T15:04:05Z")

	return strings.Join([]string{
		Version,
		o.Symbol,
		priceStr,
		o.Quote,
		fmt.Sprintf("%d", o.Decimals),
		ts,
		o.Nonce,
		strings.Join(sources, ","),
		o.Method,
	}, "|")
}

// Parse splits a canonical string back into its fields. Returns an error
// if the string does not have exactly nine pipe-delimited fields or the
// version prefix does not match.
func Parse(s string) (Observation, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 9 {
		return Observation{}, fmt.Errorf("canon: expected 9 fields, got %d", len(parts))
	}
	if parts[0] != Version {
		return Observation{}, fmt.Errorf("canon: unsupported version %q", parts[0])
	}

	var price float64
	if _, err := fmt.Sscanf(parts[2], "%f", &price); err != nil {
		return Observation{}, fmt.Errorf("canon: invalid price %q: %w", parts[2], err)
	}
	var decimals int
	if _, err := fmt.Sscanf(parts[4], "%d", &decimals); err != nil {
		return Observation{}, fmt.Errorf("canon: invalid decimals %q: %w", parts[4], err)
	}
	ts, err := time.Parse("2006-01-02T15:04:05Z", parts[5])
	if err != nil {
		return Observation{}, fmt.Errorf("canon: invalid timestamp %q: %w", parts[5], err)
	}

	var sources []string
	if parts[7] != "" {
		sources = strings.Split(parts[7], ",")
	}

	return Observation{
		Symbol:    parts[1],
		Price:     price,
		Quote:     parts[3],
		Decimals:  decimals,
		Timestamp: ts,
		Nonce:     parts[6],
		Sources:   sources,
		Method:    parts[8],
	}, nil
}

// Digest returns the SHA-256 digest of the canonical string — the only
// input to every signature in this system.
func Digest(canonical string) [32]byte {
	return sha256.Sum256([]byte(canonical))
}

func dedupSorted(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
