package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"sho/internal/canon"
	"sho/internal/signer"
)

// oracleResponse mirrors attest.Response without importing the server's
// attest package, keeping the client a standalone consumer of the wire
// format rather than a dependent of the oracle's internals.
type oracleResponse struct {
	Domain    string `json:"domain"`
	Canonical string `json:"canonical"`
	Signature string `json:"signature"`
	PubkeyHex string `json:"pubkey"`
	Scheme    string `json:"scheme"`
}

type quorumRequest struct {
	route           string
	urls            []string
	minQuorum       int
	maxDeviationPct float64
	scheme          string
	timeoutSeconds  int
}

// verifiedResponse is one oracle's response after signature verification.
type verifiedResponse struct {
	URL             string
	Price           float64
	SignatureValid  bool
	Valid           bool // signature valid AND within deviation tolerance
	RejectReason    string
	oracleResponse  oracleResponse
}

type quorumResult struct {
	Route       string
	Responses   []verifiedResponse
	ValidCount  int
	TotalCount  int
	MedianPrice medianPrice
}

// medianPrice wraps a float so String() can format it without dragging in
// a decimal library for a CLI report.
type medianPrice float64

func (m medianPrice) String() string { return strconv.FormatFloat(float64(m), 'f', -1, 64) }

// fetchQuorum queries every configured oracle URL concurrently, verifies
// each response's signature, checks price coherence against the median,
// and fails the whole batch if fewer than minQuorum responses are valid.
func fetchQuorum(ctx context.Context, req quorumRequest) (*quorumResult, error) {
	client := &http.Client{Timeout: time.Duration(req.timeoutSeconds) * time.Second}

	type fetched struct {
		url  string
		resp oracleResponse
		err  error
	}
	results := make(chan fetched, len(req.urls))
	for _, u := range req.urls {
		u := u
		go func() {
			resp, err := fetchOne(ctx, client, u, req.route)
			results <- fetched{url: u, resp: resp, err: err}
		}()
	}

	var raw []fetched
	for range req.urls {
		raw = append(raw, <-results)
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].url < raw[j].url })

	verified := make([]verifiedResponse, 0, len(raw))
	var prices []float64
	for _, r := range raw {
		vr := verifiedResponse{URL: r.url}
		if r.err != nil {
			vr.RejectReason = r.err.Error()
			verified = append(verified, vr)
			continue
		}
		vr.oracleResponse = r.resp

		obs, err := canon.Parse(r.resp.Canonical)
		if err != nil {
			vr.RejectReason = fmt.Sprintf("malformed canonical string: %v", err)
			verified = append(verified, vr)
			continue
		}
		vr.Price = obs.Price

		sig, err := base64.StdEncoding.DecodeString(r.resp.Signature)
		if err != nil {
			vr.RejectReason = fmt.Sprintf("malformed signature encoding: %v", err)
			verified = append(verified, vr)
			continue
		}

		if r.resp.Scheme != req.scheme {
			vr.RejectReason = fmt.Sprintf("unexpected signature scheme %q, expected %q", r.resp.Scheme, req.scheme)
			verified = append(verified, vr)
			continue
		}

		scheme := signer.Scheme(r.resp.Scheme)
		digest := canon.Digest(r.resp.Canonical)
		ok, err := signer.Verify(digest, sig, r.resp.PubkeyHex, scheme)
		if err != nil || !ok {
			vr.RejectReason = "signature verification failed"
			verified = append(verified, vr)
			continue
		}
		vr.SignatureValid = true
		prices = append(prices, obs.Price)
		verified = append(verified, vr)
	}

	med := median(prices)
	validCount := 0
	for i := range verified {
		if !verified[i].SignatureValid {
			continue
		}
		deviation := percentDeviation(verified[i].Price, med)
		if deviation > req.maxDeviationPct {
			verified[i].RejectReason = fmt.Sprintf("price deviates %.3f%% from median, exceeds %.3f%% tolerance", deviation, req.maxDeviationPct)
			continue
		}
		verified[i].Valid = true
		validCount++
	}

	if validCount < req.minQuorum {
		return nil, fmt.Errorf("quorum not met: %d/%d valid responses, need at least %d", validCount, len(verified), req.minQuorum)
	}

	return &quorumResult{
		Route:       req.route,
		Responses:   verified,
		ValidCount:  validCount,
		TotalCount:  len(verified),
		MedianPrice: medianPrice(med),
	}, nil
}

func fetchOne(ctx context.Context, client *http.Client, baseURL, route string) (oracleResponse, error) {
	url := baseURL + "/oracle/" + route
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return oracleResponse{}, err
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return oracleResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oracleResponse{}, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var out oracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return oracleResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func percentDeviation(price, median float64) float64 {
	if median == 0 {
		return 0
	}
	diff := price - median
	if diff < 0 {
		diff = -diff
	}
	return (diff / median) * 100
}
