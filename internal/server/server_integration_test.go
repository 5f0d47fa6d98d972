package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"sho/internal/config"
	"sho/internal/dlc"
	"sho/internal/fetchers"
	"sho/internal/signer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource returns a Source that always reports price, for deterministic
// aggregation without hitting a real exchange API.
func fakeSource(name string, price float64) fetchers.Source {
	return fetchers.Source{
		Name:  name,
		Denom: fetchers.DenomQuote,
		Fetch: func(ctx context.Context) (float64, error) { return price, nil },
	}
}

// testServer builds a fully wired Server against a throwaway temp
// environment: generated signing keys, an empty DLC store, and a stub LND
// REST endpoint for invoice creation. x402 is left unconfigured (no
// wallets), which makes the x402 gate a pass-through, exercising the
// payment-gated route without needing a real facilitator.
func testServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	lnd := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"payment_request":"lnbc1...", "r_hash":"%s"}`, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	}))
	t.Cleanup(lnd.Close)

	macaroonPath := filepath.Join(dir, "admin.macaroon")
	require.NoError(t, os.WriteFile(macaroonPath, []byte{0x01, 0x02, 0x03}, 0o600))

	cfg := &config.Config{
		Environment: config.EnvTest,
		Server: config.ServerConfig{
			Port:     "0",
			L402Port: "0",
			X402Port: "0",
		},
		Signer: config.SignerConfig{
			Secp256k1KeyPath: filepath.Join(dir, "secp256k1.key"),
			Ed25519KeyPath:   filepath.Join(dir, "ed25519.key"),
		},
		Lightning: config.LightningConfig{
			RESTHost:       lnd.URL,
			MacaroonPath:   macaroonPath,
			MacaroonSecret: "test-macaroon-secret",
		},
		X402: config.X402Config{
			FacilitatorURL: "https://example.invalid/facilitator",
			DepegThreshold: 0.02,
		},
		DLC: config.DLCConfig{
			DataDir: filepath.Join(dir, "dlc"),
			Pair:    "BTCUSD",
		},
		RateLimit: config.RateLimitConfig{
			Enabled:       false,
			WindowSeconds: 60,
			MaxRequests:   1000,
		},
	}

	registry := &config.Registry{Pairs: map[string]config.PairSpec{
		"btcusd": {
			Symbol:    "BTCUSD",
			Quote:     "USD",
			Decimals:  2,
			Method:    config.MethodMedian,
			Nonce:     "1",
			MinQuorum: 1,
			SatsPrice: 10,
			USDCPrice: 0.001,
		},
	}}

	sgnr, err := signer.Load(cfg.Signer.Secp256k1KeyPath, cfg.Signer.Ed25519KeyPath, nil)
	require.NoError(t, err)

	dlcStore, err := dlc.NewStore(cfg.DLC.DataDir)
	require.NoError(t, err)

	sources := map[string][]fetchers.Source{
		"btcusd": {fakeSource("fixture", 68000)},
	}

	srv, err := New(cfg, registry, sgnr, sources, dlcStore, nil)
	require.NoError(t, err)
	return srv
}

func TestServerPlainAppHealth(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := srv.plainApp.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerPlainAppOracleStatus(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/oracle/status", nil)
	resp, err := srv.plainApp.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "pairs")
}

func TestServerPlainAppDLCStatusUnattested(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/dlc/oracle/status", nil)
	resp, err := srv.plainApp.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["current_attested"])
	assert.Equal(t, false, body["current_announced"])
}

func TestServerPlainAppDLCAnnouncementNotFound(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/dlc/oracle/announcements/nonexistent", nil)
	resp, err := srv.plainApp.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerL402AppChallengesWithoutAuth(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/oracle/btcusd", nil)
	resp, err := srv.l402App.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "L402")
}

func TestServerX402AppServesAttestationWithoutWallet(t *testing.T) {
	srv := testServer(t)

	// No X402 wallet is configured, so HasPayments() is false and the gate
	// is a pass-through, which exercises handleAttest on the x402 listener.
	req := httptest.NewRequest("GET", "/oracle/btcusd", nil)
	resp, err := srv.x402App.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "BTCUSD", body["domain"])
	assert.Equal(t, "ed25519", body["scheme"])
}

func TestServerX402AppInfo(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/sho/info", nil)
	resp, err := srv.x402App.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerX402AppEnforcementStatus(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/sho/enforcement/0xabc", nil)
	resp, err := srv.x402App.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "0xabc", body["address"])
}
