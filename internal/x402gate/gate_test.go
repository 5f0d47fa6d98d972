package x402gate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sho/internal/config"
)

func testGate(t *testing.T) *Gate {
	t.Helper()
	cfg := &config.X402Config{
		EVMWalletAddress:    "0x1234567890123456789012345678901234567890",
		SolanaWalletAddress: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		FacilitatorURL:      "https://x402.org/facilitator",
		FacilitatorKeyID:    "test-key",
		FacilitatorSecret:   "",
		Networks:            []string{"base", "solana"},
		USDCContractAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		DepegThreshold:      0.02,
	}
	g, err := NewGate(cfg)
	require.NoError(t, err)
	return g
}

func encodeSolanaPayload(t *testing.T, payer string) string {
	t.Helper()
	payload := PaymentPayload{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "solana",
		Payload: map[string]any{
			"from":        payer,
			"transaction": "base64-encoded-tx",
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestRequirePaymentChallengesWithoutHeader(t *testing.T) {
	g := testGate(t)

	app := fiber.New()
	app.Get("/quote", g.RequirePayment("1000"), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/quote", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)

	var body PaymentRequiredBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Accepts, 2)

	byNetwork := map[string]PaymentRequirements{}
	for _, a := range body.Accepts {
		byNetwork[a.Network] = a
	}
	assert.Equal(t, "eip155:8453", byNetwork["eip155:8453"].Network)
	assert.Equal(t, "1000", byNetwork["eip155:8453"].MaxAmountRequired)
	_, hasSolana := byNetwork["solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"]
	assert.True(t, hasSolana)
}

func TestRequirePaymentRejectsMalformedHeader(t *testing.T) {
	g := testGate(t)

	app := fiber.New()
	app.Get("/quote", g.RequirePayment("1000"), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/quote", nil)
	req.Header.Set("X-PAYMENT", "not-valid-base64!!")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)
}

func TestRequirePaymentHardBlocksRepeatOffender(t *testing.T) {
	g := testGate(t)
	payer := "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	for i := 0; i < 10; i++ {
		g.enforcement.RecordFailure(payer)
	}

	app := fiber.New()
	app.Get("/quote", g.RequirePayment("1000"), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/quote", nil)
	req.Header.Set("X-PAYMENT", encodeSolanaPayload(t, payer))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequirePaymentCooldownBlocksWithinGrace(t *testing.T) {
	g := testGate(t)
	payer := "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	g.enforcement.RecordFailure(payer)

	app := fiber.New()
	app.Get("/quote", g.RequirePayment("1000"), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/quote", nil)
	req.Header.Set("X-PAYMENT", encodeSolanaPayload(t, payer))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 1, body["tier"])
}

func TestRequirePaymentVerifiesAndSettlesViaFacilitator(t *testing.T) {
	g := testGate(t)
	payer := "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

	httpmock.ActivateNonDefault(g.facilitator.httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://x402.org/facilitator/verify",
		httpmock.NewJsonResponderOrPanic(200, FacilitatorVerifyResponse{IsValid: true, Payer: payer}))
	httpmock.RegisterResponder("POST", "https://x402.org/facilitator/settle",
		httpmock.NewJsonResponderOrPanic(200, FacilitatorSettleResponse{Success: true, TxHash: "0xabc", Network: "solana"}))

	app := fiber.New()
	app.Get("/quote", g.RequirePayment("1000"), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/quote", nil)
	req.Header.Set("X-PAYMENT", encodeSolanaPayload(t, payer))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-PAYMENT-RESPONSE"))
}

func TestRequirePaymentOpensDepegCircuit(t *testing.T) {
	g := testGate(t)
	depegged := func(ctx context.Context) (float64, error) { return 1.05, nil }
	g.breaker = NewDepegBreaker(DepegThreshold, depegged, depegged)

	app := fiber.New()
	app.Get("/quote", g.RequirePayment("1000"), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/quote", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestEnforcementStatusReportsTier(t *testing.T) {
	g := testGate(t)
	payer := "0xabc"
	tier, remaining := g.EnforcementStatus(payer)
	assert.Equal(t, int(TierAllow), tier)
	assert.Equal(t, 0, remaining)

	g.enforcement.RecordFailure(payer)
	tier, remaining = g.EnforcementStatus(payer)
	assert.Equal(t, int(TierCooldown), tier)
	assert.Greater(t, remaining, 0)
}
