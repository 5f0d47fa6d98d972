package l402

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLNDClient(t *testing.T) *LNDClient {
	t.Helper()
	dir := t.TempDir()
	macPath := dir + "/admin.macaroon"
	require.NoError(t, os.WriteFile(macPath, []byte{0x01, 0x02, 0x03}, 0o600))

	client, err := NewLNDClient("https://lnd.example:8080", "", macPath)
	require.NoError(t, err)
	return client
}

func TestRequireL402ChallengesWithoutAuthorization(t *testing.T) {
	lnd := testLNDClient(t)

	httpmock.ActivateNonDefault(lnd.httpClient)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder("POST", "https://lnd.example:8080/v1/invoices",
		httpmock.NewJsonResponderOrPanic(200, map[string]string{
			"payment_request": "lnbc100n1...",
			"r_hash":          "AQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHw==",
		}))

	g := NewGate(lnd, []byte("proxy-secret"))
	route := Route{Path: "/oracle/btcusd", PairRoute: "BTCUSD", PriceSats: 10}

	app := fiber.New()
	app.Get(route.Path, g.RequireL402(route), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	resp, err := app.Test(httptest.NewRequest("GET", route.Path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)
	wwwAuth := resp.Header.Get("WWW-Authenticate")
	assert.Contains(t, wwwAuth, "L402 macaroon=")
	assert.Contains(t, wwwAuth, `invoice="lnbc100n1..."`)
}

func TestRequireL402RejectsMalformedAuthorization(t *testing.T) {
	lnd := testLNDClient(t)
	g := NewGate(lnd, []byte("proxy-secret"))
	route := Route{Path: "/oracle/btcusd", PairRoute: "BTCUSD", PriceSats: 10}

	app := fiber.New()
	app.Get(route.Path, g.RequireL402(route), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", route.Path, nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireL402ForwardsOnValidToken(t *testing.T) {
	lnd := testLNDClient(t)
	secret := []byte("proxy-secret")
	g := NewGate(lnd, secret)
	route := Route{Path: "/oracle/btcusd", PairRoute: "BTCUSD", PriceSats: 10}

	preimage := []byte("0123456789abcdef0123456789abcdef")
	hashArr := sha256.Sum256(preimage)
	hash := hashArr[:]
	macHex, err := Mint(secret, hash)
	require.NoError(t, err)

	app := fiber.New()
	app.Get(route.Path, g.RequireL402(route), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", route.Path, nil)
	req.Header.Set("Authorization", "L402 "+macHex+":"+hex.EncodeToString(preimage))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireL402RejectsBadPreimage(t *testing.T) {
	lnd := testLNDClient(t)
	secret := []byte("proxy-secret")
	g := NewGate(lnd, secret)
	route := Route{Path: "/oracle/btcusd", PairRoute: "BTCUSD", PriceSats: 10}

	preimage := []byte("0123456789abcdef0123456789abcdef")
	hashArr := sha256.Sum256(preimage)
	hash := hashArr[:]
	macHex, err := Mint(secret, hash)
	require.NoError(t, err)

	app := fiber.New()
	app.Get(route.Path, g.RequireL402(route), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", route.Path, nil)
	req.Header.Set("Authorization", "L402 "+macHex+":"+hex.EncodeToString([]byte("wrong-preimage-bytes-entirely!!!")))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
