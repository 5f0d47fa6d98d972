package l402

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Gate fronts the attestation endpoints with the L402 challenge/response
// flow: NO_AUTH -> CHALLENGED -> AUTHENTICATED -> FORWARDED, with REJECTED
// reachable from either state on failure. It holds one macaroon secret for
// its process lifetime; rotating it invalidates every outstanding macaroon.
type Gate struct {
	lnd    *LNDClient
	secret []byte
}

// NewGate builds a Gate bound to an LND client and macaroon secret.
func NewGate(lnd *LNDClient, secret []byte) *Gate {
	return &Gate{lnd: lnd, secret: secret}
}

// RequireL402 returns Fiber middleware gating a route behind route.PriceSats.
func (g *Gate) RequireL402(route Route) fiber.Handler {
	return func(c fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return g.challenge(c, route)
		}

		scheme, token, ok := strings.Cut(auth, " ")
		if !ok || (scheme != "L402" && scheme != "LSAT") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		macHex, preimageHex, ok := strings.Cut(token, ":")
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		if err := Verify(macHex, preimageHex, g.secret); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		return c.Next()
	}
}

func (g *Gate) challenge(c fiber.Ctx, route Route) error {
	paymentRequest, paymentHash, err := g.lnd.CreateInvoice(c.Context(), route.PriceSats, fmt.Sprintf("sho %s", route.Path))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("invoice creation failed: %v", err),
		})
	}

	macHex, err := Mint(g.secret, paymentHash)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("invoice creation failed: %v", err),
		})
	}

	c.Set("WWW-Authenticate", fmt.Sprintf(`L402 macaroon="%s", invoice="%s"`, macHex, paymentRequest))
	return c.Status(fiber.StatusPaymentRequired).SendString("Payment Required")
}
