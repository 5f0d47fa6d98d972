package x402gate

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"

	"sho/internal/config"
)

func networkToCAIP2(network string) string {
	switch network {
	case "base":
		return "eip155:8453"
	case "base-sepolia":
		return "eip155:84532"
	case "solana":
		return "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	case "solana-devnet":
		return "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
	default:
		return network
	}
}

// chainIDForNetwork maps an x402 network name to its EVM chain ID, 0 for
// non-EVM networks (Solana) since they have no EIP-3009 signature to check.
func chainIDForNetwork(network string) int64 {
	switch network {
	case "base":
		return 8453
	case "base-sepolia":
		return 84532
	default:
		return 0
	}
}

// AuditLog records the lifecycle of a payment attempt for the settlement
// retry worker. A nil AuditLog (the default) disables audit logging
// entirely; the gate still functions, it just keeps no durable record.
type AuditLog interface {
	Reserve(ctx context.Context, rec PendingSettlement) (id string, err error)
	Complete(ctx context.Context, id, facilitatorPaymentID string) error
	Fail(ctx context.Context, id, reason string) error
}

// PendingSettlement is the information recorded when a payment is reserved,
// before the facilitator verify/settle round trip. PayloadJSON carries the
// raw signed PaymentPayload so a retry worker can replay settle without the
// payer resubmitting X-PAYMENT.
type PendingSettlement struct {
	Payer       string
	Route       string
	Network     string
	Asset       string
	PayTo       string
	Amount      string // atomic units, decimal string
	PayloadJSON string
}

// Gate is the x402 payment-gated proxy: it enforces per-payer tiers, checks
// the depeg breaker, and drives each request through
// NO_PAYMENT -> CHALLENGED -> VERIFIED -> SETTLED -> FORWARDED.
type Gate struct {
	cfg         *config.X402Config
	enforcement *Enforcement
	breaker     *DepegBreaker
	facilitator *FacilitatorClient
	audit       AuditLog
}

// NewGate builds a Gate from x402 configuration. The facilitator signing
// key is parsed from cfg.FacilitatorSecret: a "-----BEGIN EC" PEM selects
// ES256, anything else is treated as an Ed25519 seed (32 or 64 bytes hex)
// and uses EdDSA, per the facilitator auth scheme.
func NewGate(cfg *config.X402Config) (*Gate, error) {
	key, err := parseFacilitatorKey(cfg.FacilitatorSecret)
	if err != nil {
		return nil, fmt.Errorf("x402gate: facilitator signing key: %w", err)
	}

	breaker := DefaultDepegBreaker()
	if cfg.DepegThreshold > 0 {
		breaker.threshold = cfg.DepegThreshold
	}

	return &Gate{
		cfg:         cfg,
		enforcement: NewEnforcement(),
		breaker:     breaker,
		facilitator: NewFacilitatorClient(cfg.FacilitatorURL, cfg.FacilitatorKeyID, key),
	}, nil
}

// SetAuditLog attaches an audit log for the settlement retry worker to
// replay against. Optional: a Gate with no audit log still serves requests.
func (g *Gate) SetAuditLog(log AuditLog) {
	g.audit = log
}

// Facilitator returns the gate's facilitator client, so the settlement
// retry worker can replay a failed verify/settle with the same auth.
func (g *Gate) Facilitator() *FacilitatorClient {
	return g.facilitator
}

func parseFacilitatorKey(secret string) (any, error) {
	if secret == "" {
		return ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)), nil
	}
	if strings.HasPrefix(secret, "-----BEGIN EC") {
		block, _ := pem.Decode([]byte(secret))
		if block == nil {
			return (*ecdsa.PrivateKey)(nil), fmt.Errorf("parse EC key: no PEM block found")
		}
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return (*ecdsa.PrivateKey)(nil), fmt.Errorf("parse EC key: %w", err)
		}
		return key, nil
	}
	seed := []byte(secret)
	if len(seed) == 2*ed25519.SeedSize || len(seed) == 2*64 {
		decoded := make([]byte, len(seed)/2)
		if _, err := fmt.Sscanf(secret, "%x", &decoded); err == nil {
			seed = decoded
		}
	}
	if len(seed) > ed25519.SeedSize {
		seed = seed[:ed25519.SeedSize]
	}
	for len(seed) < ed25519.SeedSize {
		seed = append(seed, 0)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// Accepts builds the dual-chain `accepts` array for a 402 challenge at the
// given price, one PaymentRequirements per configured network with a
// funded wallet.
func (g *Gate) Accepts(priceAtomic string) []PaymentRequirements {
	var accepts []PaymentRequirements
	for _, network := range g.cfg.Networks {
		wallet := g.cfg.WalletForNetwork(network)
		if wallet == "" {
			continue
		}
		asset := g.cfg.USDCContractAddress
		extra := map[string]string{"name": "USD Coin", "version": "2", "assetTransferMethod": "eip3009"}
		if strings.HasPrefix(network, "solana") {
			asset = "USDC"
			extra = map[string]string{"assetTransferMethod": "solana-transfer"}
		}
		accepts = append(accepts, PaymentRequirements{
			Scheme:            "exact",
			Network:           networkToCAIP2(network),
			Asset:             asset,
			MaxAmountRequired: priceAtomic,
			PayTo:             wallet,
			MaxTimeoutSeconds: 300,
			Extra:             extra,
		})
	}
	return accepts
}

// RequirePayment returns Fiber middleware that gates the wrapped route
// behind an x402 payment of priceAtomic (USDC atomic units, 6 decimals).
func (g *Gate) RequirePayment(priceAtomic string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !g.cfg.HasPayments() {
			return c.Next()
		}

		if active, rate := g.breaker.Evaluate(c.Context()); active {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "DEPEG_CIRCUIT_OPEN",
				"rate":  rate,
			})
		}

		header := string(c.Request().Header.Peek("X-PAYMENT"))
		if header == "" {
			return g.challenge(c, priceAtomic, "")
		}

		payload, err := ParsePaymentHeader(header)
		if err != nil {
			return g.challenge(c, priceAtomic, "invalid X-PAYMENT header")
		}

		authMap, _ := payload.Payload["authorization"].(map[string]any)
		payer, _ := payload.Payload["from"].(string)
		if payer == "" && authMap != nil {
			payer, _ = authMap["from"].(string)
		}

		if !strings.HasPrefix(payload.Network, "solana") && authMap != nil {
			sig, _ := payload.Payload["signature"].(string)
			auth := EIP3009Authorization{
				From:        strField(authMap, "from"),
				To:          strField(authMap, "to"),
				Value:       strField(authMap, "value"),
				ValidAfter:  strField(authMap, "validAfter"),
				ValidBefore: strField(authMap, "validBefore"),
				Nonce:       strField(authMap, "nonce"),
			}
			if err := VerifyEIP3009Signature(chainIDForNetwork(payload.Network), g.cfg.USDCContractAddress, auth, sig, payer); err != nil {
				if payer != "" {
					g.enforcement.RecordFailure(payer)
				}
				return g.challenge(c, priceAtomic, err.Error())
			}
		}

		if payer != "" {
			tier, remaining := g.enforcement.Check(payer)
			switch tier {
			case TierHardBlock:
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "hard_blocked", "tier": 3})
			case TierCooldown:
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error":             fmt.Sprintf("cooldown_%ds", int(remaining.Seconds())),
					"tier":              1,
					"remaining_seconds": int(remaining.Seconds()),
				})
			}
		}

		req := g.facilitatorRequest(payload, priceAtomic)

		var recordID string
		if g.audit != nil {
			payloadJSON, _ := json.Marshal(payload)
			recordID, err = g.audit.Reserve(c.Context(), PendingSettlement{
				Payer:       payer,
				Route:       c.Path(),
				Network:     req.PaymentRequirements.Network,
				Asset:       req.PaymentRequirements.Asset,
				PayTo:       req.PaymentRequirements.PayTo,
				Amount:      priceAtomic,
				PayloadJSON: string(payloadJSON),
			})
			if err != nil {
				recordID = ""
			}
		}

		verifyResp, err := g.facilitator.Verify(c.Context(), req)
		if err != nil || !verifyResp.IsValid {
			if payer != "" {
				g.enforcement.RecordFailure(payer)
			}
			reason := verifyResp.InvalidReason
			if err != nil {
				reason = err.Error()
			}
			if recordID != "" {
				_ = g.audit.Fail(c.Context(), recordID, reason)
			}
			return g.challenge(c, priceAtomic, reason)
		}

		settleResp, err := g.facilitator.Settle(c.Context(), req)
		if err != nil || !settleResp.Success {
			if payer != "" {
				g.enforcement.RecordFailure(payer)
			}
			reason := settleResp.ErrorReason
			if err != nil {
				reason = err.Error()
			}
			if recordID != "" {
				_ = g.audit.Fail(c.Context(), recordID, reason)
			}
			return g.challenge(c, priceAtomic, reason)
		}

		if recordID != "" {
			_ = g.audit.Complete(c.Context(), recordID, settleResp.TxHash)
		}

		settlement, _ := json.Marshal(settleResp)
		c.Set("X-PAYMENT-RESPONSE", base64.StdEncoding.EncodeToString(settlement))
		return c.Next()
	}
}

// RebuildFacilitatorRequest reconstructs a FacilitatorRequest from a stored
// PendingSettlement, for the retry worker to replay a failed settle call.
func RebuildFacilitatorRequest(rec PendingSettlement) (FacilitatorRequest, error) {
	var payload PaymentPayload
	if err := json.Unmarshal([]byte(rec.PayloadJSON), &payload); err != nil {
		return FacilitatorRequest{}, fmt.Errorf("x402gate: decode stored payment payload: %w", err)
	}
	return FacilitatorRequest{
		X402Version:    1,
		PaymentPayload: payload,
		PaymentRequirements: PaymentRequirements{
			Scheme:            "exact",
			Network:           rec.Network,
			Asset:             rec.Asset,
			MaxAmountRequired: rec.Amount,
			PayTo:             rec.PayTo,
			MaxTimeoutSeconds: 300,
		},
	}, nil
}

func (g *Gate) facilitatorRequest(payload PaymentPayload, priceAtomic string) FacilitatorRequest {
	wallet := g.cfg.WalletForNetwork(payload.Network)
	asset := g.cfg.USDCContractAddress
	if strings.HasPrefix(payload.Network, "solana") {
		asset = "USDC"
	}
	requirements := PaymentRequirements{
		Scheme:            "exact",
		Network:           networkToCAIP2(payload.Network),
		Asset:             asset,
		MaxAmountRequired: priceAtomic,
		PayTo:             wallet,
		MaxTimeoutSeconds: 300,
	}
	return FacilitatorRequest{
		X402Version:         1,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	}
}

func (g *Gate) challenge(c fiber.Ctx, priceAtomic, errMsg string) error {
	accepts := g.Accepts(priceAtomic)
	body := PaymentRequiredBody{X402Version: 1, Accepts: accepts, Error: errMsg}

	encoded, _ := json.Marshal(struct {
		X402Version int                   `json:"x402Version"`
		Accepts     []PaymentRequirements `json:"accepts"`
	}{1, accepts})
	c.Set("PAYMENT-REQUIRED", base64.StdEncoding.EncodeToString(encoded))

	return c.Status(fiber.StatusPaymentRequired).JSON(body)
}

// EnforcementStatus reports the current tier for an address, backing
// GET /sho/enforcement/<address>.
func (g *Gate) EnforcementStatus(address string) (tier int, cooldownRemainingSeconds int) {
	t, remaining := g.enforcement.Check(address)
	return int(t), int(remaining.Seconds())
}

func strField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
