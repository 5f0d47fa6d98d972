package x402gate

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FacilitatorClient calls a facilitator's /verify and /settle endpoints,
// authenticating each call with a freshly minted, narrowly scoped JWT.
type FacilitatorClient struct {
	baseURL    string
	keyID      string
	signingKey any // *ecdsa.PrivateKey (ES256) or ed25519.PrivateKey (EdDSA)
	httpClient *http.Client
}

// NewFacilitatorClient builds a client. signingKey must be an
// *ecdsa.PrivateKey or an ed25519.PrivateKey; the signing algorithm is
// chosen from its concrete type.
func NewFacilitatorClient(baseURL, keyID string, signingKey any) *FacilitatorClient {
	return &FacilitatorClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		signingKey: signingKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// cdpClaims is the facilitator auth JWT's claim set: scoped to one exact
// method+path, short-lived, with a random per-call nonce.
type cdpClaims struct {
	jwt.RegisteredClaims
	URI   string `json:"uri"`
	Nonce string `json:"nonce,omitempty"`
}

// mintJWT builds a JWT scoped to "POST api.host/platform/v2/x402/<verb>",
// signed ES256 for an EC key or EdDSA for an Ed25519 key.
func (f *FacilitatorClient) mintJWT(verb string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("x402gate: generate jwt nonce: %w", err)
	}

	now := time.Now()
	claims := cdpClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   f.keyID,
			Issuer:    "cdp",
			Audience:  jwt.ClaimStrings{"cdp_service"},
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(120 * time.Second)),
		},
		URI:   fmt.Sprintf("POST api.host/platform/v2/x402/%s", verb),
		Nonce: hex.EncodeToString(nonce),
	}

	var token *jwt.Token
	switch key := f.signingKey.(type) {
	case *ecdsa.PrivateKey:
		token = jwt.NewWithClaims(jwt.SigningMethodES256, claims)
		return token.SignedString(key)
	case ed25519.PrivateKey:
		token = jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
		return token.SignedString(key)
	default:
		return "", fmt.Errorf("x402gate: unsupported facilitator signing key type %T", f.signingKey)
	}
}

// Verify calls facilitator/verify and reports whether the payment is valid.
func (f *FacilitatorClient) Verify(ctx context.Context, req FacilitatorRequest) (FacilitatorVerifyResponse, error) {
	var out FacilitatorVerifyResponse
	if err := f.call(ctx, "verify", req, &out); err != nil {
		return FacilitatorVerifyResponse{}, err
	}
	return out, nil
}

// Settle calls facilitator/settle and reports whether settlement succeeded.
func (f *FacilitatorClient) Settle(ctx context.Context, req FacilitatorRequest) (FacilitatorSettleResponse, error) {
	var out FacilitatorSettleResponse
	if err := f.call(ctx, "settle", req, &out); err != nil {
		return FacilitatorSettleResponse{}, err
	}
	return out, nil
}

func (f *FacilitatorClient) call(ctx context.Context, verb string, body FacilitatorRequest, out any) error {
	token, err := f.mintJWT(verb)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("x402gate: marshal facilitator request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/"+verb, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("x402gate: build facilitator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("x402gate: facilitator %s unreachable: %w", verb, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("x402gate: facilitator %s returned status %d", verb, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("x402gate: decode facilitator %s response: %w", verb, err)
	}
	return nil
}
