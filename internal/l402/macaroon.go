package l402

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"gopkg.in/macaroon.v2"
)

// macaroonLocation is the fixed location field of every bearer macaroon
// this proxy mints; it has no meaning beyond identifying the issuer.
const macaroonLocation = "sho"

// Mint issues a bearer macaroon identified by the hex payment hash and
// authenticated under the proxy's root secret. The macaroon carries no
// caveats: possession plus the matching preimage is the entire credential.
func Mint(secret []byte, paymentHash []byte) (string, error) {
	m, err := macaroon.New(secret, paymentHash, macaroonLocation, macaroon.LatestVersion)
	if err != nil {
		return "", fmt.Errorf("l402: mint macaroon: %w", err)
	}
	raw, err := m.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("l402: serialize macaroon: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Verify checks a presented "<macaroon-hex>:<preimage-hex>" token: the
// macaroon's HMAC must check out under secret, and SHA-256(preimage) must
// equal the macaroon's identifier (the payment hash).
func Verify(macaroonHex, preimageHex string, secret []byte) error {
	raw, err := hex.DecodeString(macaroonHex)
	if err != nil {
		return fmt.Errorf("l402: malformed macaroon hex: %w", err)
	}
	preimage, err := hex.DecodeString(preimageHex)
	if err != nil {
		return fmt.Errorf("l402: malformed preimage hex: %w", err)
	}

	var m macaroon.Macaroon
	if err := m.UnmarshalBinary(raw); err != nil {
		return fmt.Errorf("l402: decode macaroon: %w", err)
	}

	if err := m.Verify(secret, func(string) error { return nil }, nil); err != nil {
		return fmt.Errorf("l402: macaroon signature invalid: %w", err)
	}

	actual := sha256.Sum256(preimage)
	if subtle.ConstantTimeCompare(actual[:], m.Id()) != 1 {
		return fmt.Errorf("l402: preimage does not match payment hash")
	}
	return nil
}
