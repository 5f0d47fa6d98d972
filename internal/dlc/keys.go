package dlc

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"sho/internal/signer"
)

// Key holds the DLC sub-oracle's own secp256k1 key pair, independent of
// the attestation signer's secp256k1 key: the two serve different
// cryptographic roles and rotate on different schedules.
type Key struct {
	priv *secp256k1.PrivateKey
	pub  []byte // compressed, 33 bytes
}

// LoadKey loads (or creates, on first use) the DLC oracle key from path,
// optionally through a KeyGuard for KMS envelope encryption.
func LoadKey(path string, guard signer.KeyGuard) (*Key, error) {
	raw, err := signer.LoadRawKey(path, 32, guard)
	if err != nil {
		return nil, fmt.Errorf("dlc: load oracle key: %w", err)
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	return &Key{priv: priv, pub: priv.PubKey().SerializeCompressed()}, nil
}

// PubkeyHex returns the compressed oracle public key, hex-encoded — the
// value embedded in every announcement.
func (k *Key) PubkeyHex() string {
	return hex.EncodeToString(k.pub)
}

// generateNonce produces a fresh secret scalar and its curve point,
// returned as (scalar-hex, compressed-point-hex).
func generateNonce() (scalarHex, pointHex string, err error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return "", "", fmt.Errorf("dlc: generate nonce: %w", err)
	}
	scalarBytes := priv.Serialize()
	return hex.EncodeToString(scalarBytes), hex.EncodeToString(priv.PubKey().SerializeCompressed()), nil
}
