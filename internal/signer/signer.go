// Package signer owns the oracle's two persistent signing keys — one
// secp256k1 key for the L402 path, one Ed25519 key for the x402 path —
// and signs canonical-string digests with each. Keys are loaded once at
// startup and are logically read-only thereafter; callers never see the
// private scalar.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Scheme identifies which signing key backs an attestation.
type Scheme string

const (
	SchemeSecp256k1 Scheme = "secp256k1"
	SchemeEd25519   Scheme = "ed25519"
)

// keyFilePerm is the owner-only permission required for persisted key material.
const keyFilePerm = 0o600

// Signer holds both oracle signing keys, loaded once at process start.
type Signer struct {
	secp    *secp256k1.PrivateKey
	secpPub []byte // compressed, 33 bytes

	ed25519Priv ed25519.PrivateKey
	ed25519Pub  []byte // raw, 32 bytes
}

// Load loads (or creates, on first use) both persistent keys from disk,
// optionally decrypting/encrypting them through the supplied KeyGuard.
func Load(secp256k1Path, ed25519Path string, guard KeyGuard) (*Signer, error) {
	secpBytes, err := loadOrCreateKey(secp256k1Path, 32, guard)
	if err != nil {
		return nil, fmt.Errorf("signer: secp256k1 key: %w", err)
	}
	secpKey := secp256k1.PrivKeyFromBytes(secpBytes)

	edBytes, err := loadOrCreateKey(ed25519Path, ed25519.SeedSize, guard)
	if err != nil {
		return nil, fmt.Errorf("signer: ed25519 key: %w", err)
	}
	edPriv := ed25519.NewKeyFromSeed(edBytes)

	return &Signer{
		secp:        secpKey,
		secpPub:     secpKey.PubKey().SerializeCompressed(),
		ed25519Priv: edPriv,
		ed25519Pub:  edPriv.Public().(ed25519.PublicKey),
	}, nil
}

// Secp256k1PubKeyHex returns the compressed secp256k1 public key, hex-encoded.
func (s *Signer) Secp256k1PubKeyHex() string {
	return hex.EncodeToString(s.secpPub)
}

// Ed25519PubKeyHex returns the raw Ed25519 public key, hex-encoded.
func (s *Signer) Ed25519PubKeyHex() string {
	return hex.EncodeToString(s.ed25519Pub)
}

// Sign signs a 32-byte canonical digest with the requested scheme and
// returns (signature-bytes, pubkey-hex). Both schemes sign the digest
// directly, never the canonical string itself — this is required for
// wire compatibility between the two signer backends (see the x402 path
// below, which is non-standard for Ed25519 but intentional).
func (s *Signer) Sign(digest [32]byte, scheme Scheme) (signature []byte, pubkeyHex string, err error) {
	switch scheme {
	case SchemeSecp256k1:
		sig := ecdsa.Sign(s.secp, digest[:])
		return sig.Serialize(), s.Secp256k1PubKeyHex(), nil
	case SchemeEd25519:
		// Ed25519 normally signs the message directly; here it signs the
		// SHA-256 digest of the canonical string for parity with the
		// secp256k1 path and wire compatibility with existing verifiers.
		sig := ed25519.Sign(s.ed25519Priv, digest[:])
		return sig, s.Ed25519PubKeyHex(), nil
	default:
		return nil, "", fmt.Errorf("signer: unknown scheme %q", scheme)
	}
}

// Verify checks a signature produced by Sign against a digest and a
// hex-encoded public key of the matching scheme.
func Verify(digest [32]byte, signature []byte, pubkeyHex string, scheme Scheme) (bool, error) {
	pubBytes, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return false, fmt.Errorf("signer: invalid pubkey hex: %w", err)
	}

	switch scheme {
	case SchemeSecp256k1:
		pub, err := secp256k1.ParsePubKey(pubBytes)
		if err != nil {
			return false, fmt.Errorf("signer: invalid secp256k1 pubkey: %w", err)
		}
		sig, err := ecdsa.ParseDERSignature(signature)
		if err != nil {
			return false, fmt.Errorf("signer: invalid signature: %w", err)
		}
		return sig.Verify(digest[:], pub), nil
	case SchemeEd25519:
		if len(pubBytes) != ed25519.PublicKeySize {
			return false, fmt.Errorf("signer: ed25519 pubkey must be %d bytes", ed25519.PublicKeySize)
		}
		return ed25519.Verify(ed25519.PublicKey(pubBytes), digest[:], signature), nil
	default:
		return false, fmt.Errorf("signer: unknown scheme %q", scheme)
	}
}

// LoadRawKey loads (or creates) a raw key file of the given byte length,
// the same persistence scheme Load uses for the oracle's own keys. It is
// exported so other packages needing their own KMS-guarded, file-backed
// key material (e.g. the DLC subsystem's independent secp256k1 key) don't
// duplicate the read/decrypt/generate/persist logic.
func LoadRawKey(path string, length int, guard KeyGuard) ([]byte, error) {
	return loadOrCreateKey(path, length, guard)
}

// loadOrCreateKey reads an existing hex-encoded key file, or generates and
// persists a new one of the given byte length. The guard, if non-nil,
// decrypts on read and encrypts on write (AWS KMS envelope encryption).
func loadOrCreateKey(path string, length int, guard KeyGuard) ([]byte, error) {
	if raw, err := os.ReadFile(path); err == nil {
		decoded, err := hex.DecodeString(trimNewline(raw))
		if err != nil {
			return nil, fmt.Errorf("decode key file %s: %w", path, err)
		}
		if guard != nil {
			decoded, err = guard.Decrypt(decoded)
			if err != nil {
				return nil, fmt.Errorf("decrypt key file %s: %w", path, err)
			}
		}
		if len(decoded) != length {
			return nil, fmt.Errorf("key file %s: expected %d bytes, got %d", path, length, len(decoded))
		}
		return decoded, nil
	}

	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	toPersist := raw
	if guard != nil {
		encrypted, err := guard.Encrypt(raw)
		if err != nil {
			return nil, fmt.Errorf("encrypt key for %s: %w", path, err)
		}
		toPersist = encrypted
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir for key file %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(toPersist)), keyFilePerm); err != nil {
		return nil, fmt.Errorf("write key file %s: %w", path, err)
	}
	return raw, nil
}

func trimNewline(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
