package dlc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Attestor creates announcements and attestations against one DLC oracle
// key, persisting both through a Store.
type Attestor struct {
	key   *Key
	store *Store
}

// NewAttestor builds an Attestor over the given key and store.
func NewAttestor(key *Key, store *Store) *Attestor {
	return &Attestor{key: key, store: store}
}

// CreateAnnouncement generates NumDigits fresh nonce points for
// (pair, maturity), persisting the secrets with owner-only permissions
// and the public announcement alongside them. Idempotent: if an
// announcement already exists for this event, it is returned unchanged.
func (a *Attestor) CreateAnnouncement(pair, maturity string, now time.Time) (Announcement, error) {
	eventID := EventID(pair, maturity)
	if a.store.AnnouncementExists(eventID) {
		return a.store.LoadAnnouncement(eventID)
	}

	secrets := make([]string, NumDigits)
	points := make([]string, NumDigits)
	for i := 0; i < NumDigits; i++ {
		scalarHex, pointHex, err := generateNonce()
		if err != nil {
			return Announcement{}, err
		}
		secrets[i] = scalarHex
		points[i] = pointHex
	}

	if err := a.store.SaveNonceSecrets(NonceSecrets{EventID: eventID, NonceSecrets: secrets}); err != nil {
		return Announcement{}, err
	}

	ann := Announcement{
		EventID:      eventID,
		Pair:         pair,
		Maturity:     maturity,
		OraclePubkey: a.key.PubkeyHex(),
		NumDigits:    NumDigits,
		RPoints:      points,
		CreatedAt:    now.UTC().Format(tsLayout),
	}
	if err := a.store.SaveAnnouncement(ann); err != nil {
		return Announcement{}, err
	}
	return ann, nil
}

// CreateAttestation digit-decomposes price and publishes a per-digit
// Schnorr-style scalar response for each, using the nonce secrets
// committed by the matching announcement. The nonce-secrets file is
// deleted only after the attestation write succeeds.
func (a *Attestor) CreateAttestation(pair, maturity string, price float64, now time.Time) (Attestation, error) {
	eventID := EventID(pair, maturity)
	if !a.store.NonceSecretsExist(eventID) {
		return Attestation{}, fmt.Errorf("dlc: MISSING_NONCES for %s", eventID)
	}
	secrets, err := a.store.LoadNonceSecrets(eventID)
	if err != nil {
		return Attestation{}, err
	}

	priceInt := int64(price + 0.5)
	priceStr := strconv.FormatInt(priceInt, 10)
	if len(priceStr) > NumDigits {
		return Attestation{}, fmt.Errorf("dlc: PRICE_OUT_OF_RANGE: %d does not fit in %d digits", priceInt, NumDigits)
	}
	priceStr = strings.Repeat("0", NumDigits-len(priceStr)) + priceStr

	digits := make([]int, NumDigits)
	sValues := make([]string, NumDigits)
	for i := 0; i < NumDigits; i++ {
		digit := int(priceStr[i] - '0')
		digits[i] = digit

		kBytes, err := hex.DecodeString(secrets.NonceSecrets[i])
		if err != nil {
			return Attestation{}, fmt.Errorf("dlc: decode nonce secret %d: %w", i, err)
		}
		var k secp256k1.ModNScalar
		k.SetByteSlice(kBytes)

		e := digitChallenge(eventID, i, digit)

		var x secp256k1.ModNScalar
		x.Set(&a.key.priv.Key)

		var s secp256k1.ModNScalar
		s.Set(&e)
		s.Mul(&x)
		s.Add(&k)

		sBytes := s.Bytes()
		sValues[i] = hex.EncodeToString(sBytes[:])
	}

	att := Attestation{
		EventID:      eventID,
		Pair:         pair,
		Maturity:     maturity,
		OraclePubkey: a.key.PubkeyHex(),
		Price:        priceInt,
		PriceDigits:  digits,
		SValues:      sValues,
		AttestedAt:   now.UTC().Format(tsLayout),
	}
	if err := a.store.SaveAttestation(att); err != nil {
		return Attestation{}, err
	}
	if err := a.store.DeleteNonceSecrets(eventID); err != nil {
		return Attestation{}, err
	}
	return att, nil
}

// digitChallenge computes e_i = SHA256("<eventID>/<i>/<digit>") mod n.
func digitChallenge(eventID string, digitIndex, digit int) secp256k1.ModNScalar {
	msg := fmt.Sprintf("%s/%d/%d", eventID, digitIndex, digit)
	h := sha256.Sum256([]byte(msg))
	var e secp256k1.ModNScalar
	e.SetByteSlice(h[:])
	return e
}

// Verify checks every digit response in attestation against the nonce
// points and oracle public key in announcement: s_i*G == R_i + e_i*P.
func Verify(announcement Announcement, attestation Attestation) (bool, error) {
	pubBytes, err := hex.DecodeString(announcement.OraclePubkey)
	if err != nil {
		return false, fmt.Errorf("dlc: decode oracle pubkey: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(pubBytes)
	if err != nil {
		return false, fmt.Errorf("dlc: parse oracle pubkey: %w", err)
	}
	var P secp256k1.JacobianPoint
	pub.AsJacobian(&P)

	for i, digit := range attestation.PriceDigits {
		sBytes, err := hex.DecodeString(attestation.SValues[i])
		if err != nil {
			return false, fmt.Errorf("dlc: decode s-value %d: %w", i, err)
		}
		var s secp256k1.ModNScalar
		if s.SetByteSlice(sBytes) {
			return false, fmt.Errorf("dlc: s-value %d overflows scalar field", i)
		}

		rBytes, err := hex.DecodeString(announcement.RPoints[i])
		if err != nil {
			return false, fmt.Errorf("dlc: decode R-point %d: %w", i, err)
		}
		rPub, err := secp256k1.ParsePubKey(rBytes)
		if err != nil {
			return false, fmt.Errorf("dlc: parse R-point %d: %w", i, err)
		}
		var R secp256k1.JacobianPoint
		rPub.AsJacobian(&R)

		e := digitChallenge(attestation.EventID, i, digit)

		var sG secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(&s, &sG)
		sG.ToAffine()

		var eP secp256k1.JacobianPoint
		secp256k1.ScalarMultNonConst(&e, &P, &eP)

		var rhs secp256k1.JacobianPoint
		secp256k1.AddNonConst(&R, &eP, &rhs)
		rhs.ToAffine()

		if !sG.X.Equals(&rhs.X) || !sG.Y.Equals(&rhs.Y) {
			return false, nil
		}
	}
	return true, nil
}
