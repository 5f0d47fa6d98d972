// Package dlc implements the Discreet Log Contract sub-oracle: per-digit
// Schnorr-style nonce commitments announced ahead of time, and per-digit
// scalar attestations published once a price is known. It maintains its
// own secp256k1 key, independent of the attestation signer in
// internal/signer.
package dlc

// NumDigits is the number of decimal digits the oracle commits to and
// attests per event; prices that don't fit are rejected.
const NumDigits = 5

// Announcement pre-commits nonce points for a future event. Immutable and
// idempotent by EventID once created.
type Announcement struct {
	EventID      string   `json:"event_id"`
	Pair         string   `json:"pair"`
	Maturity     string   `json:"maturity"`
	OraclePubkey string   `json:"oracle_pubkey"`
	NumDigits    int      `json:"num_digits"`
	RPoints      []string `json:"r_points"` // compressed secp256k1 points, hex
	CreatedAt    string   `json:"created_at"`
}

// NonceSecrets holds the per-digit scalar nonces matching an
// Announcement's RPoints. Deleted the instant its attestation is
// published — retaining it afterward would leak the oracle private key.
type NonceSecrets struct {
	EventID      string   `json:"event_id"`
	NonceSecrets []string `json:"nonce_secrets"` // 32-byte scalars, hex
}

// Attestation is the published per-digit response to an Announcement.
// Immutable once written.
type Attestation struct {
	EventID      string   `json:"event_id"`
	Pair         string   `json:"pair"`
	Maturity     string   `json:"maturity"`
	OraclePubkey string   `json:"oracle_pubkey"`
	Price        int64    `json:"price"`
	PriceDigits  []int    `json:"price_digits"`
	SValues      []string `json:"s_values"` // 32-byte scalars, hex
	AttestedAt   string   `json:"attested_at"`
}
