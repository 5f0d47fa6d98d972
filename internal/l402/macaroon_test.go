package l402

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndVerifyRoundTrip(t *testing.T) {
	secret := []byte("test-macaroon-secret")
	preimage := []byte("preimage-bytes-32-long-padded!!")
	hash := sha256.Sum256(preimage)

	macHex, err := Mint(secret, hash[:])
	require.NoError(t, err)
	assert.NotEmpty(t, macHex)

	err = Verify(macHex, hex.EncodeToString(preimage), secret)
	assert.NoError(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	secret := []byte("correct-secret")
	wrongSecret := []byte("wrong-secret")
	preimage := []byte("preimage-bytes-32-long-padded!!")
	hash := sha256.Sum256(preimage)

	macHex, err := Mint(secret, hash[:])
	require.NoError(t, err)

	err = Verify(macHex, hex.EncodeToString(preimage), wrongSecret)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongPreimage(t *testing.T) {
	secret := []byte("test-secret")
	preimage := []byte("preimage-bytes-32-long-padded!!")
	wrongPreimage := []byte("totally-different-preimage-here")
	hash := sha256.Sum256(preimage)

	macHex, err := Mint(secret, hash[:])
	require.NoError(t, err)

	err = Verify(macHex, hex.EncodeToString(wrongPreimage), secret)
	assert.Error(t, err)
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	err := Verify("not-hex!!", "not-hex!!", []byte("secret"))
	assert.Error(t, err)
}
