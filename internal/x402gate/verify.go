package x402gate

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ParsePaymentHeader decodes the base64 X-PAYMENT header into a PaymentPayload.
func ParsePaymentHeader(header string) (PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return PaymentPayload{}, fmt.Errorf("x402gate: invalid X-PAYMENT encoding: %w", err)
	}
	var payload PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return PaymentPayload{}, fmt.Errorf("x402gate: invalid X-PAYMENT payload: %w", err)
	}
	return payload, nil
}

// VerifyEIP3009Signature recovers the signer of an EIP-3009
// TransferWithAuthorization and checks it matches the claimed payer. This
// is a defense-in-depth check the proxy performs before ever calling the
// facilitator; the facilitator remains the authority on whether the
// authorization can actually settle on chain.
func VerifyEIP3009Signature(chainID int64, tokenAddress string, auth EIP3009Authorization, signatureHex string, expectedPayer string) error {
	value := new(big.Int)
	if _, ok := value.SetString(auth.Value, 10); !ok {
		return fmt.Errorf("x402gate: invalid authorization value %q", auth.Value)
	}
	validAfter := new(big.Int)
	if _, ok := validAfter.SetString(auth.ValidAfter, 10); !ok {
		return fmt.Errorf("x402gate: invalid validAfter %q", auth.ValidAfter)
	}
	validBefore := new(big.Int)
	if _, ok := validBefore.SetString(auth.ValidBefore, 10); !ok {
		return fmt.Errorf("x402gate: invalid validBefore %q", auth.ValidBefore)
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              "USD Coin",
			Version:           "2",
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: tokenAddress,
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       (*math.HexOrDecimal256)(value),
			"validAfter":  (*math.HexOrDecimal256)(validAfter),
			"validBefore": (*math.HexOrDecimal256)(validBefore),
			"nonce":       auth.Nonce,
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return fmt.Errorf("x402gate: hash typed data: %w", err)
	}

	sigBytes := hexutil.MustDecode(signatureHex)
	if len(sigBytes) != 65 {
		return fmt.Errorf("x402gate: signature must be 65 bytes, got %d", len(sigBytes))
	}
	sig := make([]byte, 65)
	copy(sig, sigBytes)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	recoveredPub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return fmt.Errorf("x402gate: recover signer: %w", err)
	}
	recovered := crypto.PubkeyToAddress(*recoveredPub)
	expected := common.HexToAddress(expectedPayer)
	if recovered != expected {
		return fmt.Errorf("x402gate: signature mismatch: recovered %s, expected %s", recovered.Hex(), expected.Hex())
	}
	return nil
}
