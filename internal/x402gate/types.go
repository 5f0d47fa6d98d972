// Package x402gate implements the x402 HTTP 402 payment-gated proxy: the
// state machine NO_PAYMENT -> CHALLENGED -> VERIFIED -> SETTLED -> FORWARDED,
// tiered per-payer enforcement, and the USDC depeg circuit breaker.
package x402gate

// EIP3009Authorization is the authorization struct signed by the payer for
// transferWithAuthorization, carried inside PaymentPayload.Payload.
type EIP3009Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// PaymentRequirements describes one way to pay for a route. A 402 response
// carries one PaymentRequirements per accepted chain (EVM and Solana) in its
// `accepts` array, per the dual-chain wallet support.
type PaymentRequirements struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"` // CAIP-2, e.g. "eip155:8453" or "solana:..."
	Asset             string            `json:"asset"` // token contract / mint address
	MaxAmountRequired string            `json:"maxAmountRequired"` // atomic units, decimal string
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// PaymentRequiredBody is the JSON body of a 402 response.
type PaymentRequiredBody struct {
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Error       string                `json:"error,omitempty"`
}

// PaymentPayload is the decoded content of the X-PAYMENT header.
type PaymentPayload struct {
	X402Version int            `json:"x402Version"`
	Scheme      string         `json:"scheme"`
	Network     string         `json:"network"`
	Payload     map[string]any `json:"payload"`
}

// FacilitatorRequest is the body POSTed to facilitator /verify and /settle.
type FacilitatorRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// FacilitatorVerifyResponse is the facilitator's response to /verify.
type FacilitatorVerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// FacilitatorSettleResponse is the facilitator's response to /settle.
type FacilitatorSettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	TxHash      string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
}
