package l402

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// invoiceTimeout bounds the LND REST call for creating an invoice.
const invoiceTimeout = 10 * time.Second

// LNDClient creates Lightning invoices against an LND node's REST API,
// authenticating with the node's admin macaroon (distinct from the
// proxy's own bearer macaroons minted in macaroon.go).
type LNDClient struct {
	host        string
	macaroonHex string
	httpClient  *http.Client
}

// NewLNDClient loads the admin macaroon from macaroonPath and, if
// tlsCertPath is set, pins the client to that certificate.
func NewLNDClient(host, tlsCertPath, macaroonPath string) (*LNDClient, error) {
	macBytes, err := os.ReadFile(macaroonPath)
	if err != nil {
		return nil, fmt.Errorf("l402: read LND macaroon: %w", err)
	}

	client := &http.Client{Timeout: invoiceTimeout}
	if tlsCertPath != "" {
		certPEM, err := os.ReadFile(tlsCertPath)
		if err != nil {
			return nil, fmt.Errorf("l402: read LND TLS cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(certPEM) {
			return nil, fmt.Errorf("l402: no certificates found in %s", tlsCertPath)
		}
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		}
	}

	return &LNDClient{
		host:        strings.TrimRight(host, "/"),
		macaroonHex: hex.EncodeToString(macBytes),
		httpClient:  client,
	}, nil
}

type createInvoiceRequest struct {
	Value string `json:"value"`
	Memo  string `json:"memo"`
}

type createInvoiceResponse struct {
	PaymentRequest string `json:"payment_request"`
	RHash          string `json:"r_hash"` // base64
}

// CreateInvoice mints a Lightning invoice for amountSats and returns the
// BOLT11 payment request string and the raw payment hash.
func (c *LNDClient) CreateInvoice(ctx context.Context, amountSats int64, memo string) (paymentRequest string, paymentHash []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, invoiceTimeout)
	defer cancel()

	body, err := json.Marshal(createInvoiceRequest{Value: strconv.FormatInt(amountSats, 10), Memo: memo})
	if err != nil {
		return "", nil, fmt.Errorf("l402: marshal invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/v1/invoices", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("l402: build invoice request: %w", err)
	}
	req.Header.Set("Grpc-Metadata-macaroon", c.macaroonHex)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("l402: LND invoice request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("l402: LND returned status %d creating invoice", resp.StatusCode)
	}

	var out createInvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, fmt.Errorf("l402: decode LND invoice response: %w", err)
	}

	hash, err := base64.StdEncoding.DecodeString(out.RHash)
	if err != nil {
		return "", nil, fmt.Errorf("l402: decode payment hash: %w", err)
	}

	return out.PaymentRequest, hash, nil
}
