package signer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KeyGuard wraps signing-key material at rest. A nil KeyGuard means keys
// are stored in plaintext hex on disk with owner-only permissions — the
// fallback when KMS_KEY_ID is not configured.
type KeyGuard interface {
	Encrypt(plaintext []byte) (ciphertext []byte, err error)
	Decrypt(ciphertext []byte) (plaintext []byte, err error)
}

// KMSGuard envelope-encrypts key material through an AWS KMS key.
type KMSGuard struct {
	client *kms.Client
	keyID  string
}

// NewKMSGuard builds a KeyGuard backed by the given KMS key ARN/alias.
// Returns nil, nil if both region and keyID are empty (KMS disabled). If
// only one is set, that's a misconfiguration, not an implicit disable, so
// it returns an error instead of silently handing back a nil *KMSGuard a
// caller might wrap in a non-nil KeyGuard interface.
func NewKMSGuard(ctx context.Context, region, keyID string) (*KMSGuard, error) {
	if region == "" && keyID == "" {
		return nil, nil
	}
	if region == "" || keyID == "" {
		return nil, fmt.Errorf("signer: KMS_REGION and KMS_KEY_ID must both be set or both be empty")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("signer: load aws config: %w", err)
	}
	return &KMSGuard{client: kms.NewFromConfig(cfg), keyID: keyID}, nil
}

func (g *KMSGuard) Encrypt(plaintext []byte) ([]byte, error) {
	out, err := g.client.Encrypt(context.Background(), &kms.EncryptInput{
		KeyId:     aws.String(g.keyID),
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("kms encrypt: %w", err)
	}
	return out.CiphertextBlob, nil
}

func (g *KMSGuard) Decrypt(ciphertext []byte) ([]byte, error) {
	out, err := g.client.Decrypt(context.Background(), &kms.DecryptInput{
		KeyId:          aws.String(g.keyID),
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("kms decrypt: %w", err)
	}
	return out.Plaintext, nil
}
