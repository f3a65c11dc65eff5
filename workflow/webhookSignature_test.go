package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/debitorders_backend/netcash"
	"bitbucket.org/mmdatafocus/debitorders_backend/utils"
)

// The same guard runs at ingest and at replay, so a tampered event stays
// rejected no matter which door it comes through.
func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"eventId":"evt-1","transactionReference":"TOK/M001","status":"APPROVED"}`)
	signed := netcash.ComputeSignature(secret, body)

	if err := verifyWebhookSignature(secret, body, signed); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	// Signing is optional on the processor side; an unsigned delivery is
	// accepted and goes on to processing.
	if err := verifyWebhookSignature(secret, body, ""); err != nil {
		t.Fatalf("unsigned delivery must be accepted, got %v", err)
	}

	tampered := []byte(`{"eventId":"evt-1","transactionReference":"TOK/M001","status":"DECLINED"}`)
	if err := verifyWebhookSignature(secret, tampered, signed); !errors.Is(err, utils.ErrInvalidSignature) {
		t.Fatalf("tampered payload with stale signature: got %v, want ErrInvalidSignature", err)
	}

	if err := verifyWebhookSignature(secret, body, "not-a-signature"); !errors.Is(err, utils.ErrInvalidSignature) {
		t.Fatalf("garbage signature: got %v, want ErrInvalidSignature", err)
	}
}
