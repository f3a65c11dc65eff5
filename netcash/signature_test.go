package netcash

import "testing"

func TestSignatureRoundTrip(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"eventId":"evt-1","transactionReference":"TOK/M001","status":"APPROVED"}`)

	sig := ComputeSignature(secret, body)
	if len(sig) != 64 {
		t.Fatalf("hex HMAC-SHA256 must be 64 chars, got %d", len(sig))
	}
	if !VerifySignature(secret, body, sig) {
		t.Fatal("signature must verify against the body it was computed over")
	}
}

func TestVerifySignature_Rejections(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"eventId":"evt-1","status":"APPROVED"}`)
	sig := ComputeSignature(secret, body)

	tests := []struct {
		name      string
		body      []byte
		signature string
	}{
		{"tampered body keeps original signature", []byte(`{"eventId":"evt-1","status":"DECLINED"}`), sig},
		{"wrong secret", body, ComputeSignature("other-secret", body)},
		{"empty signature", body, ""},
		{"garbage signature", body, "not-a-signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if VerifySignature(secret, tt.body, tt.signature) {
				t.Error("signature must be rejected")
			}
		})
	}
}

func TestComputeSignature_Deterministic(t *testing.T) {
	body := []byte("payload")
	if ComputeSignature("s", body) != ComputeSignature("s", body) {
		t.Fatal("same secret and body must produce the same signature")
	}
	if ComputeSignature("s", body) == ComputeSignature("t", body) {
		t.Fatal("different secrets must produce different signatures")
	}
}
