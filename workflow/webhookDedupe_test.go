package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/debitorders_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate the intended
// webhook-intake semantics:
// - at-least-once delivery converges: the same event applied twice leaves the
//   transaction in the same state with side effects applied once
// - redeliveries without an event id deduplicate on the body hash
//
// Full DB integration tests should be added in an environment that can run
// MySQL.

type fakeIngestor struct {
	mu sync.Mutex

	seen        map[string]bool
	status      models.TransactionStatus
	retryCount  int
	arrears     int
	escalations int
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{
		seen:   map[string]bool{},
		status: models.TransactionStatusProcessing,
	}
}

// ingest mirrors processWebhook + UpdateTransactionStatus: dedupe on the
// message id, then apply the forward-only state machine with one-shot side
// effects.
func (f *fakeIngestor) ingest(eventId string, body []byte, externalStatus string) {
	messageId := eventId
	if messageId == "" {
		sum := sha256.Sum256(body)
		messageId = hex.EncodeToString(sum[:])
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[messageId] {
		return
	}
	f.seen[messageId] = true

	newStatus := models.MapProcessorStatus(externalStatus)
	if newStatus == f.status || newStatus == models.TransactionStatusPending {
		return
	}
	if !models.AllowedTransition(f.status, newStatus) {
		return
	}
	f.status = newStatus
	if newStatus == models.TransactionStatusFailed {
		f.arrears++
		if f.retryCount >= models.MaxRetryCount {
			f.escalations++
		}
	}
}

func TestDuplicateWebhookDelivery_SideEffectsOnce(t *testing.T) {
	f := newFakeIngestor()
	body := []byte(`{"eventId":"evt-1","status":"DECLINED"}`)

	for i := 0; i < 5; i++ {
		f.ingest("evt-1", body, "DECLINED")
	}

	if f.status != models.TransactionStatusFailed {
		t.Fatalf("status = %s, want failed", f.status)
	}
	if f.arrears != 1 {
		t.Fatalf("arrears adjusted %d times, want exactly once", f.arrears)
	}
}

func TestDuplicateWebhookDelivery_NoEventId_DedupesOnBodyHash(t *testing.T) {
	f := newFakeIngestor()
	body := []byte(`{"transactionReference":"TOK/M001","status":"APPROVED"}`)

	f.ingest("", body, "APPROVED")
	f.ingest("", body, "APPROVED")

	if f.status != models.TransactionStatusSuccessful {
		t.Fatalf("status = %s, want successful", f.status)
	}
	if len(f.seen) != 1 {
		t.Fatalf("expected a single dedupe key, got %d", len(f.seen))
	}
}

func TestConcurrentDuplicateDelivery_Converges(t *testing.T) {
	f := newFakeIngestor()
	body := []byte(`{"eventId":"evt-9","status":"APPROVED"}`)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.ingest("evt-9", body, "APPROVED")
		}()
	}
	wg.Wait()

	if f.status != models.TransactionStatusSuccessful {
		t.Fatalf("status = %s, want successful", f.status)
	}
}

func TestLateContradictoryWebhook_IsRejected(t *testing.T) {
	f := newFakeIngestor()

	f.ingest("evt-1", []byte("a"), "APPROVED")
	// A different event claiming failure after settlement must not move the
	// state backward.
	f.ingest("evt-2", []byte("b"), "DECLINED")

	if f.status != models.TransactionStatusSuccessful {
		t.Fatalf("status = %s, want successful (late DECLINED ignored)", f.status)
	}
	if f.arrears != 0 {
		t.Fatal("rejected transition must not adjust arrears")
	}
}

func TestUnknownStatusToken_NeverMovesState(t *testing.T) {
	f := newFakeIngestor()
	f.ingest("evt-1", []byte("a"), "SETTLEMENT_WINDOW_OPEN")
	if f.status != models.TransactionStatusProcessing {
		t.Fatalf("status = %s, want processing untouched", f.status)
	}
}
