package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/mochiquin/safehome/pkg/apperr"
)

const webhookSecret = "whsec_test"

func testVerifier(at time.Time) *WebhookVerifier {
	v := NewWebhookVerifier(webhookSecret)
	v.now = func() time.Time { return at }
	return v
}

func completedPayload() []byte {
	return []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_test_123",
			"payment_status": "paid",
			"payment_intent": "pi_123",
			"amount_total": 10000,
			"currency": "usd",
			"metadata": {"booking_id": "b-1", "user_id": "u-1"}
		}}
	}`)
}

func TestVerifyAndParseValidEvent(t *testing.T) {
	now := time.Now()
	payload := completedPayload()
	header := SignPayload(payload, webhookSecret, now)

	event, err := testVerifier(now).VerifyAndParse(payload, header)
	if err != nil {
		t.Fatalf("VerifyAndParse: %v", err)
	}

	if event.Type != EventCheckoutCompleted {
		t.Fatalf("type = %q", event.Type)
	}
	if event.Session.ID != "cs_test_123" || !event.Session.Paid() {
		t.Fatalf("session = %+v", event.Session)
	}
	if event.Session.Metadata["booking_id"] != "b-1" {
		t.Fatalf("metadata = %v", event.Session.Metadata)
	}
}

func TestVerifyRejectsBadSignatures(t *testing.T) {
	now := time.Now()
	payload := completedPayload()

	cases := map[string]string{
		"missing header": "",
		"wrong secret":   SignPayload(payload, "whsec_other", now),
		"no timestamp":   "v1=abcdef",
		"no signature":   "t=123456",
		"garbage":        "t=notanumber,v1=zzzz",
	}

	verifier := testVerifier(now)
	for name, header := range cases {
		if _, err := verifier.VerifyAndParse(payload, header); !errors.Is(err, apperr.ErrInvalidSignature) {
			t.Fatalf("%s: got %v, want ErrInvalidSignature", name, err)
		}
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	now := time.Now()
	payload := completedPayload()
	header := SignPayload(payload, webhookSecret, now)

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = 'X'

	if _, err := testVerifier(now).VerifyAndParse(tampered, header); !errors.Is(err, apperr.ErrInvalidSignature) {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	now := time.Now()
	payload := completedPayload()
	header := SignPayload(payload, webhookSecret, now.Add(-10*time.Minute))

	if _, err := testVerifier(now).VerifyAndParse(payload, header); !errors.Is(err, apperr.ErrInvalidSignature) {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsMalformedBody(t *testing.T) {
	now := time.Now()
	verifier := testVerifier(now)

	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{"id":"evt_2"}`),
		[]byte(`{"id":"evt_3","type":"checkout.session.completed","data":{}}`),
	}

	for _, payload := range cases {
		header := SignPayload(payload, webhookSecret, now)
		if _, err := verifier.VerifyAndParse(payload, header); !errors.Is(err, apperr.ErrMalformedPayload) {
			t.Fatalf("%s: got %v, want ErrMalformedPayload", payload, err)
		}
	}
}
