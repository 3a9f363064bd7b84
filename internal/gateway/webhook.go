package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mochiquin/safehome/pkg/apperr"
)

// Event types the reconciliation engine reacts to. Everything else is
// acknowledged and ignored.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// DefaultTolerance bounds how old a webhook timestamp may be before the
// signature is rejected, limiting replay of captured deliveries.
const DefaultTolerance = 5 * time.Minute

// Event is a verified gateway notification. Session is populated for
// the event types the engine handles; other types carry only ID and
// Type.
type Event struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Session Session `json:"-"`
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// WebhookVerifier checks the signature header the gateway attaches to
// each delivery: "t=<unix>,v1=<hex hmac>" where the MAC covers
// "<t>.<payload>" under the shared webhook secret.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{
		secret:    secret,
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
}

// VerifyAndParse authenticates the payload before any of it is trusted.
// An unverifiable signature fails with apperr.ErrInvalidSignature and the
// payload is never parsed; a verified but undecodable payload fails with
// apperr.ErrMalformedPayload.
func (v *WebhookVerifier) VerifyAndParse(payload []byte, sigHeader string) (*Event, error) {
	if err := v.verify(payload, sigHeader); err != nil {
		return nil, err
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode event: %w", apperr.ErrMalformedPayload)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("event type missing: %w", apperr.ErrMalformedPayload)
	}

	event := &Event{ID: envelope.ID, Type: envelope.Type}

	switch envelope.Type {
	case EventCheckoutCompleted, EventPaymentFailed:
		if len(envelope.Data.Object) == 0 {
			return nil, fmt.Errorf("event object missing: %w", apperr.ErrMalformedPayload)
		}
		if err := json.Unmarshal(envelope.Data.Object, &event.Session); err != nil {
			return nil, fmt.Errorf("decode event object: %w", apperr.ErrMalformedPayload)
		}
	}

	return event, nil
}

func (v *WebhookVerifier) verify(payload []byte, sigHeader string) error {
	if sigHeader == "" {
		return fmt.Errorf("missing signature header: %w", apperr.ErrInvalidSignature)
	}

	var timestamp int64
	var signatures [][]byte

	for _, part := range strings.Split(sigHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("bad signature timestamp: %w", apperr.ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return fmt.Errorf("incomplete signature header: %w", apperr.ErrInvalidSignature)
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("signature timestamp outside tolerance: %w", apperr.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}

	return fmt.Errorf("no matching signature: %w", apperr.ErrInvalidSignature)
}

// SignPayload produces a header accepted by VerifyAndParse. Used by
// tests and local tooling to fabricate deliveries.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
