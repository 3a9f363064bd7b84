package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mochiquin/safehome/pkg/apperr"
	"github.com/mochiquin/safehome/pkg/utils"
)

// Session is the gateway's view of a checkout session. PaymentStatus is
// "unpaid" until the customer completes checkout, then "paid".
type Session struct {
	ID                 string            `json:"id"`
	URL                string            `json:"url"`
	PaymentStatus      string            `json:"payment_status"`
	PaymentIntent      string            `json:"payment_intent"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	AmountTotal        int64             `json:"amount_total"`
	Currency           string            `json:"currency"`
	Metadata           map[string]string `json:"metadata"`
}

// Paid reports whether the gateway considers the session settled.
func (s *Session) Paid() bool {
	return s.PaymentStatus == "paid"
}

// CheckoutParams describes the session to create. AmountCents is the
// charge in the currency's minor unit. BookingID and UserID travel as
// session metadata so reconciliation can correlate without walking
// unrelated indexes.
type CheckoutParams struct {
	AmountCents int64
	Currency    string
	Description string
	BookingID   string
	UserID      string
	SuccessURL  string
	CancelURL   string
}

// Client is the outbound gateway surface the reconciliation engine
// depends on. Implemented by StripeClient; faked in tests.
type Client interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}

// StripeClient talks to a Stripe-compatible checkout-sessions API over
// HTTP. Every call is bounded by the configured timeout; a timeout or
// connection failure surfaces as apperr.ErrGatewayUnavailable, never as
// a silent success.
type StripeClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
	log       *zap.Logger
}

func NewStripeClient(cfg utils.StripeConfig, log *zap.Logger) *StripeClient {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		http:      &http.Client{Timeout: timeout},
		log:       log.With(zap.String("gateway", "stripe")),
	}
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(params.Currency))
	form.Set("line_items[0][price_data][product_data][name]", "SafeHome Service Booking")
	form.Set("line_items[0][price_data][product_data][description]", params.Description)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountCents, 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("metadata[booking_id]", params.BookingID)
	form.Set("metadata[user_id]", params.UserID)

	var session Session
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (c *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("Gateway request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("gateway %s %s: %w", method, path, apperr.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read gateway response: %w", apperr.ErrGatewayUnavailable)
	}

	if resp.StatusCode >= 500 {
		c.log.Warn("Gateway server error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("gateway returned %d: %w", resp.StatusCode, apperr.ErrGatewayUnavailable)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway rejected request (%d): %s", resp.StatusCode, gatewayErrorMessage(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}

	return nil
}

func gatewayErrorMessage(raw []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error.Message == "" {
		return "unknown gateway error"
	}
	return payload.Error.Message
}
