package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"course-billing/internal/domain"
	"course-billing/internal/domain/ports/adapter"
)

const defaultStripeBaseURL = "https://api.stripe.com/v1"

// StripeCheckoutGateway implements CheckoutGateway against the Stripe
// Checkout Sessions API using direct HTTP calls. It is injected where needed
// rather than held in a package-level singleton, so tests can substitute a
// double behind the port.
type StripeCheckoutGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewStripeCheckoutGateway creates a gateway. baseURL may be empty for the
// live API; tests point it at an httptest server.
func NewStripeCheckoutGateway(secretKey, baseURL string, client *http.Client) *StripeCheckoutGateway {
	if baseURL == "" {
		baseURL = defaultStripeBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &StripeCheckoutGateway{
		secretKey: secretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    client,
	}
}

func (g *StripeCheckoutGateway) Name() string { return "stripe" }

// stripeSession is the subset of the Checkout Session object we consume.
type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
	Customer      string `json:"customer"`
	PaymentIntent string `json:"payment_intent"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	Metadata           map[string]string `json:"metadata"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession opens a hosted checkout session. Input is validated before
// any network call; the adapter performs no local writes.
func (g *StripeCheckoutGateway) CreateSession(ctx context.Context, in adapter.CreateSessionInput) (string, string, error) {
	if in.Amount <= 0 {
		return "", "", domain.ErrInvalidAmount
	}
	if in.PaymentRef == "" {
		return "", "", domain.ErrMissingReference
	}
	if in.Customer.ID == "" {
		return "", "", domain.ErrMissingCustomer
	}
	if in.Code.ID == "" {
		return "", "", domain.ErrMissingCode
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", in.SuccessURL)
	form.Set("cancel_url", in.CancelURL)
	form.Set("client_reference_id", in.PaymentRef)
	if in.Customer.Email != "" {
		form.Set("customer_email", in.Customer.Email)
	}
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", in.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(in.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", in.Code.Title)
	form.Set("metadata[payment_ref]", in.PaymentRef)
	form.Set("metadata[customer_id]", in.Customer.ID)
	form.Set("metadata[code_id]", in.Code.ID)

	var sess stripeSession
	if err := g.do(ctx, http.MethodPost, "/checkout/sessions", form, &sess); err != nil {
		return "", "", err
	}
	return sess.ID, sess.URL, nil
}

// RetrieveSession fetches the authoritative snapshot for a session. Callers
// decide retry policy; there is none here.
func (g *StripeCheckoutGateway) RetrieveSession(ctx context.Context, sessionID string) (*adapter.SessionSnapshot, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionNotFound
	}

	var sess stripeSession
	if err := g.do(ctx, http.MethodGet, "/checkout/sessions/"+url.PathEscape(sessionID), nil, &sess); err != nil {
		return nil, err
	}

	snap := &adapter.SessionSnapshot{
		ID:               sess.ID,
		PaymentStatus:    sess.PaymentStatus,
		SessionStatus:    sess.Status,
		AmountTotal:      sess.AmountTotal,
		Currency:         sess.Currency,
		CustomerRef:      sess.Customer,
		PaymentIntentRef: sess.PaymentIntent,
		Metadata:         sess.Metadata,
	}
	if len(sess.PaymentMethodTypes) > 0 {
		snap.PaymentMethodKind = sess.PaymentMethodTypes[0]
	}
	return snap, nil
}

func (g *StripeCheckoutGateway) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrSessionNotFound
	}
	if resp.StatusCode >= 400 {
		var se stripeError
		if json.Unmarshal(raw, &se) == nil && se.Error.Code == "resource_missing" {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, se.Error.Message)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v, body: %s", domain.ErrProviderUnavailable, err, string(raw))
	}
	return nil
}
