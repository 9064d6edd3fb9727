package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"course-billing/internal/domain/ports/adapter"
)

// EventKind is the closed set of provider event kinds we branch on.
type EventKind string

const (
	EventCheckoutCompleted EventKind = "checkout_completed"
	EventCheckoutExpired   EventKind = "checkout_expired"
	EventPaymentSucceeded  EventKind = "payment_succeeded"
	EventPaymentFailed     EventKind = "payment_failed"
	EventUnknown           EventKind = "unknown"
)

// SignatureTolerance bounds how old a signed webhook timestamp may be.
const SignatureTolerance = 5 * time.Minute

// VerifyWebhookSignature checks a Stripe-style signature header:
// "t=<unix>,v1=<hex hmac>" where the MAC is HMAC-SHA256 over "<t>.<payload>".
func VerifyWebhookSignature(secret string, payload []byte, header string, now time.Time) bool {
	if header == "" || len(payload) == 0 {
		return false
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts == "" || len(sigs) == 0 {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	stamped := time.Unix(unix, 0)
	if now.Sub(stamped) > SignatureTolerance || stamped.Sub(now) > SignatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
			return true
		}
	}
	return false
}

// SignWebhookPayload produces the signature header for a payload; used by
// tests and local tooling to fabricate valid deliveries.
func SignWebhookPayload(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// WebhookEvent is the normalized view of one provider delivery.
type WebhookEvent struct {
	Kind     EventKind
	RawType  string
	Session  *adapter.SessionSnapshot
	// Metadata echoed from session creation.
	PaymentRef string
	CustomerID string
	CodeID     string
}

type webhookEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseWebhookEvent maps a raw payload into a WebhookEvent. The kind mapping
// is total and never fails: unrecognized types come back as EventUnknown.
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}

	ev := &WebhookEvent{RawType: env.Type, Kind: kindFromType(env.Type)}

	if ev.Kind == EventCheckoutCompleted || ev.Kind == EventCheckoutExpired {
		var sess stripeSession
		if err := json.Unmarshal(env.Data.Object, &sess); err != nil {
			return nil, fmt.Errorf("parse session object: %w", err)
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
		ev.Session = snap
		ev.PaymentRef = sess.Metadata["payment_ref"]
		ev.CustomerID = sess.Metadata["customer_id"]
		ev.CodeID = sess.Metadata["code_id"]
	}
	return ev, nil
}

func kindFromType(t string) EventKind {
	switch t {
	case "checkout.session.completed":
		return EventCheckoutCompleted
	case "checkout.session.expired":
		return EventCheckoutExpired
	case "payment_intent.succeeded":
		return EventPaymentSucceeded
	case "payment_intent.payment_failed":
		return EventPaymentFailed
	default:
		return EventUnknown
	}
}
