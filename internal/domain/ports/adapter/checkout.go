package adapter

import "context"

// CustomerInfo identifies the purchasing customer to the provider.
type CustomerInfo struct {
	ID    string
	Email string
	Name  string
}

// CodeInfo names the access code / cohort being purchased.
type CodeInfo struct {
	ID    string
	Title string
}

// CreateSessionInput carries everything needed to open a hosted checkout.
type CreateSessionInput struct {
	Amount     int64
	Currency   string
	PaymentRef string // our ledger entry id, echoed back in webhook metadata
	Customer   CustomerInfo
	Code       CodeInfo
	SuccessURL string
	CancelURL  string
}

// SessionSnapshot is a normalized view of the provider's authoritative state
// for one checkout session.
type SessionSnapshot struct {
	ID                string
	PaymentStatus     string // paid | unpaid | no_payment_required
	SessionStatus     string // open | complete | expired
	AmountTotal       int64
	Currency          string
	CustomerRef       string
	PaymentIntentRef  string
	PaymentMethodKind string
	Metadata          map[string]string
}

// CheckoutGateway is the hex port for the external payment provider. It is an
// injected capability: no package-level singleton, so tests substitute a
// double. The adapter performs no local writes and no retries; callers decide
// retry policy.
type CheckoutGateway interface {
	Name() string

	// CreateSession opens a hosted checkout session and returns its id plus
	// the URL to redirect the customer to.
	CreateSession(ctx context.Context, in CreateSessionInput) (sessionID, payURL string, err error)
	// RetrieveSession fetches the authoritative snapshot for a session.
	RetrieveSession(ctx context.Context, sessionID string) (*SessionSnapshot, error)
}
