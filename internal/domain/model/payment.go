package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"    // awaiting provider confirmation
	PaymentStatusProcessing PaymentStatus = "processing" // provider reported an in-flight charge
	PaymentStatusCompleted  PaymentStatus = "completed"  // paid and reconciled
	PaymentStatusFailed     PaymentStatus = "failed"     // provider reported failure
	PaymentStatusRefunded   PaymentStatus = "refunded"   // refunded after completion
)

// RefKind tags which kind of provider object a transaction reference points at.
type RefKind string

const (
	RefKindSession RefKind = "session"
	RefKindIntent  RefKind = "intent"
)

// TransactionRef is an explicit tagged provider reference. Record kind is
// carried alongside the id rather than inferred from id prefixes.
type TransactionRef struct {
	Kind RefKind
	ID   string
}

func SessionRef(id string) TransactionRef { return TransactionRef{Kind: RefKindSession, ID: id} }
func IntentRef(id string) TransactionRef  { return TransactionRef{Kind: RefKindIntent, ID: id} }

func (r TransactionRef) IsZero() bool { return r.ID == "" }

func (r TransactionRef) String() string {
	if r.IsZero() {
		return ""
	}
	return string(r.Kind) + ":" + r.ID
}

// Payment is the ledger entry tracking one payment attempt's lifecycle.
type Payment struct {
	ID            string                 // UUID
	CustomerID    string                 // UUID of the purchasing customer
	CodeID        string                 // UUID of the access code being redeemed
	Provider      string                 // e.g. "stripe"
	Amount        int64                  // minor units, to avoid float errors
	Currency      string                 // ISO code, e.g. "usd"
	TxRef         TransactionRef         // provider session/intent reference
	IntentRef     string                 // provider payment intent id once known
	PaymentMethod string                 // e.g. "card"
	Status        PaymentStatus
	PaidAt        *time.Time             // set when completed
	Meta          map[string]interface{} // extensible details, stored as JSONB
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Link to the registration granted by this payment (set on completion).
	RegistrationID *string
}

// StatusFromProvider folds a provider payment status into a local ledger
// status. The mapping is total: any unrecognized value is treated as pending
// so a later delivery can still move the entry forward.
//
// "no_payment_required" completes the entry just like "paid". This is a
// deliberate policy for zero-amount and fully discounted checkouts.
func StatusFromProvider(providerStatus string) PaymentStatus {
	switch providerStatus {
	case "paid", "no_payment_required":
		return PaymentStatusCompleted
	case "unpaid":
		return PaymentStatusPending
	default:
		return PaymentStatusPending
	}
}

// MergeMeta shallow-merges updates over base: new values win on key collision,
// all other existing keys survive. Neither input map is mutated.
func MergeMeta(base, updates map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(updates))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}
