package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"course-billing/internal/domain"
	"course-billing/internal/domain/model"
	"course-billing/internal/domain/ports/adapter"
	"course-billing/internal/domain/ports/repository"
)

// ProviderStatusUnavailable marks a failed best-effort live lookup. Clients
// get this marker instead of an error so the ledger view still renders.
const ProviderStatusUnavailable = "unavailable"

// StatusReport blends ledger state with a best-effort provider snapshot.
type StatusReport struct {
	PaymentID          string
	Status             model.PaymentStatus
	Amount             int64
	Currency           string
	ProviderStatus     string // provider payment status, or "unavailable"
	SessionStatus      string
	RegistrationID     *string
	RegistrationStatus *model.RegistrationStatus
}

// RegistrationCheck answers whether the customer already paid for and/or
// holds a registration, so clients returning from checkout can decide
// idempotently whether to re-initiate.
type RegistrationCheck struct {
	Paid       bool
	Registered bool
}

// Compile-time check
var _ StatusUseCase = (*statusUC)(nil)

type StatusUseCase interface {
	GetStatus(ctx context.Context, paymentID string) (*StatusReport, error)
	CheckRegistration(ctx context.Context, customerID, codeID string) (*RegistrationCheck, error)
}

type statusUC struct {
	payments      repository.PaymentRepository
	registrations repository.RegistrationRepository
	gateway       adapter.CheckoutGateway
	log           *zerolog.Logger
}

func NewStatusUseCase(
	payments repository.PaymentRepository,
	registrations repository.RegistrationRepository,
	gateway adapter.CheckoutGateway,
	logger *zerolog.Logger,
) *statusUC {
	return &statusUC{payments: payments, registrations: registrations, gateway: gateway, log: logger}
}

// GetStatus exists to compensate for webhook delivery latency: a client
// polling right after the checkout redirect may see the ledger lag the
// provider by a few seconds.
func (u *statusUC) GetStatus(ctx context.Context, paymentID string) (*StatusReport, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		PaymentID:      p.ID,
		Status:         p.Status,
		Amount:         p.Amount,
		Currency:       p.Currency,
		ProviderStatus: ProviderStatusUnavailable,
		RegistrationID: p.RegistrationID,
	}

	if p.TxRef.Kind == model.RefKindSession && !p.TxRef.IsZero() {
		snap, err := u.gateway.RetrieveSession(ctx, p.TxRef.ID)
		if err != nil {
			u.log.Warn().Err(err).Str("payment_id", p.ID).Str("session_id", p.TxRef.ID).
				Msg("live provider lookup failed, reporting ledger state only")
		} else {
			report.ProviderStatus = snap.PaymentStatus
			report.SessionStatus = snap.SessionStatus
		}
	}

	if p.RegistrationID != nil {
		reg, err := u.registrations.FindByID(ctx, nil, *p.RegistrationID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
		} else {
			report.RegistrationStatus = &reg.Status
		}
	}
	return report, nil
}

func (u *statusUC) CheckRegistration(ctx context.Context, customerID, codeID string) (*RegistrationCheck, error) {
	if customerID == "" || codeID == "" {
		return nil, domain.ErrInvalidArgument
	}

	paid, err := u.payments.HasCompletedByCustomerAndCode(ctx, nil, customerID, codeID)
	if err != nil {
		return nil, err
	}

	registered := false
	if _, err := u.registrations.FindByCustomer(ctx, nil, customerID); err == nil {
		registered = true
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	return &RegistrationCheck{Paid: paid, Registered: registered}, nil
}
