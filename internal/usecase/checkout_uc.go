package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"course-billing/internal/domain"
	"course-billing/internal/domain/model"
	"course-billing/internal/domain/ports/adapter"
	"course-billing/internal/domain/ports/repository"
	"course-billing/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// InitiateInput describes a checkout request from the client.
type InitiateInput struct {
	CustomerID    string
	CustomerEmail string
	CustomerName  string
	CodeID        string
	Amount        int64
	Currency      string
}

type CheckoutUseCase interface {
	// Initiate opens a provider checkout session, persists a pending ledger
	// entry carrying the session reference, and returns the redirect URL.
	Initiate(ctx context.Context, in InitiateInput) (*model.Payment, string, error)
}

type checkoutUC struct {
	payments   repository.PaymentRepository
	codes      repository.AccessCodeRepository
	gateway    adapter.CheckoutGateway
	successURL string
	cancelURL  string
	log        *zerolog.Logger
}

func NewCheckoutUseCase(
	payments repository.PaymentRepository,
	codes repository.AccessCodeRepository,
	gateway adapter.CheckoutGateway,
	successURL, cancelURL string,
	logger *zerolog.Logger,
) *checkoutUC {
	return &checkoutUC{
		payments:   payments,
		codes:      codes,
		gateway:    gateway,
		successURL: successURL,
		cancelURL:  cancelURL,
		log:        logger,
	}
}

func (u *checkoutUC) Initiate(ctx context.Context, in InitiateInput) (*model.Payment, string, error) {
	if in.CustomerID == "" {
		return nil, "", domain.ErrMissingCustomer
	}
	if in.CodeID == "" {
		return nil, "", domain.ErrMissingCode
	}
	if in.Amount <= 0 {
		return nil, "", domain.ErrInvalidAmount
	}

	code, err := u.codes.FindByID(ctx, nil, in.CodeID)
	if err != nil {
		return nil, "", err
	}
	// Refuse to start checkout against a code that can no longer be
	// redeemed; the hard guarantee still lives in the reconcile transaction.
	if err := code.ValidateForRedemption(time.Now()); err != nil {
		return nil, "", err
	}

	paymentID := uuid.NewString()
	sessionID, payURL, err := u.gateway.CreateSession(ctx, adapter.CreateSessionInput{
		Amount:     in.Amount,
		Currency:   in.Currency,
		PaymentRef: paymentID,
		Customer: adapter.CustomerInfo{
			ID:    in.CustomerID,
			Email: in.CustomerEmail,
			Name:  in.CustomerName,
		},
		Code: adapter.CodeInfo{
			ID:    code.ID,
			Title: code.Title,
		},
		SuccessURL: u.successURL,
		CancelURL:  u.cancelURL,
	})
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	p := &model.Payment{
		ID:         paymentID,
		CustomerID: in.CustomerID,
		CodeID:     in.CodeID,
		Provider:   u.gateway.Name(),
		Amount:     in.Amount,
		Currency:   in.Currency,
		TxRef:      model.SessionRef(sessionID),
		Status:     model.PaymentStatusPending,
		Meta: map[string]interface{}{
			"session_id": sessionID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.payments.Save(ctx, nil, p); err != nil {
		return nil, "", err
	}

	u.log.Info().Str("payment_id", p.ID).Str("session_id", sessionID).
		Str("customer_id", in.CustomerID).Int64("amount", in.Amount).
		Msg("checkout initiated")
	metrics.IncPayment(string(model.PaymentStatusPending))
	return p, payURL, nil
}
