package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-billing/internal/domain"
	"course-billing/internal/domain/model"
	"course-billing/internal/domain/ports/adapter"
	"course-billing/internal/domain/ports/repository"
	"course-billing/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileMeta is the metadata extracted alongside a session snapshot
// (webhook payload metadata, or the ledger entry itself for sweeper runs).
type ReconcileMeta struct {
	CustomerID string
	CodeID     string
	PaymentRef string // our ledger entry id, echoed back by the provider
}

// ReconcileUseCase folds a provider session snapshot into the local ledger
// and, on completion, provisions the registration. Safe to invoke any number
// of times for the same session, sequentially or concurrently.
type ReconcileUseCase interface {
	Reconcile(ctx context.Context, snap *adapter.SessionSnapshot, meta ReconcileMeta) (*model.Payment, error)
}

type reconcileUC struct {
	payments      repository.PaymentRepository
	codes         repository.AccessCodeRepository
	registrations repository.RegistrationRepository
	tm            repository.TransactionManager
	log           *zerolog.Logger
}

func NewReconcileUseCase(
	payments repository.PaymentRepository,
	codes repository.AccessCodeRepository,
	registrations repository.RegistrationRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *reconcileUC {
	return &reconcileUC{payments: payments, codes: codes, registrations: registrations, tm: tm, log: logger}
}

// Reconcile runs the whole attempt inside one transaction scoped to the
// ledger row. Resolving the entry locks it FOR UPDATE, so a concurrent
// delivery for the same session blocks until this attempt commits and then
// observes its registration link.
func (u *reconcileUC) Reconcile(ctx context.Context, snap *adapter.SessionSnapshot, meta ReconcileMeta) (*model.Payment, error) {
	if snap == nil || snap.ID == "" {
		return nil, domain.ErrInvalidArgument
	}

	var out *model.Payment
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.resolve(ctx, tx, snap, meta)
		if err != nil {
			return err
		}

		// Idempotence short-circuit: effects already fully applied.
		if p.Status == model.PaymentStatusCompleted && p.RegistrationID != nil {
			u.log.Debug().Str("payment_id", p.ID).Str("session_id", snap.ID).
				Msg("reconcile: already completed and linked, skipping")
			out = p
			return nil
		}

		status := model.StatusFromProvider(snap.PaymentStatus)

		var paidAt *time.Time
		if status == model.PaymentStatusCompleted {
			if p.PaidAt != nil {
				paidAt = p.PaidAt
			} else {
				now := time.Now()
				paidAt = &now
			}
		}

		// Read-merge-write under the row lock so concurrent updates to
		// unrelated meta keys are never lost.
		merged := model.MergeMeta(p.Meta, snapshotMeta(snap))
		ref := model.SessionRef(snap.ID)
		if err := u.payments.UpdateReconciled(ctx, tx, p.ID, status, ref, snap.PaymentIntentRef, snap.PaymentMethodKind, paidAt, merged); err != nil {
			return err
		}
		p.Status = status
		p.TxRef = ref
		p.IntentRef = snap.PaymentIntentRef
		p.PaymentMethod = snap.PaymentMethodKind
		p.PaidAt = paidAt
		p.Meta = merged

		if status != model.PaymentStatusCompleted {
			out = p
			return nil
		}

		reg, err := u.provision(ctx, tx, p)
		if err != nil {
			return err
		}
		if err := u.payments.LinkRegistration(ctx, tx, p.ID, reg.ID); err != nil {
			return err
		}
		p.RegistrationID = &reg.ID
		out = p
		return nil
	})
	if err != nil {
		metrics.IncReconcile("error")
		return nil, err
	}

	metrics.IncPayment(string(out.Status))
	if out.Status == model.PaymentStatusCompleted {
		metrics.AddPaymentRevenue(out.Currency, out.Amount)
	}
	metrics.IncReconcile("ok")
	return out, nil
}

// resolve finds the ledger entry for this snapshot, most specific key first.
func (u *reconcileUC) resolve(ctx context.Context, tx repository.Tx, snap *adapter.SessionSnapshot, meta ReconcileMeta) (*model.Payment, error) {
	p, err := u.payments.FindByTxRef(ctx, tx, model.SessionRef(snap.ID))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if meta.PaymentRef != "" {
		if p, err = u.payments.FindByID(ctx, tx, meta.PaymentRef); err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if meta.CustomerID != "" && meta.CodeID != "" {
		return u.payments.FindLatestByCustomerAndCode(ctx, tx, meta.CustomerID, meta.CodeID)
	}
	return nil, domain.ErrNotFound
}

// provision creates the registration and consumes a usage slot, or links the
// existing registration without consuming another one.
func (u *reconcileUC) provision(ctx context.Context, tx repository.Tx, p *model.Payment) (*model.Registration, error) {
	reg, err := u.registrations.FindByCustomer(ctx, tx, p.CustomerID)
	if err == nil {
		// Duplicate reconciliation, or a prior attempt that crashed after
		// creating the registration: link only, never increment again.
		return reg, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	code, err := u.codes.FindByID(ctx, tx, p.CodeID)
	if err != nil {
		return nil, err
	}
	if err := code.ValidateForRedemption(time.Now()); err != nil {
		// Aborts the whole transaction; the status write above rolls back
		// too, so the entry is never stranded completed-without-registration.
		return nil, err
	}

	reg = model.NewRegistration(uuid.NewString(), p.CustomerID, &p.CodeID, time.Now())
	if err := u.registrations.Save(ctx, tx, reg); err != nil {
		return nil, err
	}
	bumped, err := u.codes.IncrementUsage(ctx, tx, code.ID)
	if err != nil {
		return nil, err
	}
	if !bumped {
		return nil, domain.ErrCodeExhausted
	}

	u.log.Info().Str("payment_id", p.ID).Str("customer_id", p.CustomerID).
		Str("registration_id", reg.ID).Str("code_id", code.ID).
		Msg("registration provisioned")
	metrics.IncRegistration()
	return reg, nil
}

func snapshotMeta(snap *adapter.SessionSnapshot) map[string]interface{} {
	m := map[string]interface{}{
		"session_id":     snap.ID,
		"session_status": snap.SessionStatus,
		"payment_status": snap.PaymentStatus,
	}
	if snap.PaymentIntentRef != "" {
		m["payment_intent"] = snap.PaymentIntentRef
	}
	if snap.PaymentMethodKind != "" {
		m["payment_method"] = snap.PaymentMethodKind
	}
	if snap.CustomerRef != "" {
		m["provider_customer"] = snap.CustomerRef
	}
	if snap.AmountTotal > 0 {
		m["amount_total"] = snap.AmountTotal
	}
	return m
}
