package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"course-billing/internal/domain/model"
	"course-billing/internal/domain/ports/adapter"
	"course-billing/internal/domain/ports/repository"
	"course-billing/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending ledger entries and
// tries to finalize them by retrieving the provider snapshot and feeding it
// through the reconciliation engine. This covers webhook deliveries that were
// lost or that arrived before the ledger entry existed.
type PaymentReconciler struct {
	reconcile  usecase.ReconcileUseCase
	payments   repository.PaymentRepository
	gateway    adapter.CheckoutGateway
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending entry must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(
	reconcile usecase.ReconcileUseCase,
	payments repository.PaymentRepository,
	gateway adapter.CheckoutGateway,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &PaymentReconciler{
		reconcile:  reconcile,
		payments:   payments,
		gateway:    gateway,
		interval:   interval,
		staleAfter: staleAfter,
		log:        logger,
	}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: list pending failed")
		return
	}

	for _, p := range pending {
		if p.TxRef.Kind != model.RefKindSession || p.TxRef.IsZero() {
			continue
		}
		snap, err := w.gateway.RetrieveSession(ctx, p.TxRef.ID)
		if err != nil {
			w.log.Warn().Err(err).Str("payment_id", p.ID).Str("session_id", p.TxRef.ID).
				Msg("payment-reconciler: retrieve session failed")
			continue
		}
		meta := usecase.ReconcileMeta{
			CustomerID: p.CustomerID,
			CodeID:     p.CodeID,
			PaymentRef: p.ID,
		}
		if _, err := w.reconcile.Reconcile(ctx, snap, meta); err != nil {
			w.log.Error().Err(err).Str("payment_id", p.ID).
				Msg("payment-reconciler: reconcile failed")
			continue
		}
		w.log.Info().Str("payment_id", p.ID).Msg("payment-reconciler: reconciled")
	}
}
