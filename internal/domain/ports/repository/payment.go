package repository

import (
	"context"
	"time"

	"course-billing/internal/domain/model"
)

// PaymentRepository persists ledger entries. Entries are created when a
// checkout session is initiated and never deleted.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindByTxRef resolves the entry holding the given provider reference.
	// Under a transaction the row is locked FOR UPDATE.
	FindByTxRef(ctx context.Context, tx Tx, ref model.TransactionRef) (*model.Payment, error)
	// FindLatestByCustomerAndCode returns the newest non-terminal entry for
	// the pair; used as a fallback when the provider reference is not yet
	// recorded on the entry.
	FindLatestByCustomerAndCode(ctx context.Context, tx Tx, customerID, codeID string) (*model.Payment, error)
	// UpdateReconciled writes the status transition together with the merged
	// meta map and, when learned, the provider references. Must be called
	// with the same tx that read and merged the entry.
	UpdateReconciled(ctx context.Context, tx Tx, id string, status model.PaymentStatus, ref model.TransactionRef, intentRef string, paymentMethod string, paidAt *time.Time, meta map[string]interface{}) error
	LinkRegistration(ctx context.Context, tx Tx, id string, registrationID string) error
	// HasCompletedByCustomerAndCode reports whether a completed entry already
	// exists for the pair (registration-check endpoint).
	HasCompletedByCustomerAndCode(ctx context.Context, tx Tx, customerID, codeID string) (bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	SumByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
