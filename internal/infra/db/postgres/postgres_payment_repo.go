package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-billing/internal/domain"
	"course-billing/internal/domain/model"
	"course-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, customer_id, code_id, provider, amount, currency, tx_ref_kind, tx_ref, intent_ref, payment_method, status, paid_at, meta, registration_id, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var refKind, refID *string
	if err := row.Scan(
		&p.ID, &p.CustomerID, &p.CodeID, &p.Provider, &p.Amount, &p.Currency,
		&refKind, &refID, &p.IntentRef, &p.PaymentMethod, &p.Status, &p.PaidAt,
		&p.Meta, &p.RegistrationID, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if refKind != nil && refID != nil {
		p.TxRef = model.TransactionRef{Kind: model.RefKind(*refKind), ID: *refID}
	}
	return p, nil
}

func refColumns(ref model.TransactionRef) (kind, id *string) {
	if ref.IsZero() {
		return nil, nil
	}
	k, i := string(ref.Kind), ref.ID
	return &k, &i
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, customer_id, code_id, provider, amount, currency, tx_ref_kind, tx_ref, intent_ref, payment_method, status, paid_at, meta, registration_id, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  customer_id=$2, code_id=$3, provider=$4, amount=$5, currency=$6, tx_ref_kind=$7, tx_ref=$8, intent_ref=$9, payment_method=$10, status=$11, paid_at=$12, meta=$13, registration_id=$14, updated_at=$16;`

	refKind, refID := refColumns(p.TxRef)
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.CustomerID, p.CodeID, p.Provider, p.Amount, p.Currency,
		refKind, refID, p.IntentRef, p.PaymentMethod, p.Status, p.PaidAt,
		p.Meta, p.RegistrationID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByTxRef(ctx context.Context, tx repository.Tx, ref model.TransactionRef) (*model.Payment, error) {
	if ref.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE tx_ref_kind=$1 AND tx_ref=$2 LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindLatestByCustomerAndCode(ctx context.Context, tx repository.Tx, customerID, codeID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
 WHERE customer_id=$1 AND code_id=$2 AND status NOT IN ('failed','refunded')
 ORDER BY created_at DESC LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, customerID, codeID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) UpdateReconciled(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus,
	ref model.TransactionRef, intentRef string, paymentMethod string,
	paidAt *time.Time, meta map[string]interface{},
) error {
	const q = `
UPDATE payments
   SET status=$2,
       tx_ref_kind=COALESCE($3, tx_ref_kind),
       tx_ref=COALESCE($4, tx_ref),
       intent_ref=COALESCE(NULLIF($5,''), intent_ref),
       payment_method=COALESCE(NULLIF($6,''), payment_method),
       paid_at=COALESCE($7, paid_at),
       meta=$8,
       updated_at=NOW()
 WHERE id=$1;`

	refKind, refID := refColumns(ref)
	_, err := execSQL(ctx, r.pool, tx, q, id, status, refKind, refID, intentRef, paymentMethod, paidAt, meta)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) LinkRegistration(ctx context.Context, tx repository.Tx, id string, registrationID string) error {
	const q = `UPDATE payments SET registration_id=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, registrationID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) HasCompletedByCustomerAndCode(ctx context.Context, tx repository.Tx, customerID, codeID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM payments WHERE customer_id=$1 AND code_id=$2 AND status='completed');`
	row, err := pickRow(ctx, r.pool, tx, q, customerID, codeID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM payments WHERE status='completed' AND paid_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
