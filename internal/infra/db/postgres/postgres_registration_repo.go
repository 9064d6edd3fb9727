package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-billing/internal/domain"
	"course-billing/internal/domain/model"
	"course-billing/internal/domain/ports/repository"
)

var _ repository.RegistrationRepository = (*registrationRepo)(nil)

type registrationRepo struct{ pool *pgxpool.Pool }

func NewRegistrationRepo(pool *pgxpool.Pool) *registrationRepo {
	return &registrationRepo{pool: pool}
}

const registrationColumns = `id, customer_id, code_id, status, registered_at, certificate_ref`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	if err := row.Scan(
		&reg.ID, &reg.CustomerID, &reg.CodeID, &reg.Status, &reg.RegisteredAt, &reg.CertificateRef,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &reg, nil
}

func (r *registrationRepo) Save(ctx context.Context, tx repository.Tx, reg *model.Registration) error {
	const q = `
INSERT INTO registrations (id, customer_id, code_id, status, registered_at, certificate_ref)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  certificate_ref = EXCLUDED.certificate_ref;`

	_, err := execSQL(ctx, r.pool, tx, q,
		reg.ID, reg.CustomerID, reg.CodeID, reg.Status, reg.RegisteredAt, reg.CertificateRef,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *registrationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanRegistration(row)
}

func (r *registrationRepo) FindByCustomer(ctx context.Context, tx repository.Tx, customerID string) (*model.Registration, error) {
	const q = `SELECT ` + registrationColumns + ` FROM registrations WHERE customer_id = $1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, customerID)
	if err != nil {
		return nil, err
	}
	return scanRegistration(row)
}
