package repository

import (
	"context"

	"course-billing/internal/domain/model"
)

// RegistrationRepository persists course registrations. The reconciliation
// engine is the sole creator of rows.
type RegistrationRepository interface {
	Save(ctx context.Context, tx Tx, reg *model.Registration) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Registration, error)
	FindByCustomer(ctx context.Context, tx Tx, customerID string) (*model.Registration, error)
}
