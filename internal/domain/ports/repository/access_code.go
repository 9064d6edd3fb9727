package repository

import (
	"context"

	"course-billing/internal/domain/model"
)

// AccessCodeRepository is the port for managing capped, shared access codes.
// The reconciliation engine is the only caller of IncrementUsage and always
// invokes it inside the registration's transaction.
type AccessCodeRepository interface {
	Save(ctx context.Context, tx Tx, code *model.AccessCode) error
	// FindByID locks the row FOR UPDATE when called under a transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.AccessCode, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.AccessCode, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.AccessCode, error)
	// IncrementUsage bumps used_count, guarded against exceeding max_uses.
	// Returns false when the guard rejected the update.
	IncrementUsage(ctx context.Context, tx Tx, id string) (bool, error)
}
