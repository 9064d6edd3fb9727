package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"course-billing/internal/domain"
	"course-billing/internal/domain/model"
	"course-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ CodeUseCase = (*codeUC)(nil)

// CodeUseCase backs the admin surface for managing access codes and reading
// revenue totals.
type CodeUseCase interface {
	// Create mints a new access code. When code is empty a random one is
	// generated. maxUses nil means unlimited, expiresAt nil means no expiry.
	Create(ctx context.Context, title, code string, maxUses *int, expiresAt *time.Time) (*model.AccessCode, error)
	List(ctx context.Context) ([]*model.AccessCode, error)
	// Revenue returns completed-payment totals for week/month/year.
	Revenue(ctx context.Context) (week, month, year int64, err error)
}

type codeUC struct {
	codes    repository.AccessCodeRepository
	payments repository.PaymentRepository
	log      *zerolog.Logger
}

func NewCodeUseCase(codes repository.AccessCodeRepository, payments repository.PaymentRepository, logger *zerolog.Logger) *codeUC {
	return &codeUC{codes: codes, payments: payments, log: logger}
}

func (u *codeUC) Create(ctx context.Context, title, code string, maxUses *int, expiresAt *time.Time) (*model.AccessCode, error) {
	if title == "" {
		return nil, domain.ErrInvalidArgument
	}
	if maxUses != nil && *maxUses <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if code == "" {
		generated, err := generateAccessCode()
		if err != nil {
			return nil, err
		}
		code = generated
	}

	ac := &model.AccessCode{
		ID:        uuid.NewString(),
		Code:      code,
		Title:     title,
		Active:    true,
		ExpiresAt: expiresAt,
		MaxUses:   maxUses,
		CreatedAt: time.Now(),
	}
	if err := u.codes.Save(ctx, nil, ac); err != nil {
		return nil, err
	}
	u.log.Info().Str("code_id", ac.ID).Str("title", title).Msg("access code created")
	return ac, nil
}

func (u *codeUC) List(ctx context.Context) ([]*model.AccessCode, error) {
	return u.codes.ListAll(ctx, nil)
}

func (u *codeUC) Revenue(ctx context.Context) (int64, int64, int64, error) {
	week, err := u.payments.SumByPeriod(ctx, nil, "week")
	if err != nil {
		return 0, 0, 0, err
	}
	month, err := u.payments.SumByPeriod(ctx, nil, "month")
	if err != nil {
		return 0, 0, 0, err
	}
	year, err := u.payments.SumByPeriod(ctx, nil, "year")
	if err != nil {
		return 0, 0, 0, err
	}
	return week, month, year, nil
}
