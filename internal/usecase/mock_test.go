//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-billing/internal/domain"
	"course-billing/internal/domain/model"
	"course-billing/internal/domain/ports/adapter"
	"course-billing/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func now() time.Time { return time.Now().Truncate(time.Millisecond) }

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func intPtr(n int) *int { return &n }

// =============================
// Adapters
// =============================

// ---- Mock CheckoutGateway ----

type MockCheckoutGateway struct {
	mu       sync.Mutex
	Sessions map[string]*adapter.SessionSnapshot // by session id

	CreateSessionFunc   func(ctx context.Context, in adapter.CreateSessionInput) (string, string, error)
	RetrieveSessionFunc func(ctx context.Context, sessionID string) (*adapter.SessionSnapshot, error)

	Calls struct {
		Create   []adapter.CreateSessionInput
		Retrieve []string
	}
}

var _ adapter.CheckoutGateway = (*MockCheckoutGateway)(nil)

func NewMockCheckoutGateway() *MockCheckoutGateway {
	return &MockCheckoutGateway{Sessions: map[string]*adapter.SessionSnapshot{}}
}

func (m *MockCheckoutGateway) Name() string { return "mockpay" }

func (m *MockCheckoutGateway) CreateSession(ctx context.Context, in adapter.CreateSessionInput) (string, string, error) {
	m.mu.Lock()
	m.Calls.Create = append(m.Calls.Create, in)
	m.mu.Unlock()
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, in)
	}
	id := "cs_test_" + uuid.NewString()
	m.mu.Lock()
	m.Sessions[id] = &adapter.SessionSnapshot{
		ID:            id,
		PaymentStatus: "unpaid",
		SessionStatus: "open",
		AmountTotal:   in.Amount,
		Currency:      in.Currency,
		Metadata: map[string]string{
			"payment_ref": in.PaymentRef,
			"customer_id": in.Customer.ID,
			"code_id":     in.Code.ID,
		},
	}
	m.mu.Unlock()
	return id, "https://pay.example/" + id, nil
}

func (m *MockCheckoutGateway) RetrieveSession(ctx context.Context, sessionID string) (*adapter.SessionSnapshot, error) {
	m.mu.Lock()
	m.Calls.Retrieve = append(m.Calls.Retrieve, sessionID)
	m.mu.Unlock()
	if m.RetrieveSessionFunc != nil {
		return m.RetrieveSessionFunc(ctx, sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Sessions[sessionID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrSessionNotFound
}

// =============================
// Repositories
// =============================

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Payment

	SaveFunc             func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByIDFunc         func(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error)
	FindByTxRefFunc      func(ctx context.Context, tx repository.Tx, ref model.TransactionRef) (*model.Payment, error)
	UpdateReconciledFunc func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, ref model.TransactionRef, intentRef, paymentMethod string, paidAt *time.Time, meta map[string]interface{}) error
	LinkRegistrationFunc func(ctx context.Context, tx repository.Tx, id, registrationID string) error

	Calls struct {
		UpdateReconciled int
		LinkRegistration int
	}
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{byID: map[string]*model.Payment{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByTxRef(ctx context.Context, tx repository.Tx, ref model.TransactionRef) (*model.Payment, error) {
	if r.FindByTxRefFunc != nil {
		return r.FindByTxRefFunc(ctx, tx, ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.TxRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindLatestByCustomerAndCode(ctx context.Context, tx repository.Tx, customerID, codeID string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.Payment
	for _, p := range r.byID {
		if p.CustomerID != customerID || p.CodeID != codeID {
			continue
		}
		if p.Status == model.PaymentStatusFailed || p.Status == model.PaymentStatusRefunded {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *MockPaymentRepo) UpdateReconciled(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, ref model.TransactionRef, intentRef, paymentMethod string, paidAt *time.Time, meta map[string]interface{}) error {
	r.mu.Lock()
	r.Calls.UpdateReconciled++
	r.mu.Unlock()
	if r.UpdateReconciledFunc != nil {
		return r.UpdateReconciledFunc(ctx, tx, id, status, ref, intentRef, paymentMethod, paidAt, meta)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	if !ref.IsZero() {
		p.TxRef = ref
	}
	if intentRef != "" {
		p.IntentRef = intentRef
	}
	if paymentMethod != "" {
		p.PaymentMethod = paymentMethod
	}
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	p.Meta = meta
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MockPaymentRepo) LinkRegistration(ctx context.Context, tx repository.Tx, id, registrationID string) error {
	r.mu.Lock()
	r.Calls.LinkRegistration++
	r.mu.Unlock()
	if r.LinkRegistrationFunc != nil {
		return r.LinkRegistrationFunc(ctx, tx, id, registrationID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	rid := registrationID
	p.RegistrationID = &rid
	return nil
}

func (r *MockPaymentRepo) HasCompletedByCustomerAndCode(ctx context.Context, tx repository.Tx, customerID, codeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.CustomerID == customerID && p.CodeID == codeID && p.Status == model.PaymentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.byID {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, p := range r.byID {
		if p.Status == model.PaymentStatusCompleted {
			sum += p.Amount
		}
	}
	return sum, nil
}

// get returns the live stored entry, for assertions.
func (r *MockPaymentRepo) get(id string) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// ---- Mock AccessCodeRepository ----

type MockAccessCodeRepo struct {
	mu   sync.Mutex
	byID map[string]*model.AccessCode

	FindByIDFunc       func(ctx context.Context, tx repository.Tx, id string) (*model.AccessCode, error)
	IncrementUsageFunc func(ctx context.Context, tx repository.Tx, id string) (bool, error)

	Calls struct {
		IncrementUsage int
	}
}

var _ repository.AccessCodeRepository = (*MockAccessCodeRepo)(nil)

func NewMockAccessCodeRepo() *MockAccessCodeRepo {
	return &MockAccessCodeRepo{byID: map[string]*model.AccessCode{}}
}

func (r *MockAccessCodeRepo) Save(ctx context.Context, tx repository.Tx, code *model.AccessCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *code
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.byID[cp.ID] = &cp
	code.ID = cp.ID
	return nil
}

func (r *MockAccessCodeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccessCode, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockAccessCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockAccessCodeRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.AccessCode, 0, len(r.byID))
	for _, c := range r.byID {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockAccessCodeRepo) IncrementUsage(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	r.mu.Lock()
	r.Calls.IncrementUsage++
	r.mu.Unlock()
	if r.IncrementUsageFunc != nil {
		return r.IncrementUsageFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return false, nil
	}
	c.UsedCount++
	return true, nil
}

func (r *MockAccessCodeRepo) usedCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[id]; ok {
		return c.UsedCount
	}
	return -1
}

// ---- Mock RegistrationRepository ----

type MockRegistrationRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Registration

	SaveFunc           func(ctx context.Context, tx repository.Tx, reg *model.Registration) error
	FindByCustomerFunc func(ctx context.Context, tx repository.Tx, customerID string) (*model.Registration, error)
}

var _ repository.RegistrationRepository = (*MockRegistrationRepo)(nil)

func NewMockRegistrationRepo() *MockRegistrationRepo {
	return &MockRegistrationRepo{byID: map[string]*model.Registration{}}
}

func (r *MockRegistrationRepo) Save(ctx context.Context, tx repository.Tx, reg *model.Registration) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, reg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *reg
	r.byID[cp.ID] = &cp
	return nil
}

func (r *MockRegistrationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.byID[id]; ok {
		cp := *reg
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockRegistrationRepo) FindByCustomer(ctx context.Context, tx repository.Tx, customerID string) (*model.Registration, error) {
	if r.FindByCustomerFunc != nil {
		return r.FindByCustomerFunc(ctx, tx, customerID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.byID {
		if reg.CustomerID == customerID {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockRegistrationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// ---- Mock TransactionManager ----

// MockTxManager serializes attempts under one mutex, which mirrors what the
// row lock gives concurrent reconciliations of the same ledger entry.
type MockTxManager struct {
	mu sync.Mutex

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, nil)
}
