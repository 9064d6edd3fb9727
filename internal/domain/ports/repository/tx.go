package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle passed through use cases into
// repositories. Its concrete type is infra-defined (pgx.Tx for Postgres).
// Repositories must accept a nil handle and fall back to the pool.
type Tx interface{}

// TransactionManager executes fn within one database transaction, passing the
// underlying handle via tx. If fn returns an error the transaction is rolled
// back; otherwise it is committed.
//
// This is the sole concurrency-control mechanism for reconciliation: the
// ledger row is locked inside the transaction (SELECT ... FOR UPDATE) and no
// additional in-process locks are used.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
