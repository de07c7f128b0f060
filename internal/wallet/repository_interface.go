package wallet

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TxHook runs inside the ledger transaction after the row is inserted. An
// error from a hook rolls back the balance change and the row.
type TxHook func(ctx context.Context, tx *sqlx.Tx, t *Transaction) error

type Repository interface {
	Apply(ctx context.Context, e Entry, hooks ...TxHook) (*Result, error)
	GetBalance(ctx context.Context, userID int) (int64, error)
	History(ctx context.Context, userID, limit, offset int) ([]Transaction, error)
	Ledger(ctx context.Context, userID int) ([]Transaction, error)
	FindByKey(ctx context.Context, key string) (*Transaction, error)
}
