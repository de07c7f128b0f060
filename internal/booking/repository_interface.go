package booking

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id int) (*Booking, error)
	ListByUser(ctx context.Context, userID int, status Status, limit, offset int) ([]Booking, error)
	MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id int, transactionID int64) error
	MarkPaid(ctx context.Context, id int, transactionID int64) error
	CancelTx(ctx context.Context, tx *sqlx.Tx, id int) error
	CancelPending(ctx context.Context, id int) error
	Fulfil(ctx context.Context, id int) error
}
