package payment

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	AttachGatewayOrder(ctx context.Context, id int, gatewayOrderID string) error
	MarkRejected(ctx context.Context, id int, reason string) error
	MarkConfirmedTx(ctx context.Context, tx *sqlx.Tx, id int, paymentID string) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)
	ListOpen(ctx context.Context, olderThan time.Time, afterID, limit int) ([]Order, error)
}
