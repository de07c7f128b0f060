package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, user_id, gateway_order_id, amount, currency, purpose, receipt,
	status, payment_id, failure_reason, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO payment_orders (user_id, amount, currency, purpose, receipt, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowxContext(ctx, query,
		o.UserID, o.Amount, o.Currency, o.Purpose, o.Receipt, StatusInitiated,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *repository) AttachGatewayOrder(ctx context.Context, id int, gatewayOrderID string) error {
	return r.transition(ctx, r.db, `
		UPDATE payment_orders
		SET gateway_order_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		gatewayOrderID, StatusPending, id, StatusInitiated)
}

func (r *repository) MarkRejected(ctx context.Context, id int, reason string) error {
	return r.transition(ctx, r.db, `
		UPDATE payment_orders
		SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)`,
		StatusRejected, reason, id, StatusInitiated, StatusPending)
}

// MarkConfirmedTx runs inside the wallet credit transaction so the order
// and the ledger row commit together.
func (r *repository) MarkConfirmedTx(ctx context.Context, tx *sqlx.Tx, id int, paymentID string) error {
	return r.transition(ctx, tx, `
		UPDATE payment_orders
		SET status = $1, payment_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		StatusConfirmed, paymentID, id, StatusPending)
}

func (r *repository) transition(ctx context.Context, ex sqlx.ExecerContext, query string, args ...any) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderClosed
	}
	return nil
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM payment_orders WHERE gateway_order_id = $1`, gatewayOrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOpen returns one page of initiated or pending orders last touched
// before olderThan, in id order after afterID.
func (r *repository) ListOpen(ctx context.Context, olderThan time.Time, afterID, limit int) ([]Order, error) {
	orders := []Order{}
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM payment_orders
		WHERE status IN ($1, $2) AND updated_at < $3 AND id > $4
		ORDER BY id ASC
		LIMIT $5`, StatusInitiated, StatusPending, olderThan, afterID, limit)
	if err != nil {
		return nil, err
	}
	return orders, nil
}
