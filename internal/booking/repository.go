package booking

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

const bookingColumns = `id, user_id, kind, reference_id, astrologer_id, title, amount, credits,
	status, scheduled_at, transaction_id, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO bookings (user_id, kind, reference_id, astrologer_id, title, amount, credits, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, status, created_at, updated_at`

	return r.db.QueryRowxContext(ctx, query,
		b.UserID, b.Kind, b.ReferenceID, b.AstrologerID, b.Title, b.Amount, b.Credits, StatusPending, b.ScheduledAt,
	).Scan(&b.ID, &b.Status, &b.CreatedAt, &b.UpdatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByUser returns the user's bookings newest first. An empty status
// matches all.
func (r *repository) ListByUser(ctx context.Context, userID int, status Status, limit, offset int) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`

	bookings := []Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, userID, status, limit, offset); err != nil {
		return nil, err
	}
	return bookings, nil
}

// MarkPaidTx runs inside the wallet debit transaction.
func (r *repository) MarkPaidTx(ctx context.Context, tx *sqlx.Tx, id int, transactionID int64) error {
	return markPaid(ctx, tx, id, transactionID)
}

// MarkPaid links a booking to a debit that is already committed.
func (r *repository) MarkPaid(ctx context.Context, id int, transactionID int64) error {
	return markPaid(ctx, r.db, id, transactionID)
}

func markPaid(ctx context.Context, ex sqlx.ExecerContext, id int, transactionID int64) error {
	return transition(ctx, ex, `
		UPDATE bookings
		SET status = $1, transaction_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		StatusPaid, transactionID, id, StatusPending)
}

// CancelTx cancels a paid booking inside the refund transaction.
func (r *repository) CancelTx(ctx context.Context, tx *sqlx.Tx, id int) error {
	return transition(ctx, tx, `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		StatusCancelled, id, StatusPaid)
}

func (r *repository) CancelPending(ctx context.Context, id int) error {
	return transition(ctx, r.db, `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		StatusCancelled, id, StatusPending)
}

func (r *repository) Fulfil(ctx context.Context, id int) error {
	return transition(ctx, r.db, `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		StatusFulfilled, id, StatusPaid)
}

func transition(ctx context.Context, ex sqlx.ExecerContext, query string, args ...any) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingClosed
	}
	return nil
}
