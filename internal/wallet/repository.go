package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/Durgesh2022/yoga-app/internal/db"
)

// maxApplyAttempts bounds retries when a debit loses a race with a
// concurrent credit between the failed update and the balance read.
const maxApplyAttempts = 3

const txColumns = `id, user_id, type, category, amount, balance_after, description,
	payment_id, order_id, booking_id, idempotency_key, status, created_at`

var (
	errDuplicateKey = errors.New("duplicate idempotency key")
	errInsufficient = errors.New("insufficient balance")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Apply moves the balance and appends the ledger row in one transaction.
// The balance update is a single conditional statement, and the
// idempotency key is unique in storage, so concurrent or repeated calls
// with the same key apply at most once.
func (r *repository) Apply(ctx context.Context, e Entry, hooks ...TxHook) (*Result, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		if res, err := r.existing(ctx, e); res != nil || err != nil {
			return res, err
		}

		t, err := r.applyOnce(ctx, e, hooks)
		switch {
		case err == nil:
			return &Result{Transaction: t}, nil
		case errors.Is(err, errDuplicateKey):
			// lost the race to a concurrent call with the same key
			continue
		case errors.Is(err, errInsufficient):
			if res, err := r.existing(ctx, e); res != nil || err != nil {
				return res, err
			}
			balance, err := r.GetBalance(ctx, e.UserID)
			if err != nil {
				return nil, err
			}
			if balance < e.Amount {
				return nil, newShortfall(e.Amount, balance)
			}
		default:
			return nil, err
		}
	}

	if res, err := r.existing(ctx, e); res != nil || err != nil {
		return res, err
	}
	return nil, errors.New("wallet: ledger write did not settle, retry with the same key")
}

// existing returns the already-applied result for e's key, if any.
func (r *repository) existing(ctx context.Context, e Entry) (*Result, error) {
	t, err := r.FindByKey(ctx, e.IdempotencyKey)
	if errors.Is(err, ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !e.matches(t) {
		return nil, ErrIdempotencyConflict
	}
	return &Result{Transaction: t, Duplicate: true}, nil
}

func (r *repository) applyOnce(ctx context.Context, e Entry, hooks []TxHook) (*Transaction, error) {
	var t Transaction
	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		balance, err := moveBalance(ctx, tx, e)
		if err != nil {
			return err
		}

		err = tx.GetContext(ctx, &t, `
			INSERT INTO wallet_transactions
				(user_id, type, category, amount, balance_after, description,
				 payment_id, order_id, booking_id, idempotency_key, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (idempotency_key) DO NOTHING
			RETURNING `+txColumns,
			e.UserID, e.Type, e.Category, e.Amount, balance, e.Description,
			nullable(e.PaymentID), nullable(e.OrderID), nullable(e.BookingID),
			e.IdempotencyKey, StatusCompleted,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return errDuplicateKey
		}
		if err != nil {
			return err
		}

		for _, hook := range hooks {
			if err := hook(ctx, tx, &t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func moveBalance(ctx context.Context, tx *sqlx.Tx, e Entry) (int64, error) {
	var (
		balance int64
		err     error
	)

	if e.Type == TypeCredit {
		err = tx.GetContext(ctx, &balance, `
			UPDATE users SET wallet_balance = wallet_balance + $1, updated_at = NOW()
			WHERE id = $2
			RETURNING wallet_balance`, e.Amount, e.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return balance, err
	}

	err = tx.GetContext(ctx, &balance, `
		UPDATE users SET wallet_balance = wallet_balance - $1, updated_at = NOW()
		WHERE id = $2 AND wallet_balance >= $1
		RETURNING wallet_balance`, e.Amount, e.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errInsufficient
	}
	return balance, err
}

func (r *repository) GetBalance(ctx context.Context, userID int) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance, `SELECT wallet_balance FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return balance, err
}

func (r *repository) History(ctx context.Context, userID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}

	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT `+txColumns+`
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// Ledger returns every row for userID in creation order.
func (r *repository) Ledger(ctx context.Context, userID int) ([]Transaction, error) {
	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT `+txColumns+`
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repository) FindByKey(ctx context.Context, key string) (*Transaction, error) {
	var t Transaction
	err := r.db.GetContext(ctx, &t, `SELECT `+txColumns+` FROM wallet_transactions WHERE idempotency_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
