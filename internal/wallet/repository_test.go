package wallet

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Durgesh2022/yoga-app/internal/api"
)

func setupWalletMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

var txRowColumns = []string{
	"id", "user_id", "type", "category", "amount", "balance_after", "description",
	"payment_id", "order_id", "booking_id", "idempotency_key", "status", "created_at",
}

func txRows() *sqlmock.Rows {
	return sqlmock.NewRows(txRowColumns)
}

var (
	findByKeyQuery = regexp.QuoteMeta("FROM wallet_transactions WHERE idempotency_key = $1")
	creditQuery    = regexp.QuoteMeta("UPDATE users SET wallet_balance = wallet_balance + $1")
	debitQuery     = regexp.QuoteMeta("UPDATE users SET wallet_balance = wallet_balance - $1, updated_at = NOW() WHERE id = $2 AND wallet_balance >= $1")
	insertQuery    = regexp.QuoteMeta("INSERT INTO wallet_transactions")
	balanceQuery   = regexp.QuoteMeta("SELECT wallet_balance FROM users WHERE id = $1")
)

func topUpEntry() Entry {
	return Entry{
		UserID:         1,
		Type:           TypeCredit,
		Category:       CategoryTopUp,
		Amount:         1000,
		Description:    "Wallet top-up",
		PaymentID:      "pay_1",
		OrderID:        "order_1",
		IdempotencyKey: PaymentKey("pay_1"),
	}
}

func TestApply_CreditIncrementsBalance(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	now := time.Now()

	mock.ExpectQuery(findByKeyQuery).WithArgs("payment:pay_1").WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(creditQuery).
		WithArgs(1000, 1).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance"}).AddRow(1500))
	mock.ExpectQuery(insertQuery).
		WithArgs(1, "credit", "topup", 1000, 1500, "Wallet top-up", "pay_1", "order_1", nil, "payment:pay_1", "completed").
		WillReturnRows(txRows().AddRow(11, 1, "credit", "topup", 1000, 1500, "Wallet top-up", "pay_1", "order_1", nil, "payment:pay_1", "completed", now))
	mock.ExpectCommit()

	res, err := repo.Apply(context.Background(), topUpEntry())
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, TypeCredit, res.Transaction.Type)
	assert.Equal(t, int64(1000), res.Transaction.Amount)
	assert.Equal(t, int64(1500), res.Transaction.BalanceAfter)
	require.NotNil(t, res.Transaction.PaymentID)
	assert.Equal(t, "pay_1", *res.Transaction.PaymentID)
	assert.Nil(t, res.Transaction.BookingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_DuplicateKeyReturnsOriginal(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(findByKeyQuery).
		WithArgs("payment:pay_1").
		WillReturnRows(txRows().AddRow(11, 1, "credit", "topup", 1000, 1500, "Wallet top-up", "pay_1", "order_1", nil, "payment:pay_1", "completed", time.Now()))

	res, err := repo.Apply(context.Background(), topUpEntry())
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, int64(11), res.Transaction.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_ConcurrentDuplicateRollsBack(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(findByKeyQuery).WithArgs("payment:pay_1").WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(creditQuery).
		WithArgs(1000, 1).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance"}).AddRow(2500))
	// ON CONFLICT DO NOTHING: the other request committed first
	mock.ExpectQuery(insertQuery).WillReturnRows(txRows())
	mock.ExpectRollback()
	mock.ExpectQuery(findByKeyQuery).
		WithArgs("payment:pay_1").
		WillReturnRows(txRows().AddRow(11, 1, "credit", "topup", 1000, 1500, "Wallet top-up", "pay_1", "order_1", nil, "payment:pay_1", "completed", time.Now()))

	res, err := repo.Apply(context.Background(), topUpEntry())
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, int64(1500), res.Transaction.BalanceAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_InsufficientBalanceReportsShortfall(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	e := Entry{
		UserID:         1,
		Type:           TypeDebit,
		Category:       CategoryBookingPayment,
		Amount:         800,
		BookingID:      "42",
		IdempotencyKey: BookingKey("42"),
	}

	mock.ExpectQuery(findByKeyQuery).WithArgs("booking:42").WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(debitQuery).
		WithArgs(800, 1).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance"}))
	mock.ExpectRollback()
	mock.ExpectQuery(findByKeyQuery).WithArgs("booking:42").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(balanceQuery).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance"}).AddRow(500))

	res, err := repo.Apply(context.Background(), e)
	assert.Nil(t, res)

	var short *InsufficientBalance
	require.True(t, errors.As(err, &short))
	assert.Equal(t, int64(800), short.Required)
	assert.Equal(t, int64(500), short.Available)
	assert.Equal(t, int64(300), short.Shortfall)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_DebitUnknownUser(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	e := Entry{UserID: 9, Type: TypeDebit, Category: CategoryConsultation, Amount: 100, IdempotencyKey: "booking:1"}

	mock.ExpectQuery(findByKeyQuery).WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(debitQuery).WillReturnRows(sqlmock.NewRows([]string{"wallet_balance"}))
	mock.ExpectRollback()
	mock.ExpectQuery(findByKeyQuery).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(balanceQuery).WithArgs(9).WillReturnError(sql.ErrNoRows)

	_, err := repo.Apply(context.Background(), e)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_HookFailureRollsBack(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(findByKeyQuery).WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(creditQuery).WillReturnRows(sqlmock.NewRows([]string{"wallet_balance"}).AddRow(1500))
	mock.ExpectQuery(insertQuery).
		WillReturnRows(txRows().AddRow(11, 1, "credit", "topup", 1000, 1500, "", nil, nil, nil, "payment:pay_1", "completed", time.Now()))
	mock.ExpectRollback()

	hookErr := errors.New("order already confirmed")
	var seen *Transaction
	_, err := repo.Apply(context.Background(), topUpEntry(), func(_ context.Context, _ *sqlx.Tx, t *Transaction) error {
		seen = t
		return hookErr
	})
	assert.ErrorIs(t, err, hookErr)
	require.NotNil(t, seen)
	assert.Equal(t, int64(11), seen.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_KeyReusedForDifferentMutation(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(findByKeyQuery).
		WillReturnRows(txRows().AddRow(11, 1, "credit", "topup", 999, 1499, "", nil, nil, nil, "payment:pay_1", "completed", time.Now()))

	_, err := repo.Apply(context.Background(), topUpEntry())
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestApply_ValidationHappensBeforeStorage(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	cases := []Entry{
		{UserID: 1, Type: TypeCredit, Category: CategoryTopUp, Amount: 0, IdempotencyKey: "k"},
		{UserID: 1, Type: TypeCredit, Category: CategoryTopUp, Amount: -5, IdempotencyKey: "k"},
		{UserID: 1, Type: TypeCredit, Category: CategoryBookingPayment, Amount: 5, IdempotencyKey: "k"},
		{UserID: 1, Type: TypeDebit, Category: CategoryBookingPayment, Amount: 5},
		{UserID: 0, Type: TypeDebit, Category: CategoryBookingPayment, Amount: 5, IdempotencyKey: "k"},
	}
	for _, e := range cases {
		_, err := repo.Apply(context.Background(), e)
		var verr *api.ValidationError
		assert.True(t, errors.As(err, &verr), "entry %+v", e)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_MostRecentFirst(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallet_transactions WHERE user_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3")).
		WithArgs(1, 10, 0).
		WillReturnRows(txRows().
			AddRow(2, 1, "debit", "booking_payment", 800, 700, "Hatha", nil, nil, "42", "booking:42", "completed", now).
			AddRow(1, 1, "credit", "topup", 1500, 1500, "", "pay_1", "order_1", nil, "payment:pay_1", "completed", now.Add(-time.Hour)))

	txs, err := repo.History(context.Background(), 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(2), txs[0].ID)
	assert.Equal(t, CategoryBookingPayment, txs[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalance_NotFound(t *testing.T) {
	repo, mock, close := setupWalletMock(t)
	defer close()

	mock.ExpectQuery(balanceQuery).WithArgs(5).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBalance(context.Background(), 5)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
