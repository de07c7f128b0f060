package payment

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Durgesh2022/yoga-app/internal/api"
	"github.com/Durgesh2022/yoga-app/internal/events"
	"github.com/Durgesh2022/yoga-app/internal/user"
	"github.com/Durgesh2022/yoga-app/internal/wallet"
)

const testKeySecret = "key-secret"

type stubGateway struct {
	order       *GatewayOrder
	createErr   error
	payments    []GatewayPayment
	createCalls int
}

func (g *stubGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string, _ map[string]string) (*GatewayOrder, error) {
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.order, nil
}

func (g *stubGateway) FetchOrderPayments(context.Context, string) ([]GatewayPayment, error) {
	return g.payments, nil
}

func (g *stubGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return verifySignature(testKeySecret, []byte(orderID+"|"+paymentID), signature)
}

func (g *stubGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return verifySignature(testKeySecret, body, signature)
}

type fakeUsers map[int]*user.User

func (f fakeUsers) FindByID(_ context.Context, id int) (*user.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

type receipt struct {
	to           string
	amount       int64
	balanceAfter int64
}

type fakeMailer struct {
	mu       sync.Mutex
	receipts []receipt
}

func (m *fakeMailer) SendPaymentReceipt(_ context.Context, to, _ string, amount int64, _ string, balanceAfter int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, receipt{to: to, amount: amount, balanceAfter: balanceAfter})
	return nil
}

func (m *fakeMailer) SendBookingConfirmation(context.Context, string, string, string, int64, *time.Time) error {
	return nil
}

func (m *fakeMailer) SendCancellation(context.Context, string, string, string, int64) error {
	return nil
}

type fixture struct {
	svc    Service
	mock   sqlmock.Sqlmock
	gw     *stubGateway
	mailer *fakeMailer
	events *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { sqlxDB.Close() })

	rec := &events.Recorder{}
	gw := &stubGateway{order: &GatewayOrder{ID: "order_ABC", Amount: 1000, Currency: "INR", Status: "created"}}
	mailer := &fakeMailer{}
	users := fakeUsers{1: {ID: 1, Name: "Asha", Email: "asha@example.com", Phone: "+91999"}}

	walletSvc := wallet.NewService(wallet.NewRepository(sqlxDB), rec)
	svc := NewService(NewRepository(sqlxDB), gw, walletSvc, users, mailer, rec, Options{Currency: "INR", MaxAmount: 1_000_000})

	return &fixture{svc: svc, mock: mock, gw: gw, mailer: mailer, events: rec}
}

var orderRowColumns = []string{
	"id", "user_id", "gateway_order_id", "amount", "currency", "purpose", "receipt",
	"status", "payment_id", "failure_reason", "created_at", "updated_at",
}

var txRowColumns = []string{
	"id", "user_id", "type", "category", "amount", "balance_after", "description",
	"payment_id", "order_id", "booking_id", "idempotency_key", "status", "created_at",
}

var (
	findOrderQuery   = regexp.QuoteMeta("FROM payment_orders WHERE gateway_order_id = $1")
	findKeyQuery     = regexp.QuoteMeta("FROM wallet_transactions WHERE idempotency_key = $1")
	creditQuery      = regexp.QuoteMeta("UPDATE users SET wallet_balance = wallet_balance + $1")
	insertTxQuery    = regexp.QuoteMeta("INSERT INTO wallet_transactions")
	confirmQuery     = regexp.QuoteMeta("UPDATE payment_orders SET status = $1, payment_id = $2, updated_at = NOW() WHERE id = $3 AND status = $4")
	rejectQuery      = regexp.QuoteMeta("UPDATE payment_orders SET status = $1, failure_reason = $2")
	insertOrderQuery = regexp.QuoteMeta("INSERT INTO payment_orders")
	attachQuery      = regexp.QuoteMeta("UPDATE payment_orders SET gateway_order_id = $1, status = $2")
)

func orderRow(status Status, paymentID any, created time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(orderRowColumns).
		AddRow(10, 1, "order_ABC", 1000, "INR", "wallet_topup", "rcpt_x", string(status), paymentID, "", created, created)
}

func creditRow() *sqlmock.Rows {
	return sqlmock.NewRows(txRowColumns).
		AddRow(77, 1, "credit", "topup", 1000, 1500, "Wallet top-up", "pay_1", "order_ABC", nil, "payment:pay_1", "completed", time.Now())
}

// expectCredit sets up the ledger write for a 1000 credit on a 500 balance.
func expectCredit(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(findKeyQuery).WithArgs("payment:pay_1").WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(creditQuery).
		WithArgs(1000, 1).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_balance"}).AddRow(1500))
	mock.ExpectQuery(insertTxQuery).WillReturnRows(creditRow())
	mock.ExpectExec(confirmQuery).
		WithArgs("confirmed", "pay_1", 10, "pending_external_confirmation").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func validVerify() VerifyRequest {
	return VerifyRequest{
		OrderID:   "order_ABC",
		PaymentID: "pay_1",
		Signature: Sign(testKeySecret, []byte("order_ABC|pay_1")),
		Amount:    1000,
	}
}

func TestVerify_CreditsWalletOnce(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(findOrderQuery).WithArgs("order_ABC").WillReturnRows(orderRow(StatusPending, nil, time.Now()))
	expectCredit(f.mock)

	resp, err := f.svc.Verify(context.Background(), 1, validVerify())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.False(t, resp.Duplicate)
	assert.Equal(t, int64(1500), resp.Balance)
	assert.Equal(t, wallet.TypeCredit, resp.Transaction.Type)
	assert.Equal(t, int64(1000), resp.Transaction.Amount)
	assert.Equal(t, int64(1500), resp.Transaction.BalanceAfter)

	// the gateway delivers the same callback again
	f.mock.ExpectQuery(findOrderQuery).WithArgs("order_ABC").WillReturnRows(orderRow(StatusConfirmed, "pay_1", time.Now()))
	f.mock.ExpectQuery(findKeyQuery).WithArgs("payment:pay_1").WillReturnRows(creditRow())

	resp, err = f.svc.Verify(context.Background(), 1, validVerify())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, resp.Duplicate)
	assert.Equal(t, int64(77), resp.Transaction.ID)

	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, []string{events.WalletCredited}, f.events.Keys())
	require.Len(t, f.mailer.receipts, 1)
	assert.Equal(t, receipt{to: "asha@example.com", amount: 1000, balanceAfter: 1500}, f.mailer.receipts[0])
}

func TestVerify_TamperedSignature(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(findOrderQuery).WithArgs("order_ABC").WillReturnRows(orderRow(StatusPending, nil, time.Now()))

	req := validVerify()
	req.Signature = Sign("attacker", []byte("order_ABC|pay_1"))

	resp, err := f.svc.Verify(context.Background(), 1, req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Equal(t, "signature verification failed", err.Error())

	// no ledger lookup, no transaction
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Empty(t, f.events.Keys())
	assert.Empty(t, f.mailer.receipts)
}

func TestVerify_SignatureForDifferentPayment(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(findOrderQuery).WillReturnRows(orderRow(StatusPending, nil, time.Now()))

	req := validVerify()
	req.PaymentID = "pay_2"

	_, err := f.svc.Verify(context.Background(), 1, req)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVerify_AmountMismatch(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(findOrderQuery).WillReturnRows(orderRow(StatusPending, nil, time.Now()))

	req := validVerify()
	req.Amount = 100000

	_, err := f.svc.Verify(context.Background(), 1, req)
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVerify_OtherUsersOrder(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(findOrderQuery).WillReturnRows(orderRow(StatusPending, nil, time.Now()))

	_, err := f.svc.Verify(context.Background(), 2, validVerify())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestVerify_RejectedOrder(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery(findOrderQuery).WillReturnRows(orderRow(StatusRejected, nil, time.Now()))

	_, err := f.svc.Verify(context.Background(), 1, validVerify())
	assert.ErrorIs(t, err, ErrOrderClosed)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVerify_MissingFields(t *testing.T) {
	f := newFixture(t)

	req := validVerify()
	req.Signature = ""

	_, err := f.svc.Verify(context.Background(), 1, req)
	var verr *api.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateOrder_Validation(t *testing.T) {
	cases := []CreateOrderRequest{
		{Amount: 0},
		{Amount: -1},
		{Amount: 2_000_000},
		{Amount: 1000, Currency: "USD"},
		{Amount: 1000, Purpose: "gift"},
	}

	for _, req := range cases {
		f := newFixture(t)
		_, err := f.svc.CreateOrder(context.Background(), 1, req, EmbeddedPresenter{})

		var verr *api.ValidationError
		assert.True(t, errors.As(err, &verr), "request %+v", req)
		assert.Equal(t, 0, f.gw.createCalls, "no remote call for %+v", req)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	}
}

func TestCreateOrder_Success(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	f.mock.ExpectQuery(insertOrderQuery).
		WithArgs(1, 1000, "INR", "wallet_topup", sqlmock.AnyArg(), "initiated").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, now, now))
	f.mock.ExpectExec(attachQuery).
		WithArgs("order_ABC", "pending_external_confirmation", 10, "initiated").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := f.svc.CreateOrder(context.Background(), 1, CreateOrderRequest{Amount: 1000}, EmbeddedPresenter{KeyID: "rzp_key"})
	require.NoError(t, err)
	assert.Equal(t, "order_ABC", resp.OrderID)
	assert.Equal(t, int64(1000), resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, StatusPending, resp.Status)
	assert.Equal(t, ModeEmbedded, resp.Checkout.Mode)
	require.NotNil(t, resp.Checkout.Options)
	assert.Equal(t, "asha@example.com", resp.Checkout.Options.Prefill.Email)
	assert.Equal(t, 1, f.gw.createCalls)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateOrder_GatewayUnavailable(t *testing.T) {
	f := newFixture(t)
	f.gw.createErr = ErrGatewayUnavailable
	now := time.Now()

	f.mock.ExpectQuery(insertOrderQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, now, now))
	f.mock.ExpectExec(rejectQuery).
		WithArgs("rejected", sqlmock.AnyArg(), 10, "initiated", "pending_external_confirmation").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := f.svc.CreateOrder(context.Background(), 1, CreateOrderRequest{Amount: 1000}, EmbeddedPresenter{})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, []string{events.PaymentRejected}, f.events.Keys())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func webhookBody(event, paymentID string, amount int) []byte {
	return []byte(`{"event":"` + event + `","payload":{"payment":{"entity":{"id":"` + paymentID +
		`","order_id":"order_ABC","amount":` + strconv.Itoa(amount) + `,"currency":"INR","status":"captured"}}}}`)
}

func TestWebhook_CapturedCredits(t *testing.T) {
	f := newFixture(t)
	body := webhookBody("payment.captured", "pay_1", 1000)

	f.mock.ExpectQuery(findOrderQuery).WithArgs("order_ABC").WillReturnRows(orderRow(StatusPending, nil, time.Now()))
	expectCredit(f.mock)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), body, Sign(testKeySecret, body)))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Equal(t, []string{events.WalletCredited}, f.events.Keys())
}

func TestWebhook_BadSignature(t *testing.T) {
	f := newFixture(t)
	body := webhookBody("payment.captured", "pay_1", 1000)

	err := f.svc.HandleWebhook(context.Background(), body, "deadbeef")
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestWebhook_IgnoredEvents(t *testing.T) {
	f := newFixture(t)

	for _, ev := range []string{"payment.failed", "refund.created"} {
		body := webhookBody(ev, "pay_1", 1000)
		assert.NoError(t, f.svc.HandleWebhook(context.Background(), body, Sign(testKeySecret, body)))
	}
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestWebhook_UnknownOrderAcknowledged(t *testing.T) {
	f := newFixture(t)
	body := webhookBody("order.paid", "pay_1", 1000)

	f.mock.ExpectQuery(findOrderQuery).WillReturnError(sql.ErrNoRows)

	assert.NoError(t, f.svc.HandleWebhook(context.Background(), body, Sign(testKeySecret, body)))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestWebhook_AmountMismatchAcknowledgedWithoutCredit(t *testing.T) {
	f := newFixture(t)
	body := webhookBody("payment.captured", "pay_1", 1)

	f.mock.ExpectQuery(findOrderQuery).WillReturnRows(orderRow(StatusPending, nil, time.Now()))

	assert.NoError(t, f.svc.HandleWebhook(context.Background(), body, Sign(testKeySecret, body)))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Empty(t, f.events.Keys())
}

func TestWebhook_ClosedOrderAcknowledgedWithoutCredit(t *testing.T) {
	f := newFixture(t)
	body := webhookBody("payment.captured", "pay_1", 1000)

	f.mock.ExpectQuery(findOrderQuery).WillReturnRows(orderRow(StatusRejected, nil, time.Now()))

	assert.NoError(t, f.svc.HandleWebhook(context.Background(), body, Sign(testKeySecret, body)))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Empty(t, f.events.Keys())
}

func pendingModel(created time.Time) Order {
	o := *pendingOrder()
	o.ID = 10
	o.CreatedAt = created
	return o
}

func TestReconcile_CapturedPaymentConfirms(t *testing.T) {
	f := newFixture(t)
	f.gw.payments = []GatewayPayment{
		{ID: "pay_0", OrderID: "order_ABC", Amount: 1000, Status: "failed"},
		{ID: "pay_1", OrderID: "order_ABC", Amount: 1000, Status: PaymentCaptured},
	}
	expectCredit(f.mock)

	res, err := f.svc.Reconcile(context.Background(), pendingModel(time.Now().Add(-time.Hour)), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ResultConfirmed, res)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReconcile_ExpiresStaleOrder(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectExec(rejectQuery).
		WithArgs("rejected", "expired without captured payment", 10, "initiated", "pending_external_confirmation").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := f.svc.Reconcile(context.Background(), pendingModel(time.Now().Add(-48*time.Hour)), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ResultExpired, res)
	assert.Equal(t, []string{events.PaymentRejected}, f.events.Keys())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReconcile_RecentOrderStaysPending(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Reconcile(context.Background(), pendingModel(time.Now().Add(-time.Hour)), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ResultPending, res)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
