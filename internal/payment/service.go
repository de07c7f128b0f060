package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Durgesh2022/yoga-app/internal/api"
	"github.com/Durgesh2022/yoga-app/internal/email"
	"github.com/Durgesh2022/yoga-app/internal/events"
	"github.com/Durgesh2022/yoga-app/internal/logger"
	"github.com/Durgesh2022/yoga-app/internal/metrics"
	"github.com/Durgesh2022/yoga-app/internal/obs"
	"github.com/Durgesh2022/yoga-app/internal/user"
	"github.com/Durgesh2022/yoga-app/internal/wallet"
)

const (
	SourceCheckout   = "checkout"
	SourceWebhook    = "webhook"
	SourceReconciler = "reconciler"
)

// Reconcile outcomes.
const (
	ResultConfirmed = "confirmed"
	ResultDuplicate = "duplicate"
	ResultExpired   = "expired"
	ResultPending   = "pending"
)

type Users interface {
	FindByID(ctx context.Context, id int) (*user.User, error)
}

type Options struct {
	Currency  string
	MaxAmount int64
}

type Service interface {
	CreateOrder(ctx context.Context, userID int, req CreateOrderRequest, presenter Presenter) (*CreateOrderResponse, error)
	Verify(ctx context.Context, userID int, req VerifyRequest) (*VerifyResponse, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	GetOrder(ctx context.Context, userID int, gatewayOrderID string) (*Order, error)
	ListOpen(ctx context.Context, olderThan time.Time, afterID, limit int) ([]Order, error)
	Reconcile(ctx context.Context, o Order, expireBefore time.Time) (string, error)
}

type service struct {
	repo      Repository
	gateway   Gateway
	wallet    wallet.Service
	users     Users
	mailer    email.Mailer
	publisher events.Publisher
	opts      Options
}

func NewService(repo Repository, gateway Gateway, walletSvc wallet.Service, users Users, mailer email.Mailer, publisher events.Publisher, opts Options) Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &service{
		repo:      repo,
		gateway:   gateway,
		wallet:    walletSvc,
		users:     users,
		mailer:    mailer,
		publisher: publisher,
		opts:      opts,
	}
}

func (s *service) validateOrder(req *CreateOrderRequest) error {
	if req.Amount <= 0 {
		return api.NewValidationError("amount", "must be greater than zero")
	}
	if s.opts.MaxAmount > 0 && req.Amount > s.opts.MaxAmount {
		return api.NewValidationError("amount", fmt.Sprintf("must not exceed %d", s.opts.MaxAmount))
	}

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = s.opts.Currency
	}
	if req.Currency != s.opts.Currency {
		return api.NewValidationError("currency", "unsupported currency "+req.Currency)
	}

	if req.Purpose == "" {
		req.Purpose = PurposeWalletTopUp
	}
	if !purposes[req.Purpose] {
		return api.NewValidationError("purpose", "unknown purpose "+req.Purpose)
	}
	return nil
}

// CreateOrder records the order locally before calling the gateway, so a
// crash between the two leaves an initiated row for the reconciler rather
// than an unknown gateway order.
func (s *service) CreateOrder(ctx context.Context, userID int, req CreateOrderRequest, presenter Presenter) (*CreateOrderResponse, error) {
	ctx, span := obs.Tracer("payment").Start(ctx, "payment.CreateOrder")
	defer span.End()

	if err := s.validateOrder(&req); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.Int64("payment.amount", req.Amount),
		attribute.String("payment.purpose", req.Purpose),
	)

	payer, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	order := &Order{
		UserID:   userID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Purpose:  req.Purpose,
		Receipt:  "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:   StatusInitiated,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	metrics.RecordPaymentOrder(string(StatusInitiated))

	gw, err := s.gateway.CreateOrder(ctx, order.Amount, order.Currency, order.Receipt, map[string]string{
		"user_id": strconv.Itoa(userID),
		"purpose": order.Purpose,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway order failed")
		s.reject(ctx, order, err.Error())
		logger.WithError(err).Error("gateway order creation failed", "order_id", order.ID, "user_id", userID)
		return nil, err
	}

	if err := s.repo.AttachGatewayOrder(ctx, order.ID, gw.ID); err != nil {
		return nil, fmt.Errorf("attach gateway order: %w", err)
	}
	order.GatewayOrderID = &gw.ID
	order.Status = StatusPending
	metrics.RecordPaymentOrder(string(StatusPending))

	logger.Info("payment order created",
		"order_id", order.ID,
		"gateway_order_id", gw.ID,
		"user_id", userID,
		"amount", order.Amount,
	)

	return &CreateOrderResponse{
		OrderID:  gw.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Purpose:  order.Purpose,
		Status:   order.Status,
		Checkout: presenter.Present(order, Payer{Name: payer.Name, Email: payer.Email, Phone: payer.Phone}),
	}, nil
}

func (s *service) Verify(ctx context.Context, userID int, req VerifyRequest) (*VerifyResponse, error) {
	ctx, span := obs.Tracer("payment").Start(ctx, "payment.Verify")
	defer span.End()
	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.String("payment.order_id", req.OrderID),
		attribute.String("payment.payment_id", req.PaymentID),
	)

	switch {
	case req.OrderID == "":
		return nil, api.NewValidationError("razorpay_order_id", "is required")
	case req.PaymentID == "":
		return nil, api.NewValidationError("razorpay_payment_id", "is required")
	case req.Signature == "":
		return nil, api.NewValidationError("razorpay_signature", "is required")
	case req.Amount <= 0:
		return nil, api.NewValidationError("amount", "must be greater than zero")
	}

	order, err := s.repo.FindByGatewayOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if order.Amount != req.Amount {
		metrics.RecordVerification(SourceCheckout, "amount_mismatch")
		return nil, ErrAmountMismatch
	}

	if !s.gateway.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature) {
		metrics.RecordVerification(SourceCheckout, "signature_mismatch")
		span.SetStatus(codes.Error, "signature mismatch")
		logger.Warn("payment signature mismatch, potential tampering",
			"user_id", userID,
			"order_id", req.OrderID,
			"payment_id", req.PaymentID,
		)
		return nil, ErrSignatureMismatch
	}

	res, err := s.credit(ctx, order, req.PaymentID, SourceCheckout)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &VerifyResponse{
		Success:     true,
		Duplicate:   res.Duplicate,
		OrderID:     req.OrderID,
		Balance:     res.Transaction.BalanceAfter,
		Transaction: res.Transaction,
	}, nil
}

// credit applies the top-up idempotently on the payment id and confirms
// the order in the same transaction.
func (s *service) credit(ctx context.Context, order *Order, paymentID, source string) (*wallet.Result, error) {
	if order.Status == StatusRejected || (order.Status == StatusConfirmed && order.PaymentID != nil && *order.PaymentID != paymentID) {
		metrics.RecordVerification(source, "order_closed")
		logger.Error("captured payment for closed order needs manual review",
			"order_id", order.gatewayID(),
			"payment_id", paymentID,
			"status", order.Status,
			"source", source,
		)
		return nil, ErrOrderClosed
	}

	res, err := s.wallet.Credit(ctx, wallet.Entry{
		UserID:         order.UserID,
		Category:       wallet.CategoryTopUp,
		Amount:         order.Amount,
		Description:    describePurpose(order.Purpose),
		PaymentID:      paymentID,
		OrderID:        order.gatewayID(),
		IdempotencyKey: wallet.PaymentKey(paymentID),
	}, func(ctx context.Context, tx *sqlx.Tx, _ *wallet.Transaction) error {
		return s.repo.MarkConfirmedTx(ctx, tx, order.ID, paymentID)
	})
	if err != nil {
		metrics.RecordVerification(source, "error")
		return nil, err
	}

	if res.Duplicate {
		metrics.RecordVerification(source, ResultDuplicate)
		return res, nil
	}

	metrics.RecordVerification(source, ResultConfirmed)
	metrics.RecordPaymentOrder(string(StatusConfirmed))
	logger.Info("payment confirmed",
		"order_id", order.gatewayID(),
		"payment_id", paymentID,
		"user_id", order.UserID,
		"amount", order.Amount,
		"balance_after", res.Transaction.BalanceAfter,
		"source", source,
	)
	s.sendReceipt(ctx, order, res.Transaction)
	return res, nil
}

func (s *service) sendReceipt(ctx context.Context, order *Order, t *wallet.Transaction) {
	if s.mailer == nil {
		return
	}
	u, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		logger.WithError(err).Warn("receipt: user lookup failed", "user_id", order.UserID)
		return
	}
	if err := s.mailer.SendPaymentReceipt(ctx, u.Email, u.Name, t.Amount, order.Currency, t.BalanceAfter); err != nil {
		logger.WithError(err).Warn("receipt: queue failed", "user_id", order.UserID)
	}
}

func (s *service) reject(ctx context.Context, order *Order, reason string) {
	if err := s.repo.MarkRejected(ctx, order.ID, reason); err != nil {
		logger.WithError(err).Error("mark order rejected", "order_id", order.ID)
		return
	}
	order.Status = StatusRejected
	order.FailureReason = reason
	metrics.RecordPaymentOrder(string(StatusRejected))

	if err := s.publisher.Publish(ctx, events.PaymentRejected, order); err != nil {
		logger.WithError(err).Warn("publish payment.rejected", "order_id", order.ID)
	}
}

func (s *service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		metrics.RecordVerification(SourceWebhook, "signature_mismatch")
		logger.Warn("webhook signature mismatch, potential tampering", "bytes", len(body))
		return ErrSignatureMismatch
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return api.NewValidationError("body", "malformed webhook payload")
	}

	p := ev.Payload.Payment.Entity
	switch ev.Event {
	case webhookPaymentCaptured, webhookOrderPaid:
	case webhookPaymentFailed:
		logger.Info("gateway reported failed payment attempt", "order_id", p.OrderID, "payment_id", p.ID)
		return nil
	default:
		logger.Debug("ignoring webhook event", "event", ev.Event)
		return nil
	}

	if p.ID == "" || p.OrderID == "" {
		return api.NewValidationError("payload.payment.entity", "missing payment or order id")
	}

	order, err := s.repo.FindByGatewayOrderID(ctx, p.OrderID)
	if errors.Is(err, ErrOrderNotFound) {
		// not one of ours; acknowledge so the gateway stops retrying
		logger.Warn("webhook for unknown order", "order_id", p.OrderID, "payment_id", p.ID)
		return nil
	}
	if err != nil {
		return err
	}
	// Mismatched amounts and closed orders are permanent, so they are
	// acknowledged and left for manual review instead of retried.
	if p.Amount != order.Amount {
		metrics.RecordVerification(SourceWebhook, "amount_mismatch")
		logger.Error("webhook amount mismatch needs manual review",
			"order_id", p.OrderID, "payment_id", p.ID, "expected", order.Amount, "got", p.Amount)
		return nil
	}

	_, err = s.credit(ctx, order, p.ID, SourceWebhook)
	if errors.Is(err, ErrOrderClosed) || errors.Is(err, wallet.ErrIdempotencyConflict) {
		logger.WithError(err).Error("webhook payment needs manual review", "order_id", p.OrderID, "payment_id", p.ID)
		return nil
	}
	return err
}

func (s *service) GetOrder(ctx context.Context, userID int, gatewayOrderID string) (*Order, error) {
	order, err := s.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *service) ListOpen(ctx context.Context, olderThan time.Time, afterID, limit int) ([]Order, error) {
	return s.repo.ListOpen(ctx, olderThan, afterID, limit)
}

// Reconcile settles one open order: a captured payment is credited, an
// order older than expireBefore without one is rejected.
func (s *service) Reconcile(ctx context.Context, o Order, expireBefore time.Time) (string, error) {
	if o.GatewayOrderID == nil {
		if o.CreatedAt.Before(expireBefore) {
			s.reject(ctx, &o, "gateway order was never created")
			return ResultExpired, nil
		}
		return ResultPending, nil
	}

	payments, err := s.gateway.FetchOrderPayments(ctx, *o.GatewayOrderID)
	if err != nil {
		return "", err
	}

	for _, p := range payments {
		if p.Status != PaymentCaptured {
			continue
		}
		if p.Amount != o.Amount {
			logger.Error("reconcile: captured amount differs from order",
				"order_id", *o.GatewayOrderID, "payment_id", p.ID, "expected", o.Amount, "got", p.Amount)
			continue
		}
		res, err := s.credit(ctx, &o, p.ID, SourceReconciler)
		if err != nil {
			return "", err
		}
		if res.Duplicate {
			return ResultDuplicate, nil
		}
		return ResultConfirmed, nil
	}

	if o.CreatedAt.Before(expireBefore) {
		s.reject(ctx, &o, "expired without captured payment")
		return ResultExpired, nil
	}
	return ResultPending, nil
}
