package payment

import (
	"errors"
	"time"

	"github.com/Durgesh2022/yoga-app/internal/wallet"
)

var (
	ErrOrderNotFound     = errors.New("payment order not found")
	ErrSignatureMismatch = errors.New("signature verification failed")
	ErrAmountMismatch    = errors.New("amount does not match order")
	// ErrOrderClosed means the order reached a terminal state through a
	// different payment or was rejected.
	ErrOrderClosed = errors.New("payment order is closed")
)

// Order status follows initiated -> pending_external_confirmation ->
// confirmed | rejected.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusPending   Status = "pending_external_confirmation"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

const (
	PurposeWalletTopUp  = "wallet_topup"
	PurposePackage      = "package"
	PurposeConsultation = "consultation"
	PurposeSession      = "session"
)

var purposes = map[string]bool{
	PurposeWalletTopUp:  true,
	PurposePackage:      true,
	PurposeConsultation: true,
	PurposeSession:      true,
}

type Order struct {
	ID             int       `db:"id" json:"id"`
	UserID         int       `db:"user_id" json:"user_id"`
	GatewayOrderID *string   `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	Amount         int64     `db:"amount" json:"amount"`
	Currency       string    `db:"currency" json:"currency"`
	Purpose        string    `db:"purpose" json:"purpose"`
	Receipt        string    `db:"receipt" json:"receipt"`
	Status         Status    `db:"status" json:"status"`
	PaymentID      *string   `db:"payment_id" json:"payment_id,omitempty"`
	FailureReason  string    `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (o *Order) gatewayID() string {
	if o.GatewayOrderID == nil {
		return ""
	}
	return *o.GatewayOrderID
}

type CreateOrderRequest struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency" binding:"omitempty,len=3"`
	Purpose  string `json:"purpose" binding:"omitempty,oneof=wallet_topup package consultation session"`
}

type CreateOrderResponse struct {
	OrderID  string   `json:"order_id"`
	Amount   int64    `json:"amount"`
	Currency string   `json:"currency"`
	Purpose  string   `json:"purpose"`
	Status   Status   `json:"status"`
	Checkout Checkout `json:"checkout"`
}

// VerifyRequest is the checkout callback payload. Amount is what the client
// expects to be credited and must equal the order amount.
type VerifyRequest struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
}

type VerifyResponse struct {
	Success     bool                `json:"success"`
	Duplicate   bool                `json:"duplicate"`
	OrderID     string              `json:"order_id"`
	Balance     int64               `json:"balance"`
	Transaction *wallet.Transaction `json:"transaction"`
}

// webhookEvent is the subset of the gateway webhook body we use.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity GatewayPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

const (
	webhookPaymentCaptured = "payment.captured"
	webhookOrderPaid       = "order.paid"
	webhookPaymentFailed   = "payment.failed"
)
