package wallet

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Durgesh2022/yoga-app/internal/api"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrIdempotencyConflict means a key was reused for a different mutation.
	ErrIdempotencyConflict = errors.New("idempotency key already used for a different transaction")
)

type Type string

const (
	TypeCredit Type = "credit"
	TypeDebit  Type = "debit"
)

// Category classifies a ledger row. It is written with the row and never
// derived from the description.
type Category string

const (
	CategoryTopUp             Category = "topup"
	CategoryBookingPayment    Category = "booking_payment"
	CategoryPackagePurchase   Category = "package_purchase"
	CategoryConsultation      Category = "consultation"
	CategoryAstrologerSession Category = "astrologer_session"
	CategoryRefund            Category = "refund"
	CategoryAdminCredit       Category = "admin_credit"
	CategoryAdminDebit        Category = "admin_debit"
)

var categoryTypes = map[Category]Type{
	CategoryTopUp:             TypeCredit,
	CategoryRefund:            TypeCredit,
	CategoryAdminCredit:       TypeCredit,
	CategoryBookingPayment:    TypeDebit,
	CategoryPackagePurchase:   TypeDebit,
	CategoryConsultation:      TypeDebit,
	CategoryAstrologerSession: TypeDebit,
	CategoryAdminDebit:        TypeDebit,
}

var categoryLabels = map[Category]string{
	CategoryTopUp:             "Wallet top-up",
	CategoryBookingPayment:    "Class booking",
	CategoryPackagePurchase:   "Package purchase",
	CategoryConsultation:      "Consultation",
	CategoryAstrologerSession: "Astrologer session",
	CategoryRefund:            "Refund",
	CategoryAdminCredit:       "Adjustment (credit)",
	CategoryAdminDebit:        "Adjustment (debit)",
}

// Valid reports whether c is a known category usable with t.
func (c Category) Valid(t Type) bool {
	ct, ok := categoryTypes[c]
	return ok && ct == t
}

func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

const StatusCompleted = "completed"

type Transaction struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int       `db:"user_id" json:"user_id"`
	Type           Type      `db:"type" json:"type"`
	Category       Category  `db:"category" json:"category"`
	Amount         int64     `db:"amount" json:"amount"`
	BalanceAfter   int64     `db:"balance_after" json:"balance_after"`
	Description    string    `db:"description" json:"description"`
	PaymentID      *string   `db:"payment_id" json:"payment_id,omitempty"`
	OrderID        *string   `db:"order_id" json:"order_id,omitempty"`
	BookingID      *string   `db:"booking_id" json:"booking_id,omitempty"`
	IdempotencyKey string    `db:"idempotency_key" json:"-"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Signed returns the amount with the sign it has on the balance.
func (t *Transaction) Signed() int64 {
	if t.Type == TypeDebit {
		return -t.Amount
	}
	return t.Amount
}

// Entry is a requested ledger mutation.
type Entry struct {
	UserID         int
	Type           Type
	Category       Category
	Amount         int64
	Description    string
	PaymentID      string
	OrderID        string
	BookingID      string
	IdempotencyKey string
}

func (e Entry) validate() error {
	switch {
	case e.UserID <= 0:
		return api.NewValidationError("user_id", "must be positive")
	case e.Amount <= 0:
		return api.NewValidationError("amount", "must be greater than zero")
	case e.Type != TypeCredit && e.Type != TypeDebit:
		return api.NewValidationError("type", "must be credit or debit")
	case !e.Category.Valid(e.Type):
		return api.NewValidationError("category", fmt.Sprintf("%q is not a %s category", e.Category, e.Type))
	case e.IdempotencyKey == "":
		return api.NewValidationError("idempotency_key", "is required")
	}
	return nil
}

// matches reports whether t could have been produced by e.
func (e Entry) matches(t *Transaction) bool {
	return t.UserID == e.UserID && t.Type == e.Type && t.Amount == e.Amount
}

// Result is the outcome of a mutation. Duplicate is set when the
// idempotency key had already been applied; Transaction is then the
// original row.
type Result struct {
	Transaction *Transaction `json:"transaction"`
	Duplicate   bool         `json:"duplicate"`
}

// InsufficientBalance is returned instead of mutating when a debit exceeds
// the balance.
type InsufficientBalance struct {
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
	Shortfall int64 `json:"shortfall"`
}

func (e *InsufficientBalance) Error() string {
	return fmt.Sprintf("insufficient balance: required %d, available %d", e.Required, e.Available)
}

func newShortfall(required, available int64) *InsufficientBalance {
	return &InsufficientBalance{
		Required:  required,
		Available: available,
		Shortfall: required - available,
	}
}

// HistoryItem is a ledger row rendered for display.
type HistoryItem struct {
	Transaction
	Label         string `json:"label"`
	DisplayAmount string `json:"display_amount"`
}

func newHistoryItem(t Transaction) HistoryItem {
	display := FormatAmount(t.Signed())
	if t.Type == TypeCredit {
		display = "+" + display
	}
	return HistoryItem{
		Transaction:   t,
		Label:         t.Category.Label(),
		DisplayAmount: display,
	}
}

// FormatAmount renders minor units as a two-decimal major amount.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

type AuditReport struct {
	UserID           int    `json:"user_id"`
	Balance          int64  `json:"balance"`
	LedgerSum        int64  `json:"ledger_sum"`
	TransactionCount int    `json:"transaction_count"`
	Consistent       bool   `json:"consistent"`
	FirstMismatchID  *int64 `json:"first_mismatch_id,omitempty"`
}

func PaymentKey(paymentID string) string {
	return "payment:" + paymentID
}

func BookingKey(bookingID string) string {
	return "booking:" + bookingID
}

// DeductKey scopes a client debit reference to its user so it never shares
// a key with another user's debit or with a booking payment.
func DeductKey(userID int, ref string) string {
	return "deduct:" + strconv.Itoa(userID) + ":" + ref
}

func RefundKey(bookingID int) string {
	return "refund:booking:" + strconv.Itoa(bookingID)
}

func AdminKey(key string) string {
	return "admin:" + key
}
