package booking

import (
	"errors"
	"time"

	"github.com/Durgesh2022/yoga-app/internal/wallet"
)

var (
	ErrBookingNotFound       = errors.New("booking not found")
	ErrBookingClosed         = errors.New("booking cannot change from its current status")
	ErrAstrologerUnavailable = errors.New("astrologer is not taking bookings")
)

type Kind string

const (
	KindClass        Kind = "class_booking"
	KindPackage      Kind = "package_purchase"
	KindConsultation Kind = "consultation"
	KindSession      Kind = "astrologer_session"
)

// category is the ledger category a booking of this kind is paid under.
func (k Kind) category() wallet.Category {
	switch k {
	case KindPackage:
		return wallet.CategoryPackagePurchase
	case KindConsultation:
		return wallet.CategoryConsultation
	case KindSession:
		return wallet.CategoryAstrologerSession
	default:
		return wallet.CategoryBookingPayment
	}
}

func (k Kind) withAstrologer() bool {
	return k == KindConsultation || k == KindSession
}

// Status moves pending -> paid -> fulfilled, or to cancelled from pending
// or paid.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

type Booking struct {
	ID            int        `db:"id" json:"id"`
	UserID        int        `db:"user_id" json:"user_id"`
	Kind          Kind       `db:"kind" json:"kind"`
	ReferenceID   string     `db:"reference_id" json:"reference_id"`
	AstrologerID  *int       `db:"astrologer_id" json:"astrologer_id,omitempty"`
	Title         string     `db:"title" json:"title"`
	Amount        int64      `db:"amount" json:"amount"`
	Credits       int        `db:"credits" json:"credits"`
	Status        Status     `db:"status" json:"status"`
	ScheduledAt   *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	TransactionID *int64     `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	Kind         Kind       `json:"kind" binding:"required,oneof=class_booking package_purchase consultation astrologer_session"`
	ItemID       string     `json:"item_id" binding:"max=64"`
	AstrologerID int        `json:"astrologer_id" binding:"omitempty,gt=0"`
	Service      string     `json:"service" binding:"max=64"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
}

type PayResponse struct {
	Success     bool                `json:"success"`
	Duplicate   bool                `json:"duplicate"`
	Booking     *Booking            `json:"booking"`
	Balance     int64               `json:"balance"`
	Transaction *wallet.Transaction `json:"transaction"`
}

type CancelResponse struct {
	Booking  *Booking `json:"booking"`
	Refunded int64    `json:"refunded"`
	Balance  *int64   `json:"balance,omitempty"`
}
