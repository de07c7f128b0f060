package booking

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Durgesh2022/yoga-app/internal/api"
	"github.com/Durgesh2022/yoga-app/internal/astrologer"
	"github.com/Durgesh2022/yoga-app/internal/auth"
	"github.com/Durgesh2022/yoga-app/internal/email"
	"github.com/Durgesh2022/yoga-app/internal/events"
	"github.com/Durgesh2022/yoga-app/internal/logger"
	"github.com/Durgesh2022/yoga-app/internal/metrics"
	"github.com/Durgesh2022/yoga-app/internal/user"
	"github.com/Durgesh2022/yoga-app/internal/wallet"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type Astrologers interface {
	Get(ctx context.Context, id int) (*astrologer.Astrologer, error)
	GetByUserID(ctx context.Context, userID int) (*astrologer.Astrologer, error)
}

type Users interface {
	FindByID(ctx context.Context, id int) (*user.User, error)
}

// Actor is the caller of a booking operation.
type Actor struct {
	UserID int
	Role   string
}

func (a Actor) isAdmin() bool { return a.Role == auth.RoleAdmin }

type Service interface {
	Catalog() []CatalogItem
	Create(ctx context.Context, userID int, req CreateRequest) (*Booking, error)
	Get(ctx context.Context, actor Actor, id int) (*Booking, error)
	List(ctx context.Context, userID int, status Status, limit, offset int) ([]Booking, error)
	Pay(ctx context.Context, actor Actor, id int) (*PayResponse, error)
	Cancel(ctx context.Context, actor Actor, id int) (*CancelResponse, error)
	Fulfil(ctx context.Context, actor Actor, id int) (*Booking, error)
}

type service struct {
	repo        Repository
	wallet      wallet.Service
	astrologers Astrologers
	users       Users
	mailer      email.Mailer
	publisher   events.Publisher
	now         func() time.Time
}

func NewService(repo Repository, walletSvc wallet.Service, astrologers Astrologers, users Users, mailer email.Mailer, publisher events.Publisher) Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &service{
		repo:        repo,
		wallet:      walletSvc,
		astrologers: astrologers,
		users:       users,
		mailer:      mailer,
		publisher:   publisher,
		now:         time.Now,
	}
}

func (s *service) Catalog() []CatalogItem {
	return Catalog()
}

func (s *service) Create(ctx context.Context, userID int, req CreateRequest) (*Booking, error) {
	if req.ScheduledAt != nil && req.ScheduledAt.Before(s.now()) {
		return nil, api.NewValidationError("scheduled_at", "cannot book a time in the past")
	}

	b := &Booking{
		UserID:      userID,
		Kind:        req.Kind,
		ScheduledAt: req.ScheduledAt,
	}

	switch req.Kind {
	case KindClass, KindPackage:
		item, err := findItem(req.Kind, req.ItemID)
		if err != nil {
			return nil, err
		}
		b.ReferenceID = item.ID
		b.Title = item.Title
		b.Amount = item.Price
		b.Credits = item.Credits

	case KindConsultation, KindSession:
		if req.AstrologerID <= 0 {
			return nil, api.NewValidationError("astrologer_id", "is required for "+string(req.Kind))
		}
		a, err := s.astrologers.Get(ctx, req.AstrologerID)
		if err != nil {
			return nil, err
		}
		if !a.IsActive {
			return nil, ErrAstrologerUnavailable
		}
		offer, ok := a.Offering(req.Service)
		if !ok {
			return nil, astrologer.ErrServiceNotOffered
		}
		b.AstrologerID = &a.ID
		b.ReferenceID = offer.Name
		b.Title = offer.Name + " with " + a.Name
		b.Amount = offer.Price
		b.Credits = 1

	default:
		return nil, api.NewValidationError("kind", "unknown booking kind "+string(req.Kind))
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	metrics.RecordBooking(string(b.Kind), string(StatusPending))
	logger.Info("booking created",
		"booking_id", b.ID,
		"user_id", userID,
		"kind", b.Kind,
		"amount", b.Amount,
	)
	return b, nil
}

func (s *service) Get(ctx context.Context, actor Actor, id int) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != actor.UserID && !actor.isAdmin() {
		return nil, ErrBookingNotFound
	}
	return b, nil
}

func (s *service) List(ctx context.Context, userID int, status Status, limit, offset int) ([]Booking, error) {
	switch status {
	case "", StatusPending, StatusPaid, StatusFulfilled, StatusCancelled:
	default:
		return nil, api.NewValidationError("status", "unknown status "+string(status))
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, status, limit, offset)
}

// Pay debits the wallet once per booking. Paying an already paid booking
// returns the original debit.
func (s *service) Pay(ctx context.Context, actor Actor, id int) (*PayResponse, error) {
	b, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if b.Status == StatusCancelled {
		return nil, ErrBookingClosed
	}

	bookingRef := strconv.Itoa(b.ID)
	res, err := s.wallet.Debit(ctx, wallet.Entry{
		UserID:         b.UserID,
		Category:       b.Kind.category(),
		Amount:         b.Amount,
		Description:    b.Title,
		BookingID:      bookingRef,
		IdempotencyKey: wallet.BookingKey(bookingRef),
	}, func(ctx context.Context, tx *sqlx.Tx, t *wallet.Transaction) error {
		return s.repo.MarkPaidTx(ctx, tx, b.ID, t.ID)
	})
	if err != nil {
		var short *wallet.InsufficientBalance
		if errors.As(err, &short) {
			metrics.RecordBooking(string(b.Kind), "insufficient")
		}
		return nil, err
	}

	t := res.Transaction
	if res.Duplicate {
		balance, err := s.wallet.Balance(ctx, b.UserID)
		if err != nil {
			return nil, err
		}
		if b.Status == StatusPending {
			// the debit exists but the row was never linked to it
			if err := s.repo.MarkPaid(ctx, b.ID, t.ID); err != nil {
				return nil, err
			}
			logger.Warn("booking linked to existing debit", "booking_id", b.ID, "transaction_id", t.ID)
			b.Status = StatusPaid
		}
		b.TransactionID = &t.ID
		return &PayResponse{Success: true, Duplicate: true, Booking: b, Balance: balance, Transaction: t}, nil
	}

	b.Status = StatusPaid
	b.TransactionID = &t.ID
	metrics.RecordBooking(string(b.Kind), string(StatusPaid))
	logger.Info("booking paid",
		"booking_id", b.ID,
		"user_id", b.UserID,
		"amount", b.Amount,
		"balance_after", t.BalanceAfter,
	)

	if err := s.publisher.Publish(ctx, events.BookingPaid, b); err != nil {
		logger.WithError(err).Warn("publish booking.paid", "booking_id", b.ID)
	}
	s.notify(ctx, b, func(u *user.User) error {
		return s.mailer.SendBookingConfirmation(ctx, u.Email, u.Name, b.Title, b.Amount, b.ScheduledAt)
	})

	return &PayResponse{Success: true, Booking: b, Balance: t.BalanceAfter, Transaction: t}, nil
}

// Cancel cancels a pending booking outright and refunds a paid one in the
// same transaction that closes it.
func (s *service) Cancel(ctx context.Context, actor Actor, id int) (*CancelResponse, error) {
	b, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	resp := &CancelResponse{Booking: b}
	switch b.Status {
	case StatusPending:
		if err := s.repo.CancelPending(ctx, b.ID); err != nil {
			return nil, err
		}

	case StatusPaid:
		res, err := s.wallet.Credit(ctx, wallet.Entry{
			UserID:         b.UserID,
			Category:       wallet.CategoryRefund,
			Amount:         b.Amount,
			Description:    "Refund: " + b.Title,
			BookingID:      strconv.Itoa(b.ID),
			IdempotencyKey: wallet.RefundKey(b.ID),
		}, func(ctx context.Context, tx *sqlx.Tx, _ *wallet.Transaction) error {
			return s.repo.CancelTx(ctx, tx, b.ID)
		})
		if err != nil {
			return nil, err
		}
		resp.Refunded = b.Amount
		resp.Balance = &res.Transaction.BalanceAfter

	default:
		return nil, ErrBookingClosed
	}

	b.Status = StatusCancelled
	metrics.RecordBooking(string(b.Kind), string(StatusCancelled))
	logger.Info("booking cancelled",
		"booking_id", b.ID,
		"user_id", b.UserID,
		"by", actor.UserID,
		"refunded", resp.Refunded,
	)

	if err := s.publisher.Publish(ctx, events.BookingCancelled, resp); err != nil {
		logger.WithError(err).Warn("publish booking.cancelled", "booking_id", b.ID)
	}
	s.notify(ctx, b, func(u *user.User) error {
		return s.mailer.SendCancellation(ctx, u.Email, u.Name, b.Title, resp.Refunded)
	})

	return resp, nil
}

// Fulfil marks a paid booking delivered. Astrologers may only fulfil their
// own sessions.
func (s *service) Fulfil(ctx context.Context, actor Actor, id int) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.isAdmin() {
		if actor.Role != auth.RoleAstrologer || b.AstrologerID == nil {
			return nil, ErrBookingNotFound
		}
		mine, err := s.astrologers.GetByUserID(ctx, actor.UserID)
		if err != nil || mine.ID != *b.AstrologerID {
			return nil, ErrBookingNotFound
		}
	}

	if err := s.repo.Fulfil(ctx, b.ID); err != nil {
		return nil, err
	}
	b.Status = StatusFulfilled
	metrics.RecordBooking(string(b.Kind), string(StatusFulfilled))
	logger.Info("booking fulfilled", "booking_id", b.ID, "by", actor.UserID)
	return b, nil
}

func (s *service) notify(ctx context.Context, b *Booking, send func(u *user.User) error) {
	if s.mailer == nil || s.users == nil {
		return
	}
	u, err := s.users.FindByID(ctx, b.UserID)
	if err != nil {
		logger.WithError(err).Warn("booking email: user lookup failed", "user_id", b.UserID)
		return
	}
	if err := send(u); err != nil {
		logger.WithError(err).Warn("booking email: queue failed", "booking_id", b.ID)
	}
}
