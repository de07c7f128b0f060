package astrologer

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, a *Astrologer) error
	Update(ctx context.Context, a *Astrologer) error
	Deactivate(ctx context.Context, id int) error
	GetByID(ctx context.Context, id int) (*Astrologer, error)
	GetByUserID(ctx context.Context, userID int) (*Astrologer, error)
	List(ctx context.Context, f ListFilter) ([]Astrologer, error)
	Bookings(ctx context.Context, id, limit, offset int) ([]SessionBooking, error)
	Earnings(ctx context.Context, id int, from, to time.Time) ([]DailyEarning, error)
}
