package astrologer

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Durgesh2022/yoga-app/internal/api"
	"github.com/Durgesh2022/yoga-app/internal/auth"
	"github.com/Durgesh2022/yoga-app/internal/logger"
	"github.com/Durgesh2022/yoga-app/internal/user"
	"github.com/Durgesh2022/yoga-app/internal/wallet"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	// MaxEarningsRange bounds one earnings query.
	MaxEarningsRange = 366 * 24 * time.Hour
)

// Roles is the part of the user store needed to promote a linked account.
type Roles interface {
	SetRole(ctx context.Context, userID int, role string) error
}

type Service interface {
	List(ctx context.Context, f ListFilter) ([]Astrologer, error)
	Get(ctx context.Context, id int) (*Astrologer, error)
	GetByUserID(ctx context.Context, userID int) (*Astrologer, error)
	Create(ctx context.Context, req UpsertRequest) (*Astrologer, error)
	Update(ctx context.Context, id int, req UpsertRequest) (*Astrologer, error)
	UpdateProfile(ctx context.Context, userID int, req ProfileRequest) (*Astrologer, error)
	Deactivate(ctx context.Context, id int) error
	Bookings(ctx context.Context, id, limit, offset int) ([]SessionBooking, error)
	Earnings(ctx context.Context, id int, from, to time.Time) (*EarningsReport, error)
}

type service struct {
	repo  Repository
	roles Roles
}

func NewService(repo Repository, roles Roles) Service {
	return &service{repo: repo, roles: roles}
}

func (s *service) List(ctx context.Context, f ListFilter) ([]Astrologer, error) {
	switch f.Sort {
	case "", SortRating, SortExperience, SortPrice:
	default:
		return nil, api.NewValidationError("sort", "must be one of rating, experience, price")
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

func (s *service) Get(ctx context.Context, id int) (*Astrologer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByUserID(ctx context.Context, userID int) (*Astrologer, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *service) Create(ctx context.Context, req UpsertRequest) (*Astrologer, error) {
	a := &Astrologer{}
	apply(a, req)

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	if err := s.promote(ctx, a.UserID); err != nil {
		return nil, err
	}

	logger.Info("astrologer created", "astrologer_id", a.ID, "name", a.Name)
	return a, nil
}

func (s *service) Update(ctx context.Context, id int, req UpsertRequest) (*Astrologer, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	linked := a.UserID
	apply(a, req)

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	if a.UserID != nil && (linked == nil || *linked != *a.UserID) {
		if err := s.promote(ctx, a.UserID); err != nil {
			return nil, err
		}
	}

	logger.Info("astrologer updated", "astrologer_id", a.ID)
	return a, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID int, req ProfileRequest) (*Astrologer, error) {
	a, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Bio != nil {
		a.Bio = *req.Bio
	}
	if req.Languages != nil {
		a.Languages = req.Languages
	}
	if req.Specialties != nil {
		a.Specialties = req.Specialties
	}
	if req.Services != nil {
		a.Services = req.Services
	}
	if req.Availability != nil {
		a.Availability = req.Availability
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) Deactivate(ctx context.Context, id int) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	logger.Info("astrologer deactivated", "astrologer_id", id)
	return nil
}

func (s *service) Bookings(ctx context.Context, id, limit, offset int) ([]SessionBooking, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
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
	return s.repo.Bookings(ctx, id, limit, offset)
}

func (s *service) Earnings(ctx context.Context, id int, from, to time.Time) (*EarningsReport, error) {
	if !to.After(from) {
		return nil, api.NewValidationError("to", "must be after from")
	}
	if to.Sub(from) > MaxEarningsRange {
		return nil, api.NewValidationError("from", "range must not exceed one year")
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	days, err := s.repo.Earnings(ctx, id, from, to)
	if err != nil {
		return nil, err
	}

	report := &EarningsReport{AstrologerID: id, From: from, To: to, Days: days}
	for i := range days {
		days[i].DisplayAmount = wallet.FormatAmount(days[i].Amount)
		report.Total += days[i].Amount
		report.Sessions += days[i].Sessions
	}
	report.DisplayTotal = wallet.FormatAmount(report.Total)
	return report, nil
}

func (s *service) promote(ctx context.Context, userID *int) error {
	if userID == nil || s.roles == nil {
		return nil
	}
	err := s.roles.SetRole(ctx, *userID, auth.RoleAstrologer)
	if errors.Is(err, user.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}

func apply(a *Astrologer, req UpsertRequest) {
	a.UserID = req.UserID
	a.Name = req.Name
	a.Bio = req.Bio
	a.Languages = req.Languages
	a.Specialties = req.Specialties
	a.Services = req.Services
	a.Availability = req.Availability
	a.Rating = decimal.NewFromFloat(req.Rating).Round(2)
	a.ExperienceYears = req.ExperienceYears
}
