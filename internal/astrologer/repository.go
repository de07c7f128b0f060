package astrologer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const astrologerColumns = `id, user_id, name, bio, languages, specialties, services, availability,
	rating, experience_years, is_active, created_at, updated_at`

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, a *Astrologer) error {
	query := `
		INSERT INTO astrologers
			(user_id, name, bio, languages, specialties, services, availability, rating, experience_years, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
		RETURNING id, is_active, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		a.UserID, a.Name, a.Bio, a.Languages, a.Specialties, a.Services, a.Availability, a.Rating, a.ExperienceYears,
	).Scan(&a.ID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return mapConstraint(err)
}

func (r *repository) Update(ctx context.Context, a *Astrologer) error {
	query := `
		UPDATE astrologers
		SET user_id = $1, name = $2, bio = $3, languages = $4, specialties = $5, services = $6,
			availability = $7, rating = $8, experience_years = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		a.UserID, a.Name, a.Bio, a.Languages, a.Specialties, a.Services, a.Availability, a.Rating, a.ExperienceYears, a.ID,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAstrologerNotFound
	}
	return mapConstraint(err)
}

func (r *repository) Deactivate(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE astrologers SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAstrologerNotFound
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Astrologer, error) {
	return r.getOne(ctx, `SELECT `+astrologerColumns+` FROM astrologers WHERE id = $1`, id)
}

func (r *repository) GetByUserID(ctx context.Context, userID int) (*Astrologer, error) {
	return r.getOne(ctx, `SELECT `+astrologerColumns+` FROM astrologers WHERE user_id = $1`, userID)
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (*Astrologer, error) {
	var a Astrologer
	err := r.db.GetContext(ctx, &a, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAstrologerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns active astrologers. Specialty and language filters match
// array elements exactly.
func (r *repository) List(ctx context.Context, f ListFilter) ([]Astrologer, error) {
	var (
		where = []string{"is_active = TRUE"}
		args  []any
	)
	if f.Specialty != "" {
		args = append(args, StringList{f.Specialty})
		where = append(where, fmt.Sprintf("specialties @> $%d::jsonb", len(args)))
	}
	if f.Language != "" {
		args = append(args, StringList{f.Language})
		where = append(where, fmt.Sprintf("languages @> $%d::jsonb", len(args)))
	}

	order := "rating DESC, id ASC"
	switch f.Sort {
	case SortExperience:
		order = "experience_years DESC, id ASC"
	case SortPrice:
		order = `(SELECT MIN((s->>'price')::bigint) FROM jsonb_array_elements(services) s) ASC NULLS LAST, id ASC`
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM astrologers
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		astrologerColumns, strings.Join(where, " AND "), order, len(args)-1, len(args))

	astrologers := []Astrologer{}
	if err := r.db.SelectContext(ctx, &astrologers, query, args...); err != nil {
		return nil, err
	}
	return astrologers, nil
}

func (r *repository) Bookings(ctx context.Context, id, limit, offset int) ([]SessionBooking, error) {
	query := `
		SELECT b.id, b.user_id, u.name AS user_name, b.kind, b.title, b.amount, b.status,
			b.scheduled_at, b.created_at
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.astrologer_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3`

	bookings := []SessionBooking{}
	if err := r.db.SelectContext(ctx, &bookings, query, id, limit, offset); err != nil {
		return nil, err
	}
	return bookings, nil
}

// Earnings sums paid and fulfilled bookings per UTC day in [from, to).
func (r *repository) Earnings(ctx context.Context, id int, from, to time.Time) ([]DailyEarning, error) {
	query := `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
			COALESCE(SUM(amount), 0) AS amount,
			COUNT(*) AS sessions
		FROM bookings
		WHERE astrologer_id = $1
			AND status IN ('paid', 'fulfilled')
			AND created_at >= $2 AND created_at < $3
		GROUP BY day
		ORDER BY day ASC`

	days := []DailyEarning{}
	if err := r.db.SelectContext(ctx, &days, query, id, from, to); err != nil {
		return nil, err
	}
	return days, nil
}

func mapConstraint(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return ErrUserAlreadyLinked
		case foreignKeyViolation:
			return ErrUserNotFound
		}
	}
	return err
}
