package astrologer

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrAstrologerNotFound = errors.New("astrologer not found")
	ErrServiceNotOffered  = errors.New("service not offered by this astrologer")
	ErrUserAlreadyLinked  = errors.New("user is already linked to an astrologer profile")
	ErrUserNotFound       = errors.New("linked user not found")
)

const (
	SortRating     = "rating"
	SortExperience = "experience"
	SortPrice      = "price"
)

// StringList is stored as a JSONB array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

// Offering is a bookable service and its price in minor units.
type Offering struct {
	Name            string `json:"name" binding:"required,max=64"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,gt=0,lte=480"`
	Price           int64  `json:"price" binding:"required,gt=0"`
}

type Offerings []Offering

func (o Offerings) Value() (driver.Value, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Offering(o))
}

func (o *Offerings) Scan(src any) error {
	return scanJSON(src, o)
}

// Slot is a weekly availability window in the astrologer's local time.
type Slot struct {
	Day   string `json:"day" binding:"required,oneof=mon tue wed thu fri sat sun"`
	Start string `json:"start" binding:"required,datetime=15:04"`
	End   string `json:"end" binding:"required,datetime=15:04"`
}

type Availability []Slot

func (a Availability) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Slot(a))
}

func (a *Availability) Scan(src any) error {
	return scanJSON(src, a)
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
}

type Astrologer struct {
	ID              int             `db:"id" json:"id"`
	UserID          *int            `db:"user_id" json:"user_id,omitempty"`
	Name            string          `db:"name" json:"name"`
	Bio             string          `db:"bio" json:"bio"`
	Languages       StringList      `db:"languages" json:"languages" swaggertype:"array,string"`
	Specialties     StringList      `db:"specialties" json:"specialties" swaggertype:"array,string"`
	Services        Offerings       `db:"services" json:"services"`
	Availability    Availability    `db:"availability" json:"availability"`
	Rating          decimal.Decimal `db:"rating" json:"rating" swaggertype:"number"`
	ExperienceYears int             `db:"experience_years" json:"experience_years"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Offering looks a service up by name, case-insensitively.
func (a *Astrologer) Offering(name string) (Offering, bool) {
	for _, o := range a.Services {
		if strings.EqualFold(o.Name, name) {
			return o, true
		}
	}
	return Offering{}, false
}

type ListFilter struct {
	Specialty string
	Language  string
	Sort      string
	Limit     int
	Offset    int
}

type UpsertRequest struct {
	UserID          *int       `json:"user_id" binding:"omitempty,gt=0"`
	Name            string     `json:"name" binding:"required,min=2,max=255"`
	Bio             string     `json:"bio" binding:"max=4000"`
	Languages       []string   `json:"languages" binding:"dive,min=2,max=32"`
	Specialties     []string   `json:"specialties" binding:"dive,min=2,max=64"`
	Services        []Offering `json:"services" binding:"dive"`
	Availability    []Slot     `json:"availability" binding:"dive"`
	Rating          float64    `json:"rating" binding:"gte=0,lte=5"`
	ExperienceYears int        `json:"experience_years" binding:"gte=0,lte=80"`
}

// ProfileRequest holds the fields an astrologer may change on their own
// profile. Nil fields are left as they are.
type ProfileRequest struct {
	Bio          *string    `json:"bio" binding:"omitempty,max=4000"`
	Languages    []string   `json:"languages" binding:"omitempty,dive,min=2,max=32"`
	Specialties  []string   `json:"specialties" binding:"omitempty,dive,min=2,max=64"`
	Services     []Offering `json:"services" binding:"omitempty,dive"`
	Availability []Slot     `json:"availability" binding:"omitempty,dive"`
}

// SessionBooking is a booking made with an astrologer, as the astrologer
// sees it.
type SessionBooking struct {
	ID          int        `db:"id" json:"id"`
	UserID      int        `db:"user_id" json:"user_id"`
	UserName    string     `db:"user_name" json:"user_name"`
	Kind        string     `db:"kind" json:"kind"`
	Title       string     `db:"title" json:"title"`
	Amount      int64      `db:"amount" json:"amount"`
	Status      string     `db:"status" json:"status"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

type DailyEarning struct {
	Day           time.Time `db:"day" json:"day"`
	Amount        int64     `db:"amount" json:"amount"`
	Sessions      int       `db:"sessions" json:"sessions"`
	DisplayAmount string    `db:"-" json:"display_amount"`
}

type EarningsReport struct {
	AstrologerID int            `json:"astrologer_id"`
	From         time.Time      `json:"from"`
	To           time.Time      `json:"to"`
	Total        int64          `json:"total"`
	DisplayTotal string         `json:"display_total"`
	Sessions     int            `json:"sessions"`
	Days         []DailyEarning `json:"days"`
}
