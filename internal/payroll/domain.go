// Package payroll keeps employees, group rate cards and worked hours, and
// computes salaries over a date range.
package payroll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/breadline/backoffice/internal/daterange"
)

// PaymentType selects how a group is paid.
type PaymentType string

const (
	// Hourly pays hours * hourly rate.
	Hourly PaymentType = "hourly"
	// Daily pays the daily rate for each worked day.
	Daily PaymentType = "daily"
)

var (
	// ErrNotFound is returned for unknown employees or groups.
	ErrNotFound = errors.New("payroll: not found")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("payroll: invalid input")
	// ErrRateInUse blocks deleting a rate card that employees still reference.
	ErrRateInUse = errors.New("payroll: group is used by employees")
)

// RateCard is the pay configuration of one group.
type RateCard struct {
	Group       string          `json:"group"`
	PaymentType PaymentType     `json:"payment_type"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
}

// Normalize validates the card and zeroes the rate its payment type does not use.
func (r RateCard) Normalize() (RateCard, error) {
	r.Group = strings.TrimSpace(r.Group)
	if r.Group == "" {
		return r, fmt.Errorf("%w: group is required", ErrInvalid)
	}
	switch r.PaymentType {
	case Hourly:
		if !r.HourlyRate.IsPositive() {
			return r, fmt.Errorf("%w: hourly rate must be > 0", ErrInvalid)
		}
		r.DailyRate = decimal.Zero
	case Daily:
		if !r.DailyRate.IsPositive() {
			return r, fmt.Errorf("%w: daily rate must be > 0", ErrInvalid)
		}
		r.HourlyRate = decimal.Zero
	default:
		return r, fmt.Errorf("%w: payment type must be %q or %q", ErrInvalid, Hourly, Daily)
	}
	return r, nil
}

// DayRecord is what an employee did on one day.
type DayRecord struct {
	Hours  float64 `json:"hours"`
	Worked bool    `json:"worked"`
}

// Empty reports whether the record carries nothing payable.
func (d DayRecord) Empty() bool { return d.Hours <= 0 && !d.Worked }

// HoursRecord maps ISO dates to day records.
type HoursRecord map[string]DayRecord

// MaxDayHours is the most hours one day can hold.
const MaxDayHours = 24

// Validate checks every key is an ISO date and hours lie in [0, MaxDayHours].
func (h HoursRecord) Validate() error {
	for day, rec := range h {
		if _, err := daterange.Parse(day); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if rec.Hours < 0 {
			return fmt.Errorf("%w: negative hours on %s", ErrInvalid, day)
		}
		if rec.Hours > MaxDayHours {
			return fmt.Errorf("%w: more than %d hours on %s", ErrInvalid, MaxDayHours, day)
		}
	}
	return nil
}

// Within keeps non-empty records inside rng.
func (h HoursRecord) Within(rng daterange.Range) HoursRecord {
	out := make(HoursRecord)
	for day, rec := range h {
		d, err := daterange.Parse(day)
		if err != nil || !rng.Contains(d) || rec.Empty() {
			continue
		}
		out[day] = rec
	}
	return out
}

// Employee is a staff member.
type Employee struct {
	ID        int64       `json:"id"`
	FirstName string      `json:"first_name" validate:"required"`
	LastName  string      `json:"last_name" validate:"required"`
	Group     string      `json:"group" validate:"required"`
	Hours     HoursRecord `json:"hours"`
}

// FullName joins first and last names.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}
