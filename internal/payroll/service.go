package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/breadline/backoffice/internal/daterange"
)

// MaxRangeDays bounds salary grids.
const MaxRangeDays = 366

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	ListEmployees(ctx context.Context) ([]Employee, error)
	HoursBetween(ctx context.Context, rng daterange.Range) (map[int64]HoursRecord, error)
	CreateEmployee(ctx context.Context, e Employee) (Employee, error)
	UpdateEmployee(ctx context.Context, e Employee, replace *daterange.Range) error
	DeleteEmployee(ctx context.Context, id int64) (Employee, error)
	ReplaceHours(ctx context.Context, rng daterange.Range, hours map[int64]HoursRecord) error
	ListRates(ctx context.Context) ([]RateCard, error)
	UpsertRate(ctx context.Context, c RateCard) error
	DeleteRate(ctx context.Context, group string) (RateCard, error)
}

// Service coordinates payroll operations. Salaries are recomputed on every call.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Employees lists employees with their hours inside rng. A nil rng skips hours.
func (s *Service) Employees(ctx context.Context, rng *daterange.Range) ([]Employee, error) {
	employees, err := s.repo.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("payroll: list employees: %w", err)
	}
	if employees == nil {
		employees = []Employee{}
	}
	if rng == nil {
		return employees, nil
	}
	hours, err := s.repo.HoursBetween(ctx, *rng)
	if err != nil {
		return nil, fmt.Errorf("payroll: load hours: %w", err)
	}
	for i := range employees {
		employees[i].Hours = hours[employees[i].ID]
		if employees[i].Hours == nil {
			employees[i].Hours = HoursRecord{}
		}
	}
	return employees, nil
}

// SaveEmployee creates e when it has no id, otherwise updates it. On update,
// hours are left untouched unless e carries some, in which case the dates
// they span are replaced.
func (s *Service) SaveEmployee(ctx context.Context, e Employee) (Employee, error) {
	e.FirstName = strings.TrimSpace(e.FirstName)
	e.LastName = strings.TrimSpace(e.LastName)
	e.Group = strings.TrimSpace(e.Group)
	if e.FirstName == "" || e.LastName == "" || e.Group == "" {
		return Employee{}, fmt.Errorf("%w: first name, last name and group are required", ErrInvalid)
	}
	if err := e.Hours.Validate(); err != nil {
		return Employee{}, err
	}
	if e.ID == 0 {
		created, err := s.repo.CreateEmployee(ctx, e)
		if err != nil {
			return Employee{}, fmt.Errorf("payroll: create employee: %w", err)
		}
		s.logger.Info("employee created", slog.Int64("id", created.ID))
		return created, nil
	}
	var replace *daterange.Range
	if span, ok := hoursSpan(e.Hours); ok {
		replace = &span
	}
	if err := s.repo.UpdateEmployee(ctx, e, replace); err != nil {
		return Employee{}, err
	}
	s.logger.Info("employee updated", slog.Int64("id", e.ID))
	return e, nil
}

func hoursSpan(h HoursRecord) (daterange.Range, bool) {
	var rng daterange.Range
	for day := range h {
		d, err := daterange.Parse(day)
		if err != nil {
			continue
		}
		if rng.From.IsZero() || d.Before(rng.From) {
			rng.From = d
		}
		if rng.To.IsZero() || d.After(rng.To) {
			rng.To = d
		}
	}
	return rng, !rng.From.IsZero()
}

// DeleteEmployee removes an employee.
func (s *Service) DeleteEmployee(ctx context.Context, id int64) (Employee, error) {
	e, err := s.repo.DeleteEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	s.logger.Info("employee deleted", slog.Int64("id", id))
	return e, nil
}

// ApproveHours stores the submitted grid for rng: for every listed employee
// the records inside rng are replaced, dropping empty days.
func (s *Service) ApproveHours(ctx context.Context, rng daterange.Range, hours map[int64]HoursRecord) error {
	if err := rng.CheckLimit(MaxRangeDays); err != nil {
		return err
	}
	clean := make(map[int64]HoursRecord, len(hours))
	for id, rec := range hours {
		if err := rec.Validate(); err != nil {
			return err
		}
		clean[id] = rec.Within(rng)
	}
	if err := s.repo.ReplaceHours(ctx, rng, clean); err != nil {
		return err
	}
	s.logger.Info("hours approved", slog.String("range", rng.String()), slog.Int("employees", len(clean)))
	return nil
}

// Rates lists rate cards.
func (s *Service) Rates(ctx context.Context) ([]RateCard, error) {
	rates, err := s.repo.ListRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("payroll: list rates: %w", err)
	}
	if rates == nil {
		rates = []RateCard{}
	}
	return rates, nil
}

// SaveRate validates and stores a rate card.
func (s *Service) SaveRate(ctx context.Context, c RateCard) (RateCard, error) {
	c, err := c.Normalize()
	if err != nil {
		return RateCard{}, err
	}
	if err := s.repo.UpsertRate(ctx, c); err != nil {
		return RateCard{}, fmt.Errorf("payroll: save rate: %w", err)
	}
	s.logger.Info("rate saved", slog.String("group", c.Group), slog.String("payment_type", string(c.PaymentType)))
	return c, nil
}

// DeleteRate removes a rate card.
func (s *Service) DeleteRate(ctx context.Context, group string) (RateCard, error) {
	return s.repo.DeleteRate(ctx, group)
}

// Period is a computed salary grid.
type Period struct {
	Range    daterange.Range `json:"-"`
	From     string          `json:"from"`
	To       string          `json:"to"`
	Salaries []Salary        `json:"salaries"`
	Total    string          `json:"total"`
}

// Salaries computes pay for every employee over rng.
func (s *Service) Salaries(ctx context.Context, rng daterange.Range) (Period, error) {
	if err := rng.CheckLimit(MaxRangeDays); err != nil {
		return Period{}, err
	}
	started := time.Now()
	employees, err := s.Employees(ctx, &rng)
	if err != nil {
		return Period{}, err
	}
	rates, err := s.Rates(ctx)
	if err != nil {
		return Period{}, err
	}
	salaries := Compute(employees, NewRateBook(rates), rng)
	s.logger.Debug("salaries computed",
		slog.String("range", rng.String()),
		slog.Int("employees", len(salaries)),
		slog.Duration("elapsed", time.Since(started)))
	return Period{
		Range:    rng,
		From:     rng.From.String(),
		To:       rng.To.String(),
		Salaries: salaries,
		Total:    GrandTotal(salaries).StringFixed(2),
	}, nil
}
