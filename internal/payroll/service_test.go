package payroll

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadline/backoffice/internal/daterange"
)

type memoryRepo struct {
	employees map[int64]Employee
	hours     map[int64]HoursRecord
	rates     map[string]RateCard
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		employees: make(map[int64]Employee),
		hours:     make(map[int64]HoursRecord),
		rates:     make(map[string]RateCard),
	}
}

func (r *memoryRepo) ListEmployees(context.Context) ([]Employee, error) {
	var out []Employee
	for _, e := range r.employees {
		e.Hours = nil
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) HoursBetween(_ context.Context, rng daterange.Range) (map[int64]HoursRecord, error) {
	out := make(map[int64]HoursRecord)
	for id, h := range r.hours {
		out[id] = h.Within(rng)
	}
	return out, nil
}

func (r *memoryRepo) CreateEmployee(_ context.Context, e Employee) (Employee, error) {
	r.nextID++
	e.ID = r.nextID
	r.employees[e.ID] = e
	r.hours[e.ID] = HoursRecord{}
	for day, rec := range e.Hours {
		if !rec.Empty() {
			r.hours[e.ID][day] = rec
		}
	}
	return e, nil
}

func (r *memoryRepo) UpdateEmployee(_ context.Context, e Employee, replace *daterange.Range) error {
	if _, ok := r.employees[e.ID]; !ok {
		return fmt.Errorf("%w: employee %d", ErrNotFound, e.ID)
	}
	r.employees[e.ID] = e
	if replace != nil {
		r.replace(e.ID, *replace, e.Hours.Within(*replace))
	}
	return nil
}

func (r *memoryRepo) replace(id int64, rng daterange.Range, rec HoursRecord) {
	current := r.hours[id]
	if current == nil {
		current = HoursRecord{}
	}
	for day := range current {
		if d, err := daterange.Parse(day); err == nil && rng.Contains(d) {
			delete(current, day)
		}
	}
	for day, v := range rec {
		current[day] = v
	}
	r.hours[id] = current
}

func (r *memoryRepo) DeleteEmployee(_ context.Context, id int64) (Employee, error) {
	e, ok := r.employees[id]
	if !ok {
		return Employee{}, fmt.Errorf("%w: employee %d", ErrNotFound, id)
	}
	delete(r.employees, id)
	delete(r.hours, id)
	return e, nil
}

func (r *memoryRepo) ReplaceHours(_ context.Context, rng daterange.Range, hours map[int64]HoursRecord) error {
	for id := range hours {
		if _, ok := r.employees[id]; !ok {
			return fmt.Errorf("%w: employee %d", ErrNotFound, id)
		}
	}
	for id, rec := range hours {
		r.replace(id, rng, rec)
	}
	return nil
}

func (r *memoryRepo) ListRates(context.Context) ([]RateCard, error) {
	var out []RateCard
	for _, c := range r.rates {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryRepo) UpsertRate(_ context.Context, c RateCard) error {
	r.rates[c.Group] = c
	return nil
}

func (r *memoryRepo) DeleteRate(_ context.Context, group string) (RateCard, error) {
	for _, e := range r.employees {
		if e.Group == group {
			return RateCard{}, fmt.Errorf("%w: %s", ErrRateInUse, group)
		}
	}
	c, ok := r.rates[group]
	if !ok {
		return RateCard{}, fmt.Errorf("%w: group %s", ErrNotFound, group)
	}
	delete(r.rates, group)
	return c, nil
}

func TestSalariesForMonth(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.SaveRate(ctx, RateCard{Group: "Bakers", PaymentType: Hourly, HourlyRate: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, err = svc.SaveEmployee(ctx, Employee{FirstName: "Ivan", LastName: "Petrov", Group: "Bakers", Hours: HoursRecord{
		"2025-05-01": {Hours: 4},
		"2025-05-02": {Hours: 0},
		"2025-06-01": {Hours: 8},
	}})
	require.NoError(t, err)
	_, err = svc.SaveEmployee(ctx, Employee{FirstName: "Olga", LastName: "Sidorova", Group: "Unpriced"})
	require.NoError(t, err)

	may, err := daterange.Month("2025-05")
	require.NoError(t, err)
	period, err := svc.Salaries(ctx, may)
	require.NoError(t, err)

	require.Len(t, period.Salaries, 2)
	assert.Equal(t, "2025-05-01", period.From)
	assert.Equal(t, "2025-05-31", period.To)
	assert.Equal(t, "400", period.Salaries[0].Total.String())
	assert.Len(t, period.Salaries[0].Days, 31)
	assert.True(t, period.Salaries[1].Total.IsZero())
	assert.Equal(t, "400.00", period.Total)
}

func TestSalariesRejectHugeRange(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	_, err := svc.Salaries(context.Background(), mustRange(t, "2020-01-01", "2025-01-01"))
	assert.ErrorIs(t, err, daterange.ErrRangeTooLarge)
}

func TestSaveEmployeeValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.SaveEmployee(ctx, Employee{FirstName: "Ivan", Group: "Bakers"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.SaveEmployee(ctx, Employee{FirstName: "Ivan", LastName: "Petrov", Group: "Bakers", Hours: HoursRecord{"May 1": {Hours: 2}}})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.SaveEmployee(ctx, Employee{ID: 42, FirstName: "Ivan", LastName: "Petrov", Group: "Bakers"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateEmployeeKeepsHoursUnlessGiven(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	e, err := svc.SaveEmployee(ctx, Employee{FirstName: "Ivan", LastName: "Petrov", Group: "Bakers", Hours: HoursRecord{"2025-05-01": {Hours: 4}}})
	require.NoError(t, err)

	e.Group = "Sellers"
	e.Hours = nil
	_, err = svc.SaveEmployee(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, HoursRecord{"2025-05-01": {Hours: 4}}, repo.hours[e.ID])
	assert.Equal(t, "Sellers", repo.employees[e.ID].Group)
}

func TestApproveHoursReplacesOnlyRange(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	e, err := svc.SaveEmployee(ctx, Employee{FirstName: "Ivan", LastName: "Petrov", Group: "Bakers", Hours: HoursRecord{
		"2025-04-30": {Hours: 5},
		"2025-05-01": {Hours: 4},
		"2025-05-02": {Hours: 6},
	}})
	require.NoError(t, err)

	err = svc.ApproveHours(ctx, mustRange(t, "2025-05-01", "2025-05-07"), map[int64]HoursRecord{
		e.ID: {"2025-05-01": {Hours: 7}, "2025-05-03": {}, "2025-05-09": {Hours: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, HoursRecord{"2025-04-30": {Hours: 5}, "2025-05-01": {Hours: 7}}, repo.hours[e.ID])

	err = svc.ApproveHours(ctx, mustRange(t, "2025-05-01", "2025-05-07"), map[int64]HoursRecord{99: {}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRateInUse(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.SaveRate(ctx, RateCard{Group: "Bakers", PaymentType: Daily, DailyRate: decimal.NewFromInt(1200)})
	require.NoError(t, err)
	e, err := svc.SaveEmployee(ctx, Employee{FirstName: "Ivan", LastName: "Petrov", Group: "Bakers"})
	require.NoError(t, err)

	_, err = svc.DeleteRate(ctx, "Bakers")
	assert.ErrorIs(t, err, ErrRateInUse)

	_, err = svc.DeleteEmployee(ctx, e.ID)
	require.NoError(t, err)
	card, err := svc.DeleteRate(ctx, "Bakers")
	require.NoError(t, err)
	assert.Equal(t, Daily, card.PaymentType)

	_, err = svc.DeleteRate(ctx, "Bakers")
	assert.ErrorIs(t, err, ErrNotFound)
}
