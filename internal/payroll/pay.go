package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/breadline/backoffice/internal/daterange"
)

// RateBook indexes rate cards by group.
type RateBook map[string]RateCard

// NewRateBook builds a RateBook from cards.
func NewRateBook(cards []RateCard) RateBook {
	book := make(RateBook, len(cards))
	for _, c := range cards {
		book[c.Group] = c
	}
	return book
}

// For returns the group's card. Unknown groups are paid hourly at zero.
func (b RateBook) For(group string) RateCard {
	if card, ok := b[group]; ok {
		return card
	}
	return RateCard{Group: group, PaymentType: Hourly}
}

// DayPay is the amount earned for one day.
func DayPay(rate RateCard, rec DayRecord) decimal.Decimal {
	switch rate.PaymentType {
	case Hourly:
		if rec.Hours > 0 {
			return decimal.NewFromFloat(rec.Hours).Mul(rate.HourlyRate)
		}
	case Daily:
		if rec.Worked {
			return rate.DailyRate
		}
	}
	return decimal.Zero
}

// TotalPay sums DayPay over every date in rng. Dates without a record earn nothing.
func TotalPay(rate RateCard, hours HoursRecord, rng daterange.Range) decimal.Decimal {
	total := decimal.Zero
	for d := range rng.Each() {
		total = total.Add(DayPay(rate, hours[d.String()]))
	}
	return total
}

// DayLine is one cell of the salary grid.
type DayLine struct {
	Date   string          `json:"date"`
	Hours  float64         `json:"hours"`
	Worked bool            `json:"worked"`
	Amount decimal.Decimal `json:"amount"`
}

// Salary is an employee's pay over a range.
type Salary struct {
	EmployeeID  int64           `json:"employee_id"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Group       string          `json:"group"`
	PaymentType PaymentType     `json:"payment_type"`
	Days        []DayLine       `json:"days"`
	Total       decimal.Decimal `json:"total"`
}

// Compute returns one Salary per employee, in input order, including those
// earning nothing.
func Compute(employees []Employee, rates RateBook, rng daterange.Range) []Salary {
	out := make([]Salary, 0, len(employees))
	for _, e := range employees {
		rate := rates.For(e.Group)
		s := Salary{
			EmployeeID:  e.ID,
			FirstName:   e.FirstName,
			LastName:    e.LastName,
			Group:       e.Group,
			PaymentType: rate.PaymentType,
			Days:        make([]DayLine, 0, rng.Days()),
			Total:       decimal.Zero,
		}
		for d := range rng.Each() {
			rec := e.Hours[d.String()]
			amount := DayPay(rate, rec)
			s.Days = append(s.Days, DayLine{Date: d.String(), Hours: rec.Hours, Worked: rec.Worked, Amount: amount})
			s.Total = s.Total.Add(amount)
		}
		out = append(out, s)
	}
	return out
}

// GrandTotal sums salaries.
func GrandTotal(salaries []Salary) decimal.Decimal {
	total := decimal.Zero
	for _, s := range salaries {
		total = total.Add(s.Total)
	}
	return total
}
