package payroll

import (
	"strconv"

	"github.com/breadline/backoffice/internal/export"
)

// SheetName is the salary sheet title.
const SheetName = "Salaries"

// cellText renders one grid cell the way the dashboard shows it.
func cellText(pt PaymentType, d DayLine) string {
	switch {
	case pt == Hourly && d.Hours > 0:
		return strconv.FormatFloat(d.Hours, 'f', -1, 64) + " ч"
	case pt == Daily && d.Worked:
		return "Работал"
	}
	return ""
}

// WritePeriod writes the salary grid: names, group, one column per day and the total.
func WritePeriod(w export.Writer, p Period) error {
	headers := []string{"Имя", "Фамилия", "Группа"}
	for d := range p.Range.Each() {
		headers = append(headers, d.String())
	}
	headers = append(headers, "Итоговая зарплата")

	t := export.Table{Sheet: SheetName, Headers: headers, Rows: make([][]any, 0, len(p.Salaries))}
	for _, s := range p.Salaries {
		row := []any{s.FirstName, s.LastName, s.Group}
		for _, d := range s.Days {
			row = append(row, cellText(s.PaymentType, d))
		}
		row = append(row, s.Total.InexactFloat64())
		t.Rows = append(t.Rows, row)
	}
	return w.WriteTable(t)
}
