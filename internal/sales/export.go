package sales

import "github.com/breadline/backoffice/internal/export"

// SheetName is the single-sheet sales export's sheet.
const SheetName = "Sales Data"

var exportHeaders = []string{"Точка продаж", "Продукт", "Количество", "Сумма (руб.)"}

func pointRows(p PointSummary) [][]any {
	rows := make([][]any, 0, len(p.Items)+1)
	for _, item := range p.Items {
		rows = append(rows, []any{p.PointName, item.Name, item.Quantity, export.MoneyCell(item.TotalAmount)})
	}
	rows = append(rows, []any{"Итого для " + p.PointName, "", "", export.MoneyCell(p.TotalAmount)})
	return rows
}

// Table renders summaries into one sheet, each followed by its total row.
func Table(summaries []PointSummary) export.Table {
	t := export.Table{Sheet: SheetName, Headers: exportHeaders}
	for _, p := range summaries {
		t.Rows = append(t.Rows, pointRows(p)...)
	}
	return t
}

// WriteReport writes r. With perPoint set every point gets its own sheet;
// otherwise the report's summary goes to a single sheet.
func WriteReport(w export.Writer, r Report, perPoint bool) error {
	if !perPoint {
		return w.WriteTable(Table([]PointSummary{r.Summary}))
	}
	for _, p := range r.Points {
		t := export.Table{Sheet: p.PointName, Headers: exportHeaders, Rows: pointRows(p)}
		if err := w.WriteTable(t); err != nil {
			return err
		}
	}
	if len(r.Points) == 0 {
		return w.WriteTable(export.Table{Sheet: SheetName, Headers: exportHeaders})
	}
	return nil
}
