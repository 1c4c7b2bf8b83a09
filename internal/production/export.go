package production

import "github.com/breadline/backoffice/internal/export"

var exportHeaders = []string{"Товар", "Прогнозируемый спрос", "Остатки на складе", "К производству"}

// WriteView writes one sheet per point with blacklist and adjustments applied.
func WriteView(w export.Writer, v View) error {
	if len(v.Points) == 0 {
		return w.WriteTable(export.Table{Sheet: "План", Headers: exportHeaders})
	}
	for _, p := range v.Points {
		t := export.Table{Sheet: p.PointName, Headers: exportHeaders, Rows: make([][]any, 0, len(p.Items)+1)}
		for _, item := range p.Items {
			t.Rows = append(t.Rows, []any{item.Name, item.Demand, item.Stock, item.ToProduce})
		}
		t.Rows = append(t.Rows, []any{"Итого", "", "", p.TotalToProduce})
		if err := w.WriteTable(t); err != nil {
			return err
		}
	}
	return nil
}
