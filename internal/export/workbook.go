// Package export writes report tables into Excel workbooks.
package export

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// MaxSheetName is Excel's limit on sheet name length.
const MaxSheetName = 31

// ContentType is the MIME type of .xlsx files.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Table is one sheet worth of rows.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]any
}

// Writer accepts tables; Workbook is the production implementation.
type Writer interface {
	WriteTable(t Table) error
}

// Workbook accumulates sheets in insertion order.
type Workbook struct {
	file   *excelize.File
	used   map[string]struct{}
	sheets int
}

// NewWorkbook starts an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile(), used: make(map[string]struct{})}
}

// SheetName makes name acceptable to Excel: forbidden characters become
// spaces and the result is cut to MaxSheetName runes.
func SheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return ' '
		}
		return r
	}, strings.TrimSpace(name))
	if cleaned == "" {
		cleaned = "Sheet"
	}
	return truncate(cleaned, MaxSheetName)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (w *Workbook) uniqueName(name string) string {
	base := SheetName(name)
	candidate := base
	for i := 2; ; i++ {
		if _, taken := w.used[strings.ToLower(candidate)]; !taken {
			break
		}
		suffix := fmt.Sprintf(" (%d)", i)
		candidate = truncate(base, MaxSheetName-utf8.RuneCountInString(suffix)) + suffix
	}
	w.used[strings.ToLower(candidate)] = struct{}{}
	return candidate
}

// WriteTable appends t as a new sheet.
func (w *Workbook) WriteTable(t Table) error {
	name := w.uniqueName(t.Sheet)
	if w.sheets == 0 {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("export: rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("export: new sheet: %w", err)
	}
	w.sheets++

	row := 1
	if len(t.Headers) > 0 {
		if err := w.setRow(name, row, toAny(t.Headers)); err != nil {
			return err
		}
		row++
	}
	for _, values := range t.Rows {
		if err := w.setRow(name, row, values); err != nil {
			return err
		}
		row++
	}
	return nil
}

func (w *Workbook) setRow(sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("export: write row %d: %w", row, err)
	}
	return nil
}

// Sheets lists sheet names in order.
func (w *Workbook) Sheets() []string {
	return w.file.GetSheetList()
}

// Cell reads back a cell value, mostly for tests.
func (w *Workbook) Cell(sheet, cell string) (string, error) {
	return w.file.GetCellValue(sheet, cell)
}

// WriteTo serialises the workbook.
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	if w.sheets == 0 {
		return 0, errors.New("export: workbook has no sheets")
	}
	return w.file.WriteTo(out)
}

// Close releases temporary resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// Send streams the workbook as an attachment.
func Send(rw http.ResponseWriter, filename string, w *Workbook) error {
	defer func() { _ = w.Close() }()
	rw.Header().Set("Content-Type", ContentType)
	rw.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, err := w.WriteTo(rw)
	return err
}

// Money converts minor units to a two-decimal amount.
func Money(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// MoneyCell renders minor units as a number cell.
func MoneyCell(minor int64) float64 {
	return Money(minor).InexactFloat64()
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
