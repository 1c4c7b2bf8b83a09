package writeoffs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/breadline/backoffice/internal/export"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, records []Writeoff) ([]Writeoff, error)
	List(ctx context.Context, f Filter) ([]Writeoff, error)
	Delete(ctx context.Context, id int64) error
}

// Service coordinates write-off operations.
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

// Create validates every record before storing any of them.
func (s *Service) Create(ctx context.Context, records []Writeoff) ([]Writeoff, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no write-offs given", ErrInvalid)
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	saved, err := s.repo.Insert(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("writeoffs: insert: %w", err)
	}
	s.logger.Info("writeoffs created", slog.Int("count", len(saved)))
	return saved, nil
}

// List returns write-offs matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Writeoff, error) {
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("writeoffs: list: %w", err)
	}
	if out == nil {
		out = []Writeoff{}
	}
	return out, nil
}

// Delete removes a write-off by id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("writeoff deleted", slog.Int64("id", id))
	return nil
}

// SheetName is the export sheet title.
const SheetName = "Writeoffs"

var exportHeaders = []string{"Дата списания", "Точка продаж", "Товар", "Количество", "Причина списания"}

// Write exports records as one sheet.
func Write(w export.Writer, records []Writeoff) error {
	t := export.Table{Sheet: SheetName, Headers: exportHeaders, Rows: make([][]any, 0, len(records))}
	for _, r := range records {
		t.Rows = append(t.Rows, []any{r.Date.String(), r.Point, r.Product, r.Quantity, r.Reason})
	}
	return w.WriteTable(t)
}
