package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/breadline/backoffice/internal/production"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Levels(ctx context.Context) ([]Level, error)
	Movements(ctx context.Context, limit int) ([]Movement, error)
	RegisterProducts(ctx context.Context, names []string) error
	Products(ctx context.Context) ([]Product, error)
}

// ChangeHook runs after a committed adjustment.
type ChangeHook func(ctx context.Context, m Movement) error

// Service coordinates stock operations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	hooks  []ChangeHook
	clock  func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, clock: func() time.Time { return time.Now().UTC() }}
}

// OnChange registers a hook called after every adjustment. Hook failures are
// logged, never returned.
func (s *Service) OnChange(hook ChangeHook) {
	s.hooks = append(s.hooks, hook)
}

// Adjust applies one operation and returns the recorded movement.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Movement, error) {
	input.Point = strings.TrimSpace(input.Point)
	input.Product = strings.TrimSpace(input.Product)
	if input.Point == "" || input.Product == "" {
		return Movement{}, errors.New("stock: point and product required")
	}
	if !input.Op.Valid() {
		return Movement{}, fmt.Errorf("%w: %q", ErrInvalidOperation, input.Op)
	}
	if input.Quantity < 0 {
		return Movement{}, ErrInvalidQuantity
	}

	now := s.clock()
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.EnsureLevel(ctx, input.Point, input.Product, now); err != nil {
			return err
		}
		level, err := tx.LevelForUpdate(ctx, input.Point, input.Product)
		if err != nil && !errors.Is(err, ErrLevelNotFound) {
			return err
		}
		after, err := Apply(level.Quantity, input.Op, input.Quantity)
		if err != nil {
			return err
		}
		movement = Movement{
			Point:     input.Point,
			Product:   input.Product,
			Op:        input.Op,
			Quantity:  input.Quantity,
			Before:    level.Quantity,
			After:     after,
			CreatedAt: now,
		}
		level.Quantity = after
		level.UpdatedAt = now
		if err := tx.UpsertLevel(ctx, level); err != nil {
			return err
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return nil
	})
	if err != nil {
		return Movement{}, err
	}

	s.logger.Info("stock adjusted",
		slog.String("point", movement.Point),
		slog.String("product", movement.Product),
		slog.String("op", string(movement.Op)),
		slog.Int64("before", movement.Before),
		slog.Int64("after", movement.After))
	for _, hook := range s.hooks {
		if err := hook(ctx, movement); err != nil {
			s.logger.Warn("stock change hook", slog.Any("error", err))
		}
	}
	return movement, nil
}

// List returns every stock row.
func (s *Service) List(ctx context.Context) ([]Level, error) {
	levels, err := s.repo.Levels(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock: list: %w", err)
	}
	if levels == nil {
		levels = []Level{}
	}
	return levels, nil
}

// Levels indexes stock by point and product for planning.
func (s *Service) Levels(ctx context.Context) (production.StockLevels, error) {
	levels, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(production.StockLevels)
	for _, l := range levels {
		if out[l.Point] == nil {
			out[l.Point] = make(map[string]int64)
		}
		out[l.Point][l.Product] = l.Quantity
	}
	return out, nil
}

// Movements returns recent movements.
func (s *Service) Movements(ctx context.Context, limit int) ([]Movement, error) {
	return s.repo.Movements(ctx, limit)
}

// RegisterProducts adds unseen names to the catalogue.
func (s *Service) RegisterProducts(ctx context.Context, names []string) error {
	clean := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" && !slices.Contains(clean, name) {
			clean = append(clean, name)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return s.repo.RegisterProducts(ctx, clean)
}

// Products lists the catalogue in Russian collation order.
func (s *Service) Products(ctx context.Context) ([]Product, error) {
	products, err := s.repo.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock: products: %w", err)
	}
	c := collate.New(language.Russian, collate.IgnoreCase)
	slices.SortStableFunc(products, func(a, b Product) int {
		return c.CompareString(a.Name, b.Name)
	})
	if products == nil {
		products = []Product{}
	}
	return products, nil
}
