package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/platform/kv"
	"github.com/breadline/backoffice/internal/platform/lock"
	"github.com/breadline/backoffice/internal/sales"
	"github.com/breadline/backoffice/internal/upstream"
)

// ErrUnknownItem is returned when an adjustment names an item absent from the plan.
var ErrUnknownItem = errors.New("production: item not in plan")

// Operation is a quantity adjustment kind.
type Operation string

// Supported operations.
const (
	OpIncrement Operation = "increment"
	OpDecrement Operation = "decrement"
	OpSet       Operation = "set"
	OpReset     Operation = "reset"
)

// HistorySource loads per-day sales with a day cap.
type HistorySource interface {
	Days(ctx context.Context, holder upstream.SIDHolder, rng daterange.Range, point string, maxDays int) ([]sales.DaySales, error)
}

// StockSource reports quantities on hand.
type StockSource interface {
	Levels(ctx context.Context) (StockLevels, error)
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	History HistorySource
	Stocks  StockSource
	Store   kv.Store
	Cache   *kv.Cache
	PlanTTL time.Duration
	// OverridesTTL should match the session lifetime; zero keeps overrides forever.
	OverridesTTL time.Duration
	Locker       *lock.Locker
	Logger       *slog.Logger
}

// Service builds plans and mutates per-session overrides.
type Service struct {
	history HistorySource
	stocks  StockSource
	store   kv.Store
	cache   *kv.Cache
	planTTL time.Duration
	ovrTTL  time.Duration
	locker  *lock.Locker
	logger  *slog.Logger
}

// NewService wires the production service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.PlanTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		history: cfg.History,
		stocks:  cfg.Stocks,
		store:   cfg.Store,
		cache:   cfg.Cache,
		planTTL: ttl,
		ovrTTL:  cfg.OverridesTTL,
		locker:  cfg.Locker,
		logger:  logger,
	}
}

// Request selects a plan.
type Request struct {
	Date  daterange.Date
	Point string
}

// Caller is the session a request acts for.
type Caller interface {
	upstream.SIDHolder
	SessionID() string
}

// RawPlan returns the unadjusted plan, cached for the configured TTL. Overrides
// never modify the cached value.
func (s *Service) RawPlan(ctx context.Context, caller Caller, req Request) (Plan, error) {
	if req.Date.IsZero() {
		return Plan{}, fmt.Errorf("%w: planning date is required", daterange.ErrInvalidRange)
	}
	point := req.Point
	if point == "" {
		point = "*"
	}
	key, err := s.cache.BuildKey(ctx, "plan", req.Date.String(), point)
	if err != nil {
		return Plan{}, err
	}
	var plan Plan
	_, err = s.cache.FetchJSON(ctx, key, s.planTTL, &plan, func(ctx context.Context) (any, error) {
		return s.build(ctx, caller, req)
	})
	if err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (s *Service) build(ctx context.Context, caller Caller, req Request) (Plan, error) {
	days, err := s.history.Days(ctx, caller, Lookback(req.Date), req.Point, daterange.MaxFanoutDays)
	if err != nil {
		return Plan{}, err
	}
	levels, err := s.stocks.Levels(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("production: load stock: %w", err)
	}
	plan := BuildPlan(days, req.Date, req.Point, levels)
	s.logger.Info("production plan built",
		slog.String("date", req.Date.String()),
		slog.String("point", req.Point),
		slog.Int("points", len(plan.Points)))
	return plan, nil
}

// View returns the plan with the caller's overrides applied.
func (s *Service) View(ctx context.Context, caller Caller, req Request) (View, error) {
	plan, err := s.RawPlan(ctx, caller, req)
	if err != nil {
		return View{}, err
	}
	o, err := s.loadOverrides(ctx, caller.SessionID())
	if err != nil {
		return View{}, err
	}
	return Apply(plan, o), nil
}

// Invalidate drops cached plans, e.g. after stock levels change.
func (s *Service) Invalidate(ctx context.Context) error {
	_, err := s.cache.Bump(ctx)
	return err
}

// Blacklist returns the caller's hidden names.
func (s *Service) Blacklist(ctx context.Context, caller Caller) ([]string, error) {
	o, err := s.loadOverrides(ctx, caller.SessionID())
	if err != nil {
		return nil, err
	}
	return o.Blacklist(), nil
}

// AddToBlacklist hides name for the caller.
func (s *Service) AddToBlacklist(ctx context.Context, caller Caller, name string) ([]string, error) {
	var out []string
	err := s.mutate(ctx, caller.SessionID(), func(o *Overrides) error {
		if err := o.AddToBlacklist(name); err != nil {
			return err
		}
		out = o.Blacklist()
		return nil
	})
	return out, err
}

// RemoveFromBlacklist shows name again for the caller.
func (s *Service) RemoveFromBlacklist(ctx context.Context, caller Caller, name string) ([]string, error) {
	var out []string
	err := s.mutate(ctx, caller.SessionID(), func(o *Overrides) error {
		o.RemoveFromBlacklist(name)
		out = o.Blacklist()
		return nil
	})
	return out, err
}

// AdjustRequest describes one quantity change.
type AdjustRequest struct {
	Plan     Request
	Key      AdjustmentKey
	Op       Operation
	Quantity int64
}

// Adjust applies an operation to the caller's overrides and returns the
// resulting effective quantity.
func (s *Service) Adjust(ctx context.Context, caller Caller, req AdjustRequest) (int64, error) {
	var suggestion int64
	if req.Op == OpIncrement || req.Op == OpDecrement {
		plan, err := s.RawPlan(ctx, caller, req.Plan)
		if err != nil {
			return 0, err
		}
		var ok bool
		suggestion, ok = plan.Suggestion(req.Key)
		if !ok {
			return 0, fmt.Errorf("%w: %s at %s", ErrUnknownItem, req.Key.Product, req.Key.Point)
		}
	}
	var result int64
	err := s.mutate(ctx, caller.SessionID(), func(o *Overrides) error {
		switch req.Op {
		case OpIncrement:
			result = o.Increment(req.Key, suggestion)
		case OpDecrement:
			result = o.Decrement(req.Key, suggestion)
		case OpSet:
			if err := o.Set(req.Key, req.Quantity); err != nil {
				return err
			}
			result = req.Quantity
		case OpReset:
			o.Reset(req.Key)
		default:
			return fmt.Errorf("production: unknown operation %q", req.Op)
		}
		return nil
	})
	return result, err
}

func overridesKey(sessionID string) string {
	return "production:overrides:" + sessionID
}

func (s *Service) loadOverrides(ctx context.Context, sessionID string) (*Overrides, error) {
	o := &Overrides{}
	err := kv.GetJSON(ctx, s.store, overridesKey(sessionID), o)
	if err != nil && !errors.Is(err, kv.ErrMiss) {
		return nil, fmt.Errorf("production: load overrides: %w", err)
	}
	return o, nil
}

// mutate runs fn on the session's overrides under the session lock and
// persists the result, refreshing its TTL.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(*Overrides) error) error {
	return s.locker.With(ctx, lock.SessionKey(sessionID), func(ctx context.Context) error {
		o, err := s.loadOverrides(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
		return kv.SetJSON(ctx, s.store, overridesKey(sessionID), o, s.ovrTTL)
	})
}
