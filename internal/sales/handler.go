package sales

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/export"
	"github.com/breadline/backoffice/internal/platform/httpx"
	"github.com/breadline/backoffice/internal/session"
	"github.com/breadline/backoffice/internal/upstream"
)

// ErrorRules maps sales and fan-out errors onto HTTP statuses. Other packages
// that fan out reuse them.
var ErrorRules = []httpx.Rule{
	{Target: daterange.ErrInvalidRange, Status: http.StatusBadRequest, Title: "Invalid Range"},
	{Target: daterange.ErrRangeTooLarge, Status: http.StatusBadRequest, Title: "Range Too Large"},
	{Target: upstream.ErrUnauthorized, Status: http.StatusBadGateway, Title: "Upstream Rejected Credentials"},
	{Target: ErrFetchFailed, Status: http.StatusBadGateway, Title: "Fetch Failed"},
	{Target: upstream.ErrUnavailable, Status: http.StatusBadGateway, Title: "Upstream Unavailable"},
	{Target: context.DeadlineExceeded, Status: http.StatusGatewayTimeout, Title: "Timeout"},
	{Target: context.Canceled, Status: http.StatusServiceUnavailable, Title: "Request Canceled"},
}

// Reporter is the part of Service the handler needs.
type Reporter interface {
	Report(ctx context.Context, holder upstream.SIDHolder, q Query) (Report, error)
	Points(ctx context.Context, src PointSource) ([]string, error)
	Invalidate(ctx context.Context) (int64, error)
}

// Handler exposes sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service Reporter
	clock   func() time.Time
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service Reporter) *Handler {
	return &Handler{logger: logger, service: service, clock: time.Now}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/points", h.points)
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.report)
		r.Get("/export", h.export)
		r.Delete("/cache", h.invalidate)
	})
}

// ParseQuery reads from/to/point. Missing bounds default to today.
func ParseQuery(r *http.Request, now time.Time) (Query, error) {
	values := r.URL.Query()
	today := daterange.FromTime(now).String()
	from := values.Get("from")
	to := values.Get("to")
	if from == "" {
		from = today
	}
	if to == "" {
		to = from
	}
	rng, err := daterange.ParseRange(from, to)
	if err != nil {
		return Query{}, err
	}
	return Query{Range: rng, Point: values.Get("point")}, nil
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) *session.Session {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "session unavailable")
	}
	return sess
}

func (h *Handler) points(w http.ResponseWriter, r *http.Request) {
	sess := h.currentSession(w, r)
	if sess == nil {
		return
	}
	points, err := h.service.Points(r.Context(), sess)
	if err != nil {
		h.logger.Warn("list points", slog.Any("error", err))
		httpx.RespondError(w, err, ErrorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"points": points})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	sess := h.currentSession(w, r)
	if sess == nil {
		return
	}
	q, err := ParseQuery(r, h.clock())
	if err != nil {
		httpx.RespondError(w, err, ErrorRules...)
		return
	}
	report, err := h.service.Report(r.Context(), sess, q)
	if err != nil {
		h.logger.Warn("sales report", slog.String("range", q.Range.String()), slog.Any("error", err))
		httpx.RespondError(w, err, ErrorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	sess := h.currentSession(w, r)
	if sess == nil {
		return
	}
	q, err := ParseQuery(r, h.clock())
	if err != nil {
		httpx.RespondError(w, err, ErrorRules...)
		return
	}
	report, err := h.service.Report(r.Context(), sess, q)
	if err != nil {
		httpx.RespondError(w, err, ErrorRules...)
		return
	}
	wb := export.NewWorkbook()
	if err := WriteReport(wb, report, r.URL.Query().Get("per_point") == "1"); err != nil {
		_ = wb.Close()
		h.logger.Error("build sales workbook", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	filename := fmt.Sprintf("sales_%s_%s.xlsx", q.Range.From, q.Range.To)
	if err := export.Send(w, filename, wb); err != nil {
		h.logger.Warn("send sales workbook", slog.Any("error", err))
	}
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	version, err := h.service.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("invalidate sales cache", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"version": version})
}
