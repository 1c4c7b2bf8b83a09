package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/export"
	"github.com/breadline/backoffice/internal/platform/httpx"
)

var errorRules = []httpx.Rule{
	{Target: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrInvalid, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrRateInUse, Status: http.StatusConflict, Title: "Group In Use"},
	{Target: daterange.ErrInvalidRange, Status: http.StatusBadRequest, Title: "Invalid Range"},
	{Target: daterange.ErrRangeTooLarge, Status: http.StatusBadRequest, Title: "Range Too Large"},
}

// Payroll is the part of Service the handler needs.
type Payroll interface {
	Employees(ctx context.Context, rng *daterange.Range) ([]Employee, error)
	SaveEmployee(ctx context.Context, e Employee) (Employee, error)
	DeleteEmployee(ctx context.Context, id int64) (Employee, error)
	ApproveHours(ctx context.Context, rng daterange.Range, hours map[int64]HoursRecord) error
	Rates(ctx context.Context) ([]RateCard, error)
	SaveRate(ctx context.Context, c RateCard) (RateCard, error)
	DeleteRate(ctx context.Context, group string) (RateCard, error)
	Salaries(ctx context.Context, rng daterange.Range) (Period, error)
}

// Handler exposes payroll endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Payroll
	validator *validator.Validate
	clock     func() time.Time
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service Payroll) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), clock: time.Now}
}

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/employees", h.listEmployees)
	r.Post("/employees", h.saveEmployee)
	r.Delete("/employees/{id}", h.deleteEmployee)
	r.Get("/rates", h.listRates)
	r.Post("/rates", h.saveRate)
	r.Delete("/rates/{group}", h.deleteRate)
	r.Get("/salaries", h.salaries)
	r.Post("/hours", h.approveHours)
	r.Get("/export", h.export)
}

type rateForm struct {
	Group       string          `json:"group" validate:"required"`
	PaymentType string          `json:"payment_type" validate:"required,oneof=hourly daily"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
}

type hoursForm struct {
	From      string                `json:"from" validate:"required,datetime=2006-01-02"`
	To        string                `json:"to" validate:"required,datetime=2006-01-02"`
	Employees map[int64]HoursRecord `json:"employees" validate:"required"`
}

// periodFromQuery reads ?month=YYYY-MM or ?from&to, defaulting to the current month.
func periodFromQuery(values url.Values, now time.Time) (daterange.Range, error) {
	if month := values.Get("month"); month != "" {
		return daterange.Month(month)
	}
	from, to := values.Get("from"), values.Get("to")
	if from == "" && to == "" {
		return daterange.Month(now.Format("2006-01"))
	}
	if to == "" {
		to = from
	}
	if from == "" {
		from = to
	}
	return daterange.ParseRange(from, to)
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	var rng *daterange.Range
	if q := r.URL.Query(); q.Get("month") != "" || q.Get("from") != "" || q.Get("to") != "" {
		period, err := periodFromQuery(q, h.clock())
		if err != nil {
			httpx.RespondError(w, err, errorRules...)
			return
		}
		rng = &period
	}
	employees, err := h.service.Employees(r.Context(), rng)
	if err != nil {
		h.logger.Error("list employees", slog.Any("error", err))
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employees": employees})
}

func (h *Handler) saveEmployee(w http.ResponseWriter, r *http.Request) {
	var form Employee
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", ErrInvalid, err), errorRules...)
		return
	}
	saved, err := h.service.SaveEmployee(r.Context(), form)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	status := http.StatusOK
	if form.ID == 0 {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, map[string]any{"employee": saved})
}

func (h *Handler) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid employee id", ErrInvalid), errorRules...)
		return
	}
	deleted, err := h.service.DeleteEmployee(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employee": deleted})
}

func (h *Handler) listRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.Rates(r.Context())
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rates": rates})
}

func (h *Handler) saveRate(w http.ResponseWriter, r *http.Request) {
	var form rateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", ErrInvalid, err), errorRules...)
		return
	}
	card, err := h.service.SaveRate(r.Context(), RateCard{
		Group:       form.Group,
		PaymentType: PaymentType(form.PaymentType),
		HourlyRate:  form.HourlyRate,
		DailyRate:   form.DailyRate,
	})
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"rate": card})
}

func (h *Handler) deleteRate(w http.ResponseWriter, r *http.Request) {
	group, err := url.PathUnescape(chi.URLParam(r, "group"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", ErrInvalid, err), errorRules...)
		return
	}
	card, err := h.service.DeleteRate(r.Context(), group)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rate": card})
}

func (h *Handler) salaries(w http.ResponseWriter, r *http.Request) {
	rng, err := periodFromQuery(r.URL.Query(), h.clock())
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	period, err := h.service.Salaries(r.Context(), rng)
	if err != nil {
		h.logger.Error("compute salaries", slog.String("range", rng.String()), slog.Any("error", err))
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) approveHours(w http.ResponseWriter, r *http.Request) {
	var form hoursForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", ErrInvalid, err), errorRules...)
		return
	}
	rng, err := daterange.ParseRange(form.From, form.To)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	if err := h.service.ApproveHours(r.Context(), rng, form.Employees); err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	rng, err := periodFromQuery(r.URL.Query(), h.clock())
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	period, err := h.service.Salaries(r.Context(), rng)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	wb := export.NewWorkbook()
	if err := WritePeriod(wb, period); err != nil {
		_ = wb.Close()
		h.logger.Error("build salary workbook", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	name := fmt.Sprintf("salaries_%s_%s.xlsx", rng.From, rng.To)
	if err := export.Send(w, name, wb); err != nil {
		h.logger.Warn("send salary workbook", slog.Any("error", err))
	}
}
