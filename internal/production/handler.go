package production

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/export"
	"github.com/breadline/backoffice/internal/platform/httpx"
	"github.com/breadline/backoffice/internal/platform/lock"
	"github.com/breadline/backoffice/internal/sales"
	"github.com/breadline/backoffice/internal/session"
)

var errorRules = append([]httpx.Rule{
	{Target: ErrUnknownItem, Status: http.StatusNotFound, Title: "Unknown Item"},
	{Target: ErrAlreadyBlacklisted, Status: http.StatusConflict, Title: "Already Blacklisted"},
	{Target: ErrEmptyName, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrNegativeQuantity, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: lock.ErrBusy, Status: http.StatusConflict, Title: "Busy"},
}, sales.ErrorRules...)

// Planner is the part of Service the handler needs.
type Planner interface {
	View(ctx context.Context, caller Caller, req Request) (View, error)
	Blacklist(ctx context.Context, caller Caller) ([]string, error)
	AddToBlacklist(ctx context.Context, caller Caller, name string) ([]string, error)
	RemoveFromBlacklist(ctx context.Context, caller Caller, name string) ([]string, error)
	Adjust(ctx context.Context, caller Caller, req AdjustRequest) (int64, error)
}

// Handler exposes production planning endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Planner
	validator *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service Planner) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers production routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/plan", h.plan)
	r.Get("/export", h.export)
	r.Get("/blacklist", h.listBlacklist)
	r.Post("/blacklist", h.addBlacklist)
	r.Delete("/blacklist/{name}", h.removeBlacklist)
	r.Post("/adjustments/{op}", h.adjust)
}

type blacklistForm struct {
	Name string `json:"name" validate:"required"`
}

type adjustForm struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Point       string `json:"point"`
	TargetPoint string `json:"target_point" validate:"required"`
	Product     string `json:"product" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"gte=0"`
}

func parseRequest(values url.Values) (Request, error) {
	date, err := daterange.Parse(values.Get("date"))
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", daterange.ErrInvalidRange, err)
	}
	return Request{Date: date, Point: values.Get("point")}, nil
}

func caller(w http.ResponseWriter, r *http.Request) *session.Session {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "session unavailable")
	}
	return sess
}

func (h *Handler) plan(w http.ResponseWriter, r *http.Request) {
	sess := caller(w, r)
	if sess == nil {
		return
	}
	req, err := parseRequest(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	view, err := h.service.View(r.Context(), sess, req)
	if err != nil {
		h.logger.Warn("production plan", slog.String("date", req.Date.String()), slog.Any("error", err))
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	sess := caller(w, r)
	if sess == nil {
		return
	}
	req, err := parseRequest(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	view, err := h.service.View(r.Context(), sess, req)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	wb := export.NewWorkbook()
	if err := WriteView(wb, view); err != nil {
		_ = wb.Close()
		h.logger.Error("build production workbook", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := export.Send(w, fmt.Sprintf("production_plan_%s.xlsx", req.Date), wb); err != nil {
		h.logger.Warn("send production workbook", slog.Any("error", err))
	}
}

func (h *Handler) listBlacklist(w http.ResponseWriter, r *http.Request) {
	sess := caller(w, r)
	if sess == nil {
		return
	}
	names, err := h.service.Blacklist(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"blacklist": names})
}

func (h *Handler) addBlacklist(w http.ResponseWriter, r *http.Request) {
	sess := caller(w, r)
	if sess == nil {
		return
	}
	var form blacklistForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	names, err := h.service.AddToBlacklist(r.Context(), sess, form.Name)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"blacklist": names})
}

func (h *Handler) removeBlacklist(w http.ResponseWriter, r *http.Request) {
	sess := caller(w, r)
	if sess == nil {
		return
	}
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	names, err := h.service.RemoveFromBlacklist(r.Context(), sess, name)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"blacklist": names})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	sess := caller(w, r)
	if sess == nil {
		return
	}
	op := Operation(chi.URLParam(r, "op"))
	switch op {
	case OpIncrement, OpDecrement, OpSet, OpReset:
	default:
		httpx.Problem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("unknown operation %q", op))
		return
	}
	var form adjustForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	date, err := daterange.Parse(form.Date)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	key := AdjustmentKey{Point: form.TargetPoint, Product: form.Product}
	qty, err := h.service.Adjust(r.Context(), sess, AdjustRequest{
		Plan:     Request{Date: date, Point: form.Point},
		Key:      key,
		Op:       op,
		Quantity: form.Quantity,
	})
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"point": key.Point, "product": key.Product, "quantity": qty, "reset": op == OpReset})
}
