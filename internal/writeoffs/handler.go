package writeoffs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/export"
	"github.com/breadline/backoffice/internal/platform/httpx"
)

var errorRules = []httpx.Rule{
	{Target: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrInvalid, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: daterange.ErrInvalidRange, Status: http.StatusBadRequest, Title: "Invalid Range"},
}

// Ledger is the part of Service the handler needs.
type Ledger interface {
	Create(ctx context.Context, records []Writeoff) ([]Writeoff, error)
	List(ctx context.Context, f Filter) ([]Writeoff, error)
	Delete(ctx context.Context, id int64) error
}

// Handler exposes write-off endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Ledger
	validator *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service Ledger) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers write-off routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/{id}", h.delete)
	r.Get("/export", h.export)
}

type writeoffForm struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Point    string `json:"point" validate:"required"`
	Product  string `json:"product" validate:"required"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
	Reason   string `json:"reason" validate:"required"`
}

func (f writeoffForm) record() (Writeoff, error) {
	d, err := daterange.Parse(f.Date)
	if err != nil {
		return Writeoff{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Writeoff{Date: d, Point: f.Point, Product: f.Product, Quantity: f.Quantity, Reason: f.Reason}, nil
}

// decodeForms accepts a single object or an array of objects.
func decodeForms(r *http.Request) ([]writeoffForm, error) {
	var raw json.RawMessage
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	var forms []writeoffForm
	if len(raw) > 0 && raw[0] == '[' {
		if err := strictUnmarshal(raw, &forms); err != nil {
			return nil, err
		}
		return forms, nil
	}
	var one writeoffForm
	if err := strictUnmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []writeoffForm{one}, nil
}

func strictUnmarshal(raw []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func filterFromRequest(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{Point: q.Get("point")}
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		return f, nil
	}
	if from == "" {
		from = to
	}
	if to == "" {
		to = from
	}
	rng, err := daterange.ParseRange(from, to)
	if err != nil {
		return Filter{}, err
	}
	f.Range = &rng
	return f, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	out, err := h.service.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list writeoffs", slog.Any("error", err))
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"writeoffs": out})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	forms, err := decodeForms(r)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	records := make([]Writeoff, 0, len(forms))
	for i, form := range forms {
		if err := h.validator.Struct(form); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: record %d: %v", ErrInvalid, i, err), errorRules...)
			return
		}
		rec, err := form.record()
		if err != nil {
			httpx.RespondError(w, err, errorRules...)
			return
		}
		records = append(records, rec)
	}
	saved, err := h.service.Create(r.Context(), records)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"writeoffs": saved})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid id", ErrInvalid), errorRules...)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	records, err := h.service.List(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	wb := export.NewWorkbook()
	if err := Write(wb, records); err != nil {
		_ = wb.Close()
		h.logger.Error("build writeoff workbook", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := export.Send(w, "writeoffs.xlsx", wb); err != nil {
		h.logger.Warn("send writeoff workbook", slog.Any("error", err))
	}
}
