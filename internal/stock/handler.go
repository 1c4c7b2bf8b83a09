package stock

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/breadline/backoffice/internal/platform/httpx"
)

var errorRules = []httpx.Rule{
	{Target: ErrNegativeStock, Status: http.StatusConflict, Title: "Not Enough Stock"},
	{Target: ErrInvalidQuantity, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrInvalidOperation, Status: http.StatusBadRequest, Title: "Validation Failed"},
}

// Keeper is the part of Service the handler needs.
type Keeper interface {
	Adjust(ctx context.Context, input AdjustInput) (Movement, error)
	List(ctx context.Context) ([]Level, error)
	Movements(ctx context.Context, limit int) ([]Movement, error)
	Products(ctx context.Context) ([]Product, error)
}

// Handler exposes stock endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Keeper
	validator *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service Keeper) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.adjust)
	r.Get("/movements", h.movements)
	r.Get("/products", h.products)
}

type adjustForm struct {
	Point    string `json:"point" validate:"required"`
	Product  string `json:"product" validate:"required"`
	Op       string `json:"op" validate:"required,oneof=add subtract set"`
	Quantity int64  `json:"quantity" validate:"gte=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stocks": levels})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var form adjustForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	movement, err := h.service.Adjust(r.Context(), AdjustInput{
		Point:    form.Point,
		Product:  form.Product,
		Op:       Operation(form.Op),
		Quantity: form.Quantity,
	})
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	httpx.JSON(w, http.StatusOK, movement)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.RespondError(w, fmt.Errorf("%w: limit must be a positive integer", httpx.ErrValidation))
			return
		}
		limit = n
	}
	out, err := h.service.Movements(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": out})
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Products(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}
