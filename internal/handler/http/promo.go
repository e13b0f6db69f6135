package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
)

// PromoHandler handles HTTP requests for promo code endpoints.
type PromoHandler struct {
	promos *service.PromoService
	logger *slog.Logger
}

// NewPromoHandler creates a new promo HTTP handler.
func NewPromoHandler(promos *service.PromoService, logger *slog.Logger) *PromoHandler {
	return &PromoHandler{
		promos: promos,
		logger: logger,
	}
}

// ValidatePromoRequest is the JSON request body for validating a promo code.
type ValidatePromoRequest struct {
	Code     string `json:"code" validate:"required"`
	Subtotal int64  `json:"subtotal" validate:"gte=0"`
}

// ValidatePromoResponse reports the discount a promo would yield.
type ValidatePromoResponse struct {
	Code     string `json:"code"`
	Type     string `json:"type"`
	Value    int64  `json:"value"`
	Discount int64  `json:"discount"`
}

// ValidatePromo handles POST /api/v1/promos/validate
// It is a dry run: usage is only consumed at checkout.
func (h *PromoHandler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req ValidatePromoRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	promo, err := h.promos.Validate(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ValidatePromoResponse{
		Code:     promo.Code,
		Type:     promo.Type,
		Value:    promo.Value,
		Discount: promo.CalculateDiscount(req.Subtotal),
	}})
}

// ListPromos handles GET /api/v1/promos
// Non-admin callers only see active promos inside their validity window.
func (h *PromoHandler) ListPromos(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	filter := repository.PromoFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}

	isAdmin := identityFrom(r.Context()).IsAdmin()

	promos, total, err := h.promos.List(r.Context(), filter, isAdmin)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(promos, total, params))
}

// GetPromo handles GET /api/v1/promos/{id} (admin)
func (h *PromoHandler) GetPromo(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	promo, err := h.promos.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: promo})
}

// CreatePromo handles POST /api/v1/promos (admin)
func (h *PromoHandler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var input service.CreatePromoInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	promo, err := h.promos.Create(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: promo})
}

// UpdatePromo handles PUT /api/v1/promos/{id} (admin)
func (h *PromoHandler) UpdatePromo(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var input service.UpdatePromoInput
	if err := validator.DecodeAndValidate(r, &input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	promo, err := h.promos.Update(r.Context(), id.String(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: promo})
}

// DeletePromo handles DELETE /api/v1/promos/{id} (admin)
func (h *PromoHandler) DeletePromo(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.promos.Delete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
