package v1

import (
	"net/http"

	"kairaba-backend/internal/usecase"
	"kairaba-backend/pkg/utils"

	"github.com/goccy/go-json"
)

// ShippingHandler serves the public shipping surface: mode listing and price
// quotes.
type ShippingHandler struct {
	shippingUC *usecase.ShippingUsecase
}

func NewShippingHandler(shippingUC *usecase.ShippingUsecase) *ShippingHandler {
	return &ShippingHandler{shippingUC: shippingUC}
}

// GetModes lists active shipping modes for the storefront.
func (h *ShippingHandler) GetModes(w http.ResponseWriter, r *http.Request) {
	modes, err := h.shippingUC.ListActiveModes(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, modes)
}

type quoteRequest struct {
	Destination string  `json:"destination"`
	Mode        string  `json:"mode"`
	WeightKg    float64 `json:"weightKg"`
}

// Quote resolves a (destination, mode, weight) triple to a price. A request
// no rule covers returns 200 with available=false, not an error status.
func (h *ShippingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.shippingUC.Quote(r.Context(), req.Destination, req.Mode, req.WeightKg)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}
