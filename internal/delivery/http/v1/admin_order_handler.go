package v1

import (
	"net/http"

	"kairaba-backend/internal/domain"
	"kairaba-backend/internal/usecase"
	"kairaba-backend/pkg/utils"

	"github.com/goccy/go-json"
)

type AdminOrderHandler struct {
	orderUC *usecase.OrderUsecase
}

func NewAdminOrderHandler(orderUC *usecase.OrderUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{orderUC: orderUC}
}

func (h *AdminOrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.OrderFilter{
		Page:          utils.ParseInt(q.Get("page"), 1),
		Limit:         utils.ParseInt(q.Get("limit"), 20),
		Status:        q.Get("status"),
		PaymentStatus: q.Get("paymentStatus"),
		Search:        q.Get("search"),
	}

	orders, total, err := h.orderUC.ListOrders(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

func (h *AdminOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.orderUC.UpdateOrderStatus(r.Context(), r.PathValue("id"), req.Status); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminOrderHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.orderUC.UpdatePaymentStatus(r.Context(), r.PathValue("id"), req.Status); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
