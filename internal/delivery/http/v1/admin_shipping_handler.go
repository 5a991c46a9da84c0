package v1

import (
	"net/http"
	"strconv"

	"kairaba-backend/internal/domain"
	"kairaba-backend/internal/usecase"
	"kairaba-backend/pkg/utils"

	"github.com/goccy/go-json"
)

// AdminShippingHandler exposes rule and mode management. Mutations may carry
// a non-fatal overlap warning in the response body.
type AdminShippingHandler struct {
	shippingUC *usecase.ShippingUsecase
	importUC   *usecase.ShippingImportUsecase
}

func NewAdminShippingHandler(shippingUC *usecase.ShippingUsecase, importUC *usecase.ShippingImportUsecase) *AdminShippingHandler {
	return &AdminShippingHandler{shippingUC: shippingUC, importUC: importUC}
}

// --- Rules ---

func (h *AdminShippingHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.RuleFilter{
		Destination: q.Get("destination"),
		ModeKey:     q.Get("mode"),
	}
	if activeStr := q.Get("active"); activeStr != "" {
		active := activeStr == "true"
		filter.Active = &active
	}

	rules, err := h.shippingUC.ListRules(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rules)
}

func (h *AdminShippingHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	rule, err := h.shippingUC.GetRule(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rule)
}

func (h *AdminShippingHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req usecase.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.shippingUC.CreateRule(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, result)
}

func (h *AdminShippingHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	var req usecase.UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.shippingUC.UpdateRule(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// DeleteRule deactivates, never removes: historical orders keep their rule
// reference.
func (h *AdminShippingHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	if err := h.shippingUC.DeactivateRule(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Modes ---

func (h *AdminShippingHandler) ListModes(w http.ResponseWriter, r *http.Request) {
	modes, err := h.shippingUC.ListAllModes(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, modes)
}

func (h *AdminShippingHandler) CreateMode(w http.ResponseWriter, r *http.Request) {
	var req usecase.CreateModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := h.shippingUC.CreateMode(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, mode)
}

func (h *AdminShippingHandler) UpdateMode(w http.ResponseWriter, r *http.Request) {
	var req usecase.UpdateModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := h.shippingUC.UpdateMode(r.Context(), r.PathValue("key"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, mode)
}

func (h *AdminShippingHandler) DeleteMode(w http.ResponseWriter, r *http.Request) {
	if err := h.shippingUC.DeleteMode(r.Context(), r.PathValue("key")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Tariff import ---

// ImportRates accepts published tariff rows and expands them into rules.
func (h *AdminShippingHandler) ImportRates(w http.ResponseWriter, r *http.Request) {
	var rows []usecase.SeedRateRow
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(rows) == 0 {
		utils.WriteError(w, http.StatusBadRequest, "no rows to import")
		return
	}

	summary, err := h.importUC.Import(r.Context(), rows)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}
