package v1

import (
	"net/http"

	"kairaba-backend/internal/domain"
	"kairaba-backend/internal/usecase"
	"kairaba-backend/pkg/utils"
)

// CatalogHandler serves the public product catalog.
type CatalogHandler struct {
	catalogUC *usecase.CatalogUsecase
}

func NewCatalogHandler(catalogUC *usecase.CatalogUsecase) *CatalogHandler {
	return &CatalogHandler{catalogUC: catalogUC}
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	active := true
	filter := domain.ProductFilter{
		Page:     utils.ParseInt(q.Get("page"), 1),
		Limit:    utils.ParseInt(q.Get("limit"), 20),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Active:   &active,
	}

	products, total, err := h.catalogUC.ListProducts(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

func (h *CatalogHandler) GetProductBySlug(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalogUC.GetProductBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, product)
}
