package v1

import (
	"errors"
	"net/http"

	"kairaba-backend/internal/domain"
	"kairaba-backend/pkg/logger"
	"kairaba-backend/pkg/utils"
)

// writeDomainError maps domain errors onto HTTP status codes. Anything not
// recognized is a 500; storage failures are logged, user mistakes are not.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if vErr, ok := domain.AsValidationError(err); ok {
		utils.WriteFieldError(w, http.StatusBadRequest, vErr.Field, vErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrModeInUse):
		utils.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrShippingUnavailable):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		utils.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
