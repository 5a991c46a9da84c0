package utils

import (
	"net/http"

	"github.com/goccy/go-json"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteFieldError reports a validation failure tied to one form field, so
// the admin UI can highlight the offending input.
func WriteFieldError(w http.ResponseWriter, status int, field, message string) {
	WriteJSON(w, status, map[string]string{"error": message, "field": field})
}
