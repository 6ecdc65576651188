package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/vnmarket/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// StatusFor maps a data layer error to an HTTP status code
func StatusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrInvalidArgument), errors.Is(err, contracts.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
