package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/example/bookshelf/internal/fault"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

// respondError maps the fault taxonomy to HTTP status codes. Internal
// details never reach the client; only the short message does.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.Is(err, fault.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, fault.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, fault.ErrConflict):
		status = http.StatusBadRequest
	case errors.Is(err, fault.ErrForbidden):
		status = http.StatusForbidden
	default:
		log.Printf("[API] Internal error: %v", err)
		message = "internal server error"
	}

	respondJSON(w, status, map[string]string{"message": message})
}
