package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"kairos/internal/catalog"
	"kairos/internal/engine"
	"kairos/internal/manager"
	"kairos/internal/service"
	"kairos/pkg/types"
)

// NoModelMessage is returned with 503 when chat is requested without a model.
const NoModelMessage = "No model loaded. Please load a model first."

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps well-known errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case errors.Is(err, manager.ErrNoModelLoaded), engine.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case service.IsTooBusy(err):
		return http.StatusTooManyRequests
	case catalog.IsModelNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		return "invalid_request_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable_error"
	default:
		return "server_error"
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: types.APIError{
		Message: msg,
		Type:    errorType(status),
		Code:    status,
	}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
