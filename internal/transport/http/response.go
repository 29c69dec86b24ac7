package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"velora-scenario-service/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: message, Code: code}})
}

// statusFor maps domain errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrScenarioNotFound):
		return http.StatusNotFound, "scenario_not_found"
	case errors.Is(err, domain.ErrTrackNotFound):
		return http.StatusNotFound, "track_not_found"
	case errors.Is(err, domain.ErrScenarioEmpty):
		return http.StatusUnprocessableEntity, "scenario_empty"
	case errors.Is(err, domain.ErrOptionNotFound):
		return http.StatusBadRequest, "option_not_found"
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	writeError(w, status, code, message)
}
