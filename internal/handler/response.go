package handler

// Every JSON endpoint answers with the same envelope so the page scripts
// can branch on "success" alone:
//
//	{"success": true, "html": "...", "count": 3, "id": "...", "edit_token": "..."}
//	{"success": false, "errors": {"content": ["This field is required."]}}   400
//	{"success": false, "error": "You do not have permission ..."}            401/403/404/409/429
//	{"success": false, "error": "An internal error occurred"}                500

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sakif/videohub/internal/apperror"
)

const internalErrorMessage = "An internal error occurred"

// ErrorResponse is the failure half of the envelope.
type ErrorResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// postEnvelope answers add and edit.
type postEnvelope struct {
	Success   bool   `json:"success"`
	HTML      string `json:"html"`
	Count     int    `json:"count"`
	ID        string `json:"id"`
	EditToken string `json:"edit_token,omitempty"`
}

// listEnvelope answers the read endpoints.
type listEnvelope struct {
	Success bool   `json:"success"`
	HTML    string `json:"html"`
	Count   int    `json:"count"`
}

type countEnvelope struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// writeJSON sets headers before the body; once Encode writes, the status
// is on the wire and nothing else can change it.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to its HTTP status. errors.Is walks the
// whole chain, so a service's "adding comment: %w" wrapping still matches.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the envelope. Validation errors become the
// field map; other AppErrors expose their message. Anything else is a 500
// whose details stay in the log.
func writeError(w http.ResponseWriter, err error) {
	if fields := apperror.FieldErrors(err); fields != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Errors: fields})
		return
	}

	var appErr *apperror.AppError
	status := statusFor(err)
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		slog.Error("unhandled request error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: internalErrorMessage})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: appErr.Message})
}

// pageError is writeError for HTML routes.
func pageError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("page request failed", slog.String("error", err.Error()))
	}
	http.Error(w, http.StatusText(status), status)
}
