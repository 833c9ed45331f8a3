package handler

// RESPONSE HELPERS:
// Every JSON endpoint answers through writeJSON / writeError, and every form
// re-render picks its status through statusFor, so a given apperror maps to
// the same status code everywhere.
//
// CONSISTENT ERROR FORMAT:
//   {"error": "credential_error", "code": "weak-password", "field": "", "message": "..."}
//
// "code" and "field" are omitted when empty.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/ngo-hub/internal/apperror"
)

// ErrorResponse is the standard error body returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable type, e.g. "not_found"
	Code    string `json:"code,omitempty"`  // sub-kind, e.g. "duplicate-email"
	Field   string `json:"field,omitempty"` // offending form field
	Message string `json:"message"`         // human-readable description
}

// writeJSON sends data as JSON. Headers and status go out before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an error's classification to an HTTP status and error type.
//
// errors.Is walks the whole chain, so a repository error wrapped twice by
// fmt.Errorf("...: %w") still matches its sentinel.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrCredential):
		switch apperror.CodeOf(err) {
		case apperror.CodeDuplicateEmail:
			return http.StatusConflict, "credential_error"
		case apperror.CodeWeakPassword:
			return http.StatusBadRequest, "credential_error"
		}
		return http.StatusUnauthorized, "credential_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrNetwork):
		return http.StatusBadGateway, "network_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// userMessage is the message safe to show for err. Unclassified errors may
// carry SQL or file paths, so they get a generic text.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An internal error occurred"
}

// writeError maps a domain error to its HTTP status and sends it.
func writeError(w http.ResponseWriter, err error) {
	status, errorType := statusFor(err)
	resp := ErrorResponse{Error: errorType, Message: userMessage(err)}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
		resp.Field = appErr.Field
	}
	writeJSON(w, status, resp)
}

// logFailure logs server-side failures; client mistakes (4xx) stay quiet.
func logFailure(logger *slog.Logger, msg string, err error, attrs ...any) {
	status, _ := statusFor(err)
	if status < http.StatusInternalServerError && status != http.StatusBadGateway {
		return
	}
	logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
}

// decodeJSON reads a JSON request body into v, limited to 1 MB.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.ValidationFailed("", "invalid JSON body: "+err.Error())
	}
	return nil
}

// asAppError returns the first AppError in err's chain, or nil.
func asAppError(err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
