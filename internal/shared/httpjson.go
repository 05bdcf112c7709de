package shared

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// WriteJSON serialises v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps err onto a JSON error envelope.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, map[string]any{"error": err.Error()})
}

// ReadJSON decodes the request body into dst, rejecting unknown fields.
func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// StatusForError translates sentinel errors into HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrSessionRequired):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// LogAndWriteError logs err and responds with the mapped status.
func LogAndWriteError(logger *slog.Logger, w http.ResponseWriter, action string, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error(action, slog.Any("error", err))
	}
	WriteError(w, status, err)
}
