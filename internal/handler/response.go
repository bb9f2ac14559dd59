// Package handler contains the HTTP layer: it decodes requests, calls a
// service, and writes the JSON envelope every endpoint shares.
//
//	success: {"success": true,  "message": "...", "data": ...}
//	failure: {"success": false, "error": "not_found", "message": "..."}
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/keepsake/internal/apperror"
)

const msgInternal = "Internal server error"

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, SuccessResponse{Success: true, Message: message, Data: data})
}

// errorWriter maps service errors to status codes. In production the text
// of a 5xx is replaced, since it may carry the data store's own message.
type errorWriter struct {
	logger     *slog.Logger
	production bool
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	status, errorType := classify(err)

	message := msgInternal
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		e.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if e.production || message == "" {
			message = msgInternal
		}
	}

	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error:   errorType,
		Message: message,
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
