// Package response writes the JSON envelope every API route answers with.
package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/pkg/logger"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

type Envelope struct {
	Data    any        `json:"data"`
	Error   *ErrorBody `json:"error"`
	Message string     `json:"message"`
	Success bool       `json:"success"`
}

type ErrorBody struct {
	Code          string `json:"code"`
	CorrelationID string `json:"correlationId"`
	Message       string `json:"message"`
	Status        string `json:"status"`
	StatusCode    int    `json:"statusCode"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// OK writes a success envelope.
func OK(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Envelope{Data: data, Message: message, Success: true})
}

// Error classifies err and writes a failure envelope. Internal errors are
// logged with their cause; the caller only sees the generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.From(err)
	status := appErr.Kind.Status()

	if appErr.IsUserSafe() {
		logger.DebugContext(r.Context(), "Request rejected",
			"kind", appErr.Kind.String(),
			"message", appErr.Message,
			"correlation_id", appErr.CorrelationID,
		)
	} else {
		args := []any{
			"correlation_id", appErr.CorrelationID,
			"message", appErr.Message,
			"error", appErr.Err,
			"method", r.Method,
			"path", r.URL.Path,
		}
		for k, v := range appErr.Details {
			args = append(args, k, v)
		}
		logger.ErrorContext(r.Context(), "Request failed", args...)
	}

	msg := appErr.PublicMessage()
	writeJSON(w, status, Envelope{
		Error: &ErrorBody{
			Code:          appErr.Kind.Code(),
			CorrelationID: appErr.CorrelationID,
			Message:       msg,
			Status:        "error",
			StatusCode:    status,
		},
		Message: msg,
		Success: false,
	})
}

// DecodeJSON reads a single JSON object from the body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return apperror.BadRequest("content type must be application/json")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperror.BadRequest("request body too large")
		case errors.Is(err, io.EOF):
			return apperror.BadRequest("request body is empty")
		default:
			return apperror.BadRequestCause("invalid JSON format", err)
		}
	}
	if dec.More() {
		return apperror.BadRequest("request body must contain a single JSON object")
	}
	return nil
}
