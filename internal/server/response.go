package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusFor maps an error category to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrOutOfStock), errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope. Internal errors are logged and
// their message is not exposed.
func WriteError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	requestID := logger.RequestIDFrom(r.Context())
	status := StatusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request_failed", "Internal error", requestID, err, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		message = "internal server error"
	}

	body := ErrorBody{
		Error: ErrorDetail{
			Code:    models.ErrorCode(err),
			Message: message,
		},
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if encErr := WriteJSON(w, status, body); encErr != nil {
		log.Error("response_encoding_failed", "Failed to encode error response", requestID, encErr, nil)
	}
}

// DecodeJSON reads a JSON request body into v, rejecting unknown fields
func DecodeJSON(r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return models.ValidationError{Field: "Content-Type", Message: "must be application/json"}
		}
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return models.ValidationError{Field: "body", Message: "request body is empty"}
		}
		if errors.Is(err, models.ErrInvalidInput) {
			return err
		}
		return models.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}
