package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MohamedElashri/snipvault/internal/validation"
)

// MaxJSONBodySize is the maximum allowed size for JSON request bodies (2MB)
const MaxJSONBodySize = 2 * 1024 * 1024

// DecodeJSON safely decodes JSON from request body with size limit
func DecodeJSON(r *http.Request, v interface{}) error {
	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(nil, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields() // Reject unknown fields for stricter validation

	if err := decoder.Decode(v); err != nil {
		return err
	}

	// Ensure only one JSON object in body
	if decoder.More() {
		return io.ErrUnexpectedEOF
	}

	return nil
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Success bool                         `json:"success"`
	Message string                       `json:"message"`
	Code    string                       `json:"code"`
	Details []validation.ValidationError `json:"details,omitempty"`
}

// MessageResponse carries only a human-readable message
type MessageResponse struct {
	Message string `json:"message"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Log error but can't do much at this point
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

// Error sends an error response
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// ValidationErrors sends a validation error response. The message is the
// first failure so clients can show it as is.
func ValidationErrors(w http.ResponseWriter, errs validation.ValidationErrors) {
	JSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    "VALIDATION_ERROR",
		Message: errs.First(),
		Details: errs,
	})
}

// BadRequest sends a 400 response
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

// NotFound sends a 404 response
func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	Error(w, http.StatusNotFound, "NOT_FOUND", message)
}

// Conflict sends a 409 response
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, "CONFLICT", message)
}

// Unauthorized sends a 401 response
func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
}

// TooManyRequests sends a 429 response
func TooManyRequests(w http.ResponseWriter) {
	Error(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many attempts. Please try again later.")
}

// InternalError sends a 500 response
func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
}

// Created sends a 201 response with the created resource
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// OK sends a 200 response
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

// asValidation reports whether err carries field validation failures
func asValidation(err error) (validation.ValidationErrors, bool) {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) && verrs.HasErrors() {
		return verrs, true
	}
	return nil, false
}
