package utils

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform JSON response shape. Every success carries a
// payload and a human-readable message; every failure carries a
// machine-readable code plus optional structured details.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error codes used across the API surface.
const (
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeRateLimited      = "rate_limited"
	CodeConflict         = "conflict"
	CodeQueueFull        = "queue_full"
	CodeInternal         = "internal"
)

// JSONSuccess writes a success envelope with the given payload.
func JSONSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: true, Data: data, Message: message})
}

// JSONError writes a failure envelope with the given code and message.
func JSONError(w http.ResponseWriter, status int, code, message string) {
	JSONErrorDetails(w, status, code, message, nil)
}

// JSONErrorDetails writes a failure envelope carrying structured details.
func JSONErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message, Details: details}})
}
