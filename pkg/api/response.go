package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Envelope is the uniform response shape for every endpoint.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteSuccess writes a success envelope with the given status code.
func WriteSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Envelope{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// WriteError writes an error envelope. Application errors keep their status
// code and message; anything else becomes a generic 500. When debug is false,
// wrapped internal causes are suppressed and 5xx messages stay generic.
func WriteError(w http.ResponseWriter, err error, debug bool) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = &Error{Code: http.StatusInternalServerError, Message: "internal server error", Err: err}
	}

	message := apiErr.Message
	if apiErr.Code >= http.StatusInternalServerError {
		if debug {
			message = apiErr.Error()
		} else if message == "" {
			message = "internal server error"
		}
	}

	writeJSON(w, apiErr.Code, Envelope{
		Status:  "error",
		Message: message,
		Code:    apiErr.Code,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
