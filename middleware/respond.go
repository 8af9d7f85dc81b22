package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody matches the JSON error shape of the HTTP API.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:            code,
		ErrorDescription: description,
		RequestID:        rid,
	})
}
