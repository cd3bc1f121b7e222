// Package api writes the service's JSON envelope. Every success body
// carries success:true; every failure body carries success:false plus
// the numeric status and a human-readable message.
package api

import (
	"encoding/json"
	"net/http"
)

// Success merges payload into a success envelope and writes it with the
// given status.
func Success(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// Error writes a failure envelope. The numeric error code mirrors the
// HTTP status.
func Error(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Success: false, Error: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
