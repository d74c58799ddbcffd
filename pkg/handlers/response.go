package handlers

import (
	"encoding/json"
	"net/http"
)

// errorBody is the error envelope every failing endpoint returns.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse writes the {error, message} envelope with the given status.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, errorBody{Error: errorCode, Message: message})
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}
