package httputil

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Parse decodes a JSON request body into v. An empty body leaves v untouched.
func Parse(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") || contentType == "" {
		return json.NewDecoder(r.Body).Decode(v)
	}
	return nil
}

// OkJSON writes a JSON response with 200 OK status
func OkJSON(w http.ResponseWriter, v any) {
	WriteJSON(w, http.StatusOK, v)
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error writes a 400 response for err.
func Error(w http.ResponseWriter, err error) {
	ErrorWithCode(w, http.StatusBadRequest, err.Error())
}

// ErrorWithCode writes an error response with a specific status code
func ErrorWithCode(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, ErrorResponse{Code: code, Message: message})
}

// Unavailable writes a 503, used when the capability server is not running.
func Unavailable(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusServiceUnavailable, message)
}
