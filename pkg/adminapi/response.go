package adminapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the standard envelope every admin API endpoint responds with.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// writeJSON writes data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// ok writes a 200 response wrapping data.
func ok(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Status: "ok", Timestamp: time.Now().UTC(), Data: data})
}

// notFound writes a 404 response with the given message.
func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, Response{Status: "error", Timestamp: time.Now().UTC(), Error: msg})
}

// serverError writes a 500 response with the given error.
func serverError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, Response{Status: "error", Timestamp: time.Now().UTC(), Error: err.Error()})
}
