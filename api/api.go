package api

import (
	"encoding/json"
	"net/http"

	"github.com/linesmerrill/courtroom-api/config"
)

// WriteJSON marshals v and writes it with the given status code
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
