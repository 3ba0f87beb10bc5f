package httpapi

import (
	"encoding/json"
	"net/http"
)

// messageResponse is the uniform body shape for status-only replies.
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeUnauthorized is the single 401 used by the gate and by every
// authentication failure. The body carries no detail about which check
// failed.
func writeUnauthorized(w http.ResponseWriter) {
	writeMessage(w, http.StatusUnauthorized, "Unauthorized")
}

func writeInternalError(w http.ResponseWriter) {
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
