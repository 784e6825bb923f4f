package respond

import (
	"encoding/json"
	"net/http"

	"cgl-backend/internal/apperr"
)

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK wraps data in the success envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, map[string]any{"ok": true, "data": data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"ok": false, "error": message})
}

// Fail writes err using the status and public message of its kind.
func Fail(w http.ResponseWriter, err error) {
	Error(w, apperr.Status(err), apperr.Message(err))
}
