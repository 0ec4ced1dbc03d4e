package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/healthvault-api/internal/domain"
)

// writeJSONError writes the same error body the handlers use.
func writeJSONError(w http.ResponseWriter, status int, msg string, kind domain.Kind) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": string(kind)})
}
