package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/tvtime/internal/ledger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLedgerError maps validation failures to 400, duplicates to 409 and
// anything else to 500.
func writeLedgerError(w http.ResponseWriter, err error, fallback string) {
	if ve, ok := ledger.AsValidation(err); ok {
		status := http.StatusBadRequest
		if ve.Reason == ledger.ReasonDuplicate {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": ve.Error(), "field": ve.Field})
		return
	}
	writeError(w, http.StatusInternalServerError, fallback)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func pathParam(r *http.Request, name string) string {
	return strings.TrimSpace(r.PathValue(name))
}
