package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/tvtime/internal/app"
	"github.com/dukerupert/tvtime/internal/bonus"
)

// StatusHandler serves sync status, the family id and manual bonus checks.
type StatusHandler struct {
	app    *app.App
	logger *slog.Logger
}

func NewStatusHandler(a *app.App, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{app: a, logger: logger}
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Status())
}

func (h *StatusHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"family_id": h.app.FamilyID()})
}

// PutFamily stores a new family id. The device keeps syncing the current
// document until it restarts.
func (h *StatusHandler) PutFamily(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FamilyID string `json:"family_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.FamilyID = strings.TrimSpace(req.FamilyID)
	if req.FamilyID == "" {
		writeError(w, http.StatusBadRequest, "family_id is required")
		return
	}

	if err := h.app.JoinFamily(req.FamilyID); err != nil {
		h.logger.Error("failed to save family id", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save family id")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"family_id":        req.FamilyID,
		"restart_required": true,
	})
}

func (h *StatusHandler) CheckBonus(w http.ResponseWriter, r *http.Request) {
	res := h.app.CheckDailyBonus()
	if res.Kind == bonus.Failed {
		writeError(w, http.StatusInternalServerError, "bonus check failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
