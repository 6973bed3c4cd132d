package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/tvtime/internal/app"
	"github.com/dukerupert/tvtime/internal/ledger"
)

type ChoreHandler struct {
	app    *app.App
	logger *slog.Logger
}

func NewChoreHandler(a *app.App, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{app: a, logger: logger}
}

type choreRequest struct {
	Name string `json:"name"`
	Time int    `json:"time"`
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Chores())
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := h.app.AddChore(req.Name, req.Time)
	if err != nil {
		if !ledger.IsValidation(err) {
			h.logger.Error("failed to add chore", "error", err)
		}
		writeLedgerError(w, err, "failed to add chore")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req choreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := h.app.UpdateChore(id, req.Name, req.Time)
	if err != nil {
		if !ledger.IsValidation(err) {
			h.logger.Error("failed to update chore", "id", id, "error", err)
		}
		writeLedgerError(w, err, "failed to update chore")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	ok, err := h.app.DeleteChore(id)
	if err != nil {
		h.logger.Error("failed to delete chore", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete chore")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
