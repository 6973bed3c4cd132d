package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/tvtime/internal/app"
	"github.com/dukerupert/tvtime/internal/ledger"
	"github.com/dukerupert/tvtime/internal/model"
)

type ChildHandler struct {
	app    *app.App
	logger *slog.Logger
}

func NewChildHandler(a *app.App, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{app: a, logger: logger}
}

type personResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	TimeBalance      int       `json:"timeBalance"`
	FormattedBalance string    `json:"formatted_balance"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toPersonResponse(p model.Person) personResponse {
	return personResponse{
		ID:               p.ID,
		Name:             p.Name,
		TimeBalance:      p.TimeBalance,
		FormattedBalance: ledger.FormatDuration(p.TimeBalance),
		CreatedAt:        p.CreatedAt,
	}
}

func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	children := h.app.Children()
	out := make([]personResponse, 0, len(children))
	for _, p := range children {
		out = append(out, toPersonResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	p, err := h.app.AddPerson(req.Name)
	if err != nil {
		if !ledger.IsValidation(err) {
			h.logger.Error("failed to add person", "error", err)
		}
		writeLedgerError(w, err, "failed to add person")
		return
	}
	writeJSON(w, http.StatusCreated, toPersonResponse(*p))
}

func (h *ChildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	ok, err := h.app.RemovePerson(id)
	if err != nil {
		h.logger.Error("failed to remove person", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove person")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustRequest struct {
	Direction ledger.Direction `json:"direction"`
	Amount    int              `json:"amount"`
}

func (h *ChildHandler) AdjustTime(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	p, err := h.app.AdjustTime(id, req.Direction, req.Amount)
	if err != nil {
		if !ledger.IsValidation(err) {
			h.logger.Error("failed to adjust time", "id", id, "error", err)
		}
		writeLedgerError(w, err, "failed to adjust time")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}
	writeJSON(w, http.StatusOK, toPersonResponse(*p))
}

func (h *ChildHandler) GrantChore(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	choreID := pathParam(r, "chore_id")

	p, err := h.app.GrantChore(id, choreID)
	if err != nil {
		h.logger.Error("failed to grant chore", "id", id, "chore_id", choreID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to grant chore")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "person or chore not found")
		return
	}
	writeJSON(w, http.StatusOK, toPersonResponse(*p))
}
