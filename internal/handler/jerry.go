package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/oracle"
)

// JerryHandler exposes the point-suggestion oracle.
type JerryHandler struct {
	oracle oracle.Oracle
	logger *slog.Logger
}

func NewJerryHandler(o oracle.Oracle, logger *slog.Logger) *JerryHandler {
	return &JerryHandler{oracle: o, logger: logger}
}

func (h *JerryHandler) Consult(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string         `json:"description"`
		Type        model.TaskType `json:"type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" || req.Type == "" {
		writeMessage(w, http.StatusBadRequest, "description and type are required")
		return
	}

	verdict, err := h.oracle.Consult(r.Context(), req.Description, model.TaskType(strings.ToUpper(string(req.Type))))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (h *JerryHandler) RecommendRoutines(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role model.Role `json:"role"`
		Name string     `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Role = model.Role(strings.ToUpper(string(req.Role)))
	if req.Name == "" || !req.Role.Valid() {
		writeMessage(w, http.StatusBadRequest, "name and role (PARENT or CHILD) are required")
		return
	}

	suggestions, err := h.oracle.RecommendRoutines(r.Context(), req.Role, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}
