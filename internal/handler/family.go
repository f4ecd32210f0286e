package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/store"
	"github.com/dukerupert/beanjar/internal/websocket"
)

type FamilyHandler struct {
	families *store.FamilyStore
	members  *store.MemberStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, ms *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: fs, members: ms, hub: hub, logger: logger}
}

func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	families, err := h.families.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if families == nil {
		families = []model.Family{}
	}
	writeJSON(w, http.StatusOK, families)
}

func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Motto    string `json:"motto"`
		Location string `json:"location"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "name is required")
		return
	}

	family, err := h.families.Create(r.Context(), req.Name, strings.TrimSpace(req.Motto), strings.TrimSpace(req.Location))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, family)
}

// Get returns the family with its members, oldest member first.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	family, err := h.families.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if family == nil {
		writeMessage(w, http.StatusNotFound, "family not found")
		return
	}

	members, err := h.members.List(r.Context(), &family.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	family.Members = members
	writeJSON(w, http.StatusOK, family)
}

func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Motto    *string `json:"motto"`
		Location *string `json:"location"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeMessage(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		req.Name = &name
	}

	existing, err := h.families.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "family not found")
		return
	}

	family, err := h.families.Update(r.Context(), id, store.FamilyPatch{Name: req.Name, Motto: req.Motto, Location: req.Location})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.hub.Broadcast(websocket.NewMessage("family", "updated", family.ID, &family.ID, nil))
	writeJSON(w, http.StatusOK, family)
}
