package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/store"
	"github.com/dukerupert/beanjar/internal/websocket"
)

type MemberHandler struct {
	db       *sql.DB
	members  *store.MemberStore
	families *store.FamilyStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewMemberHandler(db *sql.DB, ms *store.MemberStore, fs *store.FamilyStore, hub *websocket.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{db: db, members: ms, families: fs, hub: hub, logger: logger}
}

func validPIN(pin string) bool {
	return len(pin) == 4 && isDigits(pin)
}

func hashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseQueryID(r, "family_id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid family_id")
		return
	}

	members, err := h.members.List(r.Context(), familyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

// Create registers a member. New members start with zero points; a PIN is
// optional at registration.
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string     `json:"name"`
		Role     model.Role `json:"role"`
		FamilyID *int64     `json:"family_id"`
		PIN      string     `json:"pin"`
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
	req.Role = model.Role(strings.ToUpper(string(req.Role)))
	if !req.Role.Valid() {
		writeMessage(w, http.StatusBadRequest, "role must be PARENT or CHILD")
		return
	}
	if req.PIN != "" && !validPIN(req.PIN) {
		writeMessage(w, http.StatusBadRequest, "PIN must be exactly 4 digits")
		return
	}

	if req.FamilyID != nil {
		family, err := h.families.GetByID(r.Context(), *req.FamilyID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if family == nil {
			writeMessage(w, http.StatusNotFound, "family not found")
			return
		}
	}

	var hash string
	if req.PIN != "" {
		var err error
		if hash, err = hashPIN(req.PIN); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	member, err := h.members.Create(r.Context(), req.FamilyID, req.Name, req.Role, hash)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(websocket.NewMessage("member", "created", member.ID, member.FamilyID, nil))
	writeJSON(w, http.StatusCreated, member)
}

// Update changes name and role, and replaces the PIN when one is supplied.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Name string     `json:"name"`
		Role model.Role `json:"role"`
		PIN  string     `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	existing, err := h.members.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "member not found")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = existing.Name
	}
	if req.Role == "" {
		req.Role = existing.Role
	}
	req.Role = model.Role(strings.ToUpper(string(req.Role)))
	if !req.Role.Valid() {
		writeMessage(w, http.StatusBadRequest, "role must be PARENT or CHILD")
		return
	}
	if req.PIN != "" && !validPIN(req.PIN) {
		writeMessage(w, http.StatusBadRequest, "PIN must be exactly 4 digits")
		return
	}

	var hash string
	if req.PIN != "" {
		hash, err = hashPIN(req.PIN)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	// The PIN and profile change together or not at all.
	var member *model.Member
	err = store.WithTx(r.Context(), h.db, func(tx *sql.Tx) error {
		ms := store.NewMemberStore(tx)
		if hash != "" {
			if err := ms.SetPIN(r.Context(), id, hash); err != nil {
				return err
			}
		}
		var err error
		member, err = ms.Update(r.Context(), id, req.Name, req.Role)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(websocket.NewMessage("member", "updated", member.ID, member.FamilyID, nil))
	writeJSON(w, http.StatusOK, member)
}

// Delete removes the member together with their tasks, routines, votes and
// transaction history.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.members.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "member not found")
		return
	}

	if err := h.members.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("member deleted", "member_id", id)
	h.hub.Broadcast(websocket.NewMessage("member", "deleted", id, existing.FamilyID, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *MemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PIN == "" {
		writeMessage(w, http.StatusBadRequest, "pin is required")
		return
	}

	member, err := h.members.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if member == nil {
		writeMessage(w, http.StatusNotFound, "member not found")
		return
	}

	hash, err := h.members.GetPINHash(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if hash == "" {
		writeMessage(w, http.StatusBadRequest, "no PIN set for this member")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
		writeMessage(w, http.StatusUnauthorized, "incorrect PIN")
		return
	}

	writeJSON(w, http.StatusOK, member)
}

// ChangePIN replaces the PIN after checking the old one. Members without a
// PIN may set one without old_pin.
func (h *MemberHandler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		OldPIN string `json:"old_pin"`
		NewPIN string `json:"new_pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !validPIN(req.NewPIN) {
		writeMessage(w, http.StatusBadRequest, "PIN must be exactly 4 digits")
		return
	}

	member, err := h.members.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if member == nil {
		writeMessage(w, http.StatusNotFound, "member not found")
		return
	}

	hash, err := h.members.GetPINHash(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.OldPIN)); err != nil {
			writeMessage(w, http.StatusUnauthorized, "incorrect old PIN")
			return
		}
	}

	newHash, err := hashPIN(req.NewPIN)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.members.SetPIN(r.Context(), id, newHash); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin changed"})
}

// Audit reports whether the member's balance matches their transaction log.
func (h *MemberHandler) Audit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	audit, err := h.members.Audit(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if audit == nil {
		writeMessage(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, audit)
}
