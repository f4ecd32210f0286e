package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/push"
	"github.com/dukerupert/beanjar/internal/store"
)

type PushHandler struct {
	subs    *store.PushStore
	members *store.MemberStore
	service *push.Service
	logger  *slog.Logger
}

// NewPushHandler builds the handler. svc may be nil when no VAPID keys are
// configured; subscriptions are still stored.
func NewPushHandler(ps *store.PushStore, ms *store.MemberStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: ps, members: ms, service: svc, logger: logger}
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "public_key": ""})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "public_key": h.service.VAPIDPublicKey()})
}

// Subscribe handles POST /api/members/{id}/push-subscriptions
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	member, ok := h.member(w, r)
	if !ok {
		return
	}

	var req struct {
		Endpoint   string `json:"endpoint"`
		P256dh     string `json:"p256dh"`
		Auth       string `json:"auth"`
		DeviceName string `json:"device_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !strings.HasPrefix(req.Endpoint, "https://") || req.P256dh == "" || req.Auth == "" {
		writeMessage(w, http.StatusBadRequest, "https endpoint, p256dh and auth are required")
		return
	}

	sub, err := h.subs.Subscribe(r.Context(), member.ID, req.Endpoint, req.P256dh, req.Auth, strings.TrimSpace(req.DeviceName))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// List handles GET /api/members/{id}/push-subscriptions
func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	member, ok := h.member(w, r)
	if !ok {
		return
	}

	subs, err := h.subs.ListByMembers(r.Context(), member.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// Unsubscribe handles DELETE /api/members/{id}/push-subscriptions/{sub_id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	member, ok := h.member(w, r)
	if !ok {
		return
	}
	subID, err := strconv.ParseInt(r.PathValue("sub_id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	sub, err := h.subs.GetByID(r.Context(), subID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if sub == nil || sub.MemberID != member.ID {
		writeMessage(w, http.StatusNotFound, "subscription not found")
		return
	}

	if err := h.subs.Delete(r.Context(), subID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PushHandler) member(w http.ResponseWriter, r *http.Request) (*model.Member, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	m, err := h.members.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if m == nil {
		writeMessage(w, http.StatusNotFound, "member not found")
		return nil, false
	}
	return m, true
}
