package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/beanjar/internal/approval"
	"github.com/dukerupert/beanjar/internal/ledger"
	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/push"
	"github.com/dukerupert/beanjar/internal/store"
	"github.com/dukerupert/beanjar/internal/websocket"
)

type TaskHandler struct {
	tasks   *store.TaskStore
	members *store.MemberStore
	ledger  *ledger.Service
	hub     *websocket.Hub
	notify  *push.Notifier
	logger  *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, ms *store.MemberStore, svc *ledger.Service, hub *websocket.Hub, notify *push.Notifier, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, members: ms, ledger: svc, hub: hub, notify: notify, logger: logger}
}

// familyOf resolves the family a member belongs to for websocket routing.
// Lookup failures fall back to an unscoped broadcast.
func familyOf(ctx context.Context, ms *store.MemberStore, memberID int64) *int64 {
	m, err := ms.GetByID(ctx, memberID)
	if err != nil || m == nil {
		return nil
	}
	return m.FamilyID
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var f store.TaskFilter
	if s := r.URL.Query().Get("status"); s != "" {
		f.Status = model.TaskStatus(strings.ToUpper(s))
		if !f.Status.Valid() {
			writeMessage(w, http.StatusBadRequest, "invalid status")
			return
		}
	}
	var err error
	if f.FamilyID, err = parseQueryID(r, "family_id"); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid family_id")
		return
	}
	if f.MemberID, err = parseQueryID(r, "member_id"); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid member_id")
		return
	}

	tasks, err := h.tasks.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	for i := range tasks {
		approvals, err := h.tasks.ListApprovals(r.Context(), tasks[i].ID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		tasks[i].Approvals = approvals
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title           string         `json:"title"`
		Description     string         `json:"description"`
		Type            model.TaskType `json:"type"`
		Points          int            `json:"points"`
		CreatorID       int64          `json:"creator_id"`
		AssigneeID      *int64         `json:"assignee_id"`
		DurationMinutes *int           `json:"duration_minutes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.CreatorID == 0 {
		writeMessage(w, http.StatusBadRequest, "creator_id is required")
		return
	}

	task, err := h.ledger.CreateTask(r.Context(), ledger.TaskInput{
		Title:           req.Title,
		Description:     req.Description,
		Type:            model.TaskType(strings.ToUpper(string(req.Type))),
		Points:          req.Points,
		CreatorID:       req.CreatorID,
		AssigneeID:      req.AssigneeID,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(websocket.NewMessage("task", "created", task.ID, familyOf(r.Context(), h.members, task.CreatorID), nil))
	if task.Status == model.StatusPending {
		h.notify.VoteRequested(task)
	}
	writeJSON(w, http.StatusCreated, task)
}

// Get returns a task with the members who approved it.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if task == nil {
		writeMessage(w, http.StatusNotFound, "task not found")
		return
	}

	approvals, err := h.tasks.ListApprovals(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	task.Approvals = approvals
	writeJSON(w, http.StatusOK, task)
}

// Patch submits a timed task for approval. PENDING is the only status a
// client may request.
func (h *TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Status model.TaskStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if model.TaskStatus(strings.ToUpper(string(req.Status))) != model.StatusPending {
		writeMessage(w, http.StatusBadRequest, "status can only be set to PENDING")
		return
	}

	task, err := h.ledger.SubmitForApproval(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(websocket.NewMessage("task", "submitted", task.ID, familyOf(r.Context(), h.members, task.CreatorID), nil))
	h.notify.VoteRequested(task)
	writeJSON(w, http.StatusOK, task)
}

// Vote records an APPROVE or REJECT from a family member.
func (h *TaskHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Action   string `json:"action"`
		MemberID int64  `json:"member_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.MemberID == 0 {
		writeMessage(w, http.StatusBadRequest, "member_id is required")
		return
	}
	vote, err := approval.ParseVote(strings.ToUpper(req.Action))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.ledger.SubmitVote(r.Context(), id, req.MemberID, vote)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	action := "voted"
	if res.Finalized {
		action = strings.ToLower(string(res.Task.Status))
		h.notify.TaskFinalized(res.Task)
	}
	h.hub.Broadcast(websocket.NewMessage("task", action, res.Task.ID, familyOf(r.Context(), h.members, res.Task.CreatorID), map[string]any{
		"approval_count": res.ApprovalCount,
		"required":       res.Required,
	}))
	writeJSON(w, http.StatusOK, res)
}
