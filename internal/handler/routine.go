package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/beanjar/internal/ledger"
	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/push"
	"github.com/dukerupert/beanjar/internal/routine"
	"github.com/dukerupert/beanjar/internal/store"
	"github.com/dukerupert/beanjar/internal/websocket"
)

type RoutineHandler struct {
	routines *store.RoutineStore
	tasks    *store.TaskStore
	members  *store.MemberStore
	ledger   *ledger.Service
	hub      *websocket.Hub
	notify   *push.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewRoutineHandler(rs *store.RoutineStore, ts *store.TaskStore, ms *store.MemberStore, svc *ledger.Service, hub *websocket.Hub, notify *push.Notifier, logger *slog.Logger) *RoutineHandler {
	return &RoutineHandler{routines: rs, tasks: ts, members: ms, ledger: svc, hub: hub, notify: notify, logger: logger, now: time.Now}
}

type routineRequest struct {
	Title           *string         `json:"title"`
	Type            *model.TaskType `json:"type"`
	Points          *int            `json:"points"`
	TimeOfDay       *string         `json:"time_of_day"`
	DaysOfWeek      *string         `json:"days_of_week"`
	DurationMinutes *int            `json:"duration_minutes"`
	AssigneeID      *int64          `json:"assignee_id"`
}

// apply overlays the request on f and validates the result.
func (req routineRequest) apply(f *store.RoutineFields) string {
	if req.Title != nil {
		f.Title = strings.TrimSpace(*req.Title)
	}
	if req.Type != nil {
		f.Type = model.TaskType(strings.ToUpper(string(*req.Type)))
	}
	if req.Points != nil {
		f.Points = *req.Points
	}
	if req.TimeOfDay != nil {
		f.TimeOfDay = strings.TrimSpace(*req.TimeOfDay)
	}
	if req.DaysOfWeek != nil {
		f.DaysOfWeek = *req.DaysOfWeek
	}
	if req.DurationMinutes != nil {
		f.DurationMinutes = req.DurationMinutes
	}
	if req.AssigneeID != nil {
		f.AssigneeID = *req.AssigneeID
	}

	if f.Title == "" {
		return "title is required"
	}
	if f.Type != model.TaskEarn && f.Type != model.TaskHourglass {
		return "type must be EARN or HOURGLASS"
	}
	if f.Points < 0 {
		f.Points = -f.Points
	}
	if f.Points == 0 {
		return "points are required"
	}
	if f.Type == model.TaskHourglass {
		if f.DurationMinutes == nil || *f.DurationMinutes <= 0 {
			return "HOURGLASS routines require duration_minutes"
		}
	} else {
		f.DurationMinutes = nil
	}
	days, err := routine.NormalizeDays(f.DaysOfWeek)
	if err != nil {
		return err.Error()
	}
	f.DaysOfWeek = days
	if f.AssigneeID == 0 {
		return "assignee_id is required"
	}
	return ""
}

func (h *RoutineHandler) List(w http.ResponseWriter, r *http.Request) {
	assigneeID, err := parseQueryID(r, "assignee_id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid assignee_id")
		return
	}

	routines, err := h.routines.ListActive(r.Context(), assigneeID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if routines == nil {
		routines = []model.Routine{}
	}
	writeJSON(w, http.StatusOK, routines)
}

func (h *RoutineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		routineRequest
		CreatorID int64 `json:"creator_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.CreatorID == 0 {
		writeMessage(w, http.StatusBadRequest, "creator_id is required")
		return
	}

	var f store.RoutineFields
	if msg := req.apply(&f); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	creator, ok := h.sameFamily(w, r, req.CreatorID, f.AssigneeID)
	if !ok {
		return
	}

	rt, err := h.routines.Create(r.Context(), creator.ID, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(websocket.NewMessage("routine", "created", rt.ID, creator.FamilyID, nil))
	writeJSON(w, http.StatusCreated, rt)
}

// sameFamily loads the creator and checks the assignee shares their family.
// It writes the error response itself and reports false on failure.
func (h *RoutineHandler) sameFamily(w http.ResponseWriter, r *http.Request, creatorID, assigneeID int64) (*model.Member, bool) {
	creator, err := h.members.GetByID(r.Context(), creatorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if creator == nil {
		writeMessage(w, http.StatusNotFound, "creator not found")
		return nil, false
	}
	assignee, err := h.members.GetByID(r.Context(), assigneeID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if assignee == nil {
		writeMessage(w, http.StatusNotFound, "assignee not found")
		return nil, false
	}
	if !sameFamilyID(creator.FamilyID, assignee.FamilyID) {
		writeError(w, r, h.logger, ledger.ErrOtherFamily)
		return nil, false
	}
	return creator, true
}

func sameFamilyID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Update applies a partial change; omitted fields keep their value.
func (h *RoutineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req routineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	existing, err := h.routines.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "routine not found")
		return
	}

	f := store.RoutineFields{
		Title:           existing.Title,
		Type:            existing.Type,
		Points:          existing.Points,
		TimeOfDay:       existing.TimeOfDay,
		DaysOfWeek:      existing.DaysOfWeek,
		DurationMinutes: existing.DurationMinutes,
		AssigneeID:      existing.AssigneeID,
	}
	if msg := req.apply(&f); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}
	creator, ok := h.sameFamily(w, r, existing.CreatorID, f.AssigneeID)
	if !ok {
		return
	}

	rt, err := h.routines.Update(r.Context(), id, f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(websocket.NewMessage("routine", "updated", rt.ID, creator.FamilyID, nil))
	writeJSON(w, http.StatusOK, rt)
}

// Delete deactivates the routine. Tasks it already produced stay.
func (h *RoutineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.routines.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "routine not found")
		return
	}

	rt, err := h.routines.Deactivate(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(websocket.NewMessage("routine", "deleted", rt.ID, familyOf(r.Context(), h.members, rt.CreatorID), nil))
	writeJSON(w, http.StatusOK, rt)
}

// Today lists the member's active routines scheduled for today with their
// completion state.
func (h *RoutineHandler) Today(w http.ResponseWriter, r *http.Request) {
	memberID, err := parseQueryID(r, "member_id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid member_id")
		return
	}
	if memberID == nil {
		writeMessage(w, http.StatusBadRequest, "member_id is required")
		return
	}

	routines, err := h.routines.ListActive(r.Context(), memberID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	now := h.now()
	result := []model.RoutineToday{}
	for _, rt := range routines {
		if !routine.ScheduledOn(rt, now) {
			continue
		}
		tasks, err := h.tasks.ListByRoutineSince(r.Context(), rt.ID, routine.StartOfDay(now))
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		result = append(result, routine.Today(rt, tasks, now))
	}
	writeJSON(w, http.StatusOK, result)
}

// Complete creates today's task for the routine.
func (h *RoutineHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	rt, err := h.routines.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if rt == nil {
		writeMessage(w, http.StatusNotFound, "routine not found")
		return
	}

	task, err := h.ledger.CompleteRoutine(r.Context(), rt)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.hub.Broadcast(websocket.NewMessage("task", "created", task.ID, familyOf(r.Context(), h.members, task.CreatorID), map[string]any{"routine_id": rt.ID}))
	if task.Status == model.StatusPending {
		h.notify.VoteRequested(task)
	}
	writeJSON(w, http.StatusCreated, task)
}
