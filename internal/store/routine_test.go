package store

import (
	"context"
	"testing"

	"github.com/dukerupert/beanjar/internal/model"
)

func TestRoutineCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	rs := NewRoutineStore(db)
	ms := NewMemberStore(db)

	parent, _ := ms.Create(ctx, nil, "Parent", model.RoleParent, "")
	kid, _ := ms.Create(ctx, nil, "Kid", model.RoleChild, "")

	dur := 30
	r, err := rs.Create(ctx, parent.ID, RoutineFields{
		Title: "Reading", Type: model.TaskHourglass, Points: 200, TimeOfDay: "EVENING",
		DaysOfWeek: "Mon,Wed,Fri", DurationMinutes: &dur, AssigneeID: kid.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !r.IsActive {
		t.Error("new routine is not active")
	}
	if r.CreatorID != parent.ID || r.AssigneeID != kid.ID {
		t.Errorf("creator/assignee = %d/%d", r.CreatorID, r.AssigneeID)
	}

	r, err = rs.Update(ctx, r.ID, RoutineFields{
		Title: "Reading", Type: model.TaskHourglass, Points: 250, TimeOfDay: "EVENING",
		DaysOfWeek: "Mon,Wed,Fri", DurationMinutes: &dur, AssigneeID: kid.ID,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if r.Points != 250 {
		t.Errorf("points = %d, want 250", r.Points)
	}

	list, _ := rs.ListActive(ctx, &kid.ID)
	if len(list) != 1 {
		t.Fatalf("active for kid = %d, want 1", len(list))
	}
	list, _ = rs.ListActive(ctx, &parent.ID)
	if len(list) != 0 {
		t.Errorf("active for parent = %d, want 0", len(list))
	}

	r, err = rs.Deactivate(ctx, r.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if r.IsActive {
		t.Error("routine still active after deactivate")
	}
	list, _ = rs.ListActive(ctx, nil)
	if len(list) != 0 {
		t.Errorf("active after deactivate = %d, want 0", len(list))
	}
	if got, _ := rs.GetByID(ctx, r.ID); got == nil {
		t.Error("deactivated routine should still be readable")
	}
}

func TestTransactionLog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ts := NewTransactionStore(db)
	ms := NewMemberStore(db)

	m, _ := ms.Create(ctx, nil, "A", model.RoleParent, "")
	ts.Append(ctx, m.ID, 100, "Dishes")
	ts.Append(ctx, m.ID, -30, "Snacks")

	list, err := ts.ListByMember(ctx, m.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Reason != "Snacks" || list[0].MemberName != "A" {
		t.Errorf("newest = %+v", list[0])
	}

	sum, err := ts.SumByMember(ctx, m.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 70 {
		t.Errorf("sum = %d, want 70", sum)
	}
}
