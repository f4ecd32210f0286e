package routine

import (
	"testing"
	"time"

	"github.com/dukerupert/beanjar/internal/model"
)

func TestParseDays(t *testing.T) {
	days, err := ParseDays("Mon, wed,FRIDAY")
	if err != nil {
		t.Fatalf("parse days: %v", err)
	}
	if !days[time.Monday] || !days[time.Wednesday] || !days[time.Friday] {
		t.Errorf("days = %v, want Mon/Wed/Fri", days)
	}
	if days[time.Sunday] {
		t.Error("Sunday should not be set")
	}
}

func TestParseDaysInvalid(t *testing.T) {
	if _, err := ParseDays("Mon,Funday"); err == nil {
		t.Error("expected error for unknown day")
	}
	if _, err := ParseDays(" , "); err != ErrNoDays {
		t.Errorf("err = %v, want ErrNoDays", err)
	}
}

func TestNormalizeDays(t *testing.T) {
	got, err := NormalizeDays("Sat,mon,Mon,Sun")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "Sun,Mon,Sat" {
		t.Errorf("normalized = %q, want %q", got, "Sun,Mon,Sat")
	}
}

func TestScheduledOn(t *testing.T) {
	r := model.Routine{DaysOfWeek: "Mon,Wed"}
	monday := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	if !ScheduledOn(r, monday) {
		t.Error("expected routine to run on Monday")
	}
	if ScheduledOn(r, tuesday) {
		t.Error("expected routine not to run on Tuesday")
	}
	if ScheduledOn(model.Routine{DaysOfWeek: ""}, monday) {
		t.Error("empty day set should never be scheduled")
	}
}

func TestTodayNotDone(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	r := model.Routine{ID: 1, DaysOfWeek: "Mon"}
	yesterday := model.Task{ID: 9, RoutineID: &r.ID, Status: model.StatusApproved, CreatedAt: now.AddDate(0, 0, -1)}

	got := Today(r, []model.Task{yesterday}, now)
	if !got.ScheduledToday {
		t.Error("expected scheduled today")
	}
	if got.IsCompletedToday {
		t.Error("yesterday's task must not count for today")
	}
	if got.TaskID != nil || got.TaskStatus != nil {
		t.Errorf("task id/status = %v/%v, want nil", got.TaskID, got.TaskStatus)
	}
}

func TestTodayDone(t *testing.T) {
	now := time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC)
	r := model.Routine{ID: 1, DaysOfWeek: "Mon"}
	morning := model.Task{ID: 10, RoutineID: &r.ID, Status: model.StatusPending, CreatedAt: StartOfDay(now)}
	evening := model.Task{ID: 11, RoutineID: &r.ID, Status: model.StatusTodo, CreatedAt: now.Add(-time.Hour)}

	got := Today(r, []model.Task{morning, evening}, now)
	if !got.IsCompletedToday {
		t.Fatal("expected completed today")
	}
	if *got.TaskID != 11 {
		t.Errorf("task id = %d, want 11", *got.TaskID)
	}
	if *got.TaskStatus != model.StatusTodo {
		t.Errorf("task status = %q, want %q", *got.TaskStatus, model.StatusTodo)
	}
}

func TestTodayIgnoresOtherRoutines(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	r := model.Routine{ID: 1, DaysOfWeek: "Mon"}
	other := int64(2)
	task := model.Task{ID: 5, RoutineID: &other, CreatedAt: now}

	if Today(r, []model.Task{task}, now).IsCompletedToday {
		t.Error("task of another routine must not count")
	}
}

func TestDayWindow(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC)
	if got := StartOfDay(now); !got.Equal(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", got)
	}
	end := EndOfDay(now)
	if end.Day() != 19 || !end.Add(time.Nanosecond).Equal(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", end)
	}
}
