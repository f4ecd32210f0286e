package model

import "time"

type Routine struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Type            TaskType  `json:"type"`
	Points          int       `json:"points"`
	TimeOfDay       string    `json:"time_of_day"`
	DaysOfWeek      string    `json:"days_of_week"`
	DurationMinutes *int      `json:"duration_minutes"`
	CreatorID       int64     `json:"creator_id"`
	AssigneeID      int64     `json:"assignee_id"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RoutineToday is a routine annotated with today's completion state.
type RoutineToday struct {
	Routine
	ScheduledToday   bool        `json:"scheduled_today"`
	IsCompletedToday bool        `json:"is_completed_today"`
	TaskID           *int64      `json:"task_id"`
	TaskStatus       *TaskStatus `json:"task_status"`
}
