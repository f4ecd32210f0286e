package model

import "time"

type TaskType string

const (
	TaskEarn      TaskType = "EARN"
	TaskSpend     TaskType = "SPEND"
	TaskTattle    TaskType = "TATTLE"
	TaskHourglass TaskType = "HOURGLASS"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskEarn, TaskSpend, TaskTattle, TaskHourglass:
		return true
	}
	return false
}

type TaskStatus string

const (
	StatusTodo     TaskStatus = "TODO"
	StatusPending  TaskStatus = "PENDING"
	StatusApproved TaskStatus = "APPROVED"
	StatusRejected TaskStatus = "REJECTED"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Task struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Type            TaskType       `json:"type"`
	Points          int            `json:"points"`
	Status          TaskStatus     `json:"status"`
	CreatorID       int64          `json:"creator_id"`
	AssigneeID      *int64         `json:"assignee_id"`
	DurationMinutes *int           `json:"duration_minutes"`
	RoutineID       *int64         `json:"routine_id"`
	Approvals       []TaskApproval `json:"approvals,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type TaskApproval struct {
	TaskID     int64     `json:"task_id"`
	MemberID   int64     `json:"member_id"`
	MemberName string    `json:"member_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Vote string

const (
	VoteApprove Vote = "APPROVE"
	VoteReject  Vote = "REJECT"
)

// VoteResult is returned for every accepted vote. Finalized is true when the
// vote moved the task into a terminal state.
type VoteResult struct {
	Task          *Task  `json:"task"`
	ApprovalCount int    `json:"approval_count"`
	Required      int    `json:"required"`
	Finalized     bool   `json:"finalized"`
	Message       string `json:"message,omitempty"`
}
