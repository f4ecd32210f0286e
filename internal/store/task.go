package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/beanjar/internal/model"
)

type TaskStore struct {
	db DBTX
}

func NewTaskStore(db DBTX) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(row scanner) (*model.Task, error) {
	var t model.Task
	var assigneeID, duration, routineID sql.NullInt64

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Type, &t.Points, &t.Status,
		&t.CreatorID, &assigneeID, &duration, &routineID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.AssigneeID = int64Ptr(assigneeID)
	t.DurationMinutes = intPtr(duration)
	t.RoutineID = int64Ptr(routineID)
	return &t, nil
}

const taskCols = `t.id, t.title, t.description, t.type, t.points, t.status,
	t.creator_id, t.assignee_id, t.duration_minutes, t.routine_id,
	t.created_at, t.updated_at`

// NewTask is the insert shape for a task row.
type NewTask struct {
	Title           string
	Description     string
	Type            model.TaskType
	Points          int
	Status          model.TaskStatus
	CreatorID       int64
	AssigneeID      *int64
	DurationMinutes *int
	RoutineID       *int64
}

func (s *TaskStore) Create(ctx context.Context, nt NewTask) (*model.Task, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (title, description, type, points, status, creator_id, assignee_id, duration_minutes, routine_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nt.Title, nt.Description, nt.Type, nt.Points, nt.Status, nt.CreatorID,
		nullInt64(nt.AssigneeID), nullInt(nt.DurationMinutes), nullInt64(nt.RoutineID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks t WHERE t.id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// TaskFilter narrows List. Zero values mean "any".
type TaskFilter struct {
	Status   model.TaskStatus
	FamilyID *int64
	MemberID *int64
}

// List returns tasks newest first. FamilyID matches on the creator's family;
// MemberID matches tasks the member created or is assigned to.
func (s *TaskStore) List(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks t JOIN members c ON c.id = t.creator_id WHERE 1 = 1`
	var args []any
	if f.Status != "" {
		query += ` AND t.status = ?`
		args = append(args, f.Status)
	}
	if f.FamilyID != nil {
		query += ` AND c.family_id = ?`
		args = append(args, *f.FamilyID)
	}
	if f.MemberID != nil {
		query += ` AND (t.creator_id = ? OR t.assignee_id = ?)`
		args = append(args, *f.MemberID, *f.MemberID)
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ListByRoutineSince returns the routine's tasks created at or after since,
// newest first.
func (s *TaskStore) ListByRoutineSince(ctx context.Context, routineID int64, since time.Time) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks t WHERE t.routine_id = ? AND t.created_at >= ? ORDER BY t.created_at DESC, t.id DESC`,
		routineID, sqlTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by routine: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// TransitionStatus moves a task from one status to another only if it is
// still in from. It reports whether the row changed.
func (s *TaskStore) TransitionStatus(ctx context.Context, id int64, from, to model.TaskStatus) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ? WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition task status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// --- Approval methods ---

// AddApproval records a vote if the member has not voted on the task yet.
// It reports whether a new row was written.
func (s *TaskStore) AddApproval(ctx context.Context, taskID, memberID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO task_approvals (task_id, member_id) VALUES (?, ?) ON CONFLICT (task_id, member_id) DO NOTHING`,
		taskID, memberID,
	)
	if err != nil {
		return false, fmt.Errorf("insert approval: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *TaskStore) CountApprovals(ctx context.Context, taskID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_approvals WHERE task_id = ?`, taskID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count approvals: %w", err)
	}
	return n, nil
}

func (s *TaskStore) ListApprovals(ctx context.Context, taskID int64) ([]model.TaskApproval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.task_id, a.member_id, m.name, a.created_at
		FROM task_approvals a JOIN members m ON m.id = a.member_id
		WHERE a.task_id = ? ORDER BY a.created_at ASC, a.member_id ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []model.TaskApproval
	for rows.Next() {
		var a model.TaskApproval
		if err := rows.Scan(&a.TaskID, &a.MemberID, &a.MemberName, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}
