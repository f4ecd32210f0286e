package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/beanjar/internal/model"
)

type RoutineStore struct {
	db DBTX
}

func NewRoutineStore(db DBTX) *RoutineStore {
	return &RoutineStore{db: db}
}

func scanRoutine(row scanner) (*model.Routine, error) {
	var r model.Routine
	var duration sql.NullInt64
	var active int

	err := row.Scan(
		&r.ID, &r.Title, &r.Type, &r.Points, &r.TimeOfDay, &r.DaysOfWeek,
		&duration, &r.CreatorID, &r.AssigneeID, &active, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.DurationMinutes = intPtr(duration)
	r.IsActive = active != 0
	return &r, nil
}

const routineCols = `id, title, type, points, time_of_day, days_of_week, duration_minutes, creator_id, assignee_id, is_active, created_at, updated_at`

// RoutineFields is the writable part of a routine.
type RoutineFields struct {
	Title           string
	Type            model.TaskType
	Points          int
	TimeOfDay       string
	DaysOfWeek      string
	DurationMinutes *int
	AssigneeID      int64
}

func (s *RoutineStore) Create(ctx context.Context, creatorID int64, f RoutineFields) (*model.Routine, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO routines (title, type, points, time_of_day, days_of_week, duration_minutes, creator_id, assignee_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Title, f.Type, f.Points, f.TimeOfDay, f.DaysOfWeek, nullInt(f.DurationMinutes), creatorID, f.AssigneeID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert routine: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RoutineStore) GetByID(ctx context.Context, id int64) (*model.Routine, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+routineCols+` FROM routines WHERE id = ?`, id)
	r, err := scanRoutine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get routine: %w", err)
	}
	return r, nil
}

// ListActive returns active routines, newest first. A nil assigneeID lists
// every member's routines.
func (s *RoutineStore) ListActive(ctx context.Context, assigneeID *int64) ([]model.Routine, error) {
	query := `SELECT ` + routineCols + ` FROM routines WHERE is_active = 1`
	var args []any
	if assigneeID != nil {
		query += ` AND assignee_id = ?`
		args = append(args, *assigneeID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	defer rows.Close()

	var routines []model.Routine
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan routine: %w", err)
		}
		routines = append(routines, *r)
	}
	return routines, rows.Err()
}

func (s *RoutineStore) Update(ctx context.Context, id int64, f RoutineFields) (*model.Routine, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE routines SET title = ?, type = ?, points = ?, time_of_day = ?, days_of_week = ?, duration_minutes = ?, assignee_id = ?
		WHERE id = ?`,
		f.Title, f.Type, f.Points, f.TimeOfDay, f.DaysOfWeek, nullInt(f.DurationMinutes), f.AssigneeID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update routine: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Deactivate soft-deletes a routine. Tasks it produced are kept.
func (s *RoutineStore) Deactivate(ctx context.Context, id int64) (*model.Routine, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE routines SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("deactivate routine: %w", err)
	}
	return s.GetByID(ctx, id)
}
