package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/beanjar/internal/model"
)

type FamilyStore struct {
	db DBTX
}

func NewFamilyStore(db DBTX) *FamilyStore {
	return &FamilyStore{db: db}
}

func scanFamily(row scanner) (*model.Family, error) {
	var f model.Family
	err := row.Scan(&f.ID, &f.Name, &f.Motto, &f.Location, &f.MemberCount, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const familyCols = `f.id, f.name, f.motto, f.location,
	(SELECT COUNT(*) FROM members m WHERE m.family_id = f.id),
	f.created_at, f.updated_at`

func (s *FamilyStore) Create(ctx context.Context, name, motto, location string) (*model.Family, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO families (name, motto, location) VALUES (?, ?, ?)`,
		name, motto, location,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyStore) GetByID(ctx context.Context, id int64) (*model.Family, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families f WHERE f.id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) GetByName(ctx context.Context, name string) (*model.Family, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families f WHERE f.name = ? ORDER BY f.id LIMIT 1`, name)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family by name: %w", err)
	}
	return f, nil
}

// List returns all families, newest first, each with its member count.
func (s *FamilyStore) List(ctx context.Context) ([]model.Family, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+familyCols+` FROM families f ORDER BY f.created_at DESC, f.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	defer rows.Close()

	var families []model.Family
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		families = append(families, *f)
	}
	return families, rows.Err()
}

// FamilyPatch carries a partial update; nil fields are left unchanged.
type FamilyPatch struct {
	Name     *string
	Motto    *string
	Location *string
}

func (s *FamilyStore) Update(ctx context.Context, id int64, p FamilyPatch) (*model.Family, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE families SET
			name = COALESCE(?, name),
			motto = COALESCE(?, motto),
			location = COALESCE(?, location)
		WHERE id = ?`,
		p.Name, p.Motto, p.Location, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM families WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	return nil
}

// AdoptOrphans assigns every member without a family to familyID and returns
// how many rows moved.
func (s *FamilyStore) AdoptOrphans(ctx context.Context, familyID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE members SET family_id = ? WHERE family_id IS NULL`, familyID)
	if err != nil {
		return 0, fmt.Errorf("adopt orphan members: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
