package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/beanjar/internal/model"
)

type MemberStore struct {
	db DBTX
}

func NewMemberStore(db DBTX) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, family_id, name, role, pin IS NOT NULL, points, created_at, updated_at`

func scanMember(row scanner) (*model.Member, error) {
	var m model.Member
	var familyID sql.NullInt64
	err := row.Scan(&m.ID, &familyID, &m.Name, &m.Role, &m.HasPIN, &m.Points, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.FamilyID = int64Ptr(familyID)
	return &m, nil
}

func (s *MemberStore) Create(ctx context.Context, familyID *int64, name string, role model.Role, pinHash string) (*model.Member, error) {
	var pin sql.NullString
	if pinHash != "" {
		pin = sql.NullString{String: pinHash, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO members (family_id, name, role, pin) VALUES (?, ?, ?, ?)",
		nullInt64(familyID), name, role, pin,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// List returns members in registration order. A nil familyID lists everyone.
func (s *MemberStore) List(ctx context.Context, familyID *int64) ([]model.Member, error) {
	if familyID == nil {
		return s.list(ctx, "")
	}
	return s.list(ctx, " WHERE family_id = ?", *familyID)
}

// ListInFamily returns the members sharing familyID. Unlike List, a nil
// familyID means the implicit family of legacy members, as in CountInFamily.
func (s *MemberStore) ListInFamily(ctx context.Context, familyID *int64) ([]model.Member, error) {
	if familyID == nil {
		return s.list(ctx, " WHERE family_id IS NULL")
	}
	return s.list(ctx, " WHERE family_id = ?", *familyID)
}

func (s *MemberStore) list(ctx context.Context, where string, args ...any) ([]model.Member, error) {
	query := "SELECT " + memberCols + " FROM members" + where + " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+memberCols+" FROM members WHERE id = ?", id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) Update(ctx context.Context, id int64, name string, role model.Role) (*model.Member, error) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE members SET name = ?, role = ? WHERE id = ?",
		name, role, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes the member; tasks, routines, approvals and transactions
// go with it through ON DELETE CASCADE.
func (s *MemberStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

func (s *MemberStore) SetPIN(ctx context.Context, id int64, hashedPIN string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE members SET pin = ? WHERE id = ?", hashedPIN, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *MemberStore) GetPINHash(ctx context.Context, id int64) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT pin FROM members WHERE id = ?", id).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("member not found")
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	if !pin.Valid {
		return "", nil
	}
	return pin.String, nil
}

// CountInFamily counts the members sharing familyID. Members registered
// before families existed (nil familyID) form one implicit family.
func (s *MemberStore) CountInFamily(ctx context.Context, familyID *int64) (int, error) {
	var count int
	var err error
	if familyID == nil {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM members WHERE family_id IS NULL").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM members WHERE family_id = ?", *familyID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count family members: %w", err)
	}
	return count, nil
}

// AddPoints applies delta to the member's balance unconditionally.
// Negative balances are allowed.
func (s *MemberStore) AddPoints(ctx context.Context, id int64, delta int) error {
	result, err := s.db.ExecContext(ctx, "UPDATE members SET points = points + ? WHERE id = ?", delta, id)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("add points: member %d not found", id)
	}
	return nil
}

// DebitIfCovered subtracts amount only when the current balance covers it.
// It reports false, without writing, when the balance is short.
func (s *MemberStore) DebitIfCovered(ctx context.Context, id int64, amount int) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE members SET points = points - ? WHERE id = ? AND points >= ?",
		amount, id, amount,
	)
	if err != nil {
		return false, fmt.Errorf("debit points: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

const auditQuery = `SELECT m.id, m.name, m.points,
	COALESCE((SELECT SUM(t.amount) FROM transactions t WHERE t.member_id = m.id), 0)
	FROM members m`

func scanAudit(row scanner) (*model.LedgerAudit, error) {
	var a model.LedgerAudit
	if err := row.Scan(&a.MemberID, &a.MemberName, &a.Balance, &a.TransactionSum); err != nil {
		return nil, err
	}
	a.Consistent = a.Balance == a.TransactionSum
	return &a, nil
}

// Audit compares one member's balance against their transaction log.
func (s *MemberStore) Audit(ctx context.Context, id int64) (*model.LedgerAudit, error) {
	row := s.db.QueryRowContext(ctx, auditQuery+" WHERE m.id = ?", id)
	a, err := scanAudit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit member: %w", err)
	}
	return a, nil
}

// AuditAll returns the audit line for every member.
func (s *MemberStore) AuditAll(ctx context.Context) ([]model.LedgerAudit, error) {
	rows, err := s.db.QueryContext(ctx, auditQuery+" ORDER BY m.id")
	if err != nil {
		return nil, fmt.Errorf("audit members: %w", err)
	}
	defer rows.Close()

	var audits []model.LedgerAudit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		audits = append(audits, *a)
	}
	return audits, rows.Err()
}
