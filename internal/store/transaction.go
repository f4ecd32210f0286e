package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/beanjar/internal/model"
)

type TransactionStore struct {
	db DBTX
}

func NewTransactionStore(db DBTX) *TransactionStore {
	return &TransactionStore{db: db}
}

const transactionCols = `t.id, t.amount, t.reason, t.member_id, m.name, t.created_at`

// Append writes one ledger row. It must run in the same transaction as the
// balance change it records.
func (s *TransactionStore) Append(ctx context.Context, memberID int64, amount int, reason string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (amount, reason, member_id) VALUES (?, ?, ?)`,
		amount, reason, memberID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// ListByMember returns the member's history, newest first.
func (s *TransactionStore) ListByMember(ctx context.Context, memberID int64) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionCols+` FROM transactions t JOIN members m ON m.id = t.member_id
		WHERE t.member_id = ? ORDER BY t.created_at DESC, t.id DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.Amount, &t.Reason, &t.MemberID, &t.MemberName, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (s *TransactionStore) SumByMember(ctx context.Context, memberID int64) (int, error) {
	var sum int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE member_id = ?`,
		memberID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}
