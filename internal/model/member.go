package model

import "time"

type Role string

const (
	RoleParent Role = "PARENT"
	RoleChild  Role = "CHILD"
)

func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

type Member struct {
	ID        int64     `json:"id"`
	FamilyID  *int64    `json:"family_id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	HasPIN    bool      `json:"has_pin"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerAudit compares a member's stored balance against the sum of their
// transaction log.
type LedgerAudit struct {
	MemberID       int64  `json:"member_id"`
	MemberName     string `json:"member_name"`
	Balance        int    `json:"balance"`
	TransactionSum int    `json:"transaction_sum"`
	Consistent     bool   `json:"consistent"`
}
