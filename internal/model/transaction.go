package model

import "time"

type Transaction struct {
	ID         int64     `json:"id"`
	Amount     int       `json:"amount"`
	Reason     string    `json:"reason"`
	MemberID   int64     `json:"member_id"`
	MemberName string    `json:"member_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
