package model

import "time"

type Family struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Motto       string    `json:"motto"`
	Location    string    `json:"location"`
	MemberCount int       `json:"member_count"`
	Members     []Member  `json:"members,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
