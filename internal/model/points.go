package model

import "time"

type PointAward struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	TaskID      *int64    `json:"task_id"`
	MemberID    int64     `json:"member_id"`
	Points      int       `json:"points"`
	Reason      string    `json:"reason"`
	AwardedBy   *int64    `json:"awarded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type PointBalance struct {
	MemberID   int64  `json:"member_id"`
	MemberName string `json:"member_name"`
	Total      int    `json:"total"`
}
