package model

import "time"

// Task status values.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
)

// Validation status values. A task that never required a photo keeps the
// empty string.
const (
	ValidationNone     = ""
	ValidationPending  = "pending"
	ValidationApproved = "approved"
	ValidationRejected = "rejected"
)

type Task struct {
	ID               int64      `json:"id"`
	HouseholdID      int64      `json:"household_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	AssignedTo       *int64     `json:"assigned_to"`
	Points           int        `json:"points"`
	DueAt            *time.Time `json:"due_at"`
	RequiresPhoto    bool       `json:"requires_photo"`
	Status           string     `json:"status"`
	CompletedAt      *time.Time `json:"completed_at"`
	CompletedBy      *int64     `json:"completed_by"`
	PhotoURL         *string    `json:"photo_url"`
	ValidationStatus string     `json:"validation_status"`
	RejectionReason  *string    `json:"rejection_reason"`
	ReviewedBy       *int64     `json:"reviewed_by"`
	ReviewedAt       *time.Time `json:"reviewed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AwaitingReview reports whether the task has a photo submission waiting on
// a parent verdict.
func (t Task) AwaitingReview() bool {
	return t.Status == TaskStatusCompleted && t.ValidationStatus == ValidationPending
}

// Overdue reports whether the task is past due and not completed as of now.
func (t Task) Overdue(now time.Time) bool {
	return t.Status == TaskStatusPending && t.DueAt != nil && t.DueAt.Before(now)
}
