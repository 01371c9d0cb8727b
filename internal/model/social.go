package model

import "time"

// Reaction content types.
const (
	ContentTask    = "task"
	ContentComment = "comment"
	ContentMessage = "message"
)

type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Reaction is one member's reaction to a piece of content. A member has at
// most one reaction per content item; choosing a new kind overwrites it.
type Reaction struct {
	ID          int64     `json:"id"`
	ContentType string    `json:"content_type"`
	ContentID   int64     `json:"content_id"`
	MemberID    int64     `json:"member_id"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ChatMessage struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	AuthorID    int64     `json:"author_id"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}
