package model

import "time"

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type PushPreferences struct {
	UserID           int64     `json:"user_id"`
	ReviewReminders  bool      `json:"review_reminders"`
	OverdueSummaries bool      `json:"overdue_summaries"`
	ReminderHour     int       `json:"reminder_hour"`
	UpdatedAt        time.Time `json:"updated_at"`
}
