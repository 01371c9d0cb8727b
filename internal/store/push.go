package store

import (
	"database/sql"
	"fmt"

	"github.com/mpaulsen/farthing/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

func scanPushSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var s model.PushSubscription
	err := scanner.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.DeviceName, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const pushSubscriptionCols = `id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at`

// Subscribe registers a device endpoint, replacing any existing row for the
// same endpoint.
func (s *PushStore) Subscribe(userID int64, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, device_name) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (endpoint) DO UPDATE SET user_id = excluded.user_id, p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key, device_name = excluded.device_name`,
		userID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert push subscription: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+pushSubscriptionCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return scanPushSubscription(row)
}

func (s *PushStore) ListByUser(userID int64) ([]model.PushSubscription, error) {
	return s.querySubscriptions(
		`SELECT `+pushSubscriptionCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at ASC`,
		userID,
	)
}

// ListForHousehold returns subscriptions for all users belonging to the
// household.
func (s *PushStore) ListForHousehold(householdID int64) ([]model.PushSubscription, error) {
	return s.querySubscriptions(
		`SELECT ps.id, ps.user_id, ps.endpoint, ps.p256dh_key, ps.auth_key, ps.device_name, ps.created_at
		 FROM push_subscriptions ps
		 JOIN household_members hm ON hm.user_id = ps.user_id
		 WHERE hm.household_id = ?`,
		householdID,
	)
}

// ListHouseholdIDs returns the distinct households that have at least one
// subscribed device.
func (s *PushStore) ListHouseholdIDs() ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT hm.household_id
		 FROM push_subscriptions ps
		 JOIN household_members hm ON hm.user_id = ps.user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list push household ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan household id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PushStore) querySubscriptions(query string, args ...any) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanPushSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

// --- Preference methods ---

func (s *PushStore) GetPreferences(userID int64) (*model.PushPreferences, error) {
	var p model.PushPreferences
	var review, overdue int
	err := s.db.QueryRow(
		`SELECT user_id, review_reminders, overdue_summaries, reminder_hour, updated_at FROM push_preferences WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &review, &overdue, &p.ReminderHour, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		// Defaults for users who never touched preferences.
		return &model.PushPreferences{UserID: userID, ReviewReminders: true, OverdueSummaries: true, ReminderHour: 17}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push preferences: %w", err)
	}
	p.ReviewReminders = review != 0
	p.OverdueSummaries = overdue != 0
	return &p, nil
}

func (s *PushStore) SetPreferences(userID int64, reviewReminders, overdueSummaries bool, reminderHour int) error {
	var review, overdue int
	if reviewReminders {
		review = 1
	}
	if overdueSummaries {
		overdue = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO push_preferences (user_id, review_reminders, overdue_summaries, reminder_hour) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET review_reminders = excluded.review_reminders, overdue_summaries = excluded.overdue_summaries, reminder_hour = excluded.reminder_hour, updated_at = CURRENT_TIMESTAMP`,
		userID, review, overdue, reminderHour,
	)
	if err != nil {
		return fmt.Errorf("set push preferences: %w", err)
	}
	return nil
}
