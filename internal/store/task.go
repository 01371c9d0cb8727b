package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mpaulsen/farthing/internal/model"
)

var (
	// ErrPhotoRequired is returned when a task that requires photo proof is
	// submitted or approved without one.
	ErrPhotoRequired = errors.New("task requires a photo")

	// ErrEmptyReason is returned when a rejection carries no reason. No
	// database write happens in that case.
	ErrEmptyReason = errors.New("rejection reason is required")

	// ErrAlreadyDecided is returned when a verdict is recorded for a task
	// whose validation status is no longer pending.
	ErrAlreadyDecided = errors.New("task already has a verdict")
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var assignedTo, completedBy, reviewedBy sql.NullInt64
	var dueAt, completedAt, reviewedAt sql.NullTime
	var photoURL, rejectionReason sql.NullString
	var requiresPhoto int

	err := scanner.Scan(
		&t.ID, &t.HouseholdID, &t.Title, &t.Description, &assignedTo, &t.Points,
		&dueAt, &requiresPhoto, &t.Status, &completedAt, &completedBy,
		&photoURL, &t.ValidationStatus, &rejectionReason, &reviewedBy, &reviewedAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.RequiresPhoto = requiresPhoto != 0
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.Int64
	}
	if completedBy.Valid {
		t.CompletedBy = &completedBy.Int64
	}
	if reviewedBy.Valid {
		t.ReviewedBy = &reviewedBy.Int64
	}
	if dueAt.Valid {
		t.DueAt = &dueAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if reviewedAt.Valid {
		t.ReviewedAt = &reviewedAt.Time
	}
	if photoURL.Valid {
		t.PhotoURL = &photoURL.String
	}
	if rejectionReason.Valid {
		t.RejectionReason = &rejectionReason.String
	}
	return &t, nil
}

const taskCols = `id, household_id, title, description, assigned_to, points, due_at, requires_photo, status, completed_at, completed_by, photo_url, validation_status, rejection_reason, reviewed_by, reviewed_at, created_at, updated_at`

func (s *TaskStore) Create(householdID int64, title, description string, assignedTo *int64, points int, dueAt *time.Time, requiresPhoto bool) (*model.Task, error) {
	var aTo sql.NullInt64
	if assignedTo != nil {
		aTo = sql.NullInt64{Int64: *assignedTo, Valid: true}
	}
	var due sql.NullTime
	if dueAt != nil {
		due = sql.NullTime{Time: dueAt.UTC(), Valid: true}
	}
	var rp int
	if requiresPhoto {
		rp = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO tasks (household_id, title, description, assigned_to, points, due_at, requires_photo) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		householdID, title, description, aTo, points, due, rp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) List(householdID int64) ([]model.Task, error) {
	return s.queryTasks(
		`SELECT `+taskCols+` FROM tasks WHERE household_id = ? ORDER BY due_at IS NULL, due_at ASC, created_at ASC`,
		householdID,
	)
}

func (s *TaskStore) ListByAssignee(memberID int64) ([]model.Task, error) {
	return s.queryTasks(
		`SELECT `+taskCols+` FROM tasks WHERE assigned_to = ? ORDER BY due_at IS NULL, due_at ASC, created_at ASC`,
		memberID,
	)
}

// ListPendingReview returns completed photo tasks still waiting on a parent
// verdict, oldest submission first.
func (s *TaskStore) ListPendingReview(householdID int64) ([]model.Task, error) {
	return s.queryTasks(
		`SELECT `+taskCols+` FROM tasks WHERE household_id = ? AND status = 'completed' AND validation_status = 'pending' ORDER BY completed_at ASC`,
		householdID,
	)
}

func (s *TaskStore) queryTasks(query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) Update(id int64, title, description string, assignedTo *int64, points int, dueAt *time.Time, requiresPhoto bool) (*model.Task, error) {
	var aTo sql.NullInt64
	if assignedTo != nil {
		aTo = sql.NullInt64{Int64: *assignedTo, Valid: true}
	}
	var due sql.NullTime
	if dueAt != nil {
		due = sql.NullTime{Time: dueAt.UTC(), Valid: true}
	}
	var rp int
	if requiresPhoto {
		rp = 1
	}

	_, err := s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, assigned_to = ?, points = ?, due_at = ?, requires_photo = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, aTo, points, due, rp, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// SubmitCompletion marks a task completed by a family member. Tasks that
// require photo proof must carry a photo URL and enter the pending review
// state; everything else completes immediately.
func (s *TaskStore) SubmitCompletion(id int64, memberID *int64, photoURL string, at time.Time) (*model.Task, error) {
	t, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}

	if t.RequiresPhoto && photoURL == "" {
		return nil, ErrPhotoRequired
	}

	validation := model.ValidationNone
	if t.RequiresPhoto {
		validation = model.ValidationPending
	}

	var mID sql.NullInt64
	if memberID != nil {
		mID = sql.NullInt64{Int64: *memberID, Valid: true}
	}
	var photo sql.NullString
	if photoURL != "" {
		photo = sql.NullString{String: photoURL, Valid: true}
	}

	_, err = s.db.Exec(
		`UPDATE tasks SET status = 'completed', completed_at = ?, completed_by = ?, photo_url = COALESCE(?, photo_url), validation_status = ?, rejection_reason = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at.UTC(), mID, photo, validation, id,
	)
	if err != nil {
		return nil, fmt.Errorf("submit completion: %w", err)
	}
	return s.GetByID(id)
}

// Approve records a parent's approval verdict and awards the task's points
// to the completing member in the same transaction, so an approval can
// never exist without its point award.
func (s *TaskStore) Approve(id, reviewerID int64, at time.Time) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	if t.RequiresPhoto && t.PhotoURL == nil {
		return nil, ErrPhotoRequired
	}

	result, err := tx.Exec(
		`UPDATE tasks SET validation_status = 'approved', reviewed_by = ?, reviewed_at = ?, rejection_reason = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND validation_status = 'pending'`,
		reviewerID, at.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("approve task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrAlreadyDecided
	}

	recipient := t.CompletedBy
	if recipient == nil {
		recipient = t.AssignedTo
	}
	if t.Points > 0 && recipient != nil {
		_, err = tx.Exec(
			`INSERT INTO point_awards (household_id, task_id, member_id, points, reason, awarded_by) VALUES (?, ?, ?, ?, ?, ?)`,
			t.HouseholdID, t.ID, *recipient, t.Points, t.Title, reviewerID,
		)
		if err != nil {
			return nil, fmt.Errorf("award points: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// Reject records a parent's rejection verdict with a required reason and
// reopens the task for rework.
func (s *TaskStore) Reject(id, reviewerID int64, reason string, at time.Time) (*model.Task, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	result, err := s.db.Exec(
		`UPDATE tasks SET validation_status = 'rejected', rejection_reason = ?, reviewed_by = ?, reviewed_at = ?, status = 'pending', completed_at = NULL, completed_by = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND validation_status = 'pending'`,
		reason, reviewerID, at.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("reject task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		t, err := s.GetByID(id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, nil
		}
		return nil, ErrAlreadyDecided
	}
	return s.GetByID(id)
}
