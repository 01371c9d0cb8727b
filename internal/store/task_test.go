package store

import (
	"errors"
	"testing"
	"time"

	"github.com/mpaulsen/farthing/internal/database"
	"github.com/mpaulsen/farthing/internal/model"
)

type taskTestEnv struct {
	tasks    *TaskStore
	points   *PointsStore
	childID  int64
	parentID int64
	userID   int64
	hhID     int64
}

func setupTaskTestDB(t *testing.T) *taskTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hh, err := NewHouseholdStore(db).Create("Testers")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	user, err := NewUserStore(db).Create("parent@example.com", "Pat", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	members := NewFamilyMemberStore(db)
	child, err := members.Create(hh.ID, "Ada", "#3B82F6", "🦊", model.RoleChild)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	parent, err := members.Create(hh.ID, "Pat", "#EF4444", "🦉", model.RoleParent)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}

	return &taskTestEnv{
		tasks:    NewTaskStore(db),
		points:   NewPointsStore(db),
		childID:  child.ID,
		parentID: parent.ID,
		userID:   user.ID,
		hhID:     hh.ID,
	}
}

func TestTaskCRUD(t *testing.T) {
	env := setupTaskTestDB(t)

	due := time.Now().Add(24 * time.Hour)
	task, err := env.tasks.Create(env.hhID, "Clean room", "All of it", &env.childID, 10, &due, true)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Title != "Clean room" {
		t.Errorf("title = %q, want %q", task.Title, "Clean room")
	}
	if !task.RequiresPhoto {
		t.Error("expected requires_photo")
	}
	if task.Status != model.TaskStatusPending {
		t.Errorf("status = %q, want pending", task.Status)
	}
	if task.ValidationStatus != model.ValidationNone {
		t.Errorf("validation_status = %q, want empty", task.ValidationStatus)
	}

	updated, err := env.tasks.Update(task.ID, "Clean bedroom", "", &env.childID, 15, nil, false)
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Title != "Clean bedroom" || updated.Points != 15 {
		t.Errorf("update didn't stick: %+v", updated)
	}
	if updated.DueAt != nil {
		t.Error("expected nil due_at after update")
	}

	if err := env.tasks.Delete(task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	got, err := env.tasks.GetByID(task.ID)
	if err != nil {
		t.Fatalf("get deleted task: %v", err)
	}
	if got != nil {
		t.Error("expected nil for deleted task")
	}
}

func TestSubmitCompletionRequiresPhoto(t *testing.T) {
	env := setupTaskTestDB(t)

	task, err := env.tasks.Create(env.hhID, "Feed the dog", "", &env.childID, 5, nil, true)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	_, err = env.tasks.SubmitCompletion(task.ID, &env.childID, "", time.Now())
	if !errors.Is(err, ErrPhotoRequired) {
		t.Fatalf("expected ErrPhotoRequired, got %v", err)
	}

	// The failed submission must not have touched the record.
	got, err := env.tasks.GetByID(task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != model.TaskStatusPending || got.CompletedAt != nil {
		t.Errorf("task mutated by failed submit: %+v", got)
	}

	submitted, err := env.tasks.SubmitCompletion(task.ID, &env.childID, "https://cdn.example.com/photos/1/1/a.jpg", time.Now())
	if err != nil {
		t.Fatalf("submit with photo: %v", err)
	}
	if submitted.Status != model.TaskStatusCompleted {
		t.Errorf("status = %q, want completed", submitted.Status)
	}
	if submitted.ValidationStatus != model.ValidationPending {
		t.Errorf("validation_status = %q, want pending", submitted.ValidationStatus)
	}
	if !submitted.AwaitingReview() {
		t.Error("expected task awaiting review")
	}
}

func TestSubmitCompletionWithoutPhotoRequirement(t *testing.T) {
	env := setupTaskTestDB(t)

	task, err := env.tasks.Create(env.hhID, "Make bed", "", &env.childID, 2, nil, false)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	submitted, err := env.tasks.SubmitCompletion(task.ID, &env.childID, "", time.Now())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Status != model.TaskStatusCompleted {
		t.Errorf("status = %q, want completed", submitted.Status)
	}
	if submitted.ValidationStatus != model.ValidationNone {
		t.Errorf("validation_status = %q, want empty (no review needed)", submitted.ValidationStatus)
	}
}

func TestApproveAwardsPointsTransactionally(t *testing.T) {
	env := setupTaskTestDB(t)

	task, err := env.tasks.Create(env.hhID, "Rake leaves", "", &env.childID, 20, nil, true)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.tasks.SubmitCompletion(task.ID, &env.childID, "https://cdn.example.com/p.jpg", time.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	approved, err := env.tasks.Approve(task.ID, env.userID, time.Now())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.ValidationStatus != model.ValidationApproved {
		t.Errorf("validation_status = %q, want approved", approved.ValidationStatus)
	}
	if approved.ReviewedBy == nil || *approved.ReviewedBy != env.userID {
		t.Errorf("reviewed_by = %v, want %d", approved.ReviewedBy, env.userID)
	}

	balance, err := env.points.Balance(env.childID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 20 {
		t.Errorf("balance = %d, want 20", balance)
	}

	awards, err := env.points.ListByTask(task.ID)
	if err != nil {
		t.Fatalf("list awards: %v", err)
	}
	if len(awards) != 1 {
		t.Fatalf("expected exactly one award, got %d", len(awards))
	}
	if awards[0].Reason != "Rake leaves" {
		t.Errorf("award reason = %q, want task title", awards[0].Reason)
	}
}

func TestApproveTwiceReturnsAlreadyDecided(t *testing.T) {
	env := setupTaskTestDB(t)

	task, _ := env.tasks.Create(env.hhID, "Sweep porch", "", &env.childID, 5, nil, true)
	if _, err := env.tasks.SubmitCompletion(task.ID, &env.childID, "https://cdn.example.com/p.jpg", time.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.tasks.Approve(task.ID, env.userID, time.Now()); err != nil {
		t.Fatalf("first approve: %v", err)
	}

	_, err := env.tasks.Approve(task.ID, env.userID, time.Now())
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}

	// Points must not be awarded twice.
	balance, _ := env.points.Balance(env.childID)
	if balance != 5 {
		t.Errorf("balance = %d, want 5", balance)
	}
}

func TestApproveWithoutPhotoFails(t *testing.T) {
	env := setupTaskTestDB(t)

	task, _ := env.tasks.Create(env.hhID, "Water plants", "", &env.childID, 5, nil, true)

	_, err := env.tasks.Approve(task.ID, env.userID, time.Now())
	if !errors.Is(err, ErrPhotoRequired) {
		t.Fatalf("expected ErrPhotoRequired, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	env := setupTaskTestDB(t)

	task, _ := env.tasks.Create(env.hhID, "Tidy desk", "", &env.childID, 5, nil, true)
	if _, err := env.tasks.SubmitCompletion(task.ID, &env.childID, "https://cdn.example.com/p.jpg", time.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := env.tasks.Reject(task.ID, env.userID, reason, time.Now())
		if !errors.Is(err, ErrEmptyReason) {
			t.Fatalf("reason %q: expected ErrEmptyReason, got %v", reason, err)
		}
	}

	// The task must still be awaiting review after the failed rejections.
	got, err := env.tasks.GetByID(task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.AwaitingReview() {
		t.Errorf("task no longer awaiting review after empty-reason reject: %+v", got)
	}
	if got.RejectionReason != nil {
		t.Errorf("rejection_reason = %v, want nil", *got.RejectionReason)
	}
}

func TestRejectReopensTask(t *testing.T) {
	env := setupTaskTestDB(t)

	task, _ := env.tasks.Create(env.hhID, "Mop floor", "", &env.childID, 5, nil, true)
	if _, err := env.tasks.SubmitCompletion(task.ID, &env.childID, "https://cdn.example.com/p.jpg", time.Now()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rejected, err := env.tasks.Reject(task.ID, env.userID, "  photo is too blurry  ", time.Now())
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.ValidationStatus != model.ValidationRejected {
		t.Errorf("validation_status = %q, want rejected", rejected.ValidationStatus)
	}
	if rejected.Status != model.TaskStatusPending {
		t.Errorf("status = %q, want pending (task reopened)", rejected.Status)
	}
	if rejected.CompletedAt != nil || rejected.CompletedBy != nil {
		t.Error("completion fields should be cleared on rejection")
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "photo is too blurry" {
		t.Errorf("rejection_reason = %v, want trimmed reason", rejected.RejectionReason)
	}

	// No points on rejection.
	balance, _ := env.points.Balance(env.childID)
	if balance != 0 {
		t.Errorf("balance = %d, want 0", balance)
	}

	// A second verdict on the same submission is refused.
	_, err = env.tasks.Reject(task.ID, env.userID, "still blurry", time.Now())
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
}

func TestListPendingReviewOrdersOldestFirst(t *testing.T) {
	env := setupTaskTestDB(t)

	base := time.Now().Add(-3 * time.Hour)
	var ids []int64
	for i := 0; i < 3; i++ {
		task, err := env.tasks.Create(env.hhID, "Task", "", &env.childID, 1, nil, true)
		if err != nil {
			t.Fatalf("create task: %v", err)
		}
		ids = append(ids, task.ID)
	}
	// Submit newest first so insertion order and submission order differ.
	for i := 2; i >= 0; i-- {
		at := base.Add(time.Duration(2-i) * time.Hour)
		if _, err := env.tasks.SubmitCompletion(ids[i], &env.childID, "https://cdn.example.com/p.jpg", at); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	pending, err := env.tasks.ListPendingReview(env.hhID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	want := []int64{ids[2], ids[1], ids[0]}
	for i, task := range pending {
		if task.ID != want[i] {
			t.Errorf("pending[%d].ID = %d, want %d", i, task.ID, want[i])
		}
	}
}
