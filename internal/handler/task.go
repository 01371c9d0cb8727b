package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mpaulsen/farthing/internal/analysis"
	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/model"
	"github.com/mpaulsen/farthing/internal/photo"
	"github.com/mpaulsen/farthing/internal/push"
	"github.com/mpaulsen/farthing/internal/store"
	"github.com/mpaulsen/farthing/internal/verify"
	"github.com/mpaulsen/farthing/internal/websocket"
)

type TaskHandler struct {
	taskStore     *store.TaskStore
	memberStore   *store.FamilyMemberStore
	settingsStore *store.SettingsStore
	photos        *photo.Store
	hub           *websocket.Hub
	notifier      *push.Notifier
	logger        *slog.Logger
}

func NewTaskHandler(
	ts *store.TaskStore,
	ms *store.FamilyMemberStore,
	ss *store.SettingsStore,
	photos *photo.Store,
	hub *websocket.Hub,
	notifier *push.Notifier,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		taskStore:     ts,
		memberStore:   ms,
		settingsStore: ss,
		photos:        photos,
		hub:           hub,
		notifier:      notifier,
		logger:        logger,
	}
}

func (h *TaskHandler) broadcast(householdID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(householdID, msg)
	}
}

// getOwned loads a task and checks it belongs to the caller's household.
func (h *TaskHandler) getOwned(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil, false
	}

	task, err := h.taskStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get task"})
		return nil, false
	}
	if task == nil || task.HouseholdID != auth.HouseholdID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return nil, false
	}
	return task, true
}

type taskRequest struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	AssignedTo    *int64     `json:"assigned_to"`
	Points        int        `json:"points"`
	DueAt         *time.Time `json:"due_at"`
	RequiresPhoto bool       `json:"requires_photo"`
}

func (h *TaskHandler) validateAssignee(w http.ResponseWriter, householdID int64, memberID *int64) bool {
	if memberID == nil {
		return true
	}
	member, err := h.memberStore.GetByID(*memberID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check family member"})
		return false
	}
	if member == nil || member.HouseholdID != householdID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "family member not found"})
		return false
	}
	return true
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.Points < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "points must not be negative"})
		return
	}

	householdID := auth.HouseholdID(r.Context())
	if !h.validateAssignee(w, householdID, req.AssignedTo) {
		return
	}

	task, err := h.taskStore.Create(householdID, req.Title, req.Description, req.AssignedTo, req.Points, req.DueAt, req.RequiresPhoto)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create task"})
		return
	}

	h.broadcast(householdID, websocket.NewMessage("task", "created", task.ID, nil))

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	var tasks []model.Task
	var err error
	if memberParam := r.URL.Query().Get("assigned_to"); memberParam != "" {
		var memberID int64
		memberID, err = parsePositiveInt(memberParam)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid assigned_to"})
			return
		}
		if !h.validateAssignee(w, householdID, &memberID) {
			return
		}
		tasks, err = h.taskStore.ListByAssignee(memberID)
	} else {
		tasks, err = h.taskStore.List(householdID)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.getOwned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.getOwned(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if !h.validateAssignee(w, existing.HouseholdID, req.AssignedTo) {
		return
	}

	task, err := h.taskStore.Update(existing.ID, req.Title, req.Description, req.AssignedTo, req.Points, req.DueAt, req.RequiresPhoto)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update task"})
		return
	}

	h.broadcast(existing.HouseholdID, websocket.NewMessage("task", "updated", task.ID, nil))

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task, ok := h.getOwned(w, r)
	if !ok {
		return
	}

	if err := h.taskStore.Delete(task.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete task"})
		return
	}

	// Best-effort cleanup of the stored photo.
	if h.photos != nil && task.PhotoURL != nil {
		if key := h.photos.KeyFromURL(*task.PhotoURL); key != "" {
			if err := h.photos.Delete(r.Context(), key); err != nil && !errors.Is(err, photo.ErrNotConfigured) {
				h.logger.Warn("delete task photo", "task_id", task.ID, "error", err)
			}
		}
	}

	h.broadcast(task.HouseholdID, websocket.NewMessage("task", "deleted", task.ID, nil))

	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	MemberID *int64 `json:"member_id"`
	PhotoURL string `json:"photo_url"`
	Force    bool   `json:"force"`
}

type submitResponse struct {
	Task    *model.Task     `json:"task,omitempty"`
	Outcome *verify.Outcome `json:"outcome,omitempty"`
}

// Submit records a completion. Photo tasks run through the verification
// pipeline first: an accepted or escalated photo lands in the parent review
// queue, a retake verdict bounces back to the submitter without completing
// the task. Force skips analysis so a photo can be submitted unanalyzed
// after repeated analysis failures.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	task, ok := h.getOwned(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.PhotoURL = strings.TrimSpace(req.PhotoURL)
	if task.RequiresPhoto && req.PhotoURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "this task requires a photo"})
		return
	}
	if !h.validateAssignee(w, task.HouseholdID, req.MemberID) {
		return
	}
	if task.Status == model.TaskStatusCompleted && task.ValidationStatus != model.ValidationRejected {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task is already completed"})
		return
	}

	var outcome *verify.Outcome
	if task.RequiresPhoto {
		var err error
		outcome, err = h.runVerification(r.Context(), task, req.PhotoURL, req.Force)
		if err != nil {
			h.logger.Error("photo verification", "task_id", task.ID, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":     "photo analysis failed",
				"retryable": true,
			})
			return
		}
		if outcome.Decision == verify.DecisionRetake && !req.Force {
			writeJSON(w, http.StatusUnprocessableEntity, submitResponse{Outcome: outcome})
			return
		}
	}

	updated, err := h.taskStore.SubmitCompletion(task.ID, req.MemberID, req.PhotoURL, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrPhotoRequired) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "this task requires a photo"})
			return
		}
		h.logger.Error("submit completion", "task_id", task.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to submit completion"})
		return
	}

	h.broadcast(task.HouseholdID, websocket.NewMessage("task", "submitted", task.ID, nil))

	if updated.AwaitingReview() && h.notifier != nil {
		memberName := "Someone"
		if req.MemberID != nil {
			if member, err := h.memberStore.GetByID(*req.MemberID); err == nil && member != nil {
				memberName = member.Name
			}
		}
		h.notifier.SubmissionReceived(updated, memberName)
	}

	writeJSON(w, http.StatusOK, submitResponse{Task: updated, Outcome: outcome})
}

// runVerification builds the household's verification policy and runs the
// photo through it. Analysis is skipped when validation is off, the
// analysis endpoint is unset, or the submitter forced an unanalyzed submit.
func (h *TaskHandler) runVerification(ctx context.Context, task *model.Task, photoURL string, force bool) (*verify.Outcome, error) {
	vs, err := h.settingsStore.GetVerification(task.HouseholdID)
	if err != nil {
		return nil, err
	}

	client := analysis.NewClient(analysis.Config{
		Endpoint: vs.AnalysisEndpoint,
		APIKey:   vs.AnalysisAPIKey,
	})

	policy := verify.Policy{
		RequireValidation: vs.RequireValidation && client.Configured() && !force,
		Threshold:         vs.Threshold,
		Retry:             verify.RetryPolicy{MaxAttempts: vs.RetryAttempts},
	}

	orch := verify.NewOrchestrator(client, h.logger)
	return orch.Process(ctx, photoURL, task.Title, policy)
}
