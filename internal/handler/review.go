package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/model"
	"github.com/mpaulsen/farthing/internal/push"
	"github.com/mpaulsen/farthing/internal/review"
	"github.com/mpaulsen/farthing/internal/store"
	"github.com/mpaulsen/farthing/internal/websocket"
)

// ReviewHandler drives the swipe-to-decide queue. Each reviewer gets their
// own queue instance, created when they load the queue and replaced on the
// next load.
type ReviewHandler struct {
	taskStore   *store.TaskStore
	memberStore *store.FamilyMemberStore
	hub         *websocket.Hub
	notifier    *push.Notifier
	logger      *slog.Logger

	mu     sync.Mutex
	queues map[int64]*review.Queue
}

func NewReviewHandler(
	ts *store.TaskStore,
	ms *store.FamilyMemberStore,
	hub *websocket.Hub,
	notifier *push.Notifier,
	logger *slog.Logger,
) *ReviewHandler {
	return &ReviewHandler{
		taskStore:   ts,
		memberStore: ms,
		hub:         hub,
		notifier:    notifier,
		logger:      logger,
		queues:      make(map[int64]*review.Queue),
	}
}

type queueResponse struct {
	Items []review.Item `json:"items"`
	Index int           `json:"index"`
	State review.State  `json:"state"`
	Done  bool          `json:"done"`
}

// Queue loads the reviewer's pending submissions, oldest first, and starts
// a fresh decision cycle.
func (h *ReviewHandler) Queue(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	tasks, err := h.taskStore.ListPendingReview(ac.HouseholdID)
	if err != nil {
		h.logger.Error("list pending review", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load review queue"})
		return
	}

	names := make(map[int64]string)
	if members, err := h.memberStore.List(ac.HouseholdID); err == nil {
		for _, m := range members {
			names[m.ID] = m.Name
		}
	}

	items := make([]review.Item, 0, len(tasks))
	for _, t := range tasks {
		item := review.Item{
			TaskID:      t.ID,
			Title:       t.Title,
			Points:      t.Points,
			SubmittedAt: t.CompletedAt,
		}
		if t.PhotoURL != nil {
			item.PhotoURL = *t.PhotoURL
		}
		if t.CompletedBy != nil {
			item.AssigneeName = names[*t.CompletedBy]
		} else if t.AssignedTo != nil {
			item.AssigneeName = names[*t.AssignedTo]
		}
		items = append(items, item)
	}

	q := review.NewQueue(items, h.taskStore, ac.UserID)

	h.mu.Lock()
	h.queues[ac.UserID] = q
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, queueResponse{Items: items, Index: 0, State: q.State(), Done: q.Done()})
}

func (h *ReviewHandler) queueFor(w http.ResponseWriter, r *http.Request) (*review.Queue, bool) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return nil, false
	}

	h.mu.Lock()
	q := h.queues[ac.UserID]
	h.mu.Unlock()

	if q == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "load the review queue first"})
		return nil, false
	}
	return q, true
}

func (h *ReviewHandler) finishVerdict(w http.ResponseWriter, q *review.Queue, task *model.Task, err error) {
	switch {
	case err == nil:
	case errors.Is(err, review.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a decision is already in flight"})
		return
	case errors.Is(err, review.ErrDone):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "review queue is exhausted"})
		return
	case errors.Is(err, store.ErrEmptyReason):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a rejection reason is required"})
		return
	case errors.Is(err, store.ErrAlreadyDecided):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task already has a verdict"})
		return
	case errors.Is(err, store.ErrPhotoRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task has no photo to approve"})
		return
	default:
		h.logger.Error("record verdict", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record verdict"})
		return
	}

	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(task.HouseholdID, websocket.NewMessage("task", "reviewed", task.ID, map[string]any{
			"validation_status": task.ValidationStatus,
		}))
	}
	if h.notifier != nil {
		h.notifier.VerdictRecorded(task)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"task":  task,
		"index": q.Index(),
		"state": q.State(),
		"done":  q.Done(),
	})
}

// Approve records an approval for the current queue item.
func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request) {
	q, ok := h.queueFor(w, r)
	if !ok {
		return
	}

	task, err := q.Approve(time.Now())
	h.finishVerdict(w, q, task, err)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject records a rejection for the current queue item. The reason is
// mandatory and an empty one leaves the queue on the same item.
func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request) {
	q, ok := h.queueFor(w, r)
	if !ok {
		return
	}

	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	task, err := q.Reject(req.Reason, time.Now())
	h.finishVerdict(w, q, task, err)
}
