package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mpaulsen/farthing/internal/accountability"
	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/store"
)

type DashboardHandler struct {
	taskStore   *store.TaskStore
	memberStore *store.FamilyMemberStore
	logger      *slog.Logger
}

func NewDashboardHandler(ts *store.TaskStore, ms *store.FamilyMemberStore, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{taskStore: ts, memberStore: ms, logger: logger}
}

// Family returns the household dashboard: per-child metrics plus family
// totals, recomputed from the full task list on every call.
func (h *DashboardHandler) Family(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	tasks, err := h.taskStore.List(householdID)
	if err != nil {
		h.logger.Error("dashboard tasks", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load dashboard"})
		return
	}
	members, err := h.memberStore.List(householdID)
	if err != nil {
		h.logger.Error("dashboard members", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load dashboard"})
		return
	}

	summary := accountability.SummarizeFamily(members, tasks, time.Now())
	if summary.Children == nil {
		summary.Children = []accountability.ChildSummary{}
	}
	writeJSON(w, http.StatusOK, summary)
}

// Member returns one family member's metrics.
func (h *DashboardHandler) Member(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	householdID := auth.HouseholdID(r.Context())
	member, err := h.memberStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get family member"})
		return
	}
	if member == nil || member.HouseholdID != householdID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "family member not found"})
		return
	}

	tasks, err := h.taskStore.List(householdID)
	if err != nil {
		h.logger.Error("dashboard tasks", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load dashboard"})
		return
	}

	writeJSON(w, http.StatusOK, accountability.Summarize(*member, tasks, time.Now()))
}
