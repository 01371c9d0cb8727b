package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/model"
	"github.com/mpaulsen/farthing/internal/store"
	"github.com/mpaulsen/farthing/internal/websocket"
)

type PointsHandler struct {
	pointsStore *store.PointsStore
	memberStore *store.FamilyMemberStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewPointsHandler(ps *store.PointsStore, ms *store.FamilyMemberStore, hub *websocket.Hub, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{pointsStore: ps, memberStore: ms, hub: hub, logger: logger}
}

type awardRequest struct {
	MemberID int64  `json:"member_id"`
	Points   int    `json:"points"`
	Reason   string `json:"reason"`
}

// Award records a manual point award, outside the approve-a-task flow.
func (h *PointsHandler) Award(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req awardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Reason = strings.TrimSpace(req.Reason)
	if req.Points == 0 || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "points and reason are required"})
		return
	}

	member, err := h.memberStore.GetByID(req.MemberID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check family member"})
		return
	}
	if member == nil || member.HouseholdID != ac.HouseholdID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "family member not found"})
		return
	}

	award, err := h.pointsStore.Award(ac.HouseholdID, nil, req.MemberID, req.Points, req.Reason, &ac.UserID)
	if err != nil {
		h.logger.Error("award points", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to award points"})
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(ac.HouseholdID, websocket.NewMessage("points", "awarded", award.ID, nil))
	}

	writeJSON(w, http.StatusCreated, award)
}

// History lists a member's point awards, newest first.
func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	member, err := h.memberStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get family member"})
		return
	}
	if member == nil || member.HouseholdID != auth.HouseholdID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "family member not found"})
		return
	}

	awards, err := h.pointsStore.ListByMember(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list point awards"})
		return
	}
	if awards == nil {
		awards = []model.PointAward{}
	}

	balance, err := h.pointsStore.Balance(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to compute balance"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"balance": balance,
		"awards":  awards,
	})
}

// Leaderboard returns the household's members ranked by total points.
func (h *PointsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	balances, err := h.pointsStore.Leaderboard(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("leaderboard", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load leaderboard"})
		return
	}
	if balances == nil {
		balances = []model.PointBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}
