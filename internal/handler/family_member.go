package handler

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/model"
	"github.com/mpaulsen/farthing/internal/store"
	"github.com/mpaulsen/farthing/internal/websocket"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type FamilyMemberHandler struct {
	store  *store.FamilyMemberStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewFamilyMemberHandler(s *store.FamilyMemberStore, hub *websocket.Hub, logger *slog.Logger) *FamilyMemberHandler {
	return &FamilyMemberHandler{store: s, hub: hub, logger: logger}
}

func (h *FamilyMemberHandler) broadcast(householdID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(householdID, msg)
	}
}

// getOwned loads a member and checks household ownership.
func (h *FamilyMemberHandler) getOwned(w http.ResponseWriter, r *http.Request) (*model.FamilyMember, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil, false
	}

	member, err := h.store.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get family member"})
		return nil, false
	}
	if member == nil || member.HouseholdID != auth.HouseholdID(r.Context()) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "family member not found"})
		return nil, false
	}
	return member, true
}

type memberRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	AvatarEmoji string `json:"avatar_emoji"`
	Role        string `json:"role"`
}

func (req *memberRequest) normalize() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.Color == "" {
		req.Color = "#3B82F6"
	}
	if !hexColorRegexp.MatchString(req.Color) {
		return "invalid color format"
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = "😀"
	}
	if req.Role == "" {
		req.Role = model.RoleChild
	}
	if req.Role != model.RoleParent && req.Role != model.RoleChild {
		return "role must be parent or child"
	}
	return ""
}

func (h *FamilyMemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.normalize(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	householdID := auth.HouseholdID(r.Context())
	exists, err := h.store.NameExists(householdID, req.Name, 0)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a family member with that name already exists"})
		return
	}

	member, err := h.store.Create(householdID, req.Name, req.Color, req.AvatarEmoji, req.Role)
	if err != nil {
		h.logger.Error("create family member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create family member"})
		return
	}

	h.broadcast(householdID, websocket.NewMessage("member", "created", member.ID, nil))

	writeJSON(w, http.StatusCreated, member)
}

func (h *FamilyMemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.List(auth.HouseholdID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list family members"})
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *FamilyMemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.getOwned(w, r)
	if !ok {
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if msg := req.normalize(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	exists, err := h.store.NameExists(existing.HouseholdID, req.Name, existing.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a family member with that name already exists"})
		return
	}

	member, err := h.store.Update(existing.ID, req.Name, req.Color, req.AvatarEmoji, req.Role)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update family member"})
		return
	}

	h.broadcast(existing.HouseholdID, websocket.NewMessage("member", "updated", member.ID, nil))

	writeJSON(w, http.StatusOK, member)
}

func (h *FamilyMemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	member, ok := h.getOwned(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(member.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete family member"})
		return
	}

	h.broadcast(member.HouseholdID, websocket.NewMessage("member", "deleted", member.ID, nil))

	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *FamilyMemberHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ids are required"})
		return
	}

	householdID := auth.HouseholdID(r.Context())
	if err := h.store.UpdateSortOrder(householdID, req.IDs); err != nil {
		h.logger.Error("reorder members", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reorder family members"})
		return
	}

	h.broadcast(householdID, websocket.NewMessage("member", "reordered", 0, nil))

	w.WriteHeader(http.StatusNoContent)
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// SetPIN sets or clears a four-digit PIN on a member profile. An empty PIN
// clears it.
func (h *FamilyMemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	member, ok := h.getOwned(w, r)
	if !ok {
		return
	}

	var req pinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.PIN == "" {
		if err := h.store.ClearPIN(member.ID); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear PIN"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PIN must be exactly 4 digits"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to hash PIN"})
		return
	}
	if err := h.store.SetPINHash(member.ID, string(hash)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set PIN"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VerifyPIN checks a PIN attempt against the member's stored hash.
func (h *FamilyMemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	member, ok := h.getOwned(w, r)
	if !ok {
		return
	}

	var req pinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	hash, err := h.store.GetPINHash(member.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check PIN"})
		return
	}
	if hash == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
		return
	}

	valid := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)) == nil
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}
