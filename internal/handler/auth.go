package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/email"
	"github.com/mpaulsen/farthing/internal/middleware"
	"github.com/mpaulsen/farthing/internal/store"
)

const inviteTTL = 7 * 24 * time.Hour

type AuthHandler struct {
	userStore      *store.UserStore
	householdStore *store.HouseholdStore
	sessionStore   *store.SessionStore
	emailClient    *email.Client
	tokens         *auth.TokenManager
	logger         *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	hs *store.HouseholdStore,
	ss *store.SessionStore,
	ec *email.Client,
	tokens *auth.TokenManager,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:      us,
		householdStore: hs,
		sessionStore:   ss,
		emailClient:    ec,
		tokens:         tokens,
		logger:         logger,
	}
}

type sessionResponse struct {
	UserID      int64  `json:"user_id"`
	HouseholdID int64  `json:"household_id"`
	Role        string `json:"role"`
	Token       string `json:"token,omitempty"`
}

// startSession creates a session, sets the cookie, and issues a bearer token
// for mobile clients when a signing secret is configured.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, userID, householdID int64, role string) (*sessionResponse, bool) {
	sess, err := h.sessionStore.Create(userID, householdID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return nil, false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	resp := &sessionResponse{UserID: userID, HouseholdID: householdID, Role: role}
	if h.tokens.Configured() {
		token, err := h.tokens.Issue(userID, householdID)
		if err != nil {
			h.logger.Error("issue token", "error", err)
		} else {
			resp.Token = token
		}
	}
	return resp, true
}

type registerRequest struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Password      string `json:"password"`
	HouseholdName string `json:"household_name"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.HouseholdName = strings.TrimSpace(req.HouseholdName)

	if req.Email == "" || req.HouseholdName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and household name are required"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	existing, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "an account with that email already exists"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	user, err := h.userStore.Create(req.Email, req.Name, string(hash))
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	household, err := h.householdStore.Create(req.HouseholdName)
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if _, err := h.householdStore.AddMember(household.ID, user.ID, auth.RoleOwner); err != nil {
		h.logger.Error("add member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if h.emailClient.Configured() {
		if err := h.emailClient.SendWelcome(req.Email, req.Name); err != nil {
			h.logger.Warn("send welcome email", "error", err)
		}
	}

	resp, ok := h.startSession(w, r, user.ID, household.ID, auth.RoleOwner)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}

	hash, err := h.userStore.GetPasswordHash(user.ID)
	if err != nil {
		h.logger.Error("login hash", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}

	households, err := h.householdStore.ListByUser(user.ID)
	if err != nil || len(households) == 0 {
		h.logger.Error("login households", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no household found for account"})
		return
	}

	member, err := h.householdStore.GetMember(households[0].ID, user.ID)
	if err != nil || member == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	resp, ok := h.startSession(w, r, user.ID, households[0].ID, member.Role)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName()); err == nil && cookie.Value != "" {
		if sess, err := h.sessionStore.GetByToken(cookie.Value); err == nil && sess != nil {
			h.sessionStore.Delete(sess.ID)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	household, err := h.householdStore.GetByID(ac.HouseholdID)
	if err != nil || household == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":      user,
		"household": household,
		"role":      ac.Role,
	})
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	user, err := h.userStore.UpdateName(ac.UserID, req.Name)
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteAccount removes the caller's account and all of their sessions.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if err := h.sessionStore.DeleteByUserID(ac.UserID); err != nil {
		h.logger.Error("delete account sessions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if err := h.userStore.Delete(ac.UserID); err != nil {
		h.logger.Error("delete account", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	w.WriteHeader(http.StatusNoContent)
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *AuthHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleGuardian
	}
	if req.Role != auth.RoleGuardian && req.Role != auth.RoleOwner {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	household, err := h.householdStore.GetByID(ac.HouseholdID)
	if err != nil || household == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "household not found"})
		return
	}

	invite, err := h.householdStore.CreateInvite(ac.HouseholdID, req.Email, req.Role, inviteTTL)
	if err != nil {
		h.logger.Error("create invite", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create invite"})
		return
	}

	if h.emailClient.Configured() {
		if err := h.emailClient.SendInvite(req.Email, invite.Token, household.Name); err != nil {
			h.logger.Warn("send invite email", "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, invite)
}

type inviteAcceptRequest struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *AuthHandler) InviteAccept(w http.ResponseWriter, r *http.Request) {
	var req inviteAcceptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	invite, err := h.householdStore.GetInviteByToken(req.Token)
	if err != nil {
		h.logger.Error("invite lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if invite == nil || invite.UsedAt != nil || time.Now().After(invite.ExpiresAt) {
		writeJSON(w, http.StatusGone, map[string]string{"error": "invite has expired or already been used"})
		return
	}

	user, err := h.userStore.GetByEmail(invite.Email)
	if err != nil {
		h.logger.Error("invite user lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if user == nil {
		if len(req.Password) < 8 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		user, err = h.userStore.Create(invite.Email, strings.TrimSpace(req.Name), string(hash))
		if err != nil {
			h.logger.Error("create invite user", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
	}

	if _, err := h.householdStore.AddMember(invite.HouseholdID, user.ID, invite.Role); err != nil {
		// Tolerate re-acceptance by an existing member.
		existing, _ := h.householdStore.GetMember(invite.HouseholdID, user.ID)
		if existing == nil {
			h.logger.Error("add invite member", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
	}

	if err := h.householdStore.MarkInviteUsed(invite.ID); err != nil {
		h.logger.Error("mark invite used", "error", err)
	}

	resp, ok := h.startSession(w, r, user.ID, invite.HouseholdID, invite.Role)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type switchHouseholdRequest struct {
	HouseholdID int64 `json:"household_id"`
}

func (h *AuthHandler) SwitchHousehold(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req switchHouseholdRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	member, err := h.householdStore.GetMember(req.HouseholdID, ac.UserID)
	if err != nil || member == nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not a member of this household"})
		return
	}

	if err := h.sessionStore.UpdateHouseholdID(ac.SessionID, req.HouseholdID); err != nil {
		h.logger.Error("switch household", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{UserID: ac.UserID, HouseholdID: req.HouseholdID, Role: member.Role})
}
