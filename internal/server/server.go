package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/email"
	"github.com/mpaulsen/farthing/internal/handler"
	"github.com/mpaulsen/farthing/internal/middleware"
	"github.com/mpaulsen/farthing/internal/photo"
	"github.com/mpaulsen/farthing/internal/push"
	"github.com/mpaulsen/farthing/internal/store"
	ws "github.com/mpaulsen/farthing/internal/websocket"
)

// Config carries everything the server needs beyond the database handle.
type Config struct {
	BaseURL     string
	TokenSecret string
	Photo       photo.Config
	Push        push.Config
	EmailToken  string
	EmailFrom   string
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	authH          *handler.AuthHandler
	taskH          *handler.TaskHandler
	reviewH        *handler.ReviewHandler
	photoH         *handler.PhotoHandler
	dashboardH     *handler.DashboardHandler
	pointsH        *handler.PointsHandler
	memberH        *handler.FamilyMemberHandler
	chatH          *handler.ChatHandler
	settingsH      *handler.SettingsHandler
	pushH          *handler.PushHandler
	sessionStore   *store.SessionStore
	householdStore *store.HouseholdStore
	rateLimiter    *middleware.RateLimiter
	tokens         *auth.TokenManager
	pushScheduler  *push.Scheduler
	logger         *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	taskStore := store.NewTaskStore(db)
	memberStore := store.NewFamilyMemberStore(db)
	pointsStore := store.NewPointsStore(db)
	commentStore := store.NewCommentStore(db)
	reactionStore := store.NewReactionStore(db)
	chatStore := store.NewChatStore(db)
	settingsStore := store.NewSettingsStore(db)

	// Auth stores
	userStore := store.NewUserStore(db)
	householdStore := store.NewHouseholdStore(db)
	sessionStore := store.NewSessionStore(db)

	tokens := auth.NewTokenManager(cfg.TokenSecret, 0)
	emailClient := email.NewClient(cfg.EmailToken, cfg.EmailFrom, cfg.BaseURL)
	photos := photo.NewStore(cfg.Photo)

	pushLogger := logger.With("component", "push")
	pushStore := store.NewPushStore(db)
	var pushSvc *push.Service
	var pushSched *push.Scheduler
	var notifier *push.Notifier
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
		pushSched = push.NewScheduler(pushSvc, pushStore, taskStore, pushLogger)
		notifier = push.NewNotifier(pushSvc, pushStore, pushLogger)
	}

	return &Server{
		db:             db,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, householdStore, sessionStore, emailClient, tokens, logger.With("component", "auth")),
		taskH:          handler.NewTaskHandler(taskStore, memberStore, settingsStore, photos, hub, notifier, logger.With("component", "task")),
		reviewH:        handler.NewReviewHandler(taskStore, memberStore, hub, notifier, logger.With("component", "review")),
		photoH:         handler.NewPhotoHandler(photos, taskStore, logger.With("component", "photo")),
		dashboardH:     handler.NewDashboardHandler(taskStore, memberStore, logger.With("component", "dashboard")),
		pointsH:        handler.NewPointsHandler(pointsStore, memberStore, hub, logger.With("component", "points")),
		memberH:        handler.NewFamilyMemberHandler(memberStore, hub, logger.With("component", "family_member")),
		chatH:          handler.NewChatHandler(chatStore, commentStore, reactionStore, memberStore, taskStore, hub, logger.With("component", "chat")),
		settingsH:      handler.NewSettingsHandler(settingsStore, logger.With("component", "settings")),
		pushH:          handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		sessionStore:   sessionStore,
		householdStore: householdStore,
		rateLimiter:    middleware.NewRateLimiter(),
		tokens:         tokens,
		pushScheduler:  pushSched,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// PushScheduler returns the push notification scheduler, nil when push is
// not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/invite/accept", s.rateLimitedHandler(s.authH.InviteAccept))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.householdStore, s.tokens)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session routes
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)
	mux.HandleFunc("PATCH /api/auth/me", s.authH.UpdateProfile)
	mux.HandleFunc("DELETE /api/auth/me", s.authH.DeleteAccount)
	mux.HandleFunc("POST /api/auth/switch", s.authH.SwitchHousehold)
	mux.Handle("POST /api/auth/invite", middleware.RequireOwner(http.HandlerFunc(s.authH.Invite)))

	// Family member routes
	mux.HandleFunc("GET /api/family-members", s.memberH.List)
	mux.HandleFunc("POST /api/family-members", s.memberH.Create)
	mux.HandleFunc("PUT /api/family-members/{id}", s.memberH.Update)
	mux.HandleFunc("DELETE /api/family-members/{id}", s.memberH.Delete)
	mux.HandleFunc("PUT /api/family-members/sort", s.memberH.Reorder)
	mux.HandleFunc("POST /api/family-members/{id}/pin", s.memberH.SetPIN)
	mux.HandleFunc("POST /api/family-members/{id}/pin/verify", s.memberH.VerifyPIN)

	// Task routes
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/submit", s.taskH.Submit)

	// Photo routes
	mux.HandleFunc("POST /api/tasks/{id}/photo", s.photoH.Upload)
	mux.HandleFunc("GET /api/photos/{key...}", s.photoH.Serve)

	// Review queue routes
	mux.HandleFunc("GET /api/review/queue", s.reviewH.Queue)
	mux.HandleFunc("POST /api/review/approve", s.reviewH.Approve)
	mux.HandleFunc("POST /api/review/reject", s.reviewH.Reject)

	// Dashboard routes
	mux.HandleFunc("GET /api/dashboard", s.dashboardH.Family)
	mux.HandleFunc("GET /api/dashboard/members/{id}", s.dashboardH.Member)

	// Points routes
	mux.Handle("POST /api/points", middleware.RequireOwner(http.HandlerFunc(s.pointsH.Award)))
	mux.HandleFunc("GET /api/family-members/{id}/points", s.pointsH.History)
	mux.HandleFunc("GET /api/leaderboard", s.pointsH.Leaderboard)

	// Chat, comments, reactions
	mux.HandleFunc("GET /api/chat", s.chatH.ListMessages)
	mux.HandleFunc("POST /api/chat", s.chatH.CreateMessage)
	mux.HandleFunc("DELETE /api/chat/{id}", s.chatH.DeleteMessage)
	mux.HandleFunc("GET /api/tasks/{id}/comments", s.chatH.ListComments)
	mux.HandleFunc("POST /api/tasks/{id}/comments", s.chatH.CreateComment)
	mux.HandleFunc("DELETE /api/comments/{id}", s.chatH.DeleteComment)
	mux.HandleFunc("GET /api/reactions", s.chatH.ListReactions)
	mux.HandleFunc("POST /api/reactions", s.chatH.SetReaction)
	mux.HandleFunc("DELETE /api/reactions", s.chatH.RemoveReaction)

	// Settings routes
	mux.HandleFunc("GET /api/settings", s.settingsH.Get)
	mux.Handle("PUT /api/settings", middleware.RequireOwner(http.HandlerFunc(s.settingsH.Update)))

	// Push notification routes
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.DeleteSubscription)
	mux.HandleFunc("GET /api/push/preferences", s.pushH.GetPreferences)
	mux.HandleFunc("PUT /api/push/preferences", s.pushH.SetPreferences)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
