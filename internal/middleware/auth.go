package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mpaulsen/farthing/internal/auth"
	"github.com/mpaulsen/farthing/internal/store"
)

const sessionCookieName = "farthing_session"

// RequireAuth authenticates a request and populates AuthContext. Mobile
// clients send a JWT bearer token; the web client uses the session cookie.
// Either way the user must still belong to the household it claims.
func RequireAuth(sessionStore *store.SessionStore, householdStore *store.HouseholdStore, tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := authenticate(r, sessionStore, householdStore, tokens)
			if !ok {
				unauthorized(w)
				return
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, sessionStore *store.SessionStore, householdStore *store.HouseholdStore, tokens *auth.TokenManager) (auth.AuthContext, bool) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		claims, err := tokens.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return auth.AuthContext{}, false
		}
		member, err := householdStore.GetMember(claims.HouseholdID, claims.UserID)
		if err != nil || member == nil {
			return auth.AuthContext{}, false
		}
		return auth.AuthContext{
			UserID:      claims.UserID,
			HouseholdID: claims.HouseholdID,
			Role:        member.Role,
		}, true
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return auth.AuthContext{}, false
	}

	sess, err := sessionStore.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		return auth.AuthContext{}, false
	}

	member, err := householdStore.GetMember(sess.HouseholdID, sess.UserID)
	if err != nil || member == nil {
		return auth.AuthContext{}, false
	}

	return auth.AuthContext{
		UserID:      sess.UserID,
		HouseholdID: sess.HouseholdID,
		Role:        member.Role,
		SessionID:   sess.ID,
	}, true
}

// RequireOwner checks that the authenticated user owns the household.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsOwner(r.Context()) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}

// SessionCookieName returns the cookie name used for web sessions.
func SessionCookieName() string {
	return sessionCookieName
}
