package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/argusai/pairing-server-go/internal/model"
	"github.com/argusai/pairing-server-go/internal/repository"
	"github.com/argusai/pairing-server-go/internal/util"
)

type contextKey string

const SessionContextKey contextKey = "session"

func GetSession(ctx context.Context) *model.Session {
	if session, ok := ctx.Value(SessionContextKey).(*model.Session); ok {
		return session
	}
	return nil
}

// GetUserID returns the authenticated user behind the request, or "".
// Operations that confirm pairing codes take the user identity from here and
// nowhere else.
func GetUserID(ctx context.Context) string {
	if session := GetSession(ctx); session != nil {
		return session.UserID
	}
	return ""
}

// SessionMiddleware authenticates dashboard sessions by hashed bearer token.
type SessionMiddleware struct {
	sessionRepo repository.SessionRepository
}

func NewSessionMiddleware(sessionRepo repository.SessionRepository) *SessionMiddleware {
	return &SessionMiddleware{sessionRepo: sessionRepo}
}

func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		session, err := m.sessionRepo.FindByTokenHash(r.Context(), util.HashToken(token))
		if err != nil {
			log.Error().Err(err).Msg("session middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if session == nil {
			log.Warn().Msg("session middleware: invalid session token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
