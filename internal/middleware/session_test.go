package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/argusai/pairing-server-go/internal/model"
	"github.com/argusai/pairing-server-go/internal/util"
)

type mockSessionRepo struct {
	sessions map[string]*model.Session
	err      error
}

func (m *mockSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sessions[tokenHash], nil
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func TestSessionMiddleware(t *testing.T) {
	sessionToken := "valid-session-token"
	repo := &mockSessionRepo{
		sessions: map[string]*model.Session{
			util.HashToken(sessionToken): {
				ID:        "sess-1",
				UserID:    "user-1",
				TokenHash: util.HashToken(sessionToken),
				ExpiresAt: time.Now().Add(time.Hour),
			},
		},
	}

	handler := func(capturedUser *string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*capturedUser = GetUserID(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	}

	t.Run("valid token passes with session in context", func(t *testing.T) {
		var user string
		mw := NewSessionMiddleware(repo)

		req := httptest.NewRequest(http.MethodPost, "/v1/pairing/confirm", nil)
		req.Header.Set("Authorization", "Bearer "+sessionToken)
		rec := httptest.NewRecorder()

		mw.Handler(handler(&user)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", user)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		var user string
		mw := NewSessionMiddleware(repo)

		req := httptest.NewRequest(http.MethodPost, "/v1/pairing/confirm", nil)
		rec := httptest.NewRecorder()

		mw.Handler(handler(&user)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, user)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		var user string
		mw := NewSessionMiddleware(repo)

		req := httptest.NewRequest(http.MethodPost, "/v1/pairing/confirm", nil)
		req.Header.Set("Authorization", "Bearer something-else")
		rec := httptest.NewRecorder()

		mw.Handler(handler(&user)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-bearer scheme is rejected", func(t *testing.T) {
		var user string
		mw := NewSessionMiddleware(repo)

		req := httptest.NewRequest(http.MethodPost, "/v1/pairing/confirm", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		mw.Handler(handler(&user)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("storage error does not fall through to unauthorized handler", func(t *testing.T) {
		var user string
		mw := NewSessionMiddleware(&mockSessionRepo{err: errors.New("connection refused")})

		req := httptest.NewRequest(http.MethodPost, "/v1/pairing/confirm", nil)
		req.Header.Set("Authorization", "Bearer "+sessionToken)
		rec := httptest.NewRecorder()

		mw.Handler(handler(&user)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, user)
	})
}

func TestGetUserID(t *testing.T) {
	t.Run("empty without session", func(t *testing.T) {
		assert.Empty(t, GetUserID(context.Background()))
	})

	t.Run("returns session user", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), SessionContextKey, &model.Session{UserID: "user-9"})
		assert.Equal(t, "user-9", GetUserID(ctx))
	})
}
