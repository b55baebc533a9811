package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBodyLimitMiddleware(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("small body passes", func(t *testing.T) {
		mw := NewBodyLimitMiddleware(64)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"123456"}`))
		rec := httptest.NewRecorder()

		mw.Handler(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("declared oversize body is rejected up front", func(t *testing.T) {
		mw := NewBodyLimitMiddleware(8)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 100)))
		rec := httptest.NewRecorder()

		mw.Handler(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("zero config uses the default limit", func(t *testing.T) {
		mw := NewBodyLimitMiddleware(0)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"123456"}`))
		rec := httptest.NewRecorder()

		mw.Handler(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
