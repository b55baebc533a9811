package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/argusai/pairing-server-go/internal/util"
)

// HookSignatureMiddleware authenticates internal trigger calls (credential
// change events from the identity service) by HMAC over the request body.
// With no secret configured the hook refuses everything: this path guards
// revocation and must fail closed, never open.
type HookSignatureMiddleware struct {
	secret string
}

func NewHookSignatureMiddleware(secret string) *HookSignatureMiddleware {
	return &HookSignatureMiddleware{secret: secret}
}

func (m *HookSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Error().Msg("hook signature middleware: REVOCATION_HOOK_SECRET is not configured, refusing request")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Hook not configured",
			})
			return
		}

		signature := r.Header.Get("X-Internal-Signature")
		if signature == "" {
			log.Warn().Msg("hook signature middleware: missing signature header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing signature",
			})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("hook signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		computed := util.HmacSHA256(m.secret, string(body))
		if !util.ConstantTimeEqual(computed, signature) {
			log.Warn().Msg("hook signature middleware: invalid signature")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid signature",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
