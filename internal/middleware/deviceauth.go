package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/argusai/pairing-server-go/internal/token"
)

const DeviceClaimsContextKey contextKey = "deviceClaims"

func GetDeviceClaims(ctx context.Context) *token.Claims {
	if claims, ok := ctx.Value(DeviceClaimsContextKey).(*token.Claims); ok {
		return claims
	}
	return nil
}

// DeviceAuthMiddleware authenticates paired devices by their stateless
// access token. Verification is signature, expiry and token type only; no
// storage round trip.
type DeviceAuthMiddleware struct {
	signer *token.Signer
}

func NewDeviceAuthMiddleware(signer *token.Signer) *DeviceAuthMiddleware {
	return &DeviceAuthMiddleware{signer: signer}
}

func (m *DeviceAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearer(r)
		if tokenStr == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		claims, err := m.signer.Verify(tokenStr)
		if err != nil {
			log.Warn().Err(err).Msg("device auth middleware: access token rejected")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		ctx := context.WithValue(r.Context(), DeviceClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
