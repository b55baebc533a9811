package handler

import (
	"net/http"
	"strconv"

	apperrors "github.com/argusai/pairing-server-go/internal/errors"
	"github.com/argusai/pairing-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeError emits the error response; throttled results additionally carry a
// Retry-After header so clients can back off correctly.
func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeRateLimitExceeded {
		if details, ok := appErr.Details.(map[string]int); ok {
			if retryAfter, ok := details["retryAfter"]; ok && retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			}
		}
	}
	httputil.WriteError(w, err)
}
