package handler

import (
	"encoding/json"
	"net/http"

	"github.com/argusai/pairing-server-go/internal/audit"
	apperrors "github.com/argusai/pairing-server-go/internal/errors"
	"github.com/argusai/pairing-server-go/internal/service"
	"github.com/argusai/pairing-server-go/internal/util"
)

// InternalHandler serves hooks for trusted sibling services, authenticated by
// HMAC request signature rather than user credentials.
type InternalHandler struct {
	tokenService *service.TokenService
}

func NewInternalHandler(tokenService *service.TokenService) *InternalHandler {
	return &InternalHandler{tokenService: tokenService}
}

// POST /internal/revocation
// Triggers the revocation cascade for a user, e.g. after an account security
// event handled elsewhere.
func (h *InternalHandler) Revocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if req.UserID == "" {
		writeError(w, apperrors.MissingRequired("userId"))
		return
	}
	if !util.IsValidUUID(req.UserID) {
		writeError(w, apperrors.InvalidInput("userId", "must be a UUID"))
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventRevocationTrigger,
		UserID:  req.UserID,
		Details: map[string]interface{}{"reason": req.Reason},
	})

	count, err := h.tokenService.RevokeAll(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"revoked": count})
}
