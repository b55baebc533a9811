package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/argusai/pairing-server-go/internal/errors"
	"github.com/argusai/pairing-server-go/internal/middleware"
	"github.com/argusai/pairing-server-go/internal/service"
	"github.com/argusai/pairing-server-go/internal/util"
)

type TokenHandler struct {
	tokenService *service.TokenService
}

func NewTokenHandler(tokenService *service.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

// POST /v1/tokens/refresh
// Anonymous: authentication is the refresh token itself.
func (h *TokenHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
		DeviceID     string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if req.RefreshToken == "" {
		writeError(w, apperrors.MissingRequired("refreshToken"))
		return
	}
	if req.DeviceID == "" {
		writeError(w, apperrors.MissingRequired("deviceId"))
		return
	}
	if !util.IsValidUUID(req.DeviceID) {
		writeError(w, apperrors.InvalidInput("deviceId", "must be a UUID"))
		return
	}

	pair, err := h.tokenService.Refresh(r.Context(), req.RefreshToken, req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// POST /v1/tokens/revoke
// Device-authenticated logout: invalidates the device's refresh tokens. The
// short-lived access token is left to expire on its own.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetDeviceClaims(r.Context())
	if claims == nil {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	count, err := h.tokenService.RevokeDevice(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"revoked": count})
}
