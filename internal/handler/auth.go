package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/argusai/pairing-server-go/internal/errors"
	"github.com/argusai/pairing-server-go/internal/middleware"
	"github.com/argusai/pairing-server-go/internal/service"
)

const minPasswordLength = 8

type AuthHandler struct {
	sessionService *service.SessionService
}

func NewAuthHandler(sessionService *service.SessionService) *AuthHandler {
	return &AuthHandler{sessionService: sessionService}
}

// POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if req.Email == "" {
		writeError(w, apperrors.MissingRequired("email"))
		return
	}
	if req.Password == "" {
		writeError(w, apperrors.MissingRequired("password"))
		return
	}

	result, err := h.sessionService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	if err := h.sessionService.Logout(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /v1/auth/password
// Changing the password revokes every refresh token the user's devices hold.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if req.CurrentPassword == "" {
		writeError(w, apperrors.MissingRequired("currentPassword"))
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, apperrors.InvalidInput("newPassword", "must be at least 8 characters"))
		return
	}

	if err := h.sessionService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
