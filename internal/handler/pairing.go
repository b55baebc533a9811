package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/argusai/pairing-server-go/internal/errors"
	"github.com/argusai/pairing-server-go/internal/middleware"
	"github.com/argusai/pairing-server-go/internal/model"
	"github.com/argusai/pairing-server-go/internal/service"
	"github.com/argusai/pairing-server-go/internal/util"
)

// PairingService is the slice of pairing behavior the handler drives.
// Satisfied by *service.PairingService.
type PairingService interface {
	GenerateCode(ctx context.Context, deviceID string, platform model.Platform, deviceName *string) (*service.GenerateResult, error)
	Confirm(ctx context.Context, code, userID string) (*service.ConfirmResult, error)
	Exchange(ctx context.Context, code string) (*model.TokenPair, error)
}

type PairingHandler struct {
	pairingService PairingService
}

func NewPairingHandler(pairingService PairingService) *PairingHandler {
	return &PairingHandler{pairingService: pairingService}
}

// POST /v1/pairing/request
// Anonymous: called by an unpaired companion device.
func (h *PairingHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID   string  `json:"deviceId"`
		Platform   string  `json:"platform"`
		DeviceName *string `json:"deviceName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
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
	if !util.IsValidEnum(req.Platform, model.PlatformValues) {
		writeError(w, apperrors.InvalidInput("platform", "must be one of: ios, android"))
		return
	}

	result, err := h.pairingService.GenerateCode(
		r.Context(), req.DeviceID, model.Platform(req.Platform), req.DeviceName,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// POST /v1/pairing/confirm
// Session-authenticated: the confirming user comes from the session, never
// from the body.
func (h *PairingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}
	if !util.IsValidPairingCode(code) {
		writeError(w, apperrors.InvalidInput("code", "must be 6 digits"))
		return
	}

	result, err := h.pairingService.Confirm(r.Context(), code, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/pairing/exchange
// Anonymous: the device trades its confirmed code for a token pair.
func (h *PairingHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}
	if !util.IsValidPairingCode(code) {
		writeError(w, apperrors.InvalidInput("code", "must be 6 digits"))
		return
	}

	pair, err := h.pairingService.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}
