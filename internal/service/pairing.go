package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/argusai/pairing-server-go/internal/audit"
	"github.com/argusai/pairing-server-go/internal/config"
	apperrors "github.com/argusai/pairing-server-go/internal/errors"
	"github.com/argusai/pairing-server-go/internal/model"
	"github.com/argusai/pairing-server-go/internal/notify"
	"github.com/argusai/pairing-server-go/internal/ratelimit"
	"github.com/argusai/pairing-server-go/internal/repository"
	"github.com/argusai/pairing-server-go/internal/util"
)

const notifyTimeout = 5 * time.Second

type GenerateResult struct {
	Code      string `json:"code"`
	ExpiresIn int    `json:"expiresIn"`
}

type ConfirmResult struct {
	Confirmed  bool    `json:"confirmed"`
	DeviceName *string `json:"deviceName,omitempty"`
	Platform   string  `json:"platform"`
}

// PairingNotifier delivers pairing prompts to the device owner's sessions.
// Satisfied by *notify.Broker.
type PairingNotifier interface {
	PublishPairingRequested(ctx context.Context, userID string, summary notify.PairingSummary) error
	PublishPairingComplete(ctx context.Context, userID string, summary notify.PairingSummary) error
}

type PairingService struct {
	codeRepo   repository.PairingCodeRepository
	deviceRepo repository.DeviceRepository
	limiter    ratelimit.Limiter
	broker     PairingNotifier
	tokens     *TokenService
	codeTTL    time.Duration
}

func NewPairingService(
	codeRepo repository.PairingCodeRepository,
	deviceRepo repository.DeviceRepository,
	limiter ratelimit.Limiter,
	broker PairingNotifier,
	tokens *TokenService,
	codeTTL time.Duration,
) *PairingService {
	return &PairingService{
		codeRepo:   codeRepo,
		deviceRepo: deviceRepo,
		limiter:    limiter,
		broker:     broker,
		tokens:     tokens,
		codeTTL:    codeTTL,
	}
}

// GenerateCode creates a pairing code for a device. The rate limiter is
// consulted before anything else; a throttled request is a distinct outcome
// carrying retry guidance, not a validation failure.
func (s *PairingService) GenerateCode(
	ctx context.Context,
	deviceID string,
	platform model.Platform,
	deviceName *string,
) (*GenerateResult, error) {
	decision := s.limiter.Check(ctx, deviceID)
	if !decision.Allowed {
		retryAfter := int(decision.RetryAfter.Seconds())
		audit.Log(ctx, audit.Event{
			Type:     audit.EventRateLimitExceed,
			DeviceID: deviceID,
			Details:  map[string]interface{}{"retryAfter": retryAfter},
		})
		return nil, apperrors.RateLimited(retryAfter)
	}

	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		return nil, apperrors.NotFound("Device")
	}

	var pc *model.PairingCode
	for attempts := 0; attempts < config.PairingCodeMaxAttempts; attempts++ {
		code, err := generatePairingCode()
		if err != nil {
			return nil, apperrors.Internal("Failed to generate pairing code").WithCause(err)
		}

		pc, err = s.codeRepo.Insert(ctx, model.CreatePairingCodeParams{
			Code:       code,
			DeviceID:   deviceID,
			Platform:   platform,
			DeviceName: deviceName,
			ExpiresAt:  time.Now().Add(s.codeTTL),
		})
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if pc != nil {
			break
		}
		// code value collided with a live one, try again
	}
	if pc == nil {
		return nil, apperrors.Internal("Failed to allocate pairing code")
	}

	s.notifyPairingRequested(device, pc)

	audit.Log(ctx, audit.Event{
		Type:     audit.EventCodeGenerate,
		UserID:   device.UserID,
		DeviceID: deviceID,
		Details:  map[string]interface{}{"codeHint": util.MaskCode(pc.Code)},
	})

	log.Info().
		Str("deviceId", deviceID).
		Str("platform", string(platform)).
		Time("expiresAt", pc.ExpiresAt).
		Msg("pairing code created")

	return &GenerateResult{
		Code:      pc.Code,
		ExpiresIn: int(s.codeTTL.Seconds()),
	}, nil
}

// notifyPairingRequested pushes a confirmation prompt to the device owner's
// sessions. Fire-and-forget: generation never blocks on, or fails with, the
// notification channel.
func (s *PairingService) notifyPairingRequested(device *model.Device, pc *model.PairingCode) {
	summary := notify.PairingSummary{
		Platform:  string(pc.Platform),
		CodeHint:  util.MaskCode(pc.Code),
		ExpiresIn: int(time.Until(pc.ExpiresAt).Seconds()),
	}
	if pc.DeviceName != nil {
		summary.DeviceName = *pc.DeviceName
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.broker.PublishPairingRequested(ctx, device.UserID, summary); err != nil {
			log.Warn().Err(err).
				Str("deviceId", device.ID).
				Msg("failed to publish pairing prompt")
		}
	}()
}

// Confirm attaches the authenticated user to a live unconfirmed code. The
// user identity comes from the session, never from the request. Unknown,
// expired and already-confirmed codes fail identically.
func (s *PairingService) Confirm(ctx context.Context, code, userID string) (*ConfirmResult, error) {
	normalized := strings.TrimSpace(code)

	pc, err := s.codeRepo.Confirm(ctx, normalized, userID)
	if err != nil {
		log.Error().Err(err).Msg("confirm pairing code: database error")
		return nil, apperrors.Database(err)
	}
	if pc == nil {
		log.Warn().Str("userId", userID).Msg("pairing code confirmation rejected")
		return nil, apperrors.InvalidPairingCode()
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventCodeConfirm,
		UserID:   userID,
		DeviceID: pc.DeviceID,
	})

	return &ConfirmResult{
		Confirmed:  true,
		DeviceName: pc.DeviceName,
		Platform:   string(pc.Platform),
	}, nil
}

// Exchange consumes a confirmed code and mints the device's first token pair.
// The code row is deleted in the same statement that returns it, so a second
// exchange attempt is indistinguishable from a code that never existed.
// Confirmation does not extend the TTL: a confirmed code past expires_at
// fails exactly like an unconfirmed one.
func (s *PairingService) Exchange(ctx context.Context, code string) (*model.TokenPair, error) {
	normalized := strings.TrimSpace(code)

	pc, err := s.codeRepo.ConsumeConfirmed(ctx, normalized)
	if err != nil {
		log.Error().Err(err).Msg("consume pairing code: database error")
		return nil, apperrors.Database(err)
	}
	if pc == nil || pc.UserID == nil {
		log.Warn().Msg("pairing code exchange rejected")
		return nil, apperrors.ExchangeDenied()
	}
	userID := *pc.UserID

	if err := s.deviceRepo.MarkPairingConfirmed(ctx, pc.DeviceID); err != nil {
		// registry bookkeeping, not an auth decision; the exchange proceeds
		log.Error().Err(err).Str("deviceId", pc.DeviceID).Msg("failed to mark device pairing confirmed")
	}

	pair, err := s.tokens.Issue(ctx, pc.DeviceID, userID)
	if err != nil {
		log.Error().Err(err).Str("deviceId", pc.DeviceID).Msg("failed to issue tokens on exchange")
		return nil, err
	}

	s.notifyPairingComplete(userID, pc)

	audit.Log(ctx, audit.Event{
		Type:     audit.EventCodeExchange,
		UserID:   userID,
		DeviceID: pc.DeviceID,
	})

	log.Info().
		Str("deviceId", pc.DeviceID).
		Str("userId", userID).
		Msg("pairing exchange completed")

	return pair, nil
}

func (s *PairingService) notifyPairingComplete(userID string, pc *model.PairingCode) {
	summary := notify.PairingSummary{Platform: string(pc.Platform)}
	if pc.DeviceName != nil {
		summary.DeviceName = *pc.DeviceName
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.broker.PublishPairingComplete(ctx, userID, summary); err != nil {
			log.Warn().Err(err).
				Str("deviceId", pc.DeviceID).
				Msg("failed to publish pairing completion")
		}
	}()
}

// generatePairingCode draws a uniformly random 6-digit code from crypto/rand.
func generatePairingCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
