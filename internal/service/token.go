package service

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/argusai/pairing-server-go/internal/audit"
	"github.com/argusai/pairing-server-go/internal/database"
	apperrors "github.com/argusai/pairing-server-go/internal/errors"
	"github.com/argusai/pairing-server-go/internal/model"
	"github.com/argusai/pairing-server-go/internal/repository"
	"github.com/argusai/pairing-server-go/internal/token"
	"github.com/argusai/pairing-server-go/internal/util"
)

// errConcurrentRotation signals that another request revoked the row between
// lookup and the compare-and-swap update.
var errConcurrentRotation = errors.New("refresh token rotated concurrently")

// TxRunner runs a function inside a database transaction. Satisfied by
// *database.DB.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// TokenService mints access/refresh pairs, rotates refresh tokens and runs
// the revocation cascade. Everything in here fails closed: an ambiguous state
// is always a denial.
type TokenService struct {
	db         TxRunner
	tokenRepo  repository.RefreshTokenRepository
	deviceRepo repository.DeviceRepository
	signer     *token.Signer
	refreshTTL time.Duration
	grace      time.Duration
}

func NewTokenService(
	db TxRunner,
	tokenRepo repository.RefreshTokenRepository,
	deviceRepo repository.DeviceRepository,
	signer *token.Signer,
	refreshTTL time.Duration,
	grace time.Duration,
) *TokenService {
	return &TokenService{
		db:         db,
		tokenRepo:  tokenRepo,
		deviceRepo: deviceRepo,
		signer:     signer,
		refreshTTL: refreshTTL,
		grace:      grace,
	}
}

// Issue mints a token pair for a freshly exchanged device: a stateless signed
// access token and an opaque refresh secret whose hash is persisted.
func (s *TokenService) Issue(ctx context.Context, deviceID, userID string) (*model.TokenPair, error) {
	pair, _, err := s.mintPair(ctx, s.tokenRepo, deviceID, userID)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *TokenService) mintPair(
	ctx context.Context,
	repo repository.RefreshTokenRepository,
	deviceID, userID string,
) (*model.TokenPair, *model.RefreshToken, error) {
	access, err := s.signer.Mint(deviceID, userID)
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to sign access token").WithCause(err)
	}

	secret, err := util.GenerateRefreshToken()
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to generate refresh token").WithCause(err)
	}

	row, err := repo.Create(ctx, model.CreateRefreshTokenParams{
		DeviceID:  deviceID,
		TokenHash: util.HashToken(secret),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	})
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}

	return &model.TokenPair{
		AccessToken:  access,
		RefreshToken: secret,
		TokenType:    "bearer",
		ExpiresIn:    int(s.signer.TTL().Seconds()),
		DeviceID:     deviceID,
	}, row, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is minted in one transaction. Every failure collapses into the same
// generic denial; the branch taken is visible only in server-side logs.
//
// A token rotated within the grace window is accepted again, but the retry
// rotates the lineage forward rather than un-revoking anything, so the replay
// window is anchored to the original revocation and never extends.
func (s *TokenService) Refresh(ctx context.Context, presented, deviceID string) (*model.TokenPair, error) {
	hash := util.HashToken(presented)

	row, err := s.tokenRepo.FindActive(ctx, hash, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if row == nil {
		row, err = s.graceLookup(ctx, hash, deviceID)
		if err != nil {
			return nil, err
		}
	}

	pair, err := s.rotate(ctx, row)
	if errors.Is(err, errConcurrentRotation) {
		// lost the race to a parallel refresh; the winner's token stands
		log.Warn().Str("deviceId", deviceID).Msg("concurrent refresh lost compare-and-swap")
		return nil, apperrors.InvalidRefreshToken()
	}
	if err != nil {
		return nil, err
	}

	if err := s.deviceRepo.TouchLastSeen(ctx, deviceID); err != nil {
		log.Warn().Err(err).Str("deviceId", deviceID).Msg("failed to touch device last_seen_at")
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventTokenRefresh,
		DeviceID: deviceID,
	})

	return pair, nil
}

// graceLookup resolves a presented token that has no active row. A token
// revoked by rotation within the grace window maps to the device's current
// lineage head; anything else is a denial, and reuse past the window is
// audited as a theft indicator.
func (s *TokenService) graceLookup(ctx context.Context, hash, deviceID string) (*model.RefreshToken, error) {
	prior, err := s.tokenRepo.FindByHash(ctx, hash, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if prior == nil || !prior.Revoked() {
		// unknown token, or a known one that merely expired
		return nil, apperrors.InvalidRefreshToken()
	}

	if prior.ReplacedBy == nil {
		// revoked by logout or cascade, not by rotation; no grace applies
		log.Warn().Str("deviceId", deviceID).Msg("refresh attempted with explicitly revoked token")
		return nil, apperrors.InvalidRefreshToken()
	}

	if time.Since(*prior.RevokedAt) > s.grace {
		audit.Log(ctx, audit.Event{
			Type:     audit.EventTokenReuse,
			DeviceID: deviceID,
			Details:  map[string]interface{}{"revokedAt": prior.RevokedAt.Format(time.RFC3339)},
		})
		log.Warn().
			Str("deviceId", deviceID).
			Time("revokedAt", *prior.RevokedAt).
			Msg("rotated refresh token reused outside grace window")
		return nil, apperrors.InvalidRefreshToken()
	}

	head, err := s.tokenRepo.FindActiveByDevice(ctx, deviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if head == nil {
		// lineage fully revoked since rotation
		return nil, apperrors.InvalidRefreshToken()
	}

	log.Info().Str("deviceId", deviceID).Msg("accepting grace-window refresh retry")
	return head, nil
}

// rotate revokes row and mints its successor as a single transaction. Either
// both happen or neither does; a device can never end up with zero valid
// tokens from a partial rotation, nor with two concurrently valid lineages.
func (s *TokenService) rotate(ctx context.Context, row *model.RefreshToken) (*model.TokenPair, error) {
	device, err := s.deviceRepo.FindByID(ctx, row.DeviceID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		return nil, apperrors.InvalidRefreshToken()
	}

	var pair *model.TokenPair
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		txRepo := s.tokenRepo.WithTx(tx)

		revoked, err := txRepo.Revoke(ctx, row.ID)
		if err != nil {
			return err
		}
		if !revoked {
			return errConcurrentRotation
		}

		minted, newRow, err := s.mintPair(ctx, txRepo, device.ID, device.UserID)
		if err != nil {
			return err
		}

		if err := txRepo.SetReplacedBy(ctx, row.ID, newRow.ID); err != nil {
			return err
		}

		pair = minted
		return nil
	})
	if err != nil {
		if errors.Is(err, errConcurrentRotation) {
			return nil, err
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Database(err)
	}

	return pair, nil
}

// RevokeAll is the revocation cascade: one set-based update marking every
// live refresh token of every device the user owns.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	count, err := s.tokenRepo.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventRevokeAll,
		UserID:  userID,
		Details: map[string]interface{}{"revoked": count},
	})

	log.Info().Str("userId", userID).Int64("revoked", count).Msg("revocation cascade completed")
	return count, nil
}

// RevokeDevice invalidates a single device's refresh tokens (logout).
func (s *TokenService) RevokeDevice(ctx context.Context, deviceID string) (int64, error) {
	count, err := s.tokenRepo.RevokeAllForDevice(ctx, deviceID)
	if err != nil {
		return 0, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventTokenRevoke,
		DeviceID: deviceID,
		Details:  map[string]interface{}{"revoked": count},
	})

	return count, nil
}
