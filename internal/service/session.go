package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/argusai/pairing-server-go/internal/audit"
	apperrors "github.com/argusai/pairing-server-go/internal/errors"
	"github.com/argusai/pairing-server-go/internal/model"
	"github.com/argusai/pairing-server-go/internal/repository"
	"github.com/argusai/pairing-server-go/internal/util"
)

type LoginResult struct {
	SessionToken string `json:"sessionToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

// SessionService authenticates dashboard sessions. Sessions gate pairing
// confirmation; session tokens are stored hashed, like every other secret.
type SessionService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokens      *TokenService
	sessionTTL  time.Duration
}

func NewSessionService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokens *TokenService,
	sessionTTL time.Duration,
) *SessionService {
	return &SessionService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		sessionTTL:  sessionTTL,
	}
}

// Login verifies the user's password and opens a session. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *SessionService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if user == nil || !util.CheckPasswordHash(password, user.PasswordHash) {
		audit.Log(ctx, audit.Event{Type: audit.EventLoginFailure})
		return nil, apperrors.Unauthorized("Invalid credentials")
	}

	sessionToken, err := util.GenerateRefreshToken()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate session token").WithCause(err)
	}

	_, err = s.sessionRepo.Create(ctx, model.CreateSessionParams{
		UserID:    user.ID,
		TokenHash: util.HashToken(sessionToken),
		ExpiresAt: time.Now().Add(s.sessionTTL),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{Type: audit.EventLoginSuccess, UserID: user.ID})

	return &LoginResult{
		SessionToken: sessionToken,
		ExpiresIn:    int(s.sessionTTL.Seconds()),
	}, nil
}

func (s *SessionService) Logout(ctx context.Context, sessionToken string) error {
	if err := s.sessionRepo.DeleteByTokenHash(ctx, util.HashToken(sessionToken)); err != nil {
		return apperrors.Database(err)
	}
	audit.Log(ctx, audit.Event{Type: audit.EventLogout})
	return nil
}

// ChangePassword updates the user's password hash and triggers the revocation
// cascade: a credential-affecting event invalidates every device's refresh
// tokens.
func (s *SessionService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return apperrors.Database(err)
	}
	if user == nil || !util.CheckPasswordHash(currentPassword, user.PasswordHash) {
		audit.Log(ctx, audit.Event{Type: audit.EventAuthFailure, UserID: userID})
		return apperrors.Unauthorized("Invalid credentials")
	}

	hash, err := util.HashPassword(newPassword)
	if err != nil {
		return apperrors.Internal("Failed to hash password").WithCause(err)
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{Type: audit.EventPasswordChange, UserID: userID})

	if _, err := s.tokens.RevokeAll(ctx, userID); err != nil {
		// the cascade must not silently fail after a credential change
		log.Error().Err(err).Str("userId", userID).Msg("revocation cascade failed after password change")
		return err
	}

	return nil
}
