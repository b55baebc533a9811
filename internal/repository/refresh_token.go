package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/argusai/pairing-server-go/internal/database"
	"github.com/argusai/pairing-server-go/internal/model"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, params model.CreateRefreshTokenParams) (*model.RefreshToken, error)
	// FindActive returns the row for (hash, device) that is neither revoked
	// nor expired, or nil. Never issued, rotated, revoked, wrong device and
	// expired all look the same to the caller.
	FindActive(ctx context.Context, tokenHash, deviceID string) (*model.RefreshToken, error)
	// FindByHash returns the row for (hash, device) regardless of state.
	// Used server-side only, to tell a grace-window retry from token reuse.
	FindByHash(ctx context.Context, tokenHash, deviceID string) (*model.RefreshToken, error)
	// FindActiveByDevice returns the device's single usable row, if any.
	FindActiveByDevice(ctx context.Context, deviceID string) (*model.RefreshToken, error)
	// Revoke sets revoked_at on a not-yet-revoked row. The compare-and-swap
	// reports false when another rotation already claimed the row.
	Revoke(ctx context.Context, id string) (bool, error)
	SetReplacedBy(ctx context.Context, id, replacedByID string) error
	// RevokeAllForUser marks every live token of every device owned by the
	// user in one set-based update. Never a per-row loop.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	RevokeAllForDevice(ctx context.Context, deviceID string) (int64, error)
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *sqlx.Tx) RefreshTokenRepository
}

type refreshTokenRepo struct {
	db database.DBTX
}

func NewRefreshTokenRepository(db *sqlx.DB) RefreshTokenRepository {
	return &refreshTokenRepo{db: db}
}

func (r *refreshTokenRepo) WithTx(tx *sqlx.Tx) RefreshTokenRepository {
	return &refreshTokenRepo{db: tx}
}

func (r *refreshTokenRepo) Create(ctx context.Context, params model.CreateRefreshTokenParams) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.db.GetContext(ctx, &rt, `
		INSERT INTO refresh_tokens (device_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.DeviceID, params.TokenHash, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *refreshTokenRepo) FindActive(ctx context.Context, tokenHash, deviceID string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.db.GetContext(ctx, &rt, `
		SELECT * FROM refresh_tokens
		WHERE token_hash = $1 AND device_id = $2
		AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash, deviceID)
	return HandleNotFound(&rt, err)
}

func (r *refreshTokenRepo) FindByHash(ctx context.Context, tokenHash, deviceID string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.db.GetContext(ctx, &rt, `
		SELECT * FROM refresh_tokens
		WHERE token_hash = $1 AND device_id = $2
	`, tokenHash, deviceID)
	return HandleNotFound(&rt, err)
}

func (r *refreshTokenRepo) FindActiveByDevice(ctx context.Context, deviceID string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := r.db.GetContext(ctx, &rt, `
		SELECT * FROM refresh_tokens
		WHERE device_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`, deviceID)
	return HandleNotFound(&rt, err)
}

func (r *refreshTokenRepo) Revoke(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL
	`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *refreshTokenRepo) SetReplacedBy(ctx context.Context, id, replacedByID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET replaced_by = $2 WHERE id = $1
	`, id, replacedByID)
	return err
}

func (r *refreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens rt SET revoked_at = NOW()
		FROM devices d
		WHERE rt.device_id = d.id AND d.user_id = $1 AND rt.revoked_at IS NULL
	`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *refreshTokenRepo) RevokeAllForDevice(ctx context.Context, deviceID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = NOW()
		WHERE device_id = $1 AND revoked_at IS NULL
	`, deviceID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *refreshTokenRepo) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE revoked_at IS NOT NULL AND revoked_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
