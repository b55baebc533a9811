package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/argusai/pairing-server-go/internal/model"
)

type PairingCodeRepository interface {
	// Insert performs a conditional insert: it returns (nil, nil) when the
	// code value is already taken, so the caller can retry with a fresh code.
	Insert(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error)
	// Confirm sets user_id and confirmed_at on a live unconfirmed code in a
	// single compare-and-swap update. It returns the updated row, or nil when
	// the code is unknown, expired or already confirmed.
	Confirm(ctx context.Context, code, userID string) (*model.PairingCode, error)
	// ConsumeConfirmed deletes a confirmed, unexpired code and returns it.
	// Deletion and return happen in one statement; a code can never be
	// consumed twice.
	ConsumeConfirmed(ctx context.Context, code string) (*model.PairingCode, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type pairingCodeRepo struct {
	db *sqlx.DB
}

func NewPairingCodeRepository(db *sqlx.DB) PairingCodeRepository {
	return &pairingCodeRepo{db: db}
}

func (r *pairingCodeRepo) Insert(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		INSERT INTO pairing_codes (code, device_id, platform, device_name, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING
		RETURNING *
	`, params.Code, params.DeviceID, params.Platform, params.DeviceName, params.ExpiresAt)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) Confirm(ctx context.Context, code, userID string) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		UPDATE pairing_codes SET
			user_id = $2,
			confirmed_at = NOW()
		WHERE code = $1 AND confirmed_at IS NULL AND expires_at > NOW()
		RETURNING *
	`, code, userID)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) ConsumeConfirmed(ctx context.Context, code string) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		DELETE FROM pairing_codes
		WHERE code = $1 AND confirmed_at IS NOT NULL AND expires_at > NOW()
		RETURNING *
	`, code)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
