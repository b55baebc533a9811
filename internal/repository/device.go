package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/argusai/pairing-server-go/internal/model"
)

// DeviceRepository is the boundary to the device identity registry. Reads
// resolve device ownership; the only writes permitted from this subsystem are
// the pairing_confirmed flag and the last_seen_at timestamp.
type DeviceRepository interface {
	FindByID(ctx context.Context, id string) (*model.Device, error)
	MarkPairingConfirmed(ctx context.Context, id string) error
	TouchLastSeen(ctx context.Context, id string) error
}

type deviceRepo struct {
	db *sqlx.DB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) FindByID(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices WHERE id = $1
	`, id)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) MarkPairingConfirmed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET pairing_confirmed = TRUE, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *deviceRepo) TouchLastSeen(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET last_seen_at = NOW() WHERE id = $1
	`, id)
	return err
}
