package model

import "time"

// Device rows are owned by the device identity registry. This service reads
// them to resolve the owning user and writes exactly two fields:
// pairing_confirmed on successful exchange and last_seen_at on refresh.
type Device struct {
	ID               string     `db:"id" json:"id"`
	UserID           string     `db:"user_id" json:"userId"`
	Platform         Platform   `db:"platform" json:"platform"`
	DeviceName       *string    `db:"device_name" json:"deviceName,omitempty"`
	DeviceModel      *string    `db:"device_model" json:"deviceModel,omitempty"`
	PairingConfirmed bool       `db:"pairing_confirmed" json:"pairingConfirmed"`
	LastSeenAt       *time.Time `db:"last_seen_at" json:"lastSeenAt,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
}
