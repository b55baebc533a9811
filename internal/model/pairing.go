package model

import "time"

// PairingCode is one in-flight pairing attempt. A consumed code has no
// terminal state here: the row is deleted as part of the exchange.
type PairingCode struct {
	Code        string     `db:"code" json:"code"`
	DeviceID    string     `db:"device_id" json:"deviceId"`
	Platform    Platform   `db:"platform" json:"platform"`
	DeviceName  *string    `db:"device_name" json:"deviceName,omitempty"`
	UserID      *string    `db:"user_id" json:"userId,omitempty"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmedAt,omitempty"`
	ExpiresAt   time.Time  `db:"expires_at" json:"expiresAt"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

func (pc *PairingCode) Confirmed() bool {
	return pc.ConfirmedAt != nil && pc.UserID != nil
}

type CreatePairingCodeParams struct {
	Code       string
	DeviceID   string
	Platform   Platform
	DeviceName *string
	ExpiresAt  time.Time
}
