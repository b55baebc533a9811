package model

import "time"

// RefreshToken is one issued refresh credential. The opaque secret itself is
// never stored; token_hash is its one-way digest. revoked_at is set exactly
// once and never cleared.
type RefreshToken struct {
	ID         string     `db:"id" json:"id"`
	DeviceID   string     `db:"device_id" json:"deviceId"`
	TokenHash  string     `db:"token_hash" json:"-"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expiresAt"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	ReplacedBy *string    `db:"replaced_by" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

func (rt *RefreshToken) Revoked() bool {
	return rt.RevokedAt != nil
}

type CreateRefreshTokenParams struct {
	DeviceID  string
	TokenHash string
	ExpiresAt time.Time
}

// TokenPair is the credential set handed to a device on exchange and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
	DeviceID     string `json:"deviceId"`
}
