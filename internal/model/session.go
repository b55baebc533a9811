package model

import "time"

// Session is an authenticated dashboard session. Confirming a pairing code is
// gated on one of these; the user identity always comes from the session row,
// never from a request body.
type Session struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateSessionParams struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
}

// User is the primary account identity. Owned by the broader application;
// referenced here for session login and the revocation cascade.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
