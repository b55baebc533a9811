package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TypeAccess is the token-type discriminator embedded in every access token.
// A leaked refresh secret can never pass as an access credential: refresh
// tokens are opaque random strings, not JWTs, and even a forged JWT without
// typ=access is rejected.
const TypeAccess = "access"

var (
	ErrInvalidToken         = errors.New("invalid access token")
	ErrUnexpectedSignMethod = errors.New("unexpected signing method")
	ErrWrongTokenType       = errors.New("wrong token type")
)

// Claims embeds device identity (sub), owning user identity and the type
// discriminator into a stateless access token.
type Claims struct {
	UserID    string `json:"uid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewSigner(secret, issuer string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Mint signs a short-lived access token for the device. Nothing is persisted;
// verification is signature plus expiry alone.
func (s *Signer) Mint(deviceID, userID string) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:    userID,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}).SignedString(s.secret)
}

func (s *Signer) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrUnexpectedSignMethod
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
