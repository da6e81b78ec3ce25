// Package auth mints the signed token carried on the session registration
// handshake so the relay can verify the claimed session identity.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bsekhosana/sechat-app-sub011/errors"
)

// SessionClaims is the payload inside the registration token.
type SessionClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// TokenMinter signs and validates registration tokens with HS256. The
// secret comes from configuration, never from source.
type TokenMinter struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenMinter(secret string, ttl time.Duration) TokenMinter {
	return TokenMinter{secret: []byte(secret), ttl: ttl}
}

// Mint creates a signed token for the given session identity.
func (m TokenMinter) Mint(sessionID string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "sechat-engine",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses the token, checks signature and expiry, and returns the
// embedded claims.
func (m TokenMinter) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.ErrInvalidSessionToken
}
