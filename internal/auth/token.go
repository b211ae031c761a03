// Package auth handles credential issuance and email/password authentication.
//
// Credentials are stateless signed tokens: there is no server-side session
// table, so validation scales across instances without shared storage. The
// embedded expiry is the only hard bound on a token's lifetime.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that are malformed, tampered with,
// signed with the wrong key, or expired.
var ErrInvalidToken = errors.New("token is not valid")

// Identity is the authenticated caller context. It is only ever produced by
// ParseToken; nothing else constructs one from request data.
type Identity struct {
	UserID string `json:"id"`
}

// Claims are the statements embedded in a signed credential.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken signs a credential for the given user, valid for ttl.
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

// ParseToken validates the credential's signature and expiry and returns the
// Identity encoded at issuance. Any failure maps to ErrInvalidToken.
func ParseToken(secret []byte, raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject}, nil
}
