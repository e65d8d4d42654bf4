package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenIssuer mints opaque bearer tokens. Each token is an HS256 JWT whose
// jti is a random UUID; the signature lets forged tokens be rejected before
// any store lookup, while validity is still decided by the stored token.
type tokenIssuer struct {
	secret []byte
}

func (t tokenIssuer) issue(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t tokenIssuer) verify(token string) bool {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil && parsed.Valid
}
