// Package auth inspects access tokens on the client side. The server is the
// only party holding the signing secret, so nothing here verifies signatures;
// the client only reads claims to avoid round-trips with a token that is
// already expired.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed means the token is not a parseable JWT. The server stays the
// authority for such tokens; callers should still ask it to validate.
var ErrMalformed = errors.New("internal/auth: token is not a well-formed JWT")

// ExpiresAt reports the expiry claim of a token without verifying its
// signature. Tokens without an exp claim return a zero time and no error.
func ExpiresAt(tokenString string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}

	return claims.ExpiresAt.Time, nil
}

// Expired reports whether a well-formed token carries an exp claim in the
// past. Malformed tokens and tokens without exp report false.
func Expired(tokenString string) bool {
	exp, err := ExpiresAt(tokenString)
	if err != nil || exp.IsZero() {
		return false
	}

	return time.Now().After(exp)
}

// Subject reports the sub claim of a token without verifying its signature.
func Subject(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return claims.Subject, nil
}
