// Package auth keeps the process-wide API credential and renews it against
// the identity endpoint.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is an access/refresh token pair. It lives only in memory.
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	IssuedAt     time.Time
	// ExpiresAt is zero when the lifetime is unknown.
	ExpiresAt time.Time
}

// Expired reports whether the access token is past its expiry, or within skew
// of it. A credential with no known expiry never expires here; the API's 401
// is the authority in that case.
func (c Credential) Expired(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}

// Empty reports whether no access token has been obtained yet.
func (c Credential) Empty() bool {
	return c.AccessToken == ""
}

// tokenExpiry reads the exp claim of a JWT access token without verifying its
// signature; the token is opaque to us and only the server validates it.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
