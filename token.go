package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IsWellFormedToken reports whether token has the header.payload.signature
// shape: three non-empty segments separated by dots. Nothing is decoded or
// verified.
func IsWellFormedToken(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

// PeekClaims decodes the payload of a JWT without verifying its signature.
// Tokens that are well formed but not decodable return ok=false.
func PeekClaims(token string) (jwt.MapClaims, bool) {
	if !IsWellFormedToken(token) {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// IsTokenExpiredAt reports whether token decodes as a JWT carrying an exp
// claim at or before now. Opaque tokens are never considered expired.
func IsTokenExpiredAt(token string, now time.Time) bool {
	claims, ok := PeekClaims(token)
	if !ok {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.Time.After(now)
}
