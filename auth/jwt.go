// Package auth issues and verifies the server's own session tokens.
// Unlike an externally-issued identity token, this server is its own
// issuer: it signs with a local HMAC key instead of fetching a remote
// JWKS, so a forged or mis-signed token is rejected locally before any
// store lookup happens.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// sessionClaims is the payload carried by a session token: sid
// (random, for uniqueness across reconnects of the same player), pid
// (player id) and rid (room id), plus the standard issued-at claim.
type sessionClaims struct {
	SID string `json:"sid"`
	PID string `json:"pid"`
	RID string `json:"rid"`
	jwt.RegisteredClaims
}

// IssueSessionToken mints a new signed session token bound to
// playerID and roomID. The returned id is itself the session id used
// to key store.Session — this repo doesn't need a separate random id
// and a signature, the signature over an embedded random sid gives
// both uniqueness and tamper-evidence in one string.
func IssueSessionToken(key []byte, playerID, roomID string) (string, error) {
	claims := sessionClaims{
		SID: uuid.NewString(),
		PID: playerID,
		RID: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// VerifySessionToken validates tokenString's signature and returns
// the bound player and room ids. A tampered signature, an
// unexpected signing method, or a malformed token all return a
// non-nil error without ever reaching a store lookup.
func VerifySessionToken(key []byte, tokenString string) (playerID, roomID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("auth: invalid token claims")
	}
	return claims.PID, claims.RID, nil
}
