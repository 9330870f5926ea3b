// Package auth issues and verifies the signed identity tokens shared by the
// gateway, the real-time hub, and the user service.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failure modes. All of them fail closed: a request or
// connection proceeds only when verification succeeds.
var (
	ErrNoToken      = errors.New("auth: no token provided")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
)

// Claims carries the registered claims plus the subject user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
}

// Verifier validates bearer credentials with a shared HS256 secret.
// Stateless; safe for concurrent use.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier for the given shared secret.
func NewVerifier(secret []byte) *Verifier { return &Verifier{secret: secret} }

// GenerateToken mints a signed token for userID, valid for validity.
func (v *Verifier) GenerateToken(userID string, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	})
	return token.SignedString(v.secret)
}

// VerifyToken checks signature and expiry and returns the subject user id.
func (v *Verifier) VerifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrNoToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// FromAuthorizationHeader extracts the bearer token from an Authorization
// header value. Missing or malformed headers yield ErrNoToken.
func FromAuthorizationHeader(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrNoToken
	}
	return parts[1], nil
}
