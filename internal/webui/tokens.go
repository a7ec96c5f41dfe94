// ABOUTME: Signed view tokens binding browser requests to a view session
// ABOUTME: HS256 JWTs issued by appland whose subject is the view ID

package webui

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers forged, malformed, and subject-less tokens.
	ErrInvalidToken = errors.New("invalid view token")
	// ErrExpiredToken means the page outlived its token and should reload.
	ErrExpiredToken = errors.New("view token expired")
)

const (
	viewTokenIssuer = "appland"

	// viewTokenLifetime bounds how long one page can stay open
	viewTokenLifetime = 24 * time.Hour
)

// ViewTokens issues and checks the token a page sends with every request.
type ViewTokens struct {
	key    []byte
	parser *jwt.Parser
}

func NewViewTokens(secret []byte) *ViewTokens {
	return &ViewTokens{
		key: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(viewTokenIssuer),
		),
	}
}

// Issue signs a token naming viewID that is valid for ttl.
func (v *ViewTokens) Issue(viewID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    viewTokenIssuer,
		Subject:   viewID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// ViewID returns the view a token was issued for.
func (v *ViewTokens) ViewID(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredToken
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case claims.Subject == "":
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
