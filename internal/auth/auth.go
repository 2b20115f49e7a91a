// Package auth issues and verifies the actor tokens the API uses to attribute
// manual offering changes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrNoSecret     = errors.New("auth: JWT secret not configured")
	ErrInvalidToken = errors.New("auth: invalid token")
)

var signingMethod = jwt.SigningMethodHS256

// Claims carries the acting user.
type Claims struct {
	Actor string `json:"actor"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with one shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// CreateToken signs a token for actor.
func (i *Issuer) CreateToken(actor string) (string, error) {
	if actor == "" {
		return "", errors.New("auth: actor required")
	}
	now := time.Now()
	claims := &Claims{
		Actor: actor,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(signingMethod, claims).SignedString(i.secret)
}

// VerifyToken parses a token and returns its claims.
func (i *Issuer) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Actor == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
