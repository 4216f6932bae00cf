// Package auth issues and checks bearer tokens and password hashes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"careops/internal/clock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const issuer = "careops"

// TokenClaims represents the claims in the JWT token
type TokenClaims struct {
	UserID uuid.UUID `json:"uid"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates HS256 tokens
type Issuer struct {
	secret []byte
	expiry time.Duration
	clock  clock.Clock
}

// NewIssuer creates an issuer. A nil clock means the system clock.
func NewIssuer(secret string, expiry time.Duration, clk clock.Clock) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is empty")
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Issuer{secret: []byte(secret), expiry: expiry, clock: clk}, nil
}

// Generate creates a signed token for a user
func (i *Issuer) Generate(userID uuid.UUID, email, role string) (string, error) {
	now := i.clock.Now()
	claims := TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns its claims
func (i *Issuer) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.clock.Now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
