// Package auth issues and verifies the bearer tokens of staff endpoints.
// Identity itself lives upstream; this package only checks the role claim.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"
	issuer    = "tablego"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrForbidden    = errors.New("insufficient role")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Issue signs an HS256 token for subject with role, valid for ttl from now.
func (v *Verifier) Issue(subject, role string, ttl time.Duration, now time.Time) (string, error) {
	const op = "auth.Verifier.Issue"

	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

// Parse verifies signature and expiry and returns the claims.
func (v *Verifier) Parse(token string) (*Claims, error) {
	claims := &Claims{}

	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// RequireRole parses token and checks its role.
func (v *Verifier) RequireRole(token, role string) (*Claims, error) {
	claims, err := v.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Role != role {
		return nil, ErrForbidden
	}
	return claims, nil
}
