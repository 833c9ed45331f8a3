// Package auth provides the cryptographic and transport building blocks of
// sign-in: instance tokens, password hashing, and federated OAuth providers.
//
// APPLICATION INSTANCES:
// Every browser that talks to the portal is an "application instance". The
// first request mints a random instance ID and stores it, signed as a JWT, in
// an HttpOnly cookie. The identity provider binds identities to instances on
// sign-in and unbinds them on sign-out; the session manager derives the
// (identity, role) view per instance.
//
// WHY SIGN THE INSTANCE ID?
// The instance ID is the key under which a signed-in identity is bound. If a
// client could choose it freely, it could guess another browser's instance
// and ride its session. The HMAC signature means only IDs this server minted
// are accepted.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<instanceID>","iss":"ngo-hub","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "ngo-hub"

// DefaultInstanceTTL is how long an instance cookie stays valid without a visit.
const DefaultInstanceTTL = 30 * 24 * time.Hour

// TokenService signs and verifies instance tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and token lifetime.
// A zero ttl selects DefaultInstanceTTL.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultInstanceTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the lifetime applied by Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for the given instance ID using the service TTL.
func (s *TokenService) Generate(instanceID string) (string, error) {
	return s.GenerateWithDuration(instanceID, s.ttl)
}

// GenerateWithDuration signs a token with a custom expiry duration.
// Negative durations produce already-expired tokens, which tests rely on.
func (s *TokenService) GenerateWithDuration(instanceID string, d time.Duration) (string, error) {
	if instanceID == "" {
		return "", errors.New("auth: instance ID must not be empty")
	}
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   instanceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token and returns the instance ID in its
// "sub" claim.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid and the algorithm is HS256 (no "none" confusion)
//   - Token is not expired, and carries an expiry at all
//   - Issuer matches "ngo-hub"
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
