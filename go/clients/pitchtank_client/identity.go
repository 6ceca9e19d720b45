package pitchtank_client

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidIdentity = errors.New("invalid identity token")

// IdentityClaims is the signed-in user carried by the backend's bearer token.
type IdentityClaims struct {
	UserID        string `json:"user_id,omitempty"`
	TwitterHandle string `json:"twitter_handle,omitempty"`
	DisplayName   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// UID prefers the explicit user id and falls back to the subject.
func (c *IdentityClaims) UID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// ParseIdentity reads the claims from token. With a secret the signature is
// verified; without one the backend is trusted to verify and the claims are
// only decoded.
func ParseIdentity(token string, secret []byte) (*IdentityClaims, error) {
	claims := &IdentityClaims{}

	if len(secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
		}
		return claims, nil
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidIdentity
	}
	return claims, nil
}
