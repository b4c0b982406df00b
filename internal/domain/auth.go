package domain

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims: claims токена, выданного внешним IdP.
// Нам нужен только подтвержденный email.
type IdentityClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// VerifiedEmail возвращает email, если IdP его подтвердил.
// Отсутствие флага email_verified трактуем как подтвержденный (IdP без этого claim).
func (c *IdentityClaims) VerifiedEmail() (string, bool) {
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return "", false
	}
	if c.EmailVerified != nil && !*c.EmailVerified {
		return "", false
	}
	return email, true
}
