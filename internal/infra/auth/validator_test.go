package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
)

func claimsFor(email string, rc jwt.RegisteredClaims) domain.IdentityClaims {
	return domain.IdentityClaims{Email: email, RegisteredClaims: rc}
}

func TestIdentityValidator_IssuerAndAudience(t *testing.T) {
	key := newKey(t)
	v := NewIdentityValidator(&key.PublicKey, WithIssuer("https://idp.example.com"), WithAudience("agent-portal"))

	good, err := IssueToken(key, claimsFor("user@example.com", jwt.RegisteredClaims{
		Issuer:   "https://idp.example.com",
		Audience: jwt.ClaimStrings{"agent-portal"},
	}))
	require.NoError(t, err)
	claims, err := v.VerifyToken("Bearer " + good)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.Email)

	for name, rc := range map[string]jwt.RegisteredClaims{
		"foreign issuer": {Issuer: "https://evil.example.com", Audience: jwt.ClaimStrings{"agent-portal"}},
		"other audience": {Issuer: "https://idp.example.com", Audience: jwt.ClaimStrings{"billing"}},
		"no claims":      {},
	} {
		t.Run(name, func(t *testing.T) {
			token, err := IssueToken(key, claimsFor("user@example.com", rc))
			require.NoError(t, err)
			_, err = v.VerifyToken(token)
			assert.Error(t, err)
		})
	}
}

func TestIdentityValidator_OnlyRS256(t *testing.T) {
	key := newKey(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS512, claimsFor("user@example.com", jwt.RegisteredClaims{})).SignedString(key)
	require.NoError(t, err)

	_, err = NewIdentityValidator(&key.PublicKey).VerifyToken(token)
	assert.Error(t, err)
}

func TestIdentityValidator_Expiry(t *testing.T) {
	key := newKey(t)
	expiredAt := time.Now().Add(-10 * time.Second)
	token, err := IssueToken(key, claimsFor("user@example.com", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expiredAt)}))
	require.NoError(t, err)

	// в пределах допуска на расхождение часов токен еще принимается
	_, err = NewIdentityValidator(&key.PublicKey, WithLeeway(time.Minute)).VerifyToken(token)
	assert.NoError(t, err)

	_, err = NewIdentityValidator(&key.PublicKey, WithLeeway(0)).VerifyToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestIdentityValidator_EmptyToken(t *testing.T) {
	key := newKey(t)
	_, err := NewIdentityValidator(&key.PublicKey).VerifyToken("Bearer   ")
	assert.Error(t, err)
}
