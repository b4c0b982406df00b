package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
)

// IdentityValidator проверяет identity-токены внешнего IdP и отдает только
// claims о личности. Права доступа из токена не читаются: что видит
// пользователь, решает admin-сервис.
type IdentityValidator struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

type ValidatorOption func(*validatorOptions)

type validatorOptions struct {
	issuer   string
	audience string
	leeway   time.Duration
}

// WithIssuer требует совпадения claim iss. Пустая строка проверку отключает.
func WithIssuer(iss string) ValidatorOption {
	return func(o *validatorOptions) { o.issuer = iss }
}

// WithAudience требует, чтобы портал был среди aud.
func WithAudience(aud string) ValidatorOption {
	return func(o *validatorOptions) { o.audience = aud }
}

// WithLeeway допускает расхождение часов с IdP.
func WithLeeway(d time.Duration) ValidatorOption {
	return func(o *validatorOptions) { o.leeway = d }
}

func NewIdentityValidator(pubKey *rsa.PublicKey, opts ...ValidatorOption) *IdentityValidator {
	o := validatorOptions{leeway: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(o.leeway),
	}
	if o.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(o.issuer))
	}
	if o.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(o.audience))
	}
	return &IdentityValidator{publicKey: pubKey, parser: jwt.NewParser(parserOpts...)}
}

// VerifyToken реализует TokenValidator. Значение заголовка Authorization
// принимается как есть, префикс "Bearer " снимается.
func (v *IdentityValidator) VerifyToken(tokenStr string) (*domain.IdentityClaims, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))
	if tokenStr == "" {
		return nil, errors.New("empty identity token")
	}

	claims := &domain.IdentityClaims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid identity token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid identity token")
	}
	return claims, nil
}

// ParseRSAPublicKey разбирает PEM ключа IdP.
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

// ParseRSAPrivateKey: только для выпуска dev-токенов в agentsctl.
func ParseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("private key data is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// IssueToken подписывает identity-токен (локальная разработка и тесты).
func IssueToken(key *rsa.PrivateKey, claims domain.IdentityClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}
