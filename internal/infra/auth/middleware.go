package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/xela07ax/spaceai-agent-portal/internal/domain"
	"go.uber.org/zap"
)

// DevEmailHeader принимается вместо токена, только когда валидатор не настроен.
const DevEmailHeader = "X-Portal-Email"

type emailKey struct{}

// TokenValidator: то, что умеет проверить токен IdP.
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.IdentityClaims, error)
}

// NewMiddleware: identity необязательна: без заголовка запрос идет анонимно
// (портал покажет приглашение войти), на битый токен 401.
func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				email := strings.TrimSpace(r.Header.Get(DevEmailHeader))
				next.ServeHTTP(w, r.WithContext(WithEmail(r.Context(), email)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"invalid identity token"}`))
				return
			}

			email, ok := claims.VerifiedEmail()
			if !ok {
				logger.Info("token without verified email, treating as anonymous")
			}
			next.ServeHTTP(w, r.WithContext(WithEmail(r.Context(), email)))
		})
	}
}

func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey{}, email)
}

// EmailFrom: email пользователя или "" для анонимного запроса.
func EmailFrom(ctx context.Context) string {
	email, _ := ctx.Value(emailKey{}).(string)
	return email
}
