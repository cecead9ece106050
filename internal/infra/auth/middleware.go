package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/janus-neural-bridge/internal/domain"

	"go.uber.org/zap"
)

type ctxKey int

const (
	ctxKeyOperator ctxKey = iota
	ctxKeyScopes
)

// TokenValidator — контракт проверки операторских токенов.
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.OperatorClaims, error)
}

// NewMiddleware закрывает админ-роуты операторским токеном.
func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("operator auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Прокидываем данные в контекст
			ctx := context.WithValue(r.Context(), ctxKeyOperator, claims.Operator)
			ctx = context.WithValue(ctx, ctxKeyScopes, claims.Scopes)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorFromContext достает логин оператора, положенный middleware.
func OperatorFromContext(ctx context.Context) string {
	op, _ := ctx.Value(ctxKeyOperator).(string)
	return op
}

// HasScope проверяет право оператора из контекста.
func HasScope(ctx context.Context, scope string) bool {
	scopes, _ := ctx.Value(ctxKeyScopes).(map[string]bool)
	return scopes[scope]
}
