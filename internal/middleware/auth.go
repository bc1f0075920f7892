// Package middleware содержит HTTP middleware для сервиса WashWise.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mmeshcher/washwise/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// TokenParser проверяет bearer-токен и возвращает его содержимое.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// AuthMiddleware выполняет проверку аутентификации пользователя по bearer-токену.
type AuthMiddleware struct {
	parser TokenParser
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware.
func NewAuthMiddleware(parser TokenParser) *AuthMiddleware {
	return &AuthMiddleware{parser: parser}
}

// Middleware проверяет заголовок Authorization и добавляет данные токена в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		claims, err := a.parser.Parse(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithClaims возвращает контекст с данными токена.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaimsFromContext извлекает данные токена из контекста запроса.
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}
