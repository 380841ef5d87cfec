// Package middlewarectx содержит HTTP middleware сервиса доступа к сообществу.
//
// JWTMiddleware проверяет bearer-токен и кладёт в контекст идентификатор
// пользователя и роль. AccessGate по этому идентификатору читает строку
// пользователя, вычисляет решение о доступе и либо отказывает с кодом
// и адресом перенаправления, либо пропускает запрос дальше с AccessContext.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/lib/jwt"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID ключ для идентификатора пользователя в контексте
	UserUID Key = "user_uid"
	// Role ключ для роли из токена в контексте
	Role Key = "role"
	// Access ключ для AccessContext в контексте
	Access Key = "access"
)

// TokenParser описывает проверку токена доступа.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// JWTMiddleware возвращает middleware, который проверяет JWT в заголовке Authorization.
//
// Если токен валиден, добавляет идентификатор пользователя и роль в контекст запроса,
// иначе отвечает 401 UNAUTHORIZED с адресом перенаправления (WithRedirect).
func JWTMiddleware(parser TokenParser, log *slog.Logger, opts ...GateOption) func(http.Handler) http.Handler {
	o := gateOptions{redirect: DefaultRedirect}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			tokenStr, ok := bearerToken(r)
			if !ok {
				log.Warn("missing or invalid authorization header")
				deny(w, r, http.StatusUnauthorized, entitlement.CodeUnauthorized, o.redirect)
				return
			}

			claims, err := parser.ParseToken(tokenStr)
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				deny(w, r, http.StatusUnauthorized, entitlement.CodeUnauthorized, o.redirect)
				return
			}

			ctx := context.WithValue(r.Context(), UserUID, claims.UserUID)
			ctx = context.WithValue(ctx, Role, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserUIDFrom возвращает идентификатор пользователя, положенный JWTMiddleware.
func UserUIDFrom(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserUID).(string)
	return uid, ok && uid != ""
}
