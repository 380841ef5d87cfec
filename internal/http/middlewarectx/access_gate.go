package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/http/response"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
)

// DefaultRedirect адрес, куда клиент отправляет пользователя после отказа.
const DefaultRedirect = "/subscription"

// AccessContext кладётся в контекст запроса после пропуска через AccessGate.
type AccessContext struct {
	UserID     string
	AccessType entitlement.AccessType
}

// AccessFrom возвращает AccessContext текущего запроса.
func AccessFrom(ctx context.Context) (AccessContext, bool) {
	ac, ok := ctx.Value(Access).(AccessContext)
	return ac, ok
}

// DecisionObserver получает каждое вычисленное решение.
type DecisionObserver interface {
	ObserveDecision(accessType string)
}

type gateOptions struct {
	redirect string
	observer DecisionObserver
}

// GateOption настраивает AccessGate.
type GateOption func(*gateOptions)

// WithRedirect задаёт адрес перенаправления в отказах.
func WithRedirect(path string) GateOption {
	return func(o *gateOptions) {
		if path != "" {
			o.redirect = path
		}
	}
}

// WithObserver подключает учёт решений.
func WithObserver(obs DecisionObserver) GateOption {
	return func(o *gateOptions) {
		o.observer = obs
	}
}

// AccessGate возвращает middleware, который пропускает запрос только при наличии доступа
// к сообществу. На запрос выполняется одно чтение строки пользователя; строка не изменяется.
// Ошибка чтения трактуется как отказ SERVER_ERROR, а не 500.
func AccessGate(log *slog.Logger, users entitlement.UserFinder, resolver *entitlement.Resolver, clock func() time.Time, opts ...GateOption) func(http.Handler) http.Handler {
	o := gateOptions{redirect: DefaultRedirect}
	for _, opt := range opts {
		opt(&o)
	}
	if clock == nil {
		clock = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AccessGate"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userUID, ok := UserUIDFrom(r.Context())
			if !ok {
				log.Warn("user identification missing")
				deny(w, r, http.StatusUnauthorized, entitlement.CodeUnauthorized, o.redirect)
				return
			}
			log = log.With(sl.UserUID(userUID))

			decision, _, err := resolver.Lookup(r.Context(), users, userUID, clock())
			if err != nil {
				log.Error("failed to look up user", sl.Err(err))
			}
			if o.observer != nil {
				o.observer.ObserveDecision(string(decision.AccessType))
			}

			if !decision.HasAccess {
				code := entitlement.ErrorCode(decision)
				status := http.StatusForbidden
				if code == entitlement.CodeUserNotFound {
					status = http.StatusUnauthorized
				}
				log.Info("community access denied",
					slog.String("access_type", string(decision.AccessType)),
					slog.String("reason", decision.Reason),
				)
				deny(w, r, status, code, o.redirect)
				return
			}

			ctx := context.WithValue(r.Context(), Access, AccessContext{
				UserID:     userUID,
				AccessType: decision.AccessType,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAccessType пропускает запрос, только если AccessGate выдал один из указанных типов доступа.
func RequireAccessType(log *slog.Logger, types ...entitlement.AccessType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireAccessType"

			ac, ok := AccessFrom(r.Context())
			if !ok || !slices.Contains(types, ac.AccessType) {
				log.Warn("access type not allowed",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("access_type", string(ac.AccessType)),
				)
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error(entitlement.CodeForbidden, entitlement.Message(entitlement.CodeForbidden)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, status int, code, redirect string) {
	render.Status(r, status)
	render.JSON(w, r, response.Denied(code, entitlement.Message(code), redirect))
}
