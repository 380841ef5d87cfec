// Package communityapi собирает HTTP API сообщества: маршруты, middleware и зависимости.
package communityapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/admin/grant"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/admin/revoke"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/community/channels"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/health"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/me"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/payment/webhook"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/subscription/selectfree"
	"github.com/magabrotheeeer/community-access/internal/http/handlers/subscription/status"
	"github.com/magabrotheeeer/community-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/community-access/internal/lib/metrics"
	"github.com/magabrotheeeer/community-access/internal/services/account"
	"github.com/magabrotheeeer/community-access/internal/services/community"
	"github.com/magabrotheeeer/community-access/internal/services/subscription"
)

// Deps содержит зависимости маршрутов.
type Deps struct {
	Logger        *slog.Logger
	Tokens        middlewarectx.TokenParser
	Users         entitlement.UserFinder
	Resolver      *entitlement.Resolver
	Clock         func() time.Time
	Accounts      *account.Service
	Subscriptions *subscription.Service
	Community     *community.Service
	Metrics       *metrics.Metrics
	Health        map[string]health.Pinger
	Redirect      string
	WebhookSecret string
	RateLimit     int
	RateWindow    time.Duration
	Production    bool
}

// NewRouter регистрирует все маршруты приложения.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	log := d.Logger

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !d.Production,
	})

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		secureMiddleware.Handler,
		d.Metrics.Middleware,
	)

	gate := middlewarectx.AccessGate(log, d.Users, d.Resolver, d.Clock,
		middlewarectx.WithRedirect(d.Redirect),
		middlewarectx.WithObserver(d.Metrics),
	)

	r.Route("/api", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(log, d.RateLimit, d.RateWindow))
			r.Post("/auth/register", register.New(log, d.Accounts).ServeHTTP)
			r.Post("/auth/login", login.New(log, d.Accounts).ServeHTTP)
		})

		// Webhook платёжной системы, подпись проверяется в обработчике
		r.Post("/payments/webhook", webhook.New(log, d.Subscriptions, d.WebhookSecret).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, log, middlewarectx.WithRedirect(d.Redirect)))
			r.Use(middlewarectx.RateLimitMiddleware(log, d.RateLimit, d.RateWindow))

			r.Get("/me", me.New(log, d.Users, d.Resolver, d.Clock, d.Redirect).ServeHTTP)
			r.Get("/subscription/status", status.New(log, d.Subscriptions, d.Redirect).ServeHTTP)
			r.Post("/subscription/select-free", selectfree.New(log, d.Subscriptions, d.Redirect).ServeHTTP)

			// Сообщество: только с доступом
			r.Group(func(r chi.Router) {
				r.Use(gate)
				r.Get("/community/channels", channels.New(log, d.Community).ServeHTTP)
			})

			// Администрирование
			r.Group(func(r chi.Router) {
				r.Use(gate)
				r.Use(middlewarectx.RequireAccessType(log, entitlement.AccessAdmin))
				r.Post("/admin/subscriptions/grant", grant.New(log, d.Subscriptions).ServeHTTP)
				r.Post("/admin/subscriptions/revoke", revoke.New(log, d.Subscriptions).ServeHTTP)
			})
		})
	})

	r.Get("/healthz", health.New(log, d.Health).ServeHTTP)
	r.Handle("/metrics", d.Metrics.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	return otelhttp.NewHandler(r, "community-api")
}
