package middlewarectx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/community-access/internal/http/response"
)

// RateLimitMiddleware ограничивает число запросов в окне. Ключом служит идентификатор
// пользователя из контекста, для анонимных запросов IP-адрес.
func RateLimitMiddleware(log *slog.Logger, requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(keyByUserOrIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			log.Warn("too many requests", slog.String("path", r.URL.Path))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, response.Error(response.CodeTooManyRequests, "Too many requests. Please slow down."))
		}),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if uid, ok := UserUIDFrom(r.Context()); ok {
		return "user:" + uid, nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
