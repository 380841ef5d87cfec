// Package selectfree реализует самостоятельный выбор бесплатного тарифа.
//
// Операция идемпотентна: повторный вызов не меняет строку и возвращает то же решение.
package selectfree

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/community-access/internal/http/response"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/models"
)

// Response тело успешного ответа.
type Response struct {
	Success      bool                     `json:"success"`
	Plan         models.Plan              `json:"plan"`
	Decision     entitlement.Decision     `json:"decision"`
	Entitlements entitlement.Entitlements `json:"entitlements"`
}

// Service выбирает бесплатный тариф.
type Service interface {
	SelectFree(ctx context.Context, userUID string) (entitlement.Decision, *models.User, error)
}

// Handler обрабатывает POST /api/subscription/select-free.
type Handler struct {
	log      *slog.Logger
	service  Service
	redirect string
}

// New создаёт Handler. redirect попадает в ответы с отказом.
func New(log *slog.Logger, service Service, redirect string) *Handler {
	if redirect == "" {
		redirect = middlewarectx.DefaultRedirect
	}
	return &Handler{
		log:      log,
		service:  service,
		redirect: redirect,
	}
}

// ServeHTTP godoc
// @Summary Выбор бесплатного тарифа
// @Description Устанавливает тариф free. Пользователь с платным доступом остаётся на своём тарифе.
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 403 {object} response.ErrorResponse "Ошибка чтения подписки"
// @Router /api/subscription/select-free [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.selectfree"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Warn("user identification missing")
		h.deny(w, r, http.StatusUnauthorized, entitlement.CodeUnauthorized)
		return
	}

	decision, user, err := h.service.SelectFree(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Warn("user not found", sl.UserUID(userUID))
			h.deny(w, r, http.StatusUnauthorized, entitlement.CodeUserNotFound)
			return
		}
		log.Error("failed to select free plan", sl.UserUID(userUID), sl.Err(err))
		h.deny(w, r, http.StatusForbidden, entitlement.CodeServerError)
		return
	}

	log.Info("free plan selection handled", sl.UserUID(userUID), slog.String("access_type", string(decision.AccessType)))
	render.JSON(w, r, Response{
		Success:      true,
		Plan:         user.SubscriptionPlan,
		Decision:     decision,
		Entitlements: entitlement.Summarize(decision),
	})
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, status int, code string) {
	render.Status(r, status)
	render.JSON(w, r, response.Denied(code, entitlement.Message(code), h.redirect))
}
