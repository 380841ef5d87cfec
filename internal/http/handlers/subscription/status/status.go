// Package status реализует эндпоинт состояния подписки текущего пользователя.
package status

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
	"github.com/magabrotheeeer/community-access/internal/services/subscription"
)

// Response тело успешного ответа.
type Response struct {
	Success      bool                     `json:"success"`
	Subscription *subscription.StatusView `json:"subscription"`
}

// Service возвращает состояние подписки.
type Service interface {
	Status(ctx context.Context, userUID string) (*subscription.StatusView, error)
}

// Handler обрабатывает GET /api/subscription/status.
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
// @Summary Состояние подписки
// @Tags Subscription
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 403 {object} response.ErrorResponse "Ошибка чтения подписки"
// @Router /api/subscription/status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.status"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	w.Header().Set("Cache-Control", "no-store")

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Warn("user identification missing")
		h.deny(w, r, http.StatusUnauthorized, entitlement.CodeUnauthorized)
		return
	}

	view, err := h.service.Status(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Warn("user not found", sl.UserUID(userUID))
			h.deny(w, r, http.StatusUnauthorized, entitlement.CodeUserNotFound)
			return
		}
		log.Error("failed to get subscription status", sl.UserUID(userUID), sl.Err(err))
		h.deny(w, r, http.StatusForbidden, entitlement.CodeServerError)
		return
	}

	render.JSON(w, r, Response{Success: true, Subscription: view})
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, status int, code string) {
	render.Status(r, status)
	render.JSON(w, r, response.Denied(code, entitlement.Message(code), h.redirect))
}
