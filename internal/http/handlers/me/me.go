// Package me реализует эндпоинт GET /api/me, которым клиент получает свои права.
package me

import (
	"log/slog"
	"net/http"
	"time"

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
	User         *models.User             `json:"user"`
	Entitlements entitlement.Entitlements `json:"entitlements"`
	AccessType   entitlement.AccessType   `json:"accessType"`
}

// Handler обрабатывает GET /api/me.
type Handler struct {
	log      *slog.Logger
	users    entitlement.UserFinder
	resolver *entitlement.Resolver
	clock    func() time.Time
	redirect string
}

// New создаёт Handler. redirect попадает в ответы с отказом.
func New(log *slog.Logger, users entitlement.UserFinder, resolver *entitlement.Resolver, clock func() time.Time, redirect string) *Handler {
	if clock == nil {
		clock = time.Now
	}
	if redirect == "" {
		redirect = middlewarectx.DefaultRedirect
	}
	return &Handler{
		log:      log,
		users:    users,
		resolver: resolver,
		clock:    clock,
		redirect: redirect,
	}
}

// ServeHTTP godoc
// @Summary Текущий пользователь и его права
// @Description Возвращает строку пользователя и сводку прав. Ответ не кэшируется.
// @Tags Me
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} response.ErrorResponse "Нет токена или пользователь не найден"
// @Failure 403 {object} response.ErrorResponse "Ошибка чтения пользователя"
// @Router /api/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.me"

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

	decision, user, err := h.resolver.Lookup(r.Context(), h.users, userUID, h.clock())
	if err != nil {
		log.Error("failed to look up user", sl.UserUID(userUID), sl.Err(err))
		h.deny(w, r, http.StatusForbidden, entitlement.CodeServerError)
		return
	}
	if user == nil {
		log.Warn("user not found", sl.UserUID(userUID))
		h.deny(w, r, http.StatusUnauthorized, entitlement.CodeUserNotFound)
		return
	}

	render.JSON(w, r, Response{
		Success:      true,
		User:         user,
		Entitlements: entitlement.Summarize(decision),
		AccessType:   decision.AccessType,
	})
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, status int, code string) {
	render.Status(r, status)
	render.JSON(w, r, response.Denied(code, entitlement.Message(code), h.redirect))
}
