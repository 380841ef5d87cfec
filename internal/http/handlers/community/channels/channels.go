// Package channels отдаёт каталог каналов, видимых текущему пользователю.
package channels

import (
	"context"
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
	Success    bool                   `json:"success"`
	AccessType entitlement.AccessType `json:"accessType"`
	Tier       models.Tier            `json:"tier"`
	Channels   []models.Channel       `json:"channels"`
}

// Service возвращает каналы, доступные по решению.
type Service interface {
	VisibleChannels(ctx context.Context, d entitlement.Decision) ([]models.Channel, error)
}

// Handler обрабатывает GET /api/community/channels. Работает только за AccessGate.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Каналы сообщества
// @Description Каналы, минимальный уровень которых не выше уровня пользователя.
// @Tags Community
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} response.ErrorResponse "Нет токена"
// @Failure 403 {object} response.ErrorResponse "Нет доступа к сообществу"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/community/channels [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.community.channels"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ac, ok := middlewarectx.AccessFrom(r.Context())
	if !ok {
		log.Error("access context missing")
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.Error(entitlement.CodeForbidden, entitlement.Message(entitlement.CodeForbidden)))
		return
	}

	decision := entitlement.Decision{HasAccess: true, AccessType: ac.AccessType}
	list, err := h.service.VisibleChannels(r.Context(), decision)
	if err != nil {
		log.Error("failed to list channels", sl.UserUID(ac.UserID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.CodeInternal, entitlement.Message(entitlement.CodeServerError)))
		return
	}

	render.JSON(w, r, Response{
		Success:    true,
		AccessType: ac.AccessType,
		Tier:       entitlement.TierOf(decision),
		Channels:   list,
	})
}
