// Package grant реализует административную выдачу платного тарифа.
package grant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/community-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/community-access/internal/http/response"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/models"
	"github.com/magabrotheeeer/community-access/internal/services/subscription"
)

// Request параметры выдачи. Plan принимает и устаревшие синонимы.
type Request struct {
	UserID string `json:"userId" validate:"required,max=64"`
	Plan   string `json:"plan" validate:"required"`
	Days   int    `json:"days" validate:"required,min=1,max=3650"`
}

// Response тело успешного ответа.
type Response struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}

// Service выдаёт тариф.
type Service interface {
	Grant(ctx context.Context, actor, userUID string, plan models.Plan, days int) (*models.User, error)
}

// Handler обрабатывает POST /api/admin/subscriptions/grant.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выдать подписку
// @Description Активирует тариф aura или a7fx на days дней и снимает флаг неуспешного платежа.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Пользователь, тариф и срок"
// @Success 200 {object} Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Нет прав администратора"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/admin/subscriptions/grant [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.grant"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.CodeBadRequest, "invalid request body"))
			return
		}
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	actor := "unknown"
	if ac, ok := middlewarectx.AccessFrom(r.Context()); ok {
		actor = ac.UserID
	}

	user, err := h.service.Grant(r.Context(), actor, req.UserID, models.ParsePlan(req.Plan), req.Days)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrUserNotFound):
		log.Warn("user not found", sl.UserUID(req.UserID))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(response.CodeNotFound, "user not found"))
		return
	case errors.Is(err, subscription.ErrInvalidPlan), errors.Is(err, subscription.ErrInvalidDays):
		log.Warn("invalid grant", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(response.CodeValidation, "plan must be aura or a7fx and days must be positive"))
		return
	default:
		log.Error("failed to grant subscription", sl.UserUID(req.UserID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.CodeInternal, "failed to grant subscription"))
		return
	}

	log.Info("subscription granted", sl.UserUID(req.UserID), slog.String("actor", actor))
	render.JSON(w, r, Response{Success: true, User: user})
}
