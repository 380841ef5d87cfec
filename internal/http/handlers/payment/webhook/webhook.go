// Package webhook принимает уведомления платёжной системы и применяет их к подписке.
//
// Тело подписывается HMAC-SHA256 общим секретом, подпись в base64 передаётся
// в заголовке X-Api-Signature. Неподписанные запросы отклоняются до разбора JSON.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/community-access/internal/http/response"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/models"
	"github.com/magabrotheeeer/community-access/internal/services/subscription"
)

// SignatureHeader заголовок с подписью тела.
const SignatureHeader = "X-Api-Signature"

const maxBodyBytes = 64 << 10

// Payload уведомление платёжной системы.
type Payload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		UserID    string     `json:"userId"`
		Plan      string     `json:"plan,omitempty"`
		PeriodEnd *time.Time `json:"periodEnd,omitempty"`
	} `json:"data"`
}

// Service применяет платёжные события.
type Service interface {
	ApplyPaymentEvent(ctx context.Context, ev subscription.PaymentEvent) (*models.User, error)
}

// Handler обрабатывает POST /api/payments/webhook.
type Handler struct {
	log     *slog.Logger
	service Service
	secret  string
}

// New создаёт Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:     log,
		service: service,
		secret:  secret,
	}
}

// Sign возвращает подпись тела для заголовка X-Api-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if h.secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(h.secret, body)), []byte(signature))
}

// ServeHTTP godoc
// @Summary Платёжный webhook
// @Description Принимает payment.succeeded, payment.failed и subscription.cancelled. Остальные типы игнорируются.
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Api-Signature header string true "HMAC-SHA256 тела в base64"
// @Param request body Payload true "Уведомление"
// @Success 200 {object} map[string]any
// @Failure 400 {object} response.ErrorResponse "Некорректное тело"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Тариф не задан"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeBadRequest, "invalid request body"))
		return
	}
	defer r.Body.Close()

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		log.Warn("invalid or missing webhook signature")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(response.CodeInvalidSignature, "invalid signature"))
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Data.UserID == "" {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeBadRequest, "invalid webhook payload"))
		return
	}
	log = log.With(slog.String("event_id", payload.ID), slog.String("type", payload.Type), sl.UserUID(payload.Data.UserID))

	eventType := strings.ToLower(payload.Type)
	switch eventType {
	case subscription.PaymentSucceeded, subscription.PaymentFailed, subscription.SubscriptionCancelled:
	default:
		log.Info("ignored webhook event")
		render.JSON(w, r, map[string]any{"success": true, "ignored": true})
		return
	}

	_, err = h.service.ApplyPaymentEvent(r.Context(), subscription.PaymentEvent{
		ID:        payload.ID,
		Type:      eventType,
		UserUID:   payload.Data.UserID,
		Plan:      models.ParsePlan(payload.Data.Plan),
		PeriodEnd: payload.Data.PeriodEnd,
	})
	switch {
	case err == nil:
	case errors.Is(err, subscription.ErrDuplicateEvent):
		log.Info("duplicate webhook event")
		render.JSON(w, r, map[string]any{"success": true, "duplicate": true})
		return
	case errors.Is(err, models.ErrUserNotFound):
		log.Warn("webhook for unknown user")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error(response.CodeNotFound, "user not found"))
		return
	case errors.Is(err, subscription.ErrInvalidPlan):
		log.Warn("webhook without paid plan", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(response.CodeValidation, "paid plan is required"))
		return
	default:
		log.Error("failed to process webhook event", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.CodeInternal, "failed to process event"))
		return
	}

	log.Info("webhook processed successfully")
	render.JSON(w, r, map[string]any{"success": true})
}
