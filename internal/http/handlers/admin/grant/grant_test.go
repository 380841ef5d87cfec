package grant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/community-access/internal/http/response"
	"github.com/magabrotheeeer/community-access/internal/models"
	"github.com/magabrotheeeer/community-access/internal/services/subscription"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Grant(ctx context.Context, actor, userUID string, plan models.Plan, days int) (*models.User, error) {
	args := m.Called(ctx, actor, userUID, plan, days)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func TestGrantHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mockSetup  func(m *ServiceMock)
		wantStatus int
		wantCode   string
	}{
		{
			name: "granted with legacy plan literal",
			body: `{"userId":"u1","plan":"A7FX","days":30}`,
			mockSetup: func(m *ServiceMock) {
				m.On("Grant", mock.Anything, "admin-1", "u1", models.PlanA7FX, 30).
					Return(&models.User{UUID: "u1", SubscriptionPlan: models.PlanA7FX, SubscriptionStatus: models.StatusActive}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid json",
			body:       `{"userId":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   response.CodeBadRequest,
		},
		{
			name:       "missing days",
			body:       `{"userId":"u1","plan":"aura"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   response.CodeValidation,
		},
		{
			name: "free plan rejected",
			body: `{"userId":"u1","plan":"free","days":30}`,
			mockSetup: func(m *ServiceMock) {
				m.On("Grant", mock.Anything, "admin-1", "u1", models.PlanFree, 30).
					Return(nil, fmt.Errorf("subscription.Grant: %w", subscription.ErrInvalidPlan)).Once()
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   response.CodeValidation,
		},
		{
			name: "user not found",
			body: `{"userId":"ghost","plan":"aura","days":7}`,
			mockSetup: func(m *ServiceMock) {
				m.On("Grant", mock.Anything, "admin-1", "ghost", models.PlanAura, 7).
					Return(nil, models.ErrUserNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
			wantCode:   response.CodeNotFound,
		},
		{
			name: "storage error",
			body: `{"userId":"u1","plan":"aura","days":7}`,
			mockSetup: func(m *ServiceMock) {
				m.On("Grant", mock.Anything, "admin-1", "u1", models.PlanAura, 7).
					Return(nil, errors.New("boom")).Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   response.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.mockSetup != nil {
				tt.mockSetup(svc)
			}
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

			req := httptest.NewRequest(http.MethodPost, "/api/admin/subscriptions/grant", bytes.NewBufferString(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.Access, middlewarectx.AccessContext{
				UserID:     "admin-1",
				AccessType: entitlement.AccessAdmin,
			}))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCode != "" {
				var resp response.ErrorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp.ErrorCode)
			} else {
				var resp Response
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.True(t, resp.Success)
				assert.Equal(t, models.PlanA7FX, resp.User.SubscriptionPlan)
			}
			svc.AssertExpectations(t)
		})
	}
}
