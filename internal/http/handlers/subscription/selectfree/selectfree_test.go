package selectfree

import (
	"context"
	"encoding/json"
	"errors"
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
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) SelectFree(ctx context.Context, userUID string) (entitlement.Decision, *models.User, error) {
	args := m.Called(ctx, userUID)
	u, _ := args.Get(1).(*models.User)
	return args.Get(0).(entitlement.Decision), u, args.Error(2)
}

func serve(svc *ServiceMock, uid string) *httptest.ResponseRecorder {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, "/choose-plan")
	req := httptest.NewRequest(http.MethodPost, "/api/subscription/select-free", nil)
	if uid != "" {
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, uid))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSelectFreeHandler_Idempotent(t *testing.T) {
	free := entitlement.Decision{HasAccess: true, AccessType: entitlement.AccessFree, Reason: entitlement.ReasonFreePlan}
	user := &models.User{UUID: "u1", SubscriptionPlan: models.PlanFree}

	svc := new(ServiceMock)
	svc.On("SelectFree", mock.Anything, "u1").Return(free, user, nil).Twice()

	var bodies []Response
	for range 2 {
		rr := serve(svc, "u1")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		bodies = append(bodies, resp)
	}

	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, models.PlanFree, bodies[0].Plan)
	assert.Equal(t, entitlement.AccessFree, bodies[0].Decision.AccessType)
	assert.Equal(t, models.TierFree, bodies[0].Entitlements.Tier)
	svc.AssertExpectations(t)
}

func TestSelectFreeHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		uid        string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "not found", uid: "ghost", err: models.ErrUserNotFound, wantStatus: http.StatusUnauthorized, wantCode: entitlement.CodeUserNotFound},
		{name: "storage error", uid: "u1", err: errors.New("boom"), wantStatus: http.StatusForbidden, wantCode: entitlement.CodeServerError},
		{name: "no user", wantStatus: http.StatusUnauthorized, wantCode: entitlement.CodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.uid != "" {
				svc.On("SelectFree", mock.Anything, tt.uid).Return(entitlement.Decision{}, nil, tt.err).Once()
			}
			rr := serve(svc, tt.uid)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var resp response.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.ErrorCode)
			assert.Equal(t, "/choose-plan", resp.Redirect)
			svc.AssertExpectations(t)
		})
	}
}
