package middlewarectx_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/community-access/internal/http/response"
	"github.com/magabrotheeeer/community-access/internal/models"
)

type UserFinderMock struct {
	mock.Mock
}

func (m *UserFinderMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type observerMock struct {
	mu   sync.Mutex
	seen []string
}

func (o *observerMock) ObserveDecision(accessType string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, accessType)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func withUser(r *http.Request, uid string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middlewarectx.UserUID, uid))
}

func TestAccessGate(t *testing.T) {
	future := fixedNow.Add(24 * time.Hour)
	past := fixedNow.Add(-time.Hour)

	tests := []struct {
		name       string
		uid        string
		user       *models.User
		findErr    error
		wantStatus int
		wantCode   string
		wantAccess entitlement.AccessType
	}{
		{
			name:       "no user in context",
			wantStatus: http.StatusUnauthorized,
			wantCode:   entitlement.CodeUnauthorized,
		},
		{
			name:       "user row missing",
			uid:        "u1",
			findErr:    models.ErrUserNotFound,
			wantStatus: http.StatusUnauthorized,
			wantCode:   entitlement.CodeUserNotFound,
		},
		{
			name:       "lookup failure fails closed",
			uid:        "u1",
			findErr:    errors.New("connection refused"),
			wantStatus: http.StatusForbidden,
			wantCode:   entitlement.CodeServerError,
		},
		{
			name:       "no plan",
			uid:        "u1",
			user:       &models.User{UUID: "u1", Role: models.RoleFree, SubscriptionStatus: models.StatusInactive},
			wantStatus: http.StatusForbidden,
			wantCode:   entitlement.CodeNoSubscription,
		},
		{
			name:       "payment failed",
			uid:        "u1",
			user:       &models.User{UUID: "u1", Role: models.RolePremium, PaymentFailed: true},
			wantStatus: http.StatusForbidden,
			wantCode:   entitlement.CodePaymentFailed,
		},
		{
			name: "expired aura",
			uid:  "u1",
			user: &models.User{UUID: "u1", Role: models.RoleFree, SubscriptionStatus: models.StatusActive,
				SubscriptionPlan: models.PlanAura, SubscriptionExpiry: &past},
			wantStatus: http.StatusForbidden,
			wantCode:   entitlement.CodeNoSubscription,
		},
		{
			name:       "free plan",
			uid:        "u1",
			user:       &models.User{UUID: "u1", Role: models.RoleFree, SubscriptionPlan: models.PlanFree},
			wantStatus: http.StatusOK,
			wantAccess: entitlement.AccessFree,
		},
		{
			name: "active a7fx",
			uid:  "u1",
			user: &models.User{UUID: "u1", Role: models.RoleFree, SubscriptionStatus: models.StatusActive,
				SubscriptionPlan: models.PlanA7FX, SubscriptionExpiry: &future},
			wantStatus: http.StatusOK,
			wantAccess: entitlement.AccessA7FXElite,
		},
		{
			name:       "super admin with failed payment",
			uid:        "u1",
			user:       &models.User{UUID: "u1", Email: "Boss@Example.com", PaymentFailed: true},
			wantStatus: http.StatusOK,
			wantAccess: entitlement.AccessAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UserFinderMock)
			if tt.uid != "" {
				users.On("GetUser", mock.Anything, tt.uid).Return(tt.user, tt.findErr).Once()
			}
			obs := &observerMock{}

			var got middlewarectx.AccessContext
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got, _ = middlewarectx.AccessFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			gate := middlewarectx.AccessGate(newNoopLogger(), users, entitlement.New("boss@example.com"),
				func() time.Time { return fixedNow }, middlewarectx.WithObserver(obs))

			req := httptest.NewRequest(http.MethodGet, "/api/community/channels", nil)
			if tt.uid != "" {
				req = withUser(req, tt.uid)
			}
			rec := httptest.NewRecorder()
			gate(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			users.AssertExpectations(t)

			if tt.wantStatus == http.StatusOK {
				require.True(t, called)
				assert.Equal(t, tt.uid, got.UserID)
				assert.Equal(t, tt.wantAccess, got.AccessType)
				assert.Equal(t, []string{string(tt.wantAccess)}, obs.seen)
				return
			}

			assert.False(t, called)
			var body response.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.ErrorCode)
			assert.Equal(t, entitlement.Message(tt.wantCode), body.Message)
			assert.Equal(t, "/subscription", body.Redirect)
		})
	}
}

func TestAccessGate_CustomRedirect(t *testing.T) {
	users := new(UserFinderMock)
	users.On("GetUser", mock.Anything, "u1").Return(&models.User{UUID: "u1"}, nil)

	gate := middlewarectx.AccessGate(newNoopLogger(), users, entitlement.New(""), nil,
		middlewarectx.WithRedirect("/choose-plan"))
	rec := httptest.NewRecorder()
	gate(http.NotFoundHandler()).ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", nil), "u1"))

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/choose-plan", body.Redirect)
}

func TestRequireAccessType(t *testing.T) {
	tests := []struct {
		name       string
		access     *middlewarectx.AccessContext
		wantStatus int
	}{
		{name: "no access context", wantStatus: http.StatusForbidden},
		{name: "free user", access: &middlewarectx.AccessContext{UserID: "u1", AccessType: entitlement.AccessFree}, wantStatus: http.StatusForbidden},
		{name: "admin", access: &middlewarectx.AccessContext{UserID: "u1", AccessType: entitlement.AccessAdmin}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/subscriptions/grant", nil)
			if tt.access != nil {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.Access, *tt.access))
			}
			rec := httptest.NewRecorder()
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

			middlewarectx.RequireAccessType(newNoopLogger(), entitlement.AccessAdmin)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), entitlement.CodeForbidden)
			}
		})
	}
}
