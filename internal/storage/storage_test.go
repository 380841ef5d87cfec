package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/community-access/internal/config"
	"github.com/magabrotheeeer/community-access/internal/models"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		query  string
		want   string
	}{
		{name: "mysql untouched", driver: DriverMySQL, query: "SELECT a FROM t WHERE x = ? AND y = ?", want: "SELECT a FROM t WHERE x = ? AND y = ?"},
		{name: "pgx numbered", driver: DriverPgx, query: "SELECT a FROM t WHERE x = ? AND y = ?", want: "SELECT a FROM t WHERE x = $1 AND y = $2"},
		{name: "no placeholders", driver: DriverPgx, query: "SELECT 1", want: "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rebind(tt.driver, tt.query))
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1045}))
	assert.True(t, isDuplicate(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isDuplicate(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isDuplicate(errors.New("boom")))
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), config.Storage{Driver: "sqlite", DSN: "x"})
	require.Error(t, err)
}

func TestNew_BadMySQLDSN(t *testing.T) {
	_, err := New(context.Background(), config.Storage{Driver: DriverMySQL, DSN: "::not a dsn"})
	require.Error(t, err)
}

func TestStorage_Users(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Storage) {
		ctx := context.Background()
		f := NewTestDataFactory(s)

		t.Run("create and get", func(t *testing.T) {
			id := f.CreateUser(t, func(u *models.User) { u.Email = "  Mixed@Example.COM " })

			got, err := s.GetUser(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, got.UUID)
			assert.Equal(t, "mixed@example.com", got.Email)
			assert.Equal(t, models.RoleFree, got.Role)
			assert.Equal(t, models.StatusInactive, got.SubscriptionStatus)
			assert.Equal(t, models.PlanNone, got.SubscriptionPlan)
			assert.Nil(t, got.SubscriptionExpiry)
			assert.False(t, got.PaymentFailed)

			byEmail, err := s.GetUserByEmail(ctx, "MIXED@example.com")
			require.NoError(t, err)
			assert.Equal(t, id, byEmail.UUID)
		})

		t.Run("duplicate email", func(t *testing.T) {
			f.CreateUser(t, func(u *models.User) { u.Email = "dup@example.com" })
			_, err := s.CreateUser(ctx, models.User{Email: "dup@example.com", Username: "x", PasswordHash: "h"})
			require.ErrorIs(t, err, ErrUserExists)
		})

		t.Run("not found", func(t *testing.T) {
			_, err := s.GetUser(ctx, uuid.New().String())
			require.ErrorIs(t, err, ErrUserNotFound)
			_, err = s.GetUserByEmail(ctx, "nobody@example.com")
			require.ErrorIs(t, err, ErrUserNotFound)
		})

		t.Run("legacy values are normalized", func(t *testing.T) {
			id := f.CreateUser(t, nil)
			f.SetRawRole(t, id, "A7FX")
			f.SetRawPlan(t, id, "A7FX")

			got, err := s.GetUser(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.RoleElite, got.Role)
			assert.Equal(t, models.PlanA7FX, got.SubscriptionPlan)
		})

		t.Run("apply subscription change", func(t *testing.T) {
			id := f.CreateUser(t, nil)
			status := models.StatusActive
			plan := models.PlanAura
			expiry := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Millisecond)
			failed := false

			got, err := s.ApplySubscriptionChange(ctx, id, models.SubscriptionChange{
				Status: &status, Plan: &plan, Expiry: &expiry, PaymentFailed: &failed,
			})
			require.NoError(t, err)
			assert.Equal(t, models.StatusActive, got.SubscriptionStatus)
			assert.Equal(t, models.PlanAura, got.SubscriptionPlan)
			require.NotNil(t, got.SubscriptionExpiry)
			assert.WithinDuration(t, expiry, *got.SubscriptionExpiry, time.Millisecond)

			cancelled := models.StatusCancelled
			free := models.PlanFree
			got, err = s.ApplySubscriptionChange(ctx, id, models.SubscriptionChange{
				Status: &cancelled, Plan: &free, ClearExpiry: true,
			})
			require.NoError(t, err)
			assert.Equal(t, models.StatusCancelled, got.SubscriptionStatus)
			assert.Equal(t, models.PlanFree, got.SubscriptionPlan)
			assert.Nil(t, got.SubscriptionExpiry)

			// повторное применение того же изменения не ошибка
			_, err = s.ApplySubscriptionChange(ctx, id, models.SubscriptionChange{Plan: &free})
			require.NoError(t, err)
		})

		t.Run("apply change to missing user", func(t *testing.T) {
			free := models.PlanFree
			_, err := s.ApplySubscriptionChange(ctx, uuid.New().String(), models.SubscriptionChange{Plan: &free})
			require.ErrorIs(t, err, ErrUserNotFound)
		})

		t.Run("expire due", func(t *testing.T) {
			now := time.Now().UTC()
			past := now.Add(-time.Hour)
			future := now.Add(time.Hour)
			due := f.CreateUser(t, func(u *models.User) {
				u.SubscriptionStatus = models.StatusActive
				u.SubscriptionPlan = models.PlanAura
				u.SubscriptionExpiry = &past
			})
			notDue := f.CreateUser(t, func(u *models.User) {
				u.SubscriptionStatus = models.StatusActive
				u.SubscriptionPlan = models.PlanAura
				u.SubscriptionExpiry = &future
			})

			expired, err := s.ExpireDue(ctx, now)
			require.NoError(t, err)

			ids := make([]string, 0, len(expired))
			for _, u := range expired {
				ids = append(ids, u.UUID)
				assert.Equal(t, models.StatusExpired, u.SubscriptionStatus)
			}
			assert.Contains(t, ids, due)
			assert.NotContains(t, ids, notDue)

			got, err := s.GetUser(ctx, due)
			require.NoError(t, err)
			assert.Equal(t, models.StatusExpired, got.SubscriptionStatus)

			again, err := s.ExpireDue(ctx, now)
			require.NoError(t, err)
			for _, u := range again {
				assert.NotEqual(t, due, u.UUID)
			}
		})
	})
}

func TestStorage_Channels(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Storage) {
		channels, err := s.ListChannels(context.Background())
		require.NoError(t, err)
		require.Len(t, channels, 7)
		assert.Equal(t, "welcome", channels[0].ID)
		assert.Equal(t, models.TierFree, channels[0].MinTier)
		assert.Equal(t, "staff", channels[len(channels)-1].ID)
		assert.Equal(t, models.TierAdmin, channels[len(channels)-1].MinTier)
	})
}

func TestStorage_AccessEvents(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Storage) {
		ctx := context.Background()
		userUID := uuid.New().String()
		expiry := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Millisecond)
		ev := models.AccessEvent{
			ID:         uuid.New().String(),
			UserUID:    userUID,
			Kind:       models.EventGranted,
			Actor:      "admin-1",
			Plan:       models.PlanA7FX,
			Status:     models.StatusActive,
			Expiry:     &expiry,
			OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
		}

		require.NoError(t, s.InsertAccessEvent(ctx, ev))
		// повторная доставка
		require.NoError(t, s.InsertAccessEvent(ctx, ev))
		require.NoError(t, s.InsertAccessEvent(ctx, models.AccessEvent{
			UserUID:    userUID,
			Kind:       models.EventRevoked,
			Actor:      "admin-1",
			Plan:       models.PlanFree,
			Status:     models.StatusCancelled,
			OccurredAt: ev.OccurredAt.Add(time.Minute),
		}))

		events, err := s.ListAccessEvents(ctx, userUID, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, models.EventRevoked, events[0].Kind)
		assert.Nil(t, events[0].Expiry)
		assert.Equal(t, ev.ID, events[1].ID)
		assert.Equal(t, models.PlanA7FX, events[1].Plan)
		require.NotNil(t, events[1].Expiry)
		assert.WithinDuration(t, expiry, *events[1].Expiry, time.Millisecond)
	})
}

func TestStorage_Webhooks(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *Storage) {
		ctx := context.Background()
		id := "evt_" + uuid.New().String()

		seen, err := s.WebhookProcessed(ctx, id)
		require.NoError(t, err)
		assert.False(t, seen)

		require.NoError(t, s.RecordWebhook(ctx, id, "payment.succeeded", time.Now()))
		require.NoError(t, s.RecordWebhook(ctx, id, "payment.succeeded", time.Now()))

		seen, err = s.WebhookProcessed(ctx, id)
		require.NoError(t, err)
		assert.True(t, seen)
	})
}
