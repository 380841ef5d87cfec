package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/community-access/internal/config"
	"github.com/magabrotheeeer/community-access/internal/migrations"
	"github.com/magabrotheeeer/community-access/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его ID
func (f *TestDataFactory) CreateUser(t *testing.T, mutate func(u *models.User)) string {
	t.Helper()
	u := models.User{
		UUID:               uuid.New().String(),
		Email:              uuid.New().String()[:8] + "@example.com",
		Username:           "trader",
		PasswordHash:       "hashedpassword",
		Role:               models.RoleFree,
		SubscriptionStatus: models.StatusInactive,
	}
	if mutate != nil {
		mutate(&u)
	}
	id, err := f.storage.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return id
}

// SetRawRole записывает значение роли без нормализации
func (f *TestDataFactory) SetRawRole(t *testing.T, userUID, role string) {
	t.Helper()
	_, err := f.storage.DB.Exec(f.storage.rebind(`UPDATE users SET role = ? WHERE id = ?`), role, userUID)
	require.NoError(t, err)
}

// SetRawPlan записывает значение тарифа без нормализации
func (f *TestDataFactory) SetRawPlan(t *testing.T, userUID, plan string) {
	t.Helper()
	_, err := f.storage.DB.Exec(f.storage.rebind(`UPDATE users SET subscription_plan = ? WHERE id = ?`), plan, userUID)
	require.NoError(t, err)
}

type dialect struct {
	name   string
	driver string
	start  func(t *testing.T) string
}

var dialects = []dialect{
	{name: "mysql", driver: DriverMySQL, start: startMySQL},
	{name: "postgres", driver: DriverPgx, start: startPostgres},
}

func startMySQL(t *testing.T) string {
	ctx := context.Background()
	c, err := mysql.Run(ctx,
		"mysql:8.0.36",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("testuser"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start mysql container")
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	dsn, err := c.ConnectionString(ctx)
	require.NoError(t, err)
	return dsn
}

func startPostgres(t *testing.T) string {
	ctx := context.Background()
	c, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// setupTestDatabase поднимает контейнер базы, применяет миграции и возвращает хранилище
func setupTestDatabase(t *testing.T, d dialect) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}

	dsn := d.start(t)

	// Пробуем подключиться несколько раз с ретраями
	var (
		storage *Storage
		err     error
	)
	for range 10 {
		storage, err = New(context.Background(), config.Storage{Driver: d.driver, DSN: dsn})
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")
	t.Cleanup(func() { _ = storage.Close() })

	path, err := filepath.Abs(filepath.Join("..", "..", "migrations", d.name))
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, d.driver, path))

	return storage
}

// forEachDialect запускает тест на каждой поддерживаемой базе
func forEachDialect(t *testing.T, fn func(t *testing.T, s *Storage)) {
	for _, d := range dialects {
		t.Run(d.name, func(t *testing.T) {
			fn(t, setupTestDatabase(t, d))
		})
	}
}
