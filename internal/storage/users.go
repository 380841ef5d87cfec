package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/community-access/internal/models"
)

const userColumns = `id, email, username, password_hash, role, subscription_status,
	subscription_plan, subscription_expiry, payment_failed, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser читает строку пользователя и нормализует роль, тариф и статус.
func scanUser(row rowScanner) (*models.User, error) {
	var (
		u            models.User
		role, status string
		plan         sql.NullString
		expiry       sql.NullTime
	)
	if err := row.Scan(&u.UUID, &u.Email, &u.Username, &u.PasswordHash, &role, &status,
		&plan, &expiry, &u.PaymentFailed, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = models.ParseRole(role)
	u.SubscriptionStatus = models.ParseStatus(status)
	u.SubscriptionPlan = models.ParsePlan(plan.String)
	if expiry.Valid {
		t := expiry.Time.UTC()
		u.SubscriptionExpiry = &t
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// CreateUser сохраняет нового пользователя и возвращает его ID.
// Если ID не задан, он генерируется.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	if user.UUID == "" {
		user.UUID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleFree
	}
	if user.SubscriptionStatus == "" {
		user.SubscriptionStatus = models.StatusInactive
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	query := s.rebind(`INSERT INTO users (id, email, username, password_hash, role,
			subscription_status, subscription_plan, subscription_expiry, payment_failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.DB.ExecContext(ctx, query,
		user.UUID, strings.ToLower(strings.TrimSpace(user.Email)), user.Username, user.PasswordHash,
		string(user.Role), string(user.SubscriptionStatus), nullString(string(user.SubscriptionPlan)),
		nullTime(user.SubscriptionExpiry), user.PaymentFailed, user.CreatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return "", fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return user.UUID, nil
}

// GetUser возвращает пользователя по его ID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email без учёта регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ApplySubscriptionChange обновляет поля подписки пользователя и возвращает
// строку после изменения. Пустое изменение только перечитывает строку.
func (s *Storage) ApplySubscriptionChange(ctx context.Context, userUID string, change models.SubscriptionChange) (*models.User, error) {
	const op = "storage.ApplySubscriptionChange"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	if change.Status != nil {
		sets = append(sets, "subscription_status = ?")
		args = append(args, string(*change.Status))
	}
	if change.Plan != nil {
		sets = append(sets, "subscription_plan = ?")
		args = append(args, nullString(string(*change.Plan)))
	}
	switch {
	case change.ClearExpiry:
		sets = append(sets, "subscription_expiry = NULL")
	case change.Expiry != nil:
		sets = append(sets, "subscription_expiry = ?")
		args = append(args, change.Expiry.UTC())
	}
	if change.PaymentFailed != nil {
		sets = append(sets, "payment_failed = ?")
		args = append(args, *change.PaymentFailed)
	}

	if len(sets) > 0 {
		query := s.rebind(`UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
		args = append(args, userUID)
		if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	u, err := s.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ExpireDue переводит активные подписки с истёкшим сроком в статус expired
// и возвращает затронутых пользователей в новом состоянии.
func (s *Storage) ExpireDue(ctx context.Context, now time.Time) ([]*models.User, error) {
	const op = "storage.ExpireDue"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users
		WHERE subscription_status = ? AND subscription_expiry IS NOT NULL AND subscription_expiry <= ?`),
		string(models.StatusActive), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var due []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		due = append(due, u)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	update := s.rebind(`UPDATE users SET subscription_status = ? WHERE id = ? AND subscription_status = ?`)
	for _, u := range due {
		if _, err := tx.ExecContext(ctx, update, string(models.StatusExpired), u.UUID, string(models.StatusActive)); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		u.SubscriptionStatus = models.StatusExpired
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return due, nil
}
