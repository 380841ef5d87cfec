// Package account реализует регистрацию и вход пользователей сообщества.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/community-access/internal/lib/password"
	"github.com/magabrotheeeer/community-access/internal/lib/sl"
	"github.com/magabrotheeeer/community-access/internal/models"
	"github.com/magabrotheeeer/community-access/internal/storage"
)

var (
	// ErrEmailTaken возвращается при регистрации на уже занятый email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials возвращается при неверной паре email и пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserRepository описывает хранилище пользователей.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenMaker выпускает токены доступа.
type TokenMaker interface {
	GenerateToken(userUID, role string) (string, error)
}

// Service реализует бизнес-логику регистрации и входа.
type Service struct {
	users  UserRepository
	tokens TokenMaker
	log    *slog.Logger
}

// New создаёт Service.
func New(users UserRepository, tokens TokenMaker, log *slog.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		log:    log,
	}
}

// Session результат успешной регистрации или входа.
type Session struct {
	User  *models.User
	Token string
}

// Register создаёт пользователя с ролью free, неактивной подпиской и без тарифа,
// затем выпускает для него токен.
func (s *Service) Register(ctx context.Context, email, username, rawPassword string) (*Session, error) {
	const op = "account.Register"

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		Email:              normalizeEmail(email),
		Username:           strings.TrimSpace(username),
		PasswordHash:       hashed,
		Role:               models.RoleFree,
		SubscriptionStatus: models.StatusInactive,
		SubscriptionPlan:   models.PlanNone,
	}

	id, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.UUID = id
	s.log.Info("user registered", sl.UserUID(id))

	token, err := s.tokens.GenerateToken(id, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Session{User: &user, Token: token}, nil
}

// Login проверяет пароль и выпускает токен. Отсутствие пользователя
// и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (*Session, error) {
	const op = "account.Login"

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.tokens.GenerateToken(user.UUID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Session{User: user, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
