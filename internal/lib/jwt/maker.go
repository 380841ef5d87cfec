// Package jwt реализует выпуск и проверку подписанных токенов доступа.
//
// Maker выпускает HS256-токен с идентификатором пользователя и ролью;
// ParseToken проверяет подпись, алгоритм и срок действия.
package jwt

import (
	"time"
)

// Maker описывает выпуск и разбор токенов.
type Maker interface {
	GenerateToken(userUID, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на общем секрете и времени жизни токена.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	issuer    string
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		issuer:    "community-access",
		now:       time.Now,
	}
}
