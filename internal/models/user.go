// Package models содержит доменную модель пользователя сообщества,
// канонические перечисления ролей, тарифов и статусов подписки,
// а также структуры каналов и событий изменения доступа.
package models

import (
	"errors"
	"time"
)

// User представляет строку таблицы users. Поля роли, тарифа и статуса
// нормализуются на границе хранилища, поэтому здесь всегда лежат канонические значения.
type User struct {
	UUID               string     `json:"id"`                           // Уникальный идентификатор пользователя
	Email              string     `json:"email"`                        // Электронная почта в нижнем регистре
	Username           string     `json:"username"`                     // Отображаемое имя
	PasswordHash       string     `json:"-"`                            // Хэш пароля пользователя
	Role               Role       `json:"role"`                         // Роль пользователя
	SubscriptionStatus Status     `json:"subscriptionStatus"`           // Статус подписки
	SubscriptionPlan   Plan       `json:"subscriptionPlan,omitempty"`   // Выбранный тариф, пустой если не выбран
	SubscriptionExpiry *time.Time `json:"subscriptionExpiry,omitempty"` // Дата окончания оплаченного периода
	PaymentFailed      bool       `json:"paymentFailed"`                // Последний платёж не прошёл
	CreatedAt          time.Time  `json:"createdAt"`
}

// SubscriptionChange описывает изменение полей подписки, применяемое к строке пользователя.
// Nil-поля не изменяются.
type SubscriptionChange struct {
	Status        *Status
	Plan          *Plan
	Expiry        *time.Time
	ClearExpiry   bool
	PaymentFailed *bool
}

// ErrUserNotFound возвращается хранилищем, если строки пользователя нет.
var ErrUserNotFound = errors.New("user not found")
