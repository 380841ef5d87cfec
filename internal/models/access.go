package models

import "strings"

// Role каноническая роль пользователя.
type Role string

// Канонические роли. Устаревшие синонимы приводятся к ним в ParseRole.
const (
	RoleFree       Role = "free"
	RolePremium    Role = "premium"
	RoleElite      Role = "elite"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Plan канонический тариф подписки.
type Plan string

// Канонические тарифы. PlanNone означает, что пользователь ещё не выбирал тариф.
const (
	PlanNone Plan = ""
	PlanFree Plan = "free"
	PlanAura Plan = "aura"
	PlanA7FX Plan = "a7fx"
)

// Status статус подписки.
type Status string

// Статусы подписки.
const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// ParseRole приводит сырое значение роли к каноническому.
// Неизвестные значения возвращаются в нижнем регистре и не совпадают ни с одной константой.
func ParseRole(raw string) Role {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "free", "user":
		return RoleFree
	case "premium", "aura":
		return RolePremium
	case "elite", "a7fx":
		return RoleElite
	case "admin":
		return RoleAdmin
	case "super_admin", "superadmin":
		return RoleSuperAdmin
	default:
		return Role(v)
	}
}

// ParsePlan приводит сырое значение тарифа к каноническому.
// Сравнение регистронезависимое: устаревший литерал "A7FX" даёт PlanA7FX.
func ParsePlan(raw string) Plan {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "":
		return PlanNone
	case "free":
		return PlanFree
	case "aura", "premium":
		return PlanAura
	case "a7fx", "elite":
		return PlanA7FX
	default:
		return Plan(v)
	}
}

// ParseStatus приводит сырое значение статуса к каноническому.
// Пустое или неизвестное значение считается неактивной подпиской.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		return StatusActive
	case "cancelled", "canceled":
		return StatusCancelled
	case "expired":
		return StatusExpired
	default:
		return StatusInactive
	}
}

// IsKnown сообщает, является ли тариф одним из канонических непустых значений.
func (p Plan) IsKnown() bool {
	return p == PlanFree || p == PlanAura || p == PlanA7FX
}

// IsPaid сообщает, является ли тариф платным.
func (p Plan) IsPaid() bool {
	return p == PlanAura || p == PlanA7FX
}

// IsAdmin сообщает, даёт ли роль административный доступ.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}
