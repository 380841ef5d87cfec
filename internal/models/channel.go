package models

// Tier уровень доступа к каналам сообщества.
type Tier string

// Уровни доступа в порядке возрастания.
const (
	TierNone    Tier = "none"
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierElite   Tier = "elite"
	TierAdmin   Tier = "admin"
)

// Rank возвращает порядковый номер уровня; неизвестный уровень ниже всех.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 1
	case TierPremium:
		return 2
	case TierElite:
		return 3
	case TierAdmin:
		return 4
	default:
		return 0
	}
}

// Channel представляет канал чата сообщества.
type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MinTier     Tier   `json:"minTier"` // Минимальный уровень, с которого канал виден
	Position    int    `json:"position"`
}
