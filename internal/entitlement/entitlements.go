package entitlement

import "github.com/magabrotheeeer/community-access/internal/models"

// Entitlements сводка прав для клиента (/api/me).
type Entitlements struct {
	CanAccessCommunity bool        `json:"canAccessCommunity"`
	CanAccessAI        bool        `json:"canAccessAI"`
	Tier               models.Tier `json:"tier"`
}

// Summarize строит сводку прав из решения.
func Summarize(d Decision) Entitlements {
	tier := TierOf(d)
	return Entitlements{
		CanAccessCommunity: d.HasAccess,
		CanAccessAI:        tier.Rank() >= models.TierPremium.Rank(),
		Tier:               tier,
	}
}

// TierOf возвращает уровень доступа к каналам. Отказ всегда даёт TierNone.
func TierOf(d Decision) models.Tier {
	if !d.HasAccess {
		return models.TierNone
	}
	switch d.AccessType {
	case AccessAdmin:
		return models.TierAdmin
	case AccessA7FXElite:
		return models.TierElite
	case AccessAuraFX:
		return models.TierPremium
	case AccessFree:
		return models.TierFree
	default:
		return models.TierNone
	}
}

// CanSeeChannel сообщает, виден ли канал обладателю решения d.
func CanSeeChannel(d Decision, ch models.Channel) bool {
	tier := TierOf(d)
	if tier == models.TierNone {
		return false
	}
	return tier.Rank() >= ch.MinTier.Rank() && ch.MinTier.Rank() > 0
}

// VisibleChannels фильтрует каталог каналов по решению, сохраняя порядок.
func VisibleChannels(d Decision, channels []models.Channel) []models.Channel {
	result := make([]models.Channel, 0, len(channels))
	for _, ch := range channels {
		if CanSeeChannel(d, ch) {
			result = append(result, ch)
		}
	}
	return result
}
