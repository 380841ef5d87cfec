package routeguard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/models"
)

var (
	entitled = entitlement.Entitlements{CanAccessCommunity: true, CanAccessAI: true, Tier: models.TierPremium}
	freeTier = entitlement.Entitlements{CanAccessCommunity: true, Tier: models.TierFree}
	gated    = entitlement.Entitlements{Tier: models.TierNone}
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		state State
		want  Outcome
	}{
		{
			name:  "loading never renders nor redirects",
			in:    Input{Loading: true, Authenticated: false, Path: "/community"},
			state: StateLoading,
			want:  Outcome{Action: ActionPlaceholder},
		},
		{
			name:  "loading with entitlements still shows placeholder",
			in:    Input{Loading: true, Authenticated: true, Entitlements: entitled, Path: "/subscription"},
			state: StateLoading,
			want:  Outcome{Action: ActionPlaceholder},
		},
		{
			name:  "unauthenticated keeps requested path",
			in:    Input{Path: "/community/trade-signals?tab=1"},
			state: StateUnauthenticated,
			want:  Outcome{Action: ActionRedirect, Target: "/signup?next=%2Fcommunity%2Ftrade-signals%3Ftab%3D1"},
		},
		{
			name:  "unauthenticated with external path drops next",
			in:    Input{Path: "//evil.example"},
			state: StateUnauthenticated,
			want:  Outcome{Action: ActionRedirect, Target: "/signup"},
		},
		{
			name:  "ungated goes to plan selection",
			in:    Input{Authenticated: true, Entitlements: gated, Path: "/community"},
			state: StateUngated,
			want:  Outcome{Action: ActionRedirect, Target: "/choose-plan"},
		},
		{
			name:  "ungated on plan selection renders",
			in:    Input{Authenticated: true, Entitlements: gated, Path: "/choose-plan"},
			state: StateUngated,
			want:  Outcome{Action: ActionRender},
		},
		{
			name:  "entitled renders community",
			in:    Input{Authenticated: true, Entitlements: entitled, Path: "/community"},
			state: StateGated,
			want:  Outcome{Action: ActionRender},
		},
		{
			name:  "entitled on upsell is sent to community",
			in:    Input{Authenticated: true, Entitlements: entitled, Path: "/subscription"},
			state: StateGated,
			want:  Outcome{Action: ActionRedirect, Target: "/community"},
		},
		{
			name:  "upsell subpath and trailing slash",
			in:    Input{Authenticated: true, Entitlements: freeTier, Path: "/subscription/plans/"},
			state: StateGated,
			want:  Outcome{Action: ActionRedirect, Target: "/community"},
		},
		{
			name:  "manage mode renders upsell",
			in:    Input{Authenticated: true, Entitlements: entitled, Path: "/subscription", ManageMode: true},
			state: StateGated,
			want:  Outcome{Action: ActionRender},
		},
		{
			name:  "similar prefix is not upsell",
			in:    Input{Authenticated: true, Entitlements: entitled, Path: "/subscriptions-faq"},
			state: StateGated,
			want:  Outcome{Action: ActionRender},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.state, StateOf(tt.in))
			assert.Equal(t, tt.want, Decide(tt.in))
		})
	}
}

func TestDecide_NoDoubleUpsell(t *testing.T) {
	for _, tier := range []models.Tier{models.TierFree, models.TierPremium, models.TierElite, models.TierAdmin} {
		in := Input{
			Authenticated: true,
			Entitlements:  entitlement.Entitlements{CanAccessCommunity: true, Tier: tier},
			Path:          UpsellPath,
		}
		out := Decide(in)
		assert.NotEqual(t, ActionRender, out.Action, string(tier))
		assert.Equal(t, CommunityPath, out.Target, string(tier))
	}
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "authenticated-gated", StateGated.String())
	assert.Equal(t, "redirect", ActionRedirect.String())
	assert.Equal(t, "unknown", State(42).String())
}
