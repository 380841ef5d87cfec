// Package routeguard решает, что показать в защищённой области клиента по
// закэшированному ответу /api/me. Decide не выполняет ввода-вывода: состояние
// приходит снаружи, FromClient берёт его из internal/client/entitlements.
package routeguard

import (
	"net/url"
	"strings"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
)

// Маршруты клиента.
const (
	SignupPath     = "/signup"
	ChoosePlanPath = "/choose-plan"
	CommunityPath  = "/community"
	UpsellPath     = "/subscription"
)

// State описывает одно из четырёх состояний охранника.
type State int

// Состояния.
const (
	StateLoading State = iota
	StateUnauthenticated
	StateUngated
	StateGated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateUngated:
		return "authenticated-ungated"
	case StateGated:
		return "authenticated-gated"
	default:
		return "unknown"
	}
}

// Action указывает, что сделать с защищённой областью.
type Action int

// Действия.
const (
	ActionRender Action = iota
	ActionPlaceholder
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionPlaceholder:
		return "placeholder"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Input закэшированное состояние клиента и запрошенный путь.
type Input struct {
	Loading       bool
	Authenticated bool
	Entitlements  entitlement.Entitlements
	Path          string
	ManageMode    bool // пользователь сам открыл страницу тарифов, чтобы сменить план
}

// Outcome результат. Target заполнен только для ActionRedirect.
type Outcome struct {
	Action Action
	Target string
}

// StateOf определяет состояние по входу.
func StateOf(in Input) State {
	switch {
	case in.Loading:
		return StateLoading
	case !in.Authenticated:
		return StateUnauthenticated
	case !in.Entitlements.CanAccessCommunity:
		return StateUngated
	default:
		return StateGated
	}
}

// Decide вычисляет исход для входа. Пока идёт загрузка, ни содержимое,
// ни редирект не выдаются.
func Decide(in Input) Outcome {
	switch StateOf(in) {
	case StateLoading:
		return Outcome{Action: ActionPlaceholder}
	case StateUnauthenticated:
		return Outcome{Action: ActionRedirect, Target: SignupTarget(in.Path)}
	case StateUngated:
		if isPath(in.Path, ChoosePlanPath) {
			return Outcome{Action: ActionRender}
		}
		return Outcome{Action: ActionRedirect, Target: ChoosePlanPath}
	default:
		// повторно продавать подписку тому, у кого уже есть доступ, нельзя
		if isPath(in.Path, UpsellPath) && !in.ManageMode {
			return Outcome{Action: ActionRedirect, Target: CommunityPath}
		}
		return Outcome{Action: ActionRender}
	}
}

// SignupTarget строит адрес регистрации с возвратом на исходный путь.
func SignupTarget(path string) string {
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return SignupPath
	}
	return SignupPath + "?next=" + url.QueryEscape(path)
}

func isPath(path, route string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSuffix(path, "/")
	return path == route || strings.HasPrefix(path, route+"/")
}
