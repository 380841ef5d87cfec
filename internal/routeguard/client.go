package routeguard

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/magabrotheeeer/community-access/internal/client/entitlements"
)

// Source отдаёт права по токену: Get из кэша, Refresh в обход него.
// Реализуется *entitlements.Client.
type Source interface {
	Get(ctx context.Context, token string) (*entitlements.Me, error)
	Refresh(ctx context.Context, token string) (*entitlements.Me, error)
}

// Request описывает переход клиента на путь Path.
type Request struct {
	Token      string
	Path       string
	ManageMode bool
	// Refresh запрашивает права в обход кэша, например сразу после оплаты.
	Refresh bool
}

// FromClient получает права через src и решает, что показать.
//
// Пустой токен и ответ 401 дают состояние без аутентификации. Любая другая
// ошибка оставляет заглушку и возвращается вызывающему: содержимое при сбое не показывается.
func FromClient(ctx context.Context, src Source, req Request) (Outcome, error) {
	const op = "routeguard.FromClient"

	in := Input{Path: req.Path, ManageMode: req.ManageMode}
	if req.Token == "" {
		return Decide(in), nil
	}

	load := src.Get
	if req.Refresh {
		load = src.Refresh
	}
	me, err := load(ctx, req.Token)
	if err != nil {
		var apiErr *entitlements.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return Decide(in), nil
		}
		in.Loading = true
		return Decide(in), fmt.Errorf("%s: %w", op, err)
	}

	in.Authenticated = true
	in.Entitlements = me.Entitlements
	return Decide(in), nil
}

var _ Source = (*entitlements.Client)(nil)
