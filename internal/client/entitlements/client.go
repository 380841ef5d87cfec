// Package entitlements содержит клиент эндпоинта /api/me для потребителей вроде RouteGuard.
//
// Ответы кэшируются по токену на короткое время, одновременные запросы по
// одному токену объединяются в один. Принудительное обновление ограничено
// token bucket; при исчерпании лимита возвращается закэшированное значение.
package entitlements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/models"
)

// Значения по умолчанию.
const (
	DefaultTTL     = 45 * time.Second
	DefaultTimeout = 10 * time.Second
	mePath         = "/api/me"
)

// ErrEmptyToken вызов без токена.
var ErrEmptyToken = errors.New("empty token")

// APIError ответ сервера с кодом не 2xx.
type APIError struct {
	Status    int    `json:"-"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Redirect  string `json:"redirect,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("entitlements: status %d: %s: %s", e.Status, e.ErrorCode, e.Message)
}

// Me тело успешного ответа /api/me.
type Me struct {
	Success      bool                     `json:"success"`
	User         models.User              `json:"user"`
	Entitlements entitlement.Entitlements `json:"entitlements"`
}

type entry struct {
	me        *Me
	fetchedAt time.Time
}

// Client кэширующий клиент /api/me. Безопасен для конкурентного использования.
type Client struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration
	now     func() time.Time
	limiter *rate.Limiter

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]entry
	// gen растёт при каждом Invalidate; загрузка, начатая до него, не пишет в кэш.
	gen map[string]uint64
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTTL задаёт время жизни записи кэша.
func WithTTL(ttl time.Duration) Option {
	return func(cl *Client) {
		if ttl > 0 {
			cl.ttl = ttl
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// WithRefreshLimit ограничивает принудительные обновления: every задаёт интервал
// пополнения, burst размер корзины.
func WithRefreshLimit(every time.Duration, burst int) Option {
	return func(cl *Client) { cl.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

// New создаёт клиент для сервера baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		ttl:     DefaultTTL,
		now:     time.Now,
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 3),
		cache:   make(map[string]entry),
		gen:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get возвращает права по токену: из кэша, если запись свежая, иначе с сервера.
func (c *Client) Get(ctx context.Context, token string) (*Me, error) {
	const op = "entitlements.Get"

	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyToken)
	}
	if me, ok := c.cached(token, true); ok {
		return me, nil
	}
	me, err := c.load(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return me, nil
}

// Refresh запрашивает права заново в обход TTL. Если лимит обновлений исчерпан
// и в кэше есть значение, возвращается оно.
func (c *Client) Refresh(ctx context.Context, token string) (*Me, error) {
	const op = "entitlements.Refresh"

	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyToken)
	}
	if !c.limiter.Allow() {
		if me, ok := c.cached(token, false); ok {
			return me, nil
		}
	}
	me, err := c.load(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return me, nil
}

// Invalidate удаляет запись токена, например при выходе пользователя.
// Запрос, уже идущий по этому токену, свой результат в кэш не положит.
func (c *Client) Invalidate(token string) {
	c.mu.Lock()
	delete(c.cache, token)
	c.gen[token]++
	c.mu.Unlock()
	c.group.Forget(token)
}

func (c *Client) cached(token string, fresh bool) (*Me, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[token]
	if !ok {
		return nil, false
	}
	if fresh && c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.me, true
}

func (c *Client) load(ctx context.Context, token string) (*Me, error) {
	v, err, _ := c.group.Do(token, func() (any, error) {
		c.mu.RLock()
		gen := c.gen[token]
		c.mu.RUnlock()

		me, err := c.fetch(ctx, token)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen[token] == gen {
			c.cache[token] = entry{me: me, fetchedAt: c.now()}
		}
		c.mu.Unlock()
		return me, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Me), nil
}

func (c *Client) fetch(ctx context.Context, token string) (*Me, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+mePath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.ErrorCode == "" {
			apiErr.ErrorCode = entitlement.CodeServerError
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}

	var me Me
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &me, nil
}
