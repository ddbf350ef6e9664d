// Package dealapi é o cliente tipado da API de ofertas usado pelas telas.
// Toda chamada passa pelo gateway: rate limit da ação, cota de visitante
// (apenas busca), cache e deduplicação.
package dealapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"deal-gateway/gateway/domain"
)

var (
	ErrRateLimited   = errors.New("dealapi: rate limited")
	ErrQuotaExceeded = errors.New("dealapi: daily guest search limit reached")
	ErrEmptyQuery    = errors.New("dealapi: empty search query")
)

// RateLimitedError carrega a ação bloqueada e quando tentar de novo.
type RateLimitedError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("dealapi: %s rate limited, retry in %s", e.Action, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// Gateway é o que o cliente usa de gateway.Gateway.
type Gateway interface {
	FetchJSON(ctx context.Context, url string, opts domain.Options) (any, error)
	Allow(ctx context.Context, action string) domain.Decision
	CheckAllowed(ctx context.Context, authenticated bool) bool
	Increment(ctx context.Context, authenticated bool) int
	Remaining(count int) int
	LowRemaining(count int) bool
}

type Client struct {
	gw   Gateway
	base string
}

func New(gw Gateway, baseURL string) *Client {
	return &Client{gw: gw, base: strings.TrimRight(baseURL, "/")}
}

type SearchParams struct {
	Query     string   `url:"q"`
	Platforms []string `url:"platform,omitempty"`
	MaxPrice  float64  `url:"max_price,omitempty"`
	Page      int      `url:"page,omitempty"`
	Lang      string   `url:"lang,omitempty"`
}

type SearchResult struct {
	Data any
	// GuestRemaining é -1 para usuário logado ou quando a cota não foi registrada.
	GuestRemaining int
	LowRemaining   bool
}

// Search busca ofertas. Visitantes consomem uma busca da cota diária
// somente quando a chamada ao upstream dá certo.
func (c *Client) Search(ctx context.Context, authenticated bool, p SearchParams) (SearchResult, error) {
	if strings.TrimSpace(p.Query) == "" {
		return SearchResult{}, ErrEmptyQuery
	}
	if err := c.allow(ctx, domain.ActionSearch); err != nil {
		return SearchResult{}, err
	}
	if !c.gw.CheckAllowed(ctx, authenticated) {
		return SearchResult{}, ErrQuotaExceeded
	}

	vals, err := query.Values(p)
	if err != nil {
		return SearchResult{}, fmt.Errorf("dealapi: encode search params: %w", err)
	}
	data, err := c.gw.FetchJSON(ctx, c.base+"/search", domain.Options{"query": vals})
	if err != nil {
		return SearchResult{}, err
	}

	n := c.gw.Increment(ctx, authenticated)
	return SearchResult{
		Data:           data,
		GuestRemaining: c.gw.Remaining(n),
		LowRemaining:   c.gw.LowRemaining(n),
	}, nil
}

func (c *Client) Deal(ctx context.Context, id string) (any, error) {
	if err := c.allow(ctx, domain.ActionDeal); err != nil {
		return nil, err
	}
	return c.gw.FetchJSON(ctx, c.base+"/deals/"+url.PathEscape(id), nil)
}

// GenerateLink pede o link de afiliado de uma oferta.
func (c *Client) GenerateLink(ctx context.Context, dealID string) (any, error) {
	if err := c.allow(ctx, domain.ActionGenerateLink); err != nil {
		return nil, err
	}
	return c.gw.FetchJSON(ctx, c.base+"/deals/"+url.PathEscape(dealID)+"/link", nil)
}

type WishlistParams struct {
	UserID string `url:"user"`
	Page   int    `url:"page,omitempty"`
}

func (c *Client) Wishlist(ctx context.Context, p WishlistParams) (any, error) {
	if err := c.allow(ctx, domain.ActionWishlist); err != nil {
		return nil, err
	}
	vals, err := query.Values(p)
	if err != nil {
		return nil, fmt.Errorf("dealapi: encode wishlist params: %w", err)
	}
	return c.gw.FetchJSON(ctx, c.base+"/wishlist", domain.Options{"query": vals})
}

func (c *Client) allow(ctx context.Context, action domain.Action) error {
	dec := c.gw.Allow(ctx, string(action))
	if !dec.Allowed {
		return &RateLimitedError{Action: string(action), RetryAfter: dec.RetryAfter}
	}
	return nil
}
