// Package fiat supplies fiat-to-fiat cross rates for quote-currency
// conversion. Rates are fetched from a JSON rates API and held for a TTL
// so repeated conversions inside one refresh don't refetch.
package fiat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/transport"
)

const DefaultBaseURL = "https://api.exchangerate.host"

type cacheKey struct {
	from string
	to   string
}

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

type Client struct {
	baseURL string
	client  *transport.Client
	ttl     time.Duration
	log     *zap.SugaredLogger
	now     func() time.Time

	mu    sync.RWMutex
	rates map[cacheKey]cachedRate
}

func New(baseURL string, client *transport.Client, ttl time.Duration, log *zap.SugaredLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
		rates:   make(map[cacheKey]cachedRate),
	}
}

// Rate returns the from->to conversion rate. Same-currency pairs resolve
// to 1 without a network round-trip.
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToLower(from)
	to = strings.ToLower(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := cacheKey{from: from, to: to}
	c.mu.RLock()
	cached, ok := c.rates[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		return cached.rate, nil
	}

	u := fmt.Sprintf("%s/latest?base=%s&symbols=%s", c.baseURL, strings.ToUpper(from), strings.ToUpper(to))

	var resp struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := c.client.GetJSON(ctx, u, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("fiat rate %s/%s: %w", from, to, err)
	}

	rate, ok := resp.Rates[strings.ToUpper(to)]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("fiat rate %s/%s missing from response", from, to)
	}

	c.mu.Lock()
	c.rates[key] = cachedRate{rate: rate, fetchedAt: c.now()}
	c.mu.Unlock()

	return rate, nil
}
