// Package coingecko is the aggregator-API source adapter. It owns
// response parsing, ticker filtering and exchange ranking for every coin
// the DEX subgraph cannot serve.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/resolver"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/transport"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	// marketsPageSize is the upstream's fixed page size for the
	// markets-list endpoint.
	marketsPageSize = 250
)

type Provider struct {
	baseURL   string
	client    *transport.Client
	resolver  *resolver.Resolver
	exchanges ExchangeMeta
	log       *zap.SugaredLogger
	now       func() time.Time
}

func New(baseURL string, client *transport.Client, res *resolver.Resolver, exchanges ExchangeMeta, log *zap.SugaredLogger) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		resolver:  res,
		exchanges: exchanges,
		log:       log,
		now:       time.Now,
	}
}

// TopMarkets returns up to count records ordered by market cap. Pages are
// walked with an explicit accumulator: a page shorter than its own page
// size means the upstream ran out of data, so the walk ends there even if
// count is not yet satisfied.
func (p *Provider) TopMarkets(ctx context.Context, currency string, period market.TimePeriod, count int) ([]market.Record, error) {
	var out []market.Record
	remaining := count
	page := 1

	for remaining > 0 {
		records, err := p.marketsPage(ctx, currency, period, nil, marketsPageSize, page)
		if err != nil {
			return nil, fmt.Errorf("markets page %d: %w", page, err)
		}

		take := min(len(records), remaining)
		for _, r := range records[:take] {
			out = append(out, r.Record)
		}
		remaining -= take

		if len(records) < marketsPageSize {
			break
		}
		page++
	}

	return out, nil
}

// Markets fetches records for the given coins in one request. Coins with
// no identifier for this source are silently excluded.
func (p *Provider) Markets(ctx context.Context, currency string, period market.TimePeriod, coinTypes []coin.Type) ([]market.Record, error) {
	ids := make([]string, 0, len(coinTypes))
	byID := make(map[string]coin.Type, len(coinTypes))
	for _, coinType := range coinTypes {
		id, err := p.resolver.ProviderID(coinType, resolver.SourceCoinGecko)
		if err != nil {
			if errors.Is(err, resolver.ErrNotFound) {
				p.log.Debugf("[COINGECKO] skipping %s: no provider id", coinType.ID())
				continue
			}
			return nil, err
		}
		ids = append(ids, id)
		byID[id] = coinType
	}
	if len(ids) == 0 {
		return []market.Record{}, nil
	}

	records, err := p.marketsPage(ctx, currency, period, ids, len(ids), 1)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if coinType, ok := byID[records[i].upstreamID]; ok {
			records[i].Record.CoinType = coinType
		}
	}

	out := make([]market.Record, len(records))
	for i, r := range records {
		out[i] = r.Record
	}
	return out, nil
}

// pagedRecord keeps the upstream id alongside the mapped record so
// callers can tie records back to requested coins.
type pagedRecord struct {
	market.Record
	upstreamID string
}

func (p *Provider) marketsPage(ctx context.Context, currency string, period market.TimePeriod, ids []string, perPage, page int) ([]pagedRecord, error) {
	q := url.Values{}
	q.Set("vs_currency", currency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", fmt.Sprintf("%d", perPage))
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("price_change_percentage", string(period))
	if len(ids) > 0 {
		q.Set("ids", strings.Join(ids, ","))
	}

	var items []map[string]json.RawMessage
	if err := p.client.GetJSON(ctx, p.baseURL+"/coins/markets?"+q.Encode(), &items); err != nil {
		return nil, err
	}

	records := make([]pagedRecord, 0, len(items))
	for _, item := range items {
		rec, err := p.mapMarketItem(item, currency, period)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *Provider) mapMarketItem(item map[string]json.RawMessage, currency string, period market.TimePeriod) (pagedRecord, error) {
	id, err := stringField(item, "id", fieldRequired)
	if err != nil {
		return pagedRecord{}, err
	}
	symbol, err := stringField(item, "symbol", fieldRequired)
	if err != nil {
		return pagedRecord{}, err
	}
	rate, _, err := decimalField(item, "current_price", fieldRequired)
	if err != nil {
		return pagedRecord{}, err
	}

	change24h, _, _ := decimalField(item, "price_change_24h", fieldZero)
	volume, _, _ := decimalField(item, "total_volume", fieldZero)
	marketCap, _, _ := decimalField(item, "market_cap", fieldZero)
	supply, _, _ := decimalField(item, "circulating_supply", fieldZero)
	totalSupply, _, _ := decimalField(item, "total_supply", fieldZero)

	openDay := rate.Sub(change24h)

	diffField := fmt.Sprintf("price_change_percentage_%s_in_currency", period)
	diff, _, _ := decimalField(item, diffField, fieldZero)
	if openDay.IsZero() {
		diff = market.DiffPercent(rate, openDay)
	}

	coinType, _ := p.resolver.CoinType(resolver.SourceCoinGecko, id)

	rateDiffs := map[market.TimePeriod]map[string]decimal.Decimal{
		period: {currency: diff},
	}

	return pagedRecord{
		upstreamID: id,
		Record: market.Record{
			CoinType:     coinType,
			CoinCode:     strings.ToUpper(symbol),
			CurrencyCode: currency,
			Rate:         rate,
			RateOpenDay:  openDay,
			Diff:         diff,
			Volume:       volume,
			MarketCap:    marketCap,
			Supply:       supply,
			TotalSupply:  totalSupply,
			RateDiffs:    rateDiffs,
		},
	}, nil
}
