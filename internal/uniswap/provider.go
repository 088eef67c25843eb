// Package uniswap is the DEX-subgraph source adapter. It serves
// Ethereum-family coins only: token prices come in ETH terms from the
// subgraph and convert to the quote currency through the current ETH
// price and, when the quote is not USD, a fiat cross-rate.
package uniswap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/resolver"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/transport"
)

const DefaultSubgraphURL = "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v2"

// FiatRateSource converts between fiat currencies. Implementations
// return an identity rate when both legs match.
type FiatRateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// BlockHeightSource maps elapsed-time periods to on-chain block numbers.
type BlockHeightSource interface {
	Heights(ctx context.Context, periods []market.TimePeriod) (map[market.TimePeriod]uint64, error)
}

type Provider struct {
	subgraphURL string
	client      *transport.Client
	resolver    *resolver.Resolver
	fiat        FiatRateSource
	blocks      BlockHeightSource
	log         *zap.SugaredLogger
	now         func() time.Time
}

func New(subgraphURL string, client *transport.Client, res *resolver.Resolver, fiat FiatRateSource, blocks BlockHeightSource, log *zap.SugaredLogger) *Provider {
	if subgraphURL == "" {
		subgraphURL = DefaultSubgraphURL
	}
	return &Provider{
		subgraphURL: subgraphURL,
		client:      client,
		resolver:    res,
		fiat:        fiat,
		blocks:      blocks,
		log:         log,
		now:         time.Now,
	}
}

type graphRequest struct {
	Query string `json:"query"`
}

type graphError struct {
	Message string `json:"message"`
}

func (p *Provider) query(ctx context.Context, query string, data any) error {
	var resp struct {
		Data   any          `json:"data"`
		Errors []graphError `json:"errors"`
	}
	resp.Data = data

	if err := p.client.PostJSON(ctx, p.subgraphURL, graphRequest{Query: query}, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("subgraph: %s", resp.Errors[0].Message)
	}
	return nil
}

type tokenNode struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	DerivedETH     decimal.Decimal `json:"derivedETH"`
	TradeVolumeUSD decimal.Decimal `json:"tradeVolumeUSD"`
	TotalLiquidity decimal.Decimal `json:"totalLiquidity"`
}

type bundleNode struct {
	ETHPrice decimal.Decimal `json:"ethPrice"`
}

type tokenDayNode struct {
	Token    tokenNode       `json:"token"`
	PriceUSD decimal.Decimal `json:"priceUSD"`
	Date     int64           `json:"date"`
}

// resolveAddresses maps the Ethereum-family subset of coinTypes to
// contract addresses. Non-Ethereum coins yield UnsupportedCoinTypeError.
func (p *Provider) resolveAddresses(coinTypes []coin.Type) (map[string]coin.Type, error) {
	byAddress := make(map[string]coin.Type, len(coinTypes))
	for _, coinType := range coinTypes {
		switch coinType.(type) {
		case coin.Ethereum, coin.Erc20:
		default:
			return nil, &market.UnsupportedCoinTypeError{CoinType: coinType}
		}
		address, err := p.resolver.ProviderID(coinType, resolver.SourceUniswap)
		if err != nil {
			if errors.Is(err, resolver.ErrNotFound) {
				continue
			}
			return nil, err
		}
		byAddress[strings.ToLower(address)] = coinType
	}
	return byAddress, nil
}

// MarketRecords fetches the prior-day price datum for every resolvable
// coin in one batched query, plus the current ETH/USD price, and converts
// to the quote currency. Coins missing from the response are omitted.
func (p *Provider) MarketRecords(ctx context.Context, coinTypes []coin.Type, currency string) ([]market.Record, error) {
	byAddress, err := p.resolveAddresses(coinTypes)
	if err != nil {
		return nil, err
	}
	if len(byAddress) == 0 {
		return []market.Record{}, nil
	}

	priorDay := p.now().Add(-24 * time.Hour).Truncate(24 * time.Hour).Unix()
	query := fmt.Sprintf(`{
		tokenDayDatas(orderBy: date, orderDirection: desc, where: {token_in: [%s], date_gte: %d}) {
			token { id symbol derivedETH tradeVolumeUSD totalLiquidity }
			priceUSD
			date
		}
		bundle(id: "1") { ethPrice }
	}`, quoteList(byAddress), priorDay)

	var data struct {
		TokenDayDatas []tokenDayNode `json:"tokenDayDatas"`
		Bundle        bundleNode     `json:"bundle"`
	}
	if err := p.query(ctx, query, &data); err != nil {
		return nil, fmt.Errorf("token day data: %w", err)
	}
	if data.Bundle.ETHPrice.IsZero() {
		return nil, &market.MalformedResponseError{Field: "bundle.ethPrice"}
	}

	ethQuote, err := p.ethPriceIn(ctx, data.Bundle.ETHPrice, currency)
	if err != nil {
		return nil, err
	}

	records := make([]market.Record, 0, len(byAddress))
	seen := make(map[string]bool, len(byAddress))
	for _, day := range data.TokenDayDatas {
		address := strings.ToLower(day.Token.ID)
		coinType, ok := byAddress[address]
		if !ok || seen[address] {
			continue
		}
		seen[address] = true

		priceETH := day.PriceUSD.Div(data.Bundle.ETHPrice)
		rate := priceETH.Mul(ethQuote)
		records = append(records, market.Record{
			CoinType:     coinType,
			CoinCode:     coinCode(coinType, day.Token.Symbol),
			CurrencyCode: currency,
			Rate:         rate,
		})
	}
	return records, nil
}

// ethPriceIn converts the subgraph's USD-denominated ETH price to the
// quote currency. The cross-rate applies only when the quote is not USD.
func (p *Provider) ethPriceIn(ctx context.Context, ethPriceUSD decimal.Decimal, currency string) (decimal.Decimal, error) {
	if strings.EqualFold(currency, "usd") {
		return ethPriceUSD, nil
	}
	cross, err := p.fiat.Rate(ctx, "usd", strings.ToLower(currency))
	if err != nil {
		return decimal.Zero, fmt.Errorf("fiat cross-rate usd/%s: %w", currency, err)
	}
	return ethPriceUSD.Mul(cross), nil
}

// tokenSnapshot is the subgraph state at one block height.
type tokenSnapshot struct {
	tokens   map[string]tokenNode
	ethPrice decimal.Decimal
}

func (p *Provider) fetchSnapshot(ctx context.Context, addresses []string, height uint64) (*tokenSnapshot, error) {
	block := ""
	if height > 0 {
		block = fmt.Sprintf("block: {number: %d}, ", height)
	}
	query := fmt.Sprintf(`{
		tokens(%swhere: {id_in: [%s]}) { id symbol derivedETH tradeVolumeUSD totalLiquidity }
		bundle(%sid: "1") { ethPrice }
	}`, block, quoteStrings(addresses), block)

	var data struct {
		Tokens []tokenNode `json:"tokens"`
		Bundle bundleNode  `json:"bundle"`
	}
	if err := p.query(ctx, query, &data); err != nil {
		return nil, fmt.Errorf("token snapshot at %d: %w", height, err)
	}

	snap := &tokenSnapshot{tokens: make(map[string]tokenNode, len(data.Tokens)), ethPrice: data.Bundle.ETHPrice}
	for _, t := range data.Tokens {
		snap.tokens[strings.ToLower(t.ID)] = t
	}
	return snap, nil
}

// CoinMarkets builds full records for the given coins: the current
// snapshot provides rate and liquidity, the 24h-height snapshot anchors
// the open rate and the volume delta, and the period-height snapshot
// drives the requested diff (falling back to the 24h snapshot when the
// token has no data at the period height).
func (p *Provider) CoinMarkets(ctx context.Context, coinTypes []coin.Type, currency string, period market.TimePeriod) ([]market.Record, error) {
	byAddress, err := p.resolveAddresses(coinTypes)
	if err != nil {
		return nil, err
	}
	if len(byAddress) == 0 {
		return []market.Record{}, nil
	}
	return p.coinMarkets(ctx, byAddress, currency, period)
}

// TopCoinMarkets ranks the subgraph's highest-volume tokens and builds
// records the same way CoinMarkets does.
func (p *Provider) TopCoinMarkets(ctx context.Context, currency string, period market.TimePeriod, count int) ([]market.Record, error) {
	query := fmt.Sprintf(`{
		tokens(first: %d, orderBy: tradeVolumeUSD, orderDirection: desc) { id symbol derivedETH tradeVolumeUSD totalLiquidity }
	}`, count)

	var data struct {
		Tokens []tokenNode `json:"tokens"`
	}
	if err := p.query(ctx, query, &data); err != nil {
		return nil, fmt.Errorf("top tokens: %w", err)
	}

	byAddress := make(map[string]coin.Type, len(data.Tokens))
	for _, t := range data.Tokens {
		address := strings.ToLower(t.ID)
		if address == resolver.WETHAddress {
			byAddress[address] = coin.Ethereum{}
			continue
		}
		erc20, err := coin.NewErc20(address)
		if err != nil {
			continue
		}
		byAddress[address] = erc20
	}
	return p.coinMarkets(ctx, byAddress, currency, period)
}

func (p *Provider) coinMarkets(ctx context.Context, byAddress map[string]coin.Type, currency string, period market.TimePeriod) ([]market.Record, error) {
	periods := []market.TimePeriod{market.PeriodHour24}
	if period != market.PeriodHour24 {
		periods = append(periods, period)
	}

	// Snapshot queries depend on resolved heights, so height resolution
	// runs first; the snapshot fetches themselves run concurrently.
	heights, err := p.blocks.Heights(ctx, periods)
	if err != nil {
		return nil, fmt.Errorf("block heights: %w", err)
	}
	height24, ok := heights[market.PeriodHour24]
	if !ok {
		return nil, &market.MalformedResponseError{Field: "blockHeight.24h"}
	}
	heightPeriod := height24
	if period != market.PeriodHour24 {
		heightPeriod, ok = heights[period]
		if !ok {
			return nil, &market.MalformedResponseError{Field: "blockHeight." + string(period)}
		}
	}

	addresses := make([]string, 0, len(byAddress))
	for address := range byAddress {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	var current, at24, atPeriod *tokenSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = p.fetchSnapshot(gctx, addresses, 0)
		return err
	})
	g.Go(func() error {
		var err error
		at24, err = p.fetchSnapshot(gctx, addresses, height24)
		return err
	})
	if heightPeriod != height24 {
		g.Go(func() error {
			var err error
			atPeriod, err = p.fetchSnapshot(gctx, addresses, heightPeriod)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if atPeriod == nil {
		atPeriod = at24
	}
	if current.ethPrice.IsZero() {
		return nil, &market.MalformedResponseError{Field: "bundle.ethPrice"}
	}

	ethQuote, err := p.ethPriceIn(ctx, current.ethPrice, currency)
	if err != nil {
		return nil, err
	}
	ethQuote24, err := p.ethPriceIn(ctx, at24.ethPrice, currency)
	if err != nil {
		return nil, err
	}
	ethQuotePeriod, err := p.ethPriceIn(ctx, atPeriod.ethPrice, currency)
	if err != nil {
		return nil, err
	}
	volumeCross := decimal.NewFromInt(1)
	if !strings.EqualFold(currency, "usd") {
		volumeCross, err = p.fiat.Rate(ctx, "usd", strings.ToLower(currency))
		if err != nil {
			return nil, fmt.Errorf("fiat cross-rate usd/%s: %w", currency, err)
		}
	}

	records := make([]market.Record, 0, len(addresses))
	for _, address := range addresses {
		token, ok := current.tokens[address]
		if !ok {
			continue
		}

		rate := token.DerivedETH.Mul(ethQuote)

		var open, ratePeriod, volume24 decimal.Decimal
		if prev, ok := at24.tokens[address]; ok {
			open = prev.DerivedETH.Mul(ethQuote24)
			volume24 = token.TradeVolumeUSD.Sub(prev.TradeVolumeUSD)
		}
		if prev, ok := atPeriod.tokens[address]; ok {
			ratePeriod = prev.DerivedETH.Mul(ethQuotePeriod)
		} else if prev, ok := at24.tokens[address]; ok {
			// Requested-period snapshot unavailable for this token.
			ratePeriod = prev.DerivedETH.Mul(ethQuote24)
		}

		volume24 = volume24.Mul(volumeCross)

		diff := market.DiffPercent(rate, ratePeriod)
		liquidity := rate.Mul(token.TotalLiquidity)

		records = append(records, market.Record{
			CoinType:     byAddress[address],
			CoinCode:     coinCode(byAddress[address], token.Symbol),
			CurrencyCode: currency,
			Rate:         rate,
			RateOpenDay:  open,
			Diff:         diff,
			Volume:       volume24,
			Liquidity:    &liquidity,
			RateDiffs: map[market.TimePeriod]map[string]decimal.Decimal{
				period: {strings.ToLower(currency): diff},
			},
		})
	}

	// Liquidity-weighted significance, highest first.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Liquidity.GreaterThan(*records[j].Liquidity)
	})
	return records, nil
}

// coinCode prefers the internal display code: the native coin shows as
// ETH even though the subgraph serves its WETH proxy.
func coinCode(coinType coin.Type, symbol string) string {
	if _, ok := coinType.(coin.Ethereum); ok {
		return "ETH"
	}
	return strings.ToUpper(symbol)
}

func quoteList(byAddress map[string]coin.Type) string {
	addresses := make([]string, 0, len(byAddress))
	for address := range byAddress {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return quoteStrings(addresses)
}

func quoteStrings(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, ", ")
}
