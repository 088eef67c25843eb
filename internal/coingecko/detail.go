package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/resolver"
)

// contractAddressRe matches a 42-character hex contract address. Tickers
// whose leg symbol is a raw address must not leak into display output.
var contractAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// recognizedPlatforms is the fixed set of platform names the detail
// response may carry; anything else is dropped, not errored.
var recognizedPlatforms = map[string]market.Platform{
	"ethereum":            market.PlatformEthereum,
	"binance-smart-chain": market.PlatformBinanceSmartChain,
	"binancecoin":         market.PlatformBinance,
	"tron":                market.PlatformTron,
	"eos":                 market.PlatformEos,
	"solana":              market.PlatformSolana,
}

type detailResponse struct {
	ID          string                     `json:"id"`
	Symbol      string                     `json:"symbol"`
	Description map[string]string          `json:"description"`
	Platforms   map[string]string          `json:"platforms"`
	Links       detailLinks                `json:"links"`
	MarketData  map[string]json.RawMessage `json:"market_data"`
	Tickers     []tickerItem               `json:"tickers"`
}

type detailLinks struct {
	Homepage      []string `json:"homepage"`
	SubredditURL  string   `json:"subreddit_url"`
	TwitterScreen string   `json:"twitter_screen_name"`
	TelegramID    string   `json:"telegram_channel_identifier"`
	ReposURL      struct {
		Github []string `json:"github"`
	} `json:"repos_url"`
}

type tickerItem struct {
	Base   string `json:"base"`
	Target string `json:"target"`
	Market struct {
		Name       string `json:"name"`
		Identifier string `json:"identifier"`
	} `json:"market"`
	Last   decimal.Decimal `json:"last"`
	Volume decimal.Decimal `json:"volume"`
}

// CoinDetail fetches the full per-coin view: market figures, description,
// links, platform contract addresses and the processed ticker list.
func (p *Provider) CoinDetail(ctx context.Context, coinType coin.Type, currency string, periods []market.TimePeriod, diffCurrencies []string) (*market.Detail, error) {
	id, err := p.resolver.ProviderID(coinType, resolver.SourceCoinGecko)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/coins/%s?localization=false&tickers=true&market_data=true&community_data=false&developer_data=false&sparkline=false",
		p.baseURL, id)

	var resp detailResponse
	if err := p.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("coin detail %s: %w", id, err)
	}

	rate, _, err := currencyField(resp.MarketData, "current_price", currency, fieldRequired)
	if err != nil {
		return nil, err
	}
	high24h, _, _ := currencyField(resp.MarketData, "high_24h", currency, fieldZero)
	low24h, _, _ := currencyField(resp.MarketData, "low_24h", currency, fieldZero)
	marketCap, _, _ := currencyField(resp.MarketData, "market_cap", currency, fieldZero)
	dilutedCap, _, _ := currencyField(resp.MarketData, "fully_diluted_valuation", currency, fieldOmit)
	capDiff24h, _, _ := currencyField(resp.MarketData, "market_cap_change_24h_in_currency", currency, fieldZero)
	volume24h, _, _ := currencyField(resp.MarketData, "total_volume", currency, fieldZero)
	supply, _, _ := decimalField(resp.MarketData, "circulating_supply", fieldZero)
	totalSupply, _, _ := decimalField(resp.MarketData, "total_supply", fieldZero)

	coinCode := strings.ToUpper(resp.Symbol)
	platforms := mapPlatforms(resp.Platforms)

	detail := &market.Detail{
		CoinType:         coinType,
		CoinCode:         coinCode,
		CurrencyCode:     currency,
		Rate:             rate,
		High24h:          high24h,
		Low24h:           low24h,
		MarketCap:        marketCap,
		DilutedMarketCap: dilutedCap,
		MarketCapDiff24h: capDiff24h,
		Supply:           supply,
		TotalSupply:      totalSupply,
		Volume24h:        volume24h,
		Description:      resp.Description["en"],
		Links:            mapLinks(resp.Links),
		Platforms:        platforms,
		RateDiffs:        p.rateDiffs(resp.MarketData, periods, diffCurrencies),
		Tickers:          p.processTickers(resp.Tickers, coinCode, contractAddresses(coinType, platforms)),
	}
	return detail, nil
}

// rateDiffs looks up the period-specific percentage per requested period
// and diff currency. Absence means "no data", never an error.
func (p *Provider) rateDiffs(md map[string]json.RawMessage, periods []market.TimePeriod, diffCurrencies []string) map[market.TimePeriod]map[string]decimal.Decimal {
	diffs := make(map[market.TimePeriod]map[string]decimal.Decimal, len(periods))
	for _, period := range periods {
		field := fmt.Sprintf("price_change_percentage_%s_in_currency", period)
		byCurrency := make(map[string]decimal.Decimal, len(diffCurrencies))
		for _, dc := range diffCurrencies {
			v, _, _ := currencyField(md, field, dc, fieldZero)
			byCurrency[dc] = v
		}
		diffs[period] = byCurrency
	}
	return diffs
}

func mapLinks(links detailLinks) map[market.LinkType]string {
	out := make(map[market.LinkType]string)

	set := func(t market.LinkType, candidates ...string) {
		for _, c := range candidates {
			if c = strings.TrimSpace(c); c != "" {
				out[t] = c
				return
			}
		}
	}

	set(market.LinkWebsite, links.Homepage...)
	set(market.LinkReddit, links.SubredditURL)
	set(market.LinkTwitter, links.TwitterScreen)
	set(market.LinkTelegram, links.TelegramID)
	set(market.LinkGithub, links.ReposURL.Github...)
	return out
}

func mapPlatforms(raw map[string]string) map[market.Platform]string {
	out := make(map[market.Platform]string)
	for name, address := range raw {
		platform, ok := recognizedPlatforms[strings.ToLower(name)]
		if !ok || address == "" {
			continue
		}
		out[platform] = strings.ToLower(address)
	}
	return out
}

// contractAddresses collects every address known to belong to the coin,
// lowercased, for ticker symbol normalization.
func contractAddresses(coinType coin.Type, platforms map[market.Platform]string) map[string]bool {
	addrs := make(map[string]bool, len(platforms)+1)
	for _, a := range platforms {
		addrs[a] = true
	}
	switch t := coinType.(type) {
	case coin.Erc20:
		addrs[strings.ToLower(t.Address)] = true
	case coin.Bep20:
		addrs[strings.ToLower(t.Address)] = true
	}
	return addrs
}

// processTickers filters, normalizes and orders the raw ticker list:
// non-positive rate or volume rejects the ticker; a leg symbol equal to
// one of the coin's contract addresses is rewritten to the coin code;
// any leg still shaped like a contract address rejects the ticker.
func (p *Provider) processTickers(raw []tickerItem, coinCode string, addresses map[string]bool) []market.Ticker {
	type ranked struct {
		ticker   market.Ticker
		priority int
	}

	unlisted := len(p.exchanges.Priority)
	kept := make([]ranked, 0, len(raw))
	for _, item := range raw {
		if !item.Last.IsPositive() || !item.Volume.IsPositive() {
			continue
		}

		base := normalizeLeg(item.Base, coinCode, addresses)
		target := normalizeLeg(item.Target, coinCode, addresses)
		if contractAddressRe.MatchString(base) || contractAddressRe.MatchString(target) {
			continue
		}

		priority, ok := p.exchanges.Priority[item.Market.Identifier]
		if !ok {
			priority = unlisted
		}
		kept = append(kept, ranked{
			priority: priority,
			ticker: market.Ticker{
				Base:           base,
				Target:         target,
				MarketName:     item.Market.Name,
				MarketImageURL: p.exchanges.Images[item.Market.Identifier],
				Rate:           item.Last,
				Volume:         item.Volume,
			},
		})
	}

	// Stable sort keeps upstream order among exchanges of equal priority.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].priority < kept[j].priority
	})

	tickers := make([]market.Ticker, len(kept))
	for i, r := range kept {
		tickers[i] = r.ticker
	}
	return tickers
}

func normalizeLeg(symbol, coinCode string, addresses map[string]bool) string {
	if addresses[strings.ToLower(symbol)] {
		return coinCode
	}
	return symbol
}
