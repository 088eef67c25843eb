// Package market holds the unified data model every source adapter
// produces. Downstream code operates on these types only and never sees
// which upstream a record came from.
package market

import (
	"github.com/shopspring/decimal"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
)

// Record is a unified per-coin market snapshot. It is built fresh on
// every fetch and never mutated afterward.
type Record struct {
	CoinType     coin.Type // nil when the upstream coin has no internal mapping
	CoinCode     string
	CurrencyCode string

	Rate        decimal.Decimal
	RateOpenDay decimal.Decimal
	Diff        decimal.Decimal

	Volume      decimal.Decimal
	MarketCap   decimal.Decimal
	Supply      decimal.Decimal
	TotalSupply decimal.Decimal

	// Liquidity is set by the DEX adapter only.
	Liquidity *decimal.Decimal

	// RateDiffs maps period -> diff currency -> percentage change.
	RateDiffs map[TimePeriod]map[string]decimal.Decimal
}

// DiffPercent returns the percentage change from open to rate, or zero
// when open is zero. The zero result guards division, it is not a
// measured value.
func DiffPercent(rate, open decimal.Decimal) decimal.Decimal {
	if open.IsZero() {
		return decimal.Zero
	}
	return rate.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
}

// ChartPoint is one sample of a rate series. Volume is set only on
// daily-resampled series.
type ChartPoint struct {
	Timestamp int64
	Value     decimal.Decimal
	Volume    *decimal.Decimal
}

// Ticker is one exchange's quote for a trading pair.
type Ticker struct {
	Base           string
	Target         string
	MarketName     string
	MarketImageURL string
	Rate           decimal.Decimal
	Volume         decimal.Decimal
}

// LinkType names an external resource attached to a coin.
type LinkType string

const (
	LinkWebsite  LinkType = "website"
	LinkReddit   LinkType = "reddit"
	LinkTwitter  LinkType = "twitter"
	LinkTelegram LinkType = "telegram"
	LinkGithub   LinkType = "github"
)

// Platform names a chain a coin has a contract on.
type Platform string

const (
	PlatformEthereum          Platform = "ethereum"
	PlatformBinanceSmartChain Platform = "binance-smart-chain"
	PlatformBinance           Platform = "binancecoin"
	PlatformTron              Platform = "tron"
	PlatformEos               Platform = "eos"
	PlatformSolana            Platform = "solana"
)

// Detail is the full per-coin view returned by the aggregator adapter.
type Detail struct {
	CoinType     coin.Type
	CoinCode     string
	CurrencyCode string

	Rate             decimal.Decimal
	High24h          decimal.Decimal
	Low24h           decimal.Decimal
	MarketCap        decimal.Decimal
	DilutedMarketCap decimal.Decimal
	MarketCapDiff24h decimal.Decimal
	Supply           decimal.Decimal
	TotalSupply      decimal.Decimal
	Volume24h        decimal.Decimal

	Description string
	Links       map[LinkType]string
	Platforms   map[Platform]string

	RateDiffs map[TimePeriod]map[string]decimal.Decimal
	Tickers   []Ticker
}
