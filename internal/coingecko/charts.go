package coingecko

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/resolver"
)

// jitterTolerance absorbs upstream timestamp wobble when advancing the
// resample bucket boundary.
const jitterTolerance = 180 * time.Second

// recentWindowCutoff separates the dense (5-minutely) recent history from
// the sparse (hourly) older history on the range endpoint.
const recentWindowCutoff = 24 * time.Hour

// ChartPointKey identifies one chart series.
type ChartPointKey struct {
	CoinType  coin.Type
	Currency  string
	ChartType market.ChartType
}

type chartResponse struct {
	Prices       [][2]decimal.Decimal `json:"prices"`
	TotalVolumes [][2]decimal.Decimal `json:"total_volumes"`
}

// ChartPoints fetches the raw series for key and resamples it onto the
// chart type's fixed-width buckets.
func (p *Provider) ChartPoints(ctx context.Context, key ChartPointKey) ([]market.ChartPoint, error) {
	id, err := p.resolver.ProviderID(key.CoinType, resolver.SourceCoinGecko)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=%s&days=%d",
		p.baseURL, id, key.Currency, key.ChartType.Days)

	var resp chartResponse
	if err := p.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("chart %s/%s: %w", id, key.ChartType.Name, err)
	}

	return resample(resp, key.ChartType), nil
}

// resample walks the series in chronological order and emits a point
// whenever its timestamp reaches the moving bucket boundary. Volume
// accumulated since the previous emitted point is attached on daily
// charts only; every other interval emits nil volume.
func resample(resp chartResponse, chartType market.ChartType) []market.ChartPoint {
	step := int64(chartType.Interval / time.Second)
	tolerance := int64(jitterTolerance / time.Second)

	out := make([]market.ChartPoint, 0, len(resp.Prices))
	var boundary int64
	volume := decimal.Zero

	for i, pair := range resp.Prices {
		// Upstream timestamps are milliseconds.
		ts := pair[0].IntPart() / 1000
		if i < len(resp.TotalVolumes) {
			volume = volume.Add(resp.TotalVolumes[i][1])
		}

		if ts < boundary {
			continue
		}

		point := market.ChartPoint{Timestamp: ts, Value: pair[1]}
		if chartType.Daily() {
			v := volume
			point.Volume = &v
		}
		out = append(out, point)

		boundary = ts + step - tolerance
		volume = decimal.Zero
	}
	return out
}

// HistoricalRate returns the rate closest to timestamp. A narrow window
// suffices for recent timestamps where upstream data is dense; older
// lookups widen to ±2h to be sure the window holds at least one sample.
func (p *Provider) HistoricalRate(ctx context.Context, coinType coin.Type, currency string, timestamp time.Time) (decimal.Decimal, error) {
	id, err := p.resolver.ProviderID(coinType, resolver.SourceCoinGecko)
	if err != nil {
		return decimal.Zero, err
	}

	window := 2 * time.Hour
	if p.now().Sub(timestamp) < recentWindowCutoff {
		window = 10 * time.Minute
	}

	u := fmt.Sprintf("%s/coins/%s/market_chart/range?vs_currency=%s&from=%d&to=%d",
		p.baseURL, id, currency, timestamp.Add(-window).Unix(), timestamp.Add(window).Unix())

	var resp chartResponse
	if err := p.client.GetJSON(ctx, u, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("historical rate %s: %w", id, err)
	}
	if len(resp.Prices) == 0 {
		return decimal.Zero, &market.MalformedResponseError{Field: "prices"}
	}

	// Nearest absolute distance; only a strictly smaller distance
	// replaces the candidate, so ties keep the earlier point.
	target := timestamp.Unix()
	best := resp.Prices[0]
	bestDist := absInt64(best[0].IntPart()/1000 - target)
	for _, pair := range resp.Prices[1:] {
		d := absInt64(pair[0].IntPart()/1000 - target)
		if d < bestDist {
			best = pair
			bestDist = d
		}
	}
	return best[1], nil
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
