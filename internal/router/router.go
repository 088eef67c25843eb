// Package router partitions a requested coin set by coin type and
// dispatches each partition to the adapter that can serve it. Both
// partitions fetch in parallel; a failure on either side fails the whole
// call, because merging partial data silently would misrepresent
// coverage.
package router

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
)

// DexSource serves Ethereum-family coins from the on-chain subgraph.
type DexSource interface {
	MarketRecords(ctx context.Context, coinTypes []coin.Type, currency string) ([]market.Record, error)
}

// AggregatorSource serves everything else from the market-data API.
type AggregatorSource interface {
	Markets(ctx context.Context, currency string, period market.TimePeriod, coinTypes []coin.Type) ([]market.Record, error)
}

type Router struct {
	dex DexSource
	agg AggregatorSource
	log *zap.SugaredLogger
}

func New(dex DexSource, agg AggregatorSource, log *zap.SugaredLogger) *Router {
	return &Router{dex: dex, agg: agg, log: log}
}

// MarketInfoRecords fetches one record per coin, routing each coin to its
// adapter. Cross-partition output order is unspecified.
func (r *Router) MarketInfoRecords(ctx context.Context, coinTypes []coin.Type, currency string) ([]market.Record, error) {
	var dexCoins, aggCoins []coin.Type
	for _, coinType := range coinTypes {
		switch coinType.(type) {
		case coin.Ethereum, coin.Erc20:
			dexCoins = append(dexCoins, coinType)
		default:
			aggCoins = append(aggCoins, coinType)
		}
	}

	var dexRecords, aggRecords []market.Record
	g, gctx := errgroup.WithContext(ctx)
	if len(dexCoins) > 0 {
		g.Go(func() error {
			var err error
			dexRecords, err = r.dex.MarketRecords(gctx, dexCoins, currency)
			return err
		})
	}
	if len(aggCoins) > 0 {
		g.Go(func() error {
			var err error
			aggRecords, err = r.agg.Markets(gctx, currency, market.PeriodHour24, aggCoins)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return append(dexRecords, aggRecords...), nil
}
