// Package kit is the consumer-facing surface: a refreshed in-memory view
// of market records, subscription channels that emit on every refresh,
// and a read-through historical-rate lookup.
package kit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
)

// Fetcher produces one record per requested coin; the router satisfies it.
type Fetcher interface {
	MarketInfoRecords(ctx context.Context, coinTypes []coin.Type, currency string) ([]market.Record, error)
}

// HistoricalSource serves point-in-time rates; the aggregator adapter
// satisfies it.
type HistoricalSource interface {
	HistoricalRate(ctx context.Context, coinType coin.Type, currency string, timestamp time.Time) (decimal.Decimal, error)
}

// RateStore persists historical rates so repeat lookups skip the
// upstream. Optional; a nil store disables persistence.
type RateStore interface {
	Find(ctx context.Context, coinID, currency string, timestamp time.Time, tolerance time.Duration) (decimal.Decimal, bool, error)
	Save(ctx context.Context, coinID, currency string, timestamp time.Time, rate decimal.Decimal) error
}

// storedRateTolerance bounds how far a persisted rate may sit from the
// requested timestamp before the upstream is consulted instead.
const storedRateTolerance = 10 * time.Minute

type subscriber struct {
	currency string
	ch       chan map[string]market.Record
}

type Kit struct {
	fetcher    Fetcher
	historical HistoricalSource
	store      RateStore
	ttl        time.Duration
	log        *zap.SugaredLogger
	now        func() time.Time

	// cache holds an immutable coinID -> record map; refreshes swap the
	// whole entry, so readers never lock and never see partial state.
	cache atomic.Pointer[market.Expirable[map[string]market.Record]]

	mu       sync.Mutex
	coins    []coin.Type
	currency string
	subs     map[int]*subscriber
	nextSub  int
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

type Config struct {
	Coins    []coin.Type
	Currency string
	TTL      time.Duration
}

func New(fetcher Fetcher, historical HistoricalSource, store RateStore, cfg Config, log *zap.SugaredLogger) *Kit {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Kit{
		fetcher:    fetcher,
		historical: historical,
		store:      store,
		ttl:        ttl,
		log:        log,
		now:        time.Now,
		coins:      append([]coin.Type(nil), cfg.Coins...),
		currency:   cfg.Currency,
		subs:       make(map[int]*subscriber),
	}
}

// SetCoins replaces the observed coin set. The next refresh picks it up.
func (k *Kit) SetCoins(coins []coin.Type) {
	k.mu.Lock()
	k.coins = append([]coin.Type(nil), coins...)
	k.mu.Unlock()
}

// MarketInfo is a non-blocking cache read. It returns nil when the coin
// is absent, the currency does not match, or the entry has expired.
func (k *Kit) MarketInfo(coinType coin.Type, currency string) *market.Record {
	entry := k.cache.Load()
	if entry == nil || entry.Expired(k.now(), k.ttl) {
		return nil
	}
	record, ok := entry.Payload[coinType.ID()]
	if !ok || record.CurrencyCode != currency {
		return nil
	}
	return &record
}

// MarketInfoRecords returns the current cached coinID -> record map for
// the currency, or nil when nothing fresh is cached. The returned map is
// shared and must not be mutated.
func (k *Kit) MarketInfoRecords(currency string) map[string]market.Record {
	entry := k.cache.Load()
	if entry == nil || entry.Expired(k.now(), k.ttl) {
		return nil
	}
	for _, record := range entry.Payload {
		if record.CurrencyCode != currency {
			return nil
		}
		break
	}
	return entry.Payload
}

// Subscribe returns a channel that receives the full coinID -> record map
// on every successful refresh for the given currency, plus a cancel
// function. Slow subscribers miss emissions instead of stalling the
// refresher.
func (k *Kit) Subscribe(currency string) (<-chan map[string]market.Record, func()) {
	sub := &subscriber{currency: currency, ch: make(chan map[string]market.Record, 1)}

	k.mu.Lock()
	id := k.nextSub
	k.nextSub++
	k.subs[id] = sub
	k.mu.Unlock()

	cancel := func() {
		k.mu.Lock()
		if _, ok := k.subs[id]; ok {
			delete(k.subs, id)
			close(sub.ch)
		}
		k.mu.Unlock()
	}
	return sub.ch, cancel
}

// Refresh re-fetches unconditionally, bypassing the expiration check. On
// failure the previous cache entry stays intact.
func (k *Kit) Refresh(ctx context.Context) error {
	k.mu.Lock()
	coins := append([]coin.Type(nil), k.coins...)
	currency := k.currency
	k.mu.Unlock()

	if len(coins) == 0 {
		return nil
	}

	records, err := k.fetcher.MarketInfoRecords(ctx, coins, currency)
	if err != nil {
		k.log.Infof("[KIT] refresh failed, keeping previous entry: %v", err)
		return fmt.Errorf("refresh: %w", err)
	}

	byID := make(map[string]market.Record, len(records))
	for _, record := range records {
		if record.CoinType == nil {
			continue
		}
		byID[record.CoinType.ID()] = record
	}

	entry := market.NewExpirable(byID, k.now())
	k.cache.Store(&entry)
	k.publish(currency, byID)
	return nil
}

func (k *Kit) publish(currency string, records map[string]market.Record) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, sub := range k.subs {
		if sub.currency != currency {
			continue
		}
		select {
		case sub.ch <- records:
		default:
		}
	}
}

// Start launches the refresh scheduler: an immediate fetch, then a
// periodic expiry check. Stop halts it.
func (k *Kit) Start() {
	k.mu.Lock()
	if k.running {
		k.mu.Unlock()
		k.log.Infof("[KIT] already running")
		return
	}
	k.running = true
	k.stopCh = make(chan struct{})
	stopCh := k.stopCh
	k.mu.Unlock()

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		_ = k.Refresh(ctx)
		cancel()

		ticker := time.NewTicker(k.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				entry := k.cache.Load()
				if entry != nil && !entry.Expired(k.now(), k.ttl) {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
				_ = k.Refresh(ctx)
				cancel()
			}
		}
	}()

	k.log.Infof("[KIT] scheduler started (ttl %s)", k.ttl)
}

func (k *Kit) Stop() {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return
	}
	k.running = false
	close(k.stopCh)
	k.mu.Unlock()

	k.wg.Wait()
}

// HistoricalRate reads through the optional store: persisted rates within
// tolerance are served locally, everything else comes from the aggregator
// and is saved for next time.
func (k *Kit) HistoricalRate(ctx context.Context, coinType coin.Type, currency string, timestamp time.Time) (decimal.Decimal, error) {
	if k.store != nil {
		rate, ok, err := k.store.Find(ctx, coinType.ID(), currency, timestamp, storedRateTolerance)
		if err != nil {
			k.log.Infof("[KIT] historical rate lookup failed, falling through: %v", err)
		} else if ok {
			return rate, nil
		}
	}

	rate, err := k.historical.HistoricalRate(ctx, coinType, currency, timestamp)
	if err != nil {
		return decimal.Zero, err
	}

	if k.store != nil {
		if err := k.store.Save(ctx, coinType.ID(), currency, timestamp, rate); err != nil {
			k.log.Infof("[KIT] historical rate save failed: %v", err)
		}
	}
	return rate, nil
}
