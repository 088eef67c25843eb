package kit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
)

type fakeFetcher struct {
	records []market.Record
	err     error
	calls   int
}

func (f *fakeFetcher) MarketInfoRecords(ctx context.Context, coinTypes []coin.Type, currency string) ([]market.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeHistorical struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (f *fakeHistorical) HistoricalRate(ctx context.Context, coinType coin.Type, currency string, timestamp time.Time) (decimal.Decimal, error) {
	f.calls++
	return f.rate, f.err
}

type memStore struct {
	rates map[string]decimal.Decimal
	saves int
}

func newMemStore() *memStore {
	return &memStore{rates: make(map[string]decimal.Decimal)}
}

func (m *memStore) Find(ctx context.Context, coinID, currency string, timestamp time.Time, tolerance time.Duration) (decimal.Decimal, bool, error) {
	rate, ok := m.rates[coinID+"|"+currency]
	return rate, ok, nil
}

func (m *memStore) Save(ctx context.Context, coinID, currency string, timestamp time.Time, rate decimal.Decimal) error {
	m.saves++
	m.rates[coinID+"|"+currency] = rate
	return nil
}

func btcRecord(rate int64) market.Record {
	return market.Record{
		CoinType:     coin.Bitcoin{},
		CoinCode:     "BTC",
		CurrencyCode: "usd",
		Rate:         decimal.NewFromInt(rate),
	}
}

func newTestKit(fetcher Fetcher, historical HistoricalSource, store RateStore) *Kit {
	return New(fetcher, historical, store, Config{
		Coins:    []coin.Type{coin.Bitcoin{}},
		Currency: "usd",
		TTL:      5 * time.Minute,
	}, zap.NewNop().Sugar())
}

func TestMarketInfo_CacheLifecycle(t *testing.T) {
	fetcher := &fakeFetcher{records: []market.Record{btcRecord(50000)}}
	k := newTestKit(fetcher, &fakeHistorical{}, nil)

	// Empty before the first refresh.
	if rec := k.MarketInfo(coin.Bitcoin{}, "usd"); rec != nil {
		t.Fatalf("expected nil before refresh, got %+v", rec)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return now }

	if err := k.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	rec := k.MarketInfo(coin.Bitcoin{}, "usd")
	if rec == nil {
		t.Fatal("expected record after refresh")
	}
	if !rec.Rate.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("Rate = %s, want 50000", rec.Rate)
	}

	// Currency mismatch reads nil.
	if rec := k.MarketInfo(coin.Bitcoin{}, "eur"); rec != nil {
		t.Fatalf("expected nil for other currency, got %+v", rec)
	}

	// Expired entry reads nil.
	now = now.Add(5 * time.Minute)
	if rec := k.MarketInfo(coin.Bitcoin{}, "usd"); rec != nil {
		t.Fatalf("expected nil after ttl, got %+v", rec)
	}
}

func TestRefresh_FailureKeepsPreviousEntry(t *testing.T) {
	fetcher := &fakeFetcher{records: []market.Record{btcRecord(50000)}}
	k := newTestKit(fetcher, &fakeHistorical{}, nil)

	if err := k.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	fetcher.err = errors.New("upstream down")
	if err := k.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	rec := k.MarketInfo(coin.Bitcoin{}, "usd")
	if rec == nil {
		t.Fatal("previous entry lost after failed refresh")
	}
	if !rec.Rate.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("Rate = %s, want previous 50000", rec.Rate)
	}
}

func TestRefresh_SkipsUnmappedRecords(t *testing.T) {
	fetcher := &fakeFetcher{records: []market.Record{
		btcRecord(50000),
		{CoinType: nil, CoinCode: "???", CurrencyCode: "usd"},
	}}
	k := newTestKit(fetcher, &fakeHistorical{}, nil)

	if err := k.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	records := k.MarketInfoRecords("usd")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (nil coin type dropped)", len(records))
	}
}

func TestSubscribe_EmitsOnRefresh(t *testing.T) {
	fetcher := &fakeFetcher{records: []market.Record{btcRecord(50000)}}
	k := newTestKit(fetcher, &fakeHistorical{}, nil)

	ch, cancel := k.Subscribe("usd")
	defer cancel()

	if err := k.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	select {
	case records := <-ch:
		if _, ok := records[coin.Bitcoin{}.ID()]; !ok {
			t.Fatal("emitted map missing bitcoin")
		}
	case <-time.After(time.Second):
		t.Fatal("no emission after refresh")
	}
}

func TestSubscribe_OtherCurrencySilent(t *testing.T) {
	fetcher := &fakeFetcher{records: []market.Record{btcRecord(50000)}}
	k := newTestKit(fetcher, &fakeHistorical{}, nil)

	ch, cancel := k.Subscribe("eur")
	defer cancel()

	if err := k.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	select {
	case <-ch:
		t.Fatal("eur subscriber received a usd emission")
	default:
	}
}

func TestSubscribe_CancelIdempotent(t *testing.T) {
	k := newTestKit(&fakeFetcher{}, &fakeHistorical{}, nil)

	_, cancel := k.Subscribe("usd")
	cancel()
	cancel()
}

func TestSubscribe_SlowSubscriberMissesEmission(t *testing.T) {
	fetcher := &fakeFetcher{records: []market.Record{btcRecord(50000)}}
	k := newTestKit(fetcher, &fakeHistorical{}, nil)

	ch, cancel := k.Subscribe("usd")
	defer cancel()

	// Two refreshes against a buffer of one: the second emission is
	// dropped, not blocked on.
	if err := k.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := k.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("expected the second emission to be dropped")
	default:
	}
}

func TestHistoricalRate_ReadThrough(t *testing.T) {
	historical := &fakeHistorical{rate: decimal.NewFromInt(42)}
	store := newMemStore()
	k := newTestKit(&fakeFetcher{}, historical, store)

	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rate, err := k.HistoricalRate(context.Background(), coin.Bitcoin{}, "usd", ts)
	if err != nil {
		t.Fatalf("HistoricalRate: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("rate = %s, want 42", rate)
	}
	if historical.calls != 1 || store.saves != 1 {
		t.Fatalf("upstream calls = %d, saves = %d; want 1 and 1", historical.calls, store.saves)
	}

	// Second lookup is served from the store.
	if _, err := k.HistoricalRate(context.Background(), coin.Bitcoin{}, "usd", ts); err != nil {
		t.Fatalf("HistoricalRate: %v", err)
	}
	if historical.calls != 1 {
		t.Fatalf("upstream consulted %d times, want 1", historical.calls)
	}
}

func TestHistoricalRate_NoStore(t *testing.T) {
	historical := &fakeHistorical{rate: decimal.NewFromInt(42)}
	k := newTestKit(&fakeFetcher{}, historical, nil)

	rate, err := k.HistoricalRate(context.Background(), coin.Bitcoin{}, "usd", time.Now())
	if err != nil {
		t.Fatalf("HistoricalRate: %v", err)
	}
	if !rate.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("rate = %s, want 42", rate)
	}
}

func TestHistoricalRate_UpstreamError(t *testing.T) {
	wantErr := errors.New("range empty")
	historical := &fakeHistorical{err: wantErr}
	k := newTestKit(&fakeFetcher{}, historical, newMemStore())

	_, err := k.HistoricalRate(context.Background(), coin.Bitcoin{}, "usd", time.Now())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestSetCoins_NextRefreshUsesNewSet(t *testing.T) {
	fetcher := &fakeFetcher{records: []market.Record{btcRecord(50000)}}
	k := newTestKit(fetcher, &fakeHistorical{}, nil)

	k.SetCoins(nil)
	if err := k.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	// Empty coin set short-circuits without touching the fetcher.
	if fetcher.calls != 0 {
		t.Fatalf("fetcher called %d times with empty coin set, want 0", fetcher.calls)
	}
}

func TestStartStop(t *testing.T) {
	fetcher := &fakeFetcher{records: []market.Record{btcRecord(50000)}}
	k := newTestKit(fetcher, &fakeHistorical{}, nil)

	k.Start()
	k.Stop()

	if fetcher.calls == 0 {
		t.Fatal("Start must trigger an immediate refresh")
	}
}
