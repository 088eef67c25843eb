package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/testutil"
)

func setupRepo(t *testing.T) *RateRepo {
	t.Helper()
	pool := testutil.SetupPool(t)
	repo := NewRateRepo(pool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), "DELETE FROM historical_rates WHERE coin_id LIKE 'test-%'")
	})
	return repo
}

func TestSaveAndFind(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	rate := decimal.RequireFromString("43210.123456789")

	if err := repo.Save(ctx, "test-bitcoin", "usd", ts, rate); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := repo.Find(ctx, "test-bitcoin", "usd", ts.Add(2*time.Minute), 10*time.Minute)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !found {
		t.Fatal("expected a hit within tolerance")
	}
	if !got.Equal(rate) {
		t.Fatalf("rate = %s, want %s (precision must survive the round-trip)", got, rate)
	}
}

func TestFind_OutsideTolerance(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	if err := repo.Save(ctx, "test-bitcoin", "usd", ts, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, found, err := repo.Find(ctx, "test-bitcoin", "usd", ts.Add(time.Hour), 10*time.Minute)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found {
		t.Fatal("expected a miss outside tolerance")
	}
}

func TestFind_NearestWins(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	if err := repo.Save(ctx, "test-eth", "usd", base, decimal.NewFromInt(1)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, "test-eth", "usd", base.Add(8*time.Minute), decimal.NewFromInt(2)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := repo.Find(ctx, "test-eth", "usd", base.Add(6*time.Minute), 10*time.Minute)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !found {
		t.Fatal("expected a hit")
	}
	if !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("rate = %s, want 2 (nearest sample)", got)
	}
}

func TestSave_UpsertReplaces(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	if err := repo.Save(ctx, "test-bitcoin", "usd", ts, decimal.NewFromInt(1)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, "test-bitcoin", "usd", ts, decimal.NewFromInt(2)); err != nil {
		t.Fatalf("Save (upsert): %v", err)
	}

	got, found, err := repo.Find(ctx, "test-bitcoin", "usd", ts, time.Minute)
	if err != nil || !found {
		t.Fatalf("Find: found=%v err=%v", found, err)
	}
	if !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("rate = %s, want upserted 2", got)
	}
}
