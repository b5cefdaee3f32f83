package hyperliquid

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAssetResolverCachesWithinTTL(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]AssetInfo, error) {
		calls.Add(1)
		return []AssetInfo{{Name: "ETH", AssetID: PerpAssetID(1), SizeDecimals: 4}}, nil
	}
	r := NewAssetResolver(time.Minute, fetch)

	for i := 0; i < 5; i++ {
		info, err := r.Resolve(context.Background(), "ETH")
		if err != nil {
			t.Fatalf("Resolve() #%d error: %v", i, err)
		}
		if info.AssetID != 1 {
			t.Errorf("AssetID = %d, want 1", info.AssetID)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1 (TTL cache should prevent refetch)", calls.Load())
	}
}

func TestAssetResolverRefreshesAfterExpiry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]AssetInfo, error) {
		calls.Add(1)
		return []AssetInfo{{Name: "ETH", AssetID: 1, SizeDecimals: 4}}, nil
	}
	r := NewAssetResolver(10*time.Millisecond, fetch)

	if _, err := r.Resolve(context.Background(), "ETH"); err != nil {
		t.Fatalf("first Resolve() error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := r.Resolve(context.Background(), "ETH"); err != nil {
		t.Fatalf("second Resolve() error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("fetch called %d times, want 2 after TTL expiry", calls.Load())
	}
}

func TestAssetResolverUnknownSymbol(t *testing.T) {
	t.Parallel()

	r := NewAssetResolver(time.Minute, func(ctx context.Context) ([]AssetInfo, error) {
		return []AssetInfo{{Name: "BTC", AssetID: 0}}, nil
	})

	if _, err := r.Resolve(context.Background(), "DOGE"); err == nil {
		t.Error("expected an error resolving an unknown symbol")
	}
}

func TestSpotAssetIDOffset(t *testing.T) {
	t.Parallel()

	if got := SpotAssetID(0); got != 10000 {
		t.Errorf("SpotAssetID(0) = %d, want 10000", got)
	}
	if got := PerpAssetID(3); got != 3 {
		t.Errorf("PerpAssetID(3) = %d, want 3", got)
	}
}

func TestQuantizeSizeTruncatesToDecimals(t *testing.T) {
	t.Parallel()

	info := AssetInfo{SizeDecimals: 2}
	got := QuantizeSize(info, decimal.NewFromFloat(1.23456))
	want := decimal.NewFromFloat(1.23)
	if !got.Equal(want) {
		t.Errorf("QuantizeSize() = %s, want %s", got, want)
	}
}
