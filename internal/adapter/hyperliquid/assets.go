// Grounded on the Hyperliquid SDK's Meta/AssetInfo wire types
// (other_examples dwdwow-hl-go types.go: `Meta.Universe []AssetInfo`,
// `AssetInfo.SzDecimals`) and spec.md §4.8's asset resolver. The TTL
// refresh uses golang.org/x/sync/singleflight so concurrent callers
// racing a cache miss issue one fetch, not one per caller — grounded on
// the same x/sync package the teacher's go.mod already carries
// indirectly for errgroup.
package hyperliquid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// AssetInfo is one resolved entry in the venue's asset universe.
type AssetInfo struct {
	Name         string
	AssetID      int
	SizeDecimals int32
}

// PerpAssetID maps a perpetual's position in the universe array to its
// dense integer asset id.
func PerpAssetID(index int) int { return index }

// SpotAssetID maps a spot pair's position in the universe array to its
// asset id, offset above the perp id space per §4.8.
func SpotAssetID(index int) int { return 10000 + index }

// FetchFunc retrieves the current asset universe from the venue.
type FetchFunc func(ctx context.Context) ([]AssetInfo, error)

// AssetResolver caches the venue's asset universe for ttl, refreshing
// via a singleflight-guarded fetch on expiry so a thundering herd of
// concurrent lookups triggers exactly one HTTP call.
type AssetResolver struct {
	mu        sync.RWMutex
	byName    map[string]AssetInfo
	fetchedAt time.Time
	ttl       time.Duration
	fetch     FetchFunc
	group     singleflight.Group
}

// NewAssetResolver builds a resolver with the given TTL and fetch
// function. It applies no default TTL; NewClient supplies the 5-minute
// default.
func NewAssetResolver(ttl time.Duration, fetch FetchFunc) *AssetResolver {
	return &AssetResolver{
		byName: make(map[string]AssetInfo),
		ttl:    ttl,
		fetch:  fetch,
	}
}

// Resolve returns the AssetInfo for symbol, refreshing the cache first if
// it has expired.
func (r *AssetResolver) Resolve(ctx context.Context, symbol string) (AssetInfo, error) {
	if info, ok := r.cached(symbol); ok {
		return info, nil
	}

	_, err, _ := r.group.Do("refresh", func() (any, error) {
		if !r.expired() {
			return nil, nil
		}
		assets, err := r.fetch(ctx)
		if err != nil {
			return nil, err
		}
		m := make(map[string]AssetInfo, len(assets))
		for _, a := range assets {
			m[a.Name] = a
		}
		r.mu.Lock()
		r.byName = m
		r.fetchedAt = time.Now()
		r.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return AssetInfo{}, err
	}

	r.mu.RLock()
	info, ok := r.byName[symbol]
	r.mu.RUnlock()
	if !ok {
		return AssetInfo{}, fmt.Errorf("hyperliquid: unknown asset %q", symbol)
	}
	return info, nil
}

func (r *AssetResolver) cached(symbol string) (AssetInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.expiredLocked() {
		return AssetInfo{}, false
	}
	info, ok := r.byName[symbol]
	return info, ok
}

func (r *AssetResolver) expired() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.expiredLocked()
}

func (r *AssetResolver) expiredLocked() bool {
	return r.fetchedAt.IsZero() || time.Since(r.fetchedAt) >= r.ttl
}

// FetchMeta builds a FetchFunc that POSTs {"type":"meta"} to baseURL's
// /info endpoint and flattens the response's perpetual universe into
// AssetInfo entries. It opens its own short-lived resty client rather
// than sharing Client's, since the asset universe is public data needed
// before Client.Initialize has anywhere to hang an authenticated one.
func FetchMeta(baseURL string) FetchFunc {
	http := resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second)
	return func(ctx context.Context) ([]AssetInfo, error) {
		var result struct {
			Universe []struct {
				Name       string `json:"name"`
				SzDecimals int32  `json:"szDecimals"`
			} `json:"universe"`
		}
		resp, err := http.R().
			SetContext(ctx).
			SetBody(map[string]string{"type": "meta"}).
			SetResult(&result).
			Post("/info")
		if err != nil {
			return nil, fmt.Errorf("hyperliquid: fetch meta: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("hyperliquid: fetch meta: status %d: %s", resp.StatusCode(), resp.String())
		}

		assets := make([]AssetInfo, 0, len(result.Universe))
		for i, u := range result.Universe {
			assets = append(assets, AssetInfo{Name: u.Name, AssetID: PerpAssetID(i), SizeDecimals: u.SzDecimals})
		}
		return assets, nil
	}
}

// QuantizeSize truncates size to the asset's configured size decimals.
func QuantizeSize(info AssetInfo, size decimal.Decimal) decimal.Decimal {
	return size.Truncate(info.SizeDecimals)
}
