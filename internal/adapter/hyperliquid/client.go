// Grounded on the teacher's internal/exchange/client.go: a resty REST
// client with retry and per-category rate limiting, extended here with
// the signer/nonce/cloid/asset machinery Hyperliquid's signed-action
// protocol requires. Client is the Adapter (C7) implementation for the
// Hyperliquid venue.
package hyperliquid

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/latentspeed/tradingengine/internal/adapter"
	"github.com/latentspeed/tradingengine/internal/symbol"
	"github.com/latentspeed/tradingengine/pkg/domain"
)

const (
	mainnetBaseURL = "https://api.hyperliquid.xyz"
	testnetBaseURL = "https://api.hyperliquid-testnet.xyz"
	mainnetWSURL   = "wss://api.hyperliquid.xyz/ws"
	testnetWSURL   = "wss://api.hyperliquid-testnet.xyz/ws"

	defaultBatchCadence  = 100 * time.Millisecond
	defaultMaxBatchSize  = 16
	defaultAssetCacheTTL = 5 * time.Minute
	defaultRateCapacity  = 20
	defaultRatePerSecond = 10
)

// Config configures a Client. The external NDJSON signer subprocess is
// started by the caller, which wires its stdin/stdout into NewSigner and
// passes the result in before constructing Client.
type Config struct {
	Signer        *Signer
	Fetch         FetchFunc
	Logger        *slog.Logger
	BatchCadence  time.Duration
	MaxBatchSize  int
	AssetCacheTTL time.Duration
	// HTTPTimeout bounds each REST call end-to-end; defaults to 10s.
	HTTPTimeout time.Duration
}

// Client implements adapter.Adapter for the Hyperliquid venue.
type Client struct {
	http   *resty.Client
	signer *Signer
	nonce  *NonceManager
	assets *AssetResolver
	cloids *CloidRegistry
	limiter *TokenBucket
	backoff *Backoff
	batcher *Batcher

	accountAddress string
	privateKey     string
	vaultAddress   string
	testnet        bool

	connected atomic.Bool
	ws        *userFeed

	mu       sync.RWMutex
	onUpdate func(adapter.OrderUpdate)
	onFill   func(adapter.FillData)
	onError  func(error)

	runCancel   context.CancelFunc
	httpTimeout time.Duration
	logger      *slog.Logger
}

// NewClient builds a Client that has not yet been Initialize'd or
// Connect'ed.
func NewClient(cfg Config) *Client {
	cadence := cfg.BatchCadence
	if cadence <= 0 {
		cadence = defaultBatchCadence
	}
	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatchSize
	}
	ttl := cfg.AssetCacheTTL
	if ttl <= 0 {
		ttl = defaultAssetCacheTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpTimeout := cfg.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}

	c := &Client{
		signer:      cfg.Signer,
		nonce:       NewNonceManager(),
		assets:      NewAssetResolver(ttl, cfg.Fetch),
		cloids:      NewCloidRegistry(),
		limiter:     NewTokenBucket(defaultRateCapacity, defaultRatePerSecond),
		backoff:     NewBackoff(500*time.Millisecond, 30*time.Second),
		httpTimeout: httpTimeout,
		logger:      logger,
	}
	c.batcher = NewBatcher(cadence, maxBatch, c.backoff, c.sendPlaceBatch, logger)
	return c
}

// Initialize stores venue credentials. apiKey is the account (wallet)
// address; apiSecret is the private key forwarded to the external signer
// on every Sign call — this process never uses it to sign directly.
func (c *Client) Initialize(apiKey, apiSecret string, testnet bool) bool {
	c.accountAddress = apiKey
	c.privateKey = apiSecret
	c.vaultAddress = apiKey
	c.testnet = testnet

	baseURL := mainnetBaseURL
	if testnet {
		baseURL = testnetBaseURL
	}
	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(c.httpTimeout).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")
	return true
}

// Connect starts the batcher's flush loop and the private order/fill
// WebSocket feed.
func (c *Client) Connect(ctx context.Context) bool {
	runCtx, cancel := context.WithCancel(ctx)
	c.runCancel = cancel

	go c.batcher.Run(runCtx)

	wsURL := mainnetWSURL
	if c.testnet {
		wsURL = testnetWSURL
	}
	c.ws = newUserFeed(wsURL, c.accountAddress, c.logger)
	c.ws.onOrderUpdate = c.dispatchOrderUpdate
	c.ws.onFill = c.dispatchFill
	c.ws.onError = c.dispatchError
	c.ws.resolveClID = c.cloids.ClIDForCloid
	go c.ws.Run(runCtx)

	c.connected.Store(true)
	return true
}

// Disconnect tears down the batcher and WebSocket feed.
func (c *Client) Disconnect() {
	if c.runCancel != nil {
		c.runCancel()
	}
	if c.ws != nil {
		c.ws.Close()
	}
	c.connected.Store(false)
}

// IsConnected reports whether Connect has run and Disconnect has not.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// OnOrderUpdate registers the callback invoked for async order status changes.
func (c *Client) OnOrderUpdate(cb func(adapter.OrderUpdate)) {
	c.mu.Lock()
	c.onUpdate = cb
	c.mu.Unlock()
}

// OnFill registers the callback invoked for async trade executions.
func (c *Client) OnFill(cb func(adapter.FillData)) {
	c.mu.Lock()
	c.onFill = cb
	c.mu.Unlock()
}

// OnError registers the callback invoked on feed-level errors.
func (c *Client) OnError(cb func(error)) {
	c.mu.Lock()
	c.onError = cb
	c.mu.Unlock()
}

func (c *Client) dispatchOrderUpdate(u adapter.OrderUpdate) {
	c.mu.RLock()
	cb := c.onUpdate
	c.mu.RUnlock()
	if cb != nil {
		cb(u)
	}
}

func (c *Client) dispatchFill(f adapter.FillData) {
	c.mu.RLock()
	cb := c.onFill
	c.mu.RUnlock()
	if cb != nil {
		cb(f)
	}
}

func (c *Client) dispatchError(err error) {
	c.mu.RLock()
	cb := c.onError
	c.mu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// PlaceOrder queues req for the next batcher flush and blocks until that
// flush's venue response resolves req's future or ctx expires.
func (c *Client) PlaceOrder(ctx context.Context, req adapter.OrderRequest) adapter.OrderResponse {
	if req.Details.CexOrder == nil {
		return adapter.OrderResponse{ReasonCode: domain.ReasonInvalidParams, ReasonText: "hyperliquid only accepts cex_order details"}
	}
	details := req.Details.CexOrder

	asset, err := c.assets.Resolve(ctx, symbol.Base(details.Symbol, req.ProductType))
	if err != nil {
		return adapter.OrderResponse{ReasonCode: domain.ReasonInvalidParams, ReasonText: err.Error()}
	}

	cloid := c.cloids.CloidFor(req.ClID)
	wire, err := BuildOrderWire(details, asset, cloid)
	if err != nil {
		return adapter.OrderResponse{ReasonCode: domain.ReasonInvalidParams, ReasonText: err.Error()}
	}

	queue := QueueFast
	if details.TIF == domain.TIFPostOnly {
		queue = QueueSlow
	}

	fut := c.batcher.Submit(queue, req.ClID, wire)
	select {
	case res := <-fut:
		if res.Err != nil {
			return adapter.OrderResponse{ReasonCode: domain.ReasonNetworkError, ReasonText: res.Err.Error()}
		}
		if !res.Accepted {
			return adapter.OrderResponse{RawReason: res.ExchangeOrderID, ReasonCode: domain.ReasonVenueReject, ReasonText: res.ExchangeOrderID}
		}
		return adapter.OrderResponse{Accepted: true, ExchangeOrderID: res.ExchangeOrderID, RawStatus: "resting", ReasonCode: domain.ReasonOK}
	case <-ctx.Done():
		return adapter.OrderResponse{ReasonCode: domain.ReasonNetworkError, ReasonText: "place order: " + ctx.Err().Error()}
	}
}

// CancelOrder cancels by exchange order id when known; an unknown or empty
// exchangeOrderID is treated as already-not-resting and acknowledged
// without a venue round trip, keeping cancel idempotent.
func (c *Client) CancelOrder(ctx context.Context, clID, sym, exchangeOrderID string) adapter.OrderResponse {
	if exchangeOrderID == "" {
		return adapter.OrderResponse{Accepted: true, ReasonCode: domain.ReasonOK, RawStatus: "canceled"}
	}
	oid, err := strconv.ParseInt(exchangeOrderID, 10, 64)
	if err != nil {
		return adapter.OrderResponse{Accepted: true, ReasonCode: domain.ReasonOK, RawStatus: "canceled"}
	}

	asset, err := c.assets.Resolve(ctx, symbol.Base(sym, domain.ProductPerpetual))
	if err != nil {
		return adapter.OrderResponse{ReasonCode: domain.ReasonInvalidParams, ReasonText: err.Error()}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return adapter.OrderResponse{ReasonCode: domain.ReasonRateLimited, ReasonText: err.Error()}
	}

	action := CancelAction{Type: "cancel", Cancels: []CancelWire{{Asset: asset.AssetID, Oid: oid}}}
	resp, err := c.postSignedAction(ctx, action)
	if err != nil {
		return c.translateNetworkError(err)
	}

	status := firstStatus(resp)
	if status != "" && status != "success" {
		// The venue reports "unknown oid" for orders already gone;
		// cancel is idempotent either way.
		return adapter.OrderResponse{Accepted: true, RawStatus: "canceled", ReasonCode: domain.ReasonOK}
	}
	return adapter.OrderResponse{Accepted: true, ExchangeOrderID: exchangeOrderID, RawStatus: "canceled", ReasonCode: domain.ReasonOK}
}

// ModifyOrder always returns a rejected response with invalid_params; it
// neither cancels the resting order nor places a replacement. A replace
// on this venue is expressed by the caller as a cancel followed by a new
// place.
func (c *Client) ModifyOrder(ctx context.Context, clID string, newSize, newPrice *decimal.Decimal) adapter.OrderResponse {
	return adapter.OrderResponse{ReasonCode: domain.ReasonInvalidParams, ReasonText: "hyperliquid: modify must be expressed as cancel+replace by the caller"}
}

// QueryOrder looks up an order's current state via the cloid derived from
// clID, since the venue has no concept of the gateway's client id.
func (c *Client) QueryOrder(ctx context.Context, clID string) adapter.OrderResponse {
	cloid, ok := c.cloids.CloidForClID(clID)
	if !ok {
		return adapter.OrderResponse{ReasonCode: domain.ReasonInvalidParams, ReasonText: "unknown cl_id"}
	}

	var result struct {
		Status string `json:"status"`
		Order  struct {
			Oid   int64  `json:"oid"`
			Coin  string `json:"coin"`
		} `json:"order"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"type": "orderStatus", "user": c.accountAddress, "oid": cloid}).
		SetResult(&result).
		Post("/info")
	if err != nil {
		return c.translateNetworkError(err)
	}
	if resp.StatusCode() != http.StatusOK {
		return adapter.OrderResponse{ReasonCode: domain.ReasonVenueReject, RawStatus: resp.String()}
	}
	return adapter.OrderResponse{Accepted: true, ExchangeOrderID: strconv.FormatInt(result.Order.Oid, 10), RawStatus: result.Status, ReasonCode: domain.ReasonOK}
}

// ListOpenOrders fetches resting orders for the account, optionally
// narrowed to filters.Symbol.
func (c *Client) ListOpenOrders(ctx context.Context, filters adapter.OpenOrderFilters) ([]adapter.OpenOrderBrief, error) {
	var raw []struct {
		Oid   int64  `json:"oid"`
		Coin  string `json:"coin"`
		Side  string `json:"side"`
		Sz    string `json:"sz"`
		LimPx string `json:"limitPx"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"type": "openOrders", "user": c.accountAddress}).
		SetResult(&raw).
		Post("/info")
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: list open orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("hyperliquid: list open orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	briefs := make([]adapter.OpenOrderBrief, 0, len(raw))
	for _, o := range raw {
		if filters.Symbol != "" && o.Coin != filters.Symbol {
			continue
		}
		size, _ := decimal.NewFromString(o.Sz)
		price, _ := decimal.NewFromString(o.LimPx)
		side := domain.Buy
		if o.Side == "A" {
			side = domain.Sell
		}
		briefs = append(briefs, adapter.OpenOrderBrief{
			ExchangeOrderID: strconv.FormatInt(o.Oid, 10),
			Symbol:          o.Coin,
			Side:            side,
			Size:            size,
			Price:           price,
			State:           domain.StateNew,
		})
	}
	return briefs, nil
}

// sendPlaceBatch is the batcher's SendFunc: it signs and posts one
// envelope of queued orders and resolves every item's future.
func (c *Client) sendPlaceBatch(ctx context.Context, items []*batchItem) {
	if err := c.limiter.Wait(ctx); err != nil {
		failAll(items, err)
		return
	}

	orders := make([]OrderWire, len(items))
	for i, item := range items {
		orders[i] = item.Wire
	}
	action := PlaceOrdersAction{Type: "order", Grouping: "na", Orders: orders}

	c.logger.Debug("hyperliquid: flushing signed batch", "orders", len(orders))

	resp, err := c.postSignedAction(ctx, action)
	if err != nil {
		if isRateLimited(err) {
			c.backoff.Trigger()
		}
		failAll(items, err)
		return
	}
	c.backoff.Reset()

	statuses := statusesOf(resp)
	for i, item := range items {
		if i >= len(statuses) {
			item.Result <- BatchResult{Err: fmt.Errorf("hyperliquid: missing status for order %d", i)}
			continue
		}
		s := statuses[i]
		switch {
		case s.Error != "":
			item.Result <- BatchResult{Accepted: false, ExchangeOrderID: s.Error}
		case s.Resting != nil:
			item.Result <- BatchResult{Accepted: true, ExchangeOrderID: strconv.FormatInt(s.Resting.Oid, 10)}
		case s.Filled != nil:
			item.Result <- BatchResult{Accepted: true, ExchangeOrderID: strconv.FormatInt(s.Filled.Oid, 10)}
		default:
			item.Result <- BatchResult{Err: fmt.Errorf("hyperliquid: unrecognized order status")}
		}
	}
}

func failAll(items []*batchItem, err error) {
	for _, item := range items {
		item.Result <- BatchResult{Err: err}
	}
}

type orderStatus struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		Oid int64 `json:"oid"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}

type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []orderStatus `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

func statusesOf(resp exchangeResponse) []orderStatus { return resp.Response.Data.Statuses }

func firstStatus(resp exchangeResponse) string {
	statuses := statusesOf(resp)
	if len(statuses) == 0 {
		return resp.Status
	}
	if statuses[0].Error != "" {
		return statuses[0].Error
	}
	return "success"
}

// postSignedAction signs action via the external signer and POSTs the
// resulting envelope to the exchange endpoint.
func (c *Client) postSignedAction(ctx context.Context, action any) (exchangeResponse, error) {
	actionMsgpack, err := EncodeAction(action)
	if err != nil {
		return exchangeResponse{}, fmt.Errorf("hyperliquid: msgpack-encode action: %w", err)
	}

	nonce := c.nonce.Next()
	sig, err := c.signer.Sign(ctx, c.privateKey, actionMsgpack, nonce, c.vaultAddress, !c.testnet)
	if err != nil {
		return exchangeResponse{}, fmt.Errorf("hyperliquid: sign action: %w", err)
	}

	body := map[string]any{
		"action":    action,
		"nonce":     nonce,
		"signature": map[string]any{"r": sig.R, "s": sig.S, "v": sig.V},
	}
	if c.vaultAddress != "" {
		body["vaultAddress"] = c.vaultAddress
	}

	var result exchangeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/exchange")
	if err != nil {
		return exchangeResponse{}, err
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return exchangeResponse{}, rateLimitedError{}
	}
	if resp.StatusCode() != http.StatusOK {
		return exchangeResponse{}, fmt.Errorf("hyperliquid: exchange call: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

type rateLimitedError struct{}

func (rateLimitedError) Error() string { return "hyperliquid: rate limited" }

func isRateLimited(err error) bool {
	_, ok := err.(rateLimitedError)
	return ok
}

func (c *Client) translateNetworkError(err error) adapter.OrderResponse {
	if isRateLimited(err) {
		c.backoff.Trigger()
		return adapter.OrderResponse{ReasonCode: domain.ReasonRateLimited, ReasonText: err.Error()}
	}
	return adapter.OrderResponse{ReasonCode: domain.ReasonNetworkError, ReasonText: err.Error()}
}
