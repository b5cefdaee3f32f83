// Package adapter defines the exchange adapter contract (C7): the
// venue-agnostic interface every exchange integration implements, plus
// the request/response types that cross that boundary.
//
// Grounded on the teacher's internal/exchange package split (client.go
// for synchronous REST calls, ws.go for async callback delivery):
// the contract here keeps that same synchronous-call/async-callback
// split, generalized from a single Polymarket client to any venue.
package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/latentspeed/tradingengine/pkg/domain"
)

// OrderRequest is the venue-agnostic request passed to PlaceOrder.
type OrderRequest struct {
	ClID        string
	ProductType domain.ProductType
	Details     domain.Details
}

// OrderResponse is the synchronous acknowledgment or rejection returned
// by PlaceOrder, CancelOrder, ModifyOrder, and QueryOrder.
type OrderResponse struct {
	Accepted        bool
	ExchangeOrderID string
	RawStatus       string
	RawReason       string
	ReasonCode      domain.ReasonCode
	ReasonText      string
}

// OpenOrderFilters narrows ListOpenOrders; a zero value means "no filter".
type OpenOrderFilters struct {
	Symbol string
}

// OpenOrderBrief summarizes one order resting at the venue.
type OpenOrderBrief struct {
	ClID            string
	ExchangeOrderID string
	Symbol          string
	Side            domain.Side
	Size            decimal.Decimal
	Price           decimal.Decimal
	State           domain.OrderState
}

// OrderUpdate is an async status change delivered via the OnOrderUpdate
// callback. RawStatus/RawReason are venue-native tokens; the lifecycle
// processor normalizes them through C9 before publishing.
type OrderUpdate struct {
	ClID             string
	ExchangeOrderID  string
	Symbol           string
	RawStatus        string
	RawReason        string
	CumulativeFilled decimal.Decimal
	AverageFillPrice decimal.Decimal
	TsNs             uint64
}

// FillData is an async trade execution delivered via the OnFill callback.
// Adapters are responsible for deduplicating by ExecID within their own
// boundary before invoking the callback (§4.7).
type FillData struct {
	ClID            string
	ExchangeOrderID string
	ExecID          string
	Symbol          string
	Price           decimal.Decimal
	Size            decimal.Decimal
	FeeCurrency     string
	FeeAmount       decimal.Decimal
	Liquidity       domain.Liquidity
	TsNs            uint64
}

// Adapter is the contract every exchange integration implements.
//
// PlaceOrder, CancelOrder, ModifyOrder, and QueryOrder are synchronous
// and bounded by ctx's deadline. Connect establishes any persistent
// transport (e.g. a private WebSocket); adapters that are purely
// REST-driven may treat Connect as a no-op returning true.
type Adapter interface {
	Initialize(apiKey, apiSecret string, testnet bool) bool
	Connect(ctx context.Context) bool
	Disconnect()
	IsConnected() bool

	PlaceOrder(ctx context.Context, req OrderRequest) OrderResponse
	CancelOrder(ctx context.Context, clID, symbol, exchangeOrderID string) OrderResponse
	ModifyOrder(ctx context.Context, clID string, newSize, newPrice *decimal.Decimal) OrderResponse
	QueryOrder(ctx context.Context, clID string) OrderResponse
	ListOpenOrders(ctx context.Context, filters OpenOrderFilters) ([]OpenOrderBrief, error)

	OnOrderUpdate(cb func(OrderUpdate))
	OnFill(cb func(FillData))
	OnError(cb func(error))
}
