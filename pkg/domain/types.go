// Package domain defines the wire and in-process data model shared across
// every layer of the trading engine — ingress orders, egress reports and
// fills, and the in-flight order table. It has no dependency on internal
// packages, so it can be imported by any layer.
package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

func init() {
	// Emit decimal fields as plain JSON numbers rather than quoted
	// strings; decoding accepts either form.
	decimal.MarshalJSONWithoutQuotes = true
}

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Action is the operation an ExecutionOrder requests.
type Action string

const (
	ActionPlace   Action = "place"
	ActionCancel  Action = "cancel"
	ActionReplace Action = "replace"
)

// VenueType classifies where an order executes.
type VenueType string

const (
	VenueCEX   VenueType = "cex"
	VenueDEX   VenueType = "dex"
	VenueChain VenueType = "chain"
)

// ProductType selects which details variant an ExecutionOrder carries.
type ProductType string

const (
	ProductSpot      ProductType = "spot"
	ProductPerpetual ProductType = "perpetual"
	ProductAmmSwap   ProductType = "amm_swap"
	ProductClmmSwap  ProductType = "clmm_swap"
	ProductTransfer  ProductType = "transfer"
)

// Side is the direction of a CEX order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderType enumerates supported CEX order types.
type OrderType string

const (
	OrderLimit      OrderType = "limit"
	OrderMarket     OrderType = "market"
	OrderStop       OrderType = "stop"
	OrderStopLimit  OrderType = "stop_limit"
)

// TimeInForce enumerates supported time-in-force tokens (canonical form).
type TimeInForce string

const (
	TIFGTC      TimeInForce = "GTC"
	TIFIOC      TimeInForce = "IOC"
	TIFFOK      TimeInForce = "FOK"
	TIFPostOnly TimeInForce = "PostOnly"
)

// MarginMode enumerates CEX margin modes.
type MarginMode string

const (
	MarginCross    MarginMode = "cross"
	MarginIsolated MarginMode = "isolated"
	MarginNone     MarginMode = "none"
)

// ReportStatus is the canonical status an ExecutionReport carries.
type ReportStatus string

const (
	StatusAccepted ReportStatus = "accepted"
	StatusRejected ReportStatus = "rejected"
	StatusCanceled ReportStatus = "canceled"
	StatusReplaced ReportStatus = "replaced"
)

// ReasonCode is the canonical, closed enumeration of failure/success reasons.
type ReasonCode string

const (
	ReasonOK                ReasonCode = "ok"
	ReasonInvalidParams     ReasonCode = "invalid_params"
	ReasonRiskBlocked       ReasonCode = "risk_blocked"
	ReasonVenueReject       ReasonCode = "venue_reject"
	ReasonInsufficientFunds ReasonCode = "insufficient_balance"
	ReasonMinSize           ReasonCode = "min_size"
	ReasonPriceOutOfBounds  ReasonCode = "price_out_of_bounds"
	ReasonRateLimited       ReasonCode = "rate_limited"
	ReasonNetworkError      ReasonCode = "network_error"
	ReasonExpired           ReasonCode = "expired"
)

// Liquidity classifies a fill as maker, taker, or unknown.
type Liquidity string

const (
	LiquidityMaker   Liquidity = "maker"
	LiquidityTaker   Liquidity = "taker"
	LiquidityUnknown Liquidity = "none"
)

// OrderState is the internal lifecycle state of an InFlightOrder.
type OrderState string

const (
	StateNew             OrderState = "new"
	StatePartiallyFilled OrderState = "partially_filled"
	StateFilled          OrderState = "filled"
	StateCanceled        OrderState = "canceled"
	StateRejected        OrderState = "rejected"
)

// IsTerminal reports whether s is a terminal lifecycle state.
func (s OrderState) IsTerminal() bool {
	switch s {
	case StateFilled, StateCanceled, StateRejected:
		return true
	default:
		return false
	}
}

// Category is the canonical venue-neutral market category of an in-flight order.
type Category string

const (
	CategorySpot    Category = "spot"
	CategoryLinear  Category = "linear"
	CategoryInverse Category = "inverse"
)

// ————————————————————————————————————————————————————————————————————————
// Ingress: ExecutionOrder and its tagged details variant
// ————————————————————————————————————————————————————————————————————————

// CexOrderDetails carries the fields for product_type=spot|perpetual.
type CexOrderDetails struct {
	Symbol      string            `json:"symbol"`
	Side        Side              `json:"side"`
	OrderType   OrderType         `json:"order_type"`
	TIF         TimeInForce       `json:"time_in_force"`
	Size        decimal.Decimal   `json:"size"`
	Price       *decimal.Decimal  `json:"price,omitempty"`
	StopPrice   *decimal.Decimal  `json:"stop_price,omitempty"`
	ReduceOnly  bool              `json:"reduce_only"`
	MarginMode  MarginMode        `json:"margin_mode"`
	Params      map[string]string `json:"params,omitempty"`
}

// AmmSwapDetails carries the fields for product_type=amm_swap.
type AmmSwapDetails struct {
	PoolAddress  string          `json:"pool_address"`
	TokenIn      string          `json:"token_in"`
	TokenOut     string          `json:"token_out"`
	AmountIn     decimal.Decimal `json:"amount_in"`
	MinAmountOut decimal.Decimal `json:"min_amount_out"`
	SlippageBps  int             `json:"slippage_bps"`
}

// ClmmSwapDetails carries the fields for product_type=clmm_swap.
type ClmmSwapDetails struct {
	PoolAddress  string          `json:"pool_address"`
	TokenIn      string          `json:"token_in"`
	TokenOut     string          `json:"token_out"`
	AmountIn     decimal.Decimal `json:"amount_in"`
	MinAmountOut decimal.Decimal `json:"min_amount_out"`
	TickLower    int             `json:"tick_lower"`
	TickUpper    int             `json:"tick_upper"`
	SlippageBps  int             `json:"slippage_bps"`
}

// TransferDetails carries the fields for product_type=transfer.
type TransferDetails struct {
	ToAddress string          `json:"to_address"`
	Asset     string          `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Chain     string          `json:"chain"`
}

// CancelDetails carries the fields for action=cancel.
type CancelDetails struct {
	ClIDToCancel     string `json:"cl_id_to_cancel"`
	Symbol           string `json:"symbol,omitempty"`
	ExchangeOrderID  string `json:"exchange_order_id,omitempty"`
}

// ReplaceDetails carries the fields for action=replace.
type ReplaceDetails struct {
	ClIDToReplace string           `json:"cl_id_to_replace"`
	NewPrice      *decimal.Decimal `json:"new_price,omitempty"`
	NewSize       *decimal.Decimal `json:"new_size,omitempty"`
}

// Details is the tagged variant keyed by ProductType/Action. Exactly one
// field is populated per ExecutionOrder; which one is determined by
// Action (cancel/replace) or ProductType (place). It has no json tags
// of its own: ExecutionOrder's MarshalJSON/UnmarshalJSON flatten whichever
// variant is active directly into the wire "details" object (no
// "cex_order"/"amm_swap"/... wrapper key), per the literal payloads in
// spec.md's worked examples.
type Details struct {
	CexOrder *CexOrderDetails
	AmmSwap  *AmmSwapDetails
	ClmmSwap *ClmmSwapDetails
	Transfer *TransferDetails
	Cancel   *CancelDetails
	Replace  *ReplaceDetails
}

// flatten returns whichever variant is selected by action/product for
// encoding, or an empty object if none is set.
func (d Details) flatten(action Action, product ProductType) any {
	switch action {
	case ActionCancel:
		if d.Cancel != nil {
			return d.Cancel
		}
	case ActionReplace:
		if d.Replace != nil {
			return d.Replace
		}
	}
	switch product {
	case ProductSpot, ProductPerpetual:
		if d.CexOrder != nil {
			return d.CexOrder
		}
	case ProductAmmSwap:
		if d.AmmSwap != nil {
			return d.AmmSwap
		}
	case ProductClmmSwap:
		if d.ClmmSwap != nil {
			return d.ClmmSwap
		}
	case ProductTransfer:
		if d.Transfer != nil {
			return d.Transfer
		}
	}
	return struct{}{}
}

// ExecutionOrder is the ingress record: one venue-agnostic execution intent.
type ExecutionOrder struct {
	Version     int
	ClID        string
	Action      Action
	VenueType   VenueType
	Venue       string
	ProductType ProductType
	Details     Details
	TsNs        uint64
	Tags        map[string]string
}

// executionOrderWire is ExecutionOrder's wire shape: identical except
// Details is opaque (any on encode, RawMessage on decode) so the active
// variant can be flattened/dispatched without a wrapper key.
type executionOrderWire struct {
	Version     int               `json:"version"`
	ClID        string            `json:"cl_id"`
	Action      Action            `json:"action"`
	VenueType   VenueType         `json:"venue_type"`
	Venue       string            `json:"venue"`
	ProductType ProductType       `json:"product_type"`
	Details     any               `json:"details"`
	TsNs        uint64            `json:"ts_ns"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// MarshalJSON flattens o.Details into a bare "details" object, matching
// the wire form spec.md's worked examples use (no per-variant wrapper
// key).
func (o ExecutionOrder) MarshalJSON() ([]byte, error) {
	return json.Marshal(executionOrderWire{
		Version:     o.Version,
		ClID:        o.ClID,
		Action:      o.Action,
		VenueType:   o.VenueType,
		Venue:       o.Venue,
		ProductType: o.ProductType,
		Details:     o.Details.flatten(o.Action, o.ProductType),
		TsNs:        o.TsNs,
		Tags:        o.Tags,
	})
}

// UnmarshalJSON decodes a flat "details" object into whichever Details
// variant Action (cancel/replace) or ProductType (place) selects.
func (o *ExecutionOrder) UnmarshalJSON(data []byte) error {
	var wire struct {
		Version     int               `json:"version"`
		ClID        string            `json:"cl_id"`
		Action      Action            `json:"action"`
		VenueType   VenueType         `json:"venue_type"`
		Venue       string            `json:"venue"`
		ProductType ProductType       `json:"product_type"`
		Details     json.RawMessage   `json:"details"`
		TsNs        uint64            `json:"ts_ns"`
		Tags        map[string]string `json:"tags,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	o.Version = wire.Version
	o.ClID = wire.ClID
	o.Action = wire.Action
	o.VenueType = wire.VenueType
	o.Venue = wire.Venue
	o.ProductType = wire.ProductType
	o.TsNs = wire.TsNs
	o.Tags = wire.Tags
	o.Details = Details{}

	if len(wire.Details) == 0 || string(wire.Details) == "null" {
		return nil
	}

	switch wire.Action {
	case ActionCancel:
		var d CancelDetails
		if err := json.Unmarshal(wire.Details, &d); err != nil {
			return fmt.Errorf("domain: decode cancel details: %w", err)
		}
		o.Details.Cancel = &d
		return nil
	case ActionReplace:
		var d ReplaceDetails
		if err := json.Unmarshal(wire.Details, &d); err != nil {
			return fmt.Errorf("domain: decode replace details: %w", err)
		}
		o.Details.Replace = &d
		return nil
	}

	switch wire.ProductType {
	case ProductSpot, ProductPerpetual:
		var d CexOrderDetails
		if err := json.Unmarshal(wire.Details, &d); err != nil {
			return fmt.Errorf("domain: decode cex order details: %w", err)
		}
		o.Details.CexOrder = &d
	case ProductAmmSwap:
		var d AmmSwapDetails
		if err := json.Unmarshal(wire.Details, &d); err != nil {
			return fmt.Errorf("domain: decode amm swap details: %w", err)
		}
		o.Details.AmmSwap = &d
	case ProductClmmSwap:
		var d ClmmSwapDetails
		if err := json.Unmarshal(wire.Details, &d); err != nil {
			return fmt.Errorf("domain: decode clmm swap details: %w", err)
		}
		o.Details.ClmmSwap = &d
	case ProductTransfer:
		var d TransferDetails
		if err := json.Unmarshal(wire.Details, &d); err != nil {
			return fmt.Errorf("domain: decode transfer details: %w", err)
		}
		o.Details.Transfer = &d
	}
	// unknown product_type on a place order: Details stays empty, and
	// validatePlace rejects it downstream as missing details.
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Egress: ExecutionReport and Fill
// ————————————————————————————————————————————————————————————————————————

// ExecutionReport is the egress acknowledgment/terminal-state record.
type ExecutionReport struct {
	ClID            string            `json:"cl_id"`
	Status          ReportStatus      `json:"status"`
	ExchangeOrderID string            `json:"exchange_order_id,omitempty"`
	ReasonCode      ReasonCode        `json:"reason_code"`
	ReasonText      string            `json:"reason_text,omitempty"`
	TsNs            uint64            `json:"ts_ns"`
	Tags            map[string]string `json:"tags,omitempty"`
}

// Fill is the egress trade-execution record.
type Fill struct {
	ClID            string            `json:"cl_id"`
	ExchangeOrderID string            `json:"exchange_order_id"`
	ExecID          string            `json:"exec_id"`
	SymbolOrPair    string            `json:"symbol_or_pair"`
	Price           decimal.Decimal   `json:"price"`
	Size            decimal.Decimal   `json:"size"`
	FeeCurrency     string            `json:"fee_currency"`
	FeeAmount       decimal.Decimal   `json:"fee_amount"`
	Liquidity       Liquidity         `json:"liquidity"`
	TsNs            uint64            `json:"ts_ns"`
	Tags            map[string]string `json:"tags,omitempty"`
}

// ————————————————————————————————————————————————————————————————————————
// Internal: InFlightOrder
// ————————————————————————————————————————————————————————————————————————

// InFlightOrder is the engine's belief about one order resting at a venue.
// Owned exclusively by the lifecycle processor; never mutated concurrently.
type InFlightOrder struct {
	ClientOrderID     string
	ExchangeOrderID   string
	Venue             string
	Category          Category
	Symbol            string
	Side              Side
	OrderType         OrderType
	Size              decimal.Decimal
	Price             decimal.Decimal
	ReduceOnly        bool
	CreationTsNs      uint64
	LastUpdateTsNs    uint64
	State             OrderState
	CumulativeFilled  decimal.Decimal
	AverageFillPrice  decimal.Decimal
	Fills             []Fill
	Tags              map[string]string
}

// maxTrackedFills bounds the per-order fill history retained for dedup/audit.
const maxTrackedFills = 256

// AddFill records a fill against this order, bounding retained history.
func (o *InFlightOrder) AddFill(f Fill) {
	o.Fills = append(o.Fills, f)
	if len(o.Fills) > maxTrackedFills {
		o.Fills = o.Fills[len(o.Fills)-maxTrackedFills:]
	}
}

// HasExecID reports whether a fill with the given exec_id was already recorded.
func (o *InFlightOrder) HasExecID(execID string) bool {
	for _, f := range o.Fills {
		if f.ExecID == execID {
			return true
		}
	}
	return false
}
