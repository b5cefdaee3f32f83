// Package lifecycle implements the lifecycle processor (C10): the
// central orchestrator that owns the in-flight order table and drives
// every order from submission through its terminal report.
//
// Grounded on the teacher's internal/engine.Engine: a single struct
// owning the shared maps, with dedicated handler methods per inbound
// event type instead of strategy/scanner/risk concerns. The difference
// from the teacher is scope, not shape: dedup -> validate -> dispatch ->
// place/cancel/replace on the synchronous path, and normalize -> publish
// on the async path.
package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/latentspeed/tradingengine/internal/adapter"
	"github.com/latentspeed/tradingengine/internal/dispatch"
	"github.com/latentspeed/tradingengine/internal/enginepool"
	"github.com/latentspeed/tradingengine/internal/inflight"
	"github.com/latentspeed/tradingengine/internal/ingest"
	"github.com/latentspeed/tradingengine/internal/normalize"
	"github.com/latentspeed/tradingengine/internal/publish"
	"github.com/latentspeed/tradingengine/internal/router"
	"github.com/latentspeed/tradingengine/internal/stats"
	"github.com/latentspeed/tradingengine/internal/symbol"
	"github.com/latentspeed/tradingengine/pkg/domain"
)

// AdapterCallDeadline bounds every synchronous adapter call per §5's
// "every adapter operation has a per-call deadline (default 2.5 s)".
const AdapterCallDeadline = 2500 * time.Millisecond

// Config bundles the Processor's collaborators.
type Config struct {
	Table      *inflight.Table
	Router     *router.Router
	Parser     *ingest.Parser
	Publisher  *publish.Publisher
	ReportPool *enginepool.Pool[domain.ExecutionReport]
	FillPool   *enginepool.Pool[domain.Fill]
	Stats      *stats.Collector
	Logger     *slog.Logger
	// Now returns the current wall-clock time in nanoseconds. Overridable
	// for tests; defaults to time.Now().UnixNano() when nil.
	Now func() uint64
}

// Processor is the lifecycle processor (C10).
type Processor struct {
	table      *inflight.Table
	router     *router.Router
	parser     *ingest.Parser
	publisher  *publish.Publisher
	reportPool *enginepool.Pool[domain.ExecutionReport]
	fillPool   *enginepool.Pool[domain.Fill]
	stats      *stats.Collector
	logger     *slog.Logger
	now        func() uint64
}

// New builds a Processor from cfg.
func New(cfg Config) *Processor {
	now := cfg.Now
	if now == nil {
		now = func() uint64 { return uint64(time.Now().UnixNano()) }
	}
	return &Processor{
		table:      cfg.Table,
		router:     cfg.Router,
		parser:     cfg.Parser,
		publisher:  cfg.Publisher,
		reportPool: cfg.ReportPool,
		fillPool:   cfg.FillPool,
		stats:      cfg.Stats,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Process handles one inbound ExecutionOrder on T_ingress. It always
// releases order back to the parser's pool before returning, per §3's
// ownership rule: the parser owns the record until handoff, and handoff
// ends when Process returns.
func (p *Processor) Process(ctx context.Context, order *domain.ExecutionOrder) {
	defer p.parser.Release(order)
	p.stats.IncOrdersReceived()

	action, ok := dispatch.Classify(string(order.Action))
	if !ok {
		p.rejectByClID(order.ClID, domain.ReasonInvalidParams, "unknown action: "+string(order.Action))
		return
	}

	switch action {
	case domain.ActionPlace:
		p.handlePlace(ctx, order)
	case domain.ActionCancel:
		p.handleCancel(ctx, order)
	case domain.ActionReplace:
		p.handleReplace(ctx, order)
	}
}

func (p *Processor) handlePlace(ctx context.Context, order *domain.ExecutionOrder) {
	// 1. Deduplication (§4.10-1).
	if existing, found := p.table.Get(order.ClID); found {
		if !existing.State.IsTerminal() {
			return // drop silently: already in flight
		}
		p.table.Remove(order.ClID) // terminal: allow a new placement
	}

	// 2. Pre-trade normalization (§4.1): canonicalize the symbol and
	// time-in-force token before validation and dispatch see them.
	if details := order.Details.CexOrder; details != nil {
		details.Symbol = symbol.Canonical(details.Symbol, order.ProductType)
		details.TIF = symbol.NormalizeTIF(string(details.TIF))
	}

	// 3. Validation (§4.10-2).
	if reasonCode, reasonText, ok := validatePlace(order); !ok {
		p.stats.IncOrdersRejected()
		p.rejectByClID(order.ClID, reasonCode, reasonText)
		return
	}

	// 4. Venue routing (§4.5).
	a, ok := p.router.Resolve(order.Venue)
	if !ok {
		p.stats.IncOrdersRejected()
		p.rejectByClID(order.ClID, domain.ReasonInvalidParams, "unknown venue: "+order.Venue)
		return
	}

	details := order.Details.CexOrder

	// 5. Insert a pending entry before calling the adapter.
	pending := &domain.InFlightOrder{
		ClientOrderID: order.ClID,
		Venue:         strings.ToLower(order.Venue),
		Category:      categoryFor(order.ProductType),
		CreationTsNs:  p.now(),
		State:         domain.StateNew,
		Tags:          order.Tags,
	}
	if details != nil {
		pending.Symbol = details.Symbol
		pending.Side = details.Side
		pending.OrderType = details.OrderType
		pending.Size = details.Size
		pending.ReduceOnly = details.ReduceOnly
		if details.Price != nil {
			pending.Price = *details.Price
		}
	}
	p.table.Insert(pending)

	callCtx, cancel := context.WithTimeout(ctx, AdapterCallDeadline)
	defer cancel()

	resp := a.PlaceOrder(callCtx, adapter.OrderRequest{
		ClID:        order.ClID,
		ProductType: order.ProductType,
		Details:     order.Details,
	})

	if !resp.Accepted {
		p.table.Remove(order.ClID)
		p.stats.IncOrdersRejected()
		reasonCode := resp.ReasonCode
		if reasonCode == "" {
			reasonCode = domain.ReasonVenueReject
		}
		p.publishReport(order.ClID, domain.StatusRejected, resp.ExchangeOrderID, reasonCode, resp.ReasonText, order.Venue)
		return
	}

	if resp.ExchangeOrderID != "" {
		p.table.BindExchangeID(order.ClID, pending.Venue, resp.ExchangeOrderID)
	}
	p.stats.IncOrdersAccepted()
	p.publishReport(order.ClID, domain.StatusAccepted, resp.ExchangeOrderID, domain.ReasonOK, "", order.Venue)
}

func (p *Processor) handleCancel(ctx context.Context, order *domain.ExecutionOrder) {
	cancelDetails := order.Details.Cancel
	if cancelDetails == nil || cancelDetails.ClIDToCancel == "" {
		p.rejectByClID(order.ClID, domain.ReasonInvalidParams, "cancel missing cl_id_to_cancel")
		return
	}
	targetClID := cancelDetails.ClIDToCancel

	a, ok := p.router.Resolve(order.Venue)
	if !ok {
		p.rejectByClID(targetClID, domain.ReasonInvalidParams, "unknown venue: "+order.Venue)
		return
	}

	existing, found := p.table.Get(targetClID)
	cancelSymbol := cancelDetails.Symbol
	if found {
		cancelSymbol = existing.Symbol
	} else if cancelSymbol != "" {
		cancelSymbol = symbol.Canonical(cancelSymbol, order.ProductType)
	}

	callCtx, cancel := context.WithTimeout(ctx, AdapterCallDeadline)
	defer cancel()

	resp := a.CancelOrder(callCtx, targetClID, cancelSymbol, cancelDetails.ExchangeOrderID)
	if !resp.Accepted {
		p.publishReport(targetClID, domain.StatusRejected, resp.ExchangeOrderID, resp.ReasonCode, resp.ReasonText, order.Venue)
		return
	}

	// Idempotent: an unknown-at-venue cancel still reports canceled.
	p.table.Remove(targetClID)
	p.publishReport(targetClID, domain.StatusCanceled, resp.ExchangeOrderID, domain.ReasonOK, "", order.Venue)
}

func (p *Processor) handleReplace(ctx context.Context, order *domain.ExecutionOrder) {
	replaceDetails := order.Details.Replace
	if replaceDetails == nil || replaceDetails.ClIDToReplace == "" {
		p.rejectByClID(order.ClID, domain.ReasonInvalidParams, "replace missing cl_id_to_replace")
		return
	}
	targetClID := replaceDetails.ClIDToReplace

	a, ok := p.router.Resolve(order.Venue)
	if !ok {
		p.rejectByClID(targetClID, domain.ReasonInvalidParams, "unknown venue: "+order.Venue)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, AdapterCallDeadline)
	defer cancel()

	resp := a.ModifyOrder(callCtx, targetClID, replaceDetails.NewSize, replaceDetails.NewPrice)
	if !resp.Accepted {
		p.publishReport(targetClID, domain.StatusRejected, resp.ExchangeOrderID, resp.ReasonCode, resp.ReasonText, order.Venue)
		return
	}

	updated, found := p.table.Update(targetClID, func(o *domain.InFlightOrder) {
		if replaceDetails.NewSize != nil {
			o.Size = *replaceDetails.NewSize
		}
		if replaceDetails.NewPrice != nil {
			o.Price = *replaceDetails.NewPrice
		}
		o.LastUpdateTsNs = p.now()
	})
	if found && resp.ExchangeOrderID != "" {
		p.table.BindExchangeID(targetClID, updated.Venue, resp.ExchangeOrderID)
	}
	p.publishReport(targetClID, domain.StatusReplaced, resp.ExchangeOrderID, domain.ReasonOK, "", order.Venue)
}

// HandleOrderUpdate processes one async order status update from venue,
// delivered via an adapter's OnOrderUpdate callback.
func (p *Processor) HandleOrderUpdate(ctx context.Context, venue string, upd adapter.OrderUpdate) {
	triple := normalize.Normalize(upd.RawStatus, upd.RawReason)

	if _, found := p.table.Get(upd.ClID); !found {
		if _, ok := p.rehydrate(ctx, venue, upd.ClID); !ok {
			// Lazy rehydration failed: publish keyed by cl_id only, no
			// in-flight mutation.
			p.publishReport(upd.ClID, triple.Status, upd.ExchangeOrderID, triple.ReasonCode, triple.ReasonText, venue)
			return
		}
	}

	p.publishReport(upd.ClID, triple.Status, upd.ExchangeOrderID, triple.ReasonCode, triple.ReasonText, venue)

	updated, ok := p.table.Update(upd.ClID, func(o *domain.InFlightOrder) {
		o.State = stateFor(triple.Status, upd.RawStatus)
		o.LastUpdateTsNs = upd.TsNs
		o.CumulativeFilled = upd.CumulativeFilled
		o.AverageFillPrice = upd.AverageFillPrice
	})
	if !ok {
		return
	}
	if upd.ExchangeOrderID != "" {
		p.table.BindExchangeID(upd.ClID, updated.Venue, upd.ExchangeOrderID)
	}
	if updated.State.IsTerminal() {
		p.table.Remove(upd.ClID)
	}
}

// HandleFill processes one async fill, delivered via an adapter's OnFill
// callback. Deduplication is by exec_id; the execution_type tag marks
// fills for orders this process did not place as "external".
func (p *Processor) HandleFill(venue string, f adapter.FillData) {
	order, found := p.table.Get(f.ClID)
	executionType := "live"
	if !found {
		executionType = "external"
	} else if order.HasExecID(f.ExecID) {
		return // already recorded; drop silently
	}

	fill, ok := p.fillPool.Acquire()
	if !ok {
		p.stats.IncPoolExhausted()
		return
	}
	fill.ClID = f.ClID
	fill.ExchangeOrderID = f.ExchangeOrderID
	fill.ExecID = f.ExecID
	fill.SymbolOrPair = f.Symbol
	fill.Price = f.Price
	fill.Size = f.Size
	fill.FeeCurrency = f.FeeCurrency
	fill.FeeAmount = f.FeeAmount
	fill.Liquidity = f.Liquidity
	fill.TsNs = f.TsNs
	fill.Tags = map[string]string{"venue": venue, "execution_type": executionType}

	if found {
		p.table.Update(f.ClID, func(o *domain.InFlightOrder) {
			o.AddFill(domain.Fill{ExecID: f.ExecID})
			o.CumulativeFilled = o.CumulativeFilled.Add(f.Size)
		})
	}

	if !p.publisher.EnqueueFill(fill) {
		p.fillPool.Release(fill, func(fl *domain.Fill) { *fl = domain.Fill{} })
		p.stats.IncQueueFull()
		return
	}
}

// rehydrate performs the one-shot lazy rehydration of an order this
// process has no record of, by calling query_order on the venue.
func (p *Processor) rehydrate(ctx context.Context, venue, clID string) (domain.InFlightOrder, bool) {
	a, ok := p.router.Resolve(venue)
	if !ok {
		return domain.InFlightOrder{}, false
	}
	callCtx, cancel := context.WithTimeout(ctx, AdapterCallDeadline)
	defer cancel()

	resp := a.QueryOrder(callCtx, clID)
	if !resp.Accepted {
		return domain.InFlightOrder{}, false
	}

	order := &domain.InFlightOrder{
		ClientOrderID:   clID,
		ExchangeOrderID: resp.ExchangeOrderID,
		Venue:           strings.ToLower(venue),
		State:           domain.StateNew,
		CreationTsNs:    p.now(),
		LastUpdateTsNs:  p.now(),
	}
	p.table.Insert(order)
	return p.table.Get(clID)
}

func (p *Processor) rejectByClID(clID string, reasonCode domain.ReasonCode, reasonText string) {
	p.publishReport(clID, domain.StatusRejected, "", reasonCode, reasonText, "")
}

func (p *Processor) publishReport(clID string, status domain.ReportStatus, exchangeOrderID string, reasonCode domain.ReasonCode, reasonText, venue string) {
	report, ok := p.reportPool.Acquire()
	if !ok {
		p.stats.IncPoolExhausted()
		return
	}
	report.ClID = clID
	report.Status = status
	report.ExchangeOrderID = exchangeOrderID
	report.ReasonCode = reasonCode
	report.ReasonText = reasonText
	report.TsNs = p.now()
	report.Tags = map[string]string{"venue": venue}

	if !p.publisher.EnqueueReport(report) {
		p.reportPool.Release(report, func(r *domain.ExecutionReport) { *r = domain.ExecutionReport{} })
		p.stats.IncQueueFull()
	}
}

func categoryFor(product domain.ProductType) domain.Category {
	if product == domain.ProductPerpetual {
		return domain.CategoryLinear
	}
	return domain.CategorySpot
}

func stateFor(status domain.ReportStatus, rawStatus string) domain.OrderState {
	switch status {
	case domain.StatusCanceled:
		return domain.StateCanceled
	case domain.StatusRejected:
		return domain.StateRejected
	}
	switch strings.ToLower(strings.TrimSpace(rawStatus)) {
	case "filled":
		return domain.StateFilled
	case "partially_filled":
		return domain.StatePartiallyFilled
	default:
		return domain.StateNew
	}
}

// validatePlace checks the required-field, consistency, and sign
// invariants from §4.10-2. It only validates CEX (spot/perpetual) orders;
// AMM/CLMM/transfer validation is venue/adapter-specific and delegated.
func validatePlace(order *domain.ExecutionOrder) (domain.ReasonCode, string, bool) {
	if order.ClID == "" {
		return domain.ReasonInvalidParams, "missing cl_id", false
	}
	if order.Venue == "" {
		return domain.ReasonInvalidParams, "missing venue", false
	}

	switch order.ProductType {
	case domain.ProductSpot, domain.ProductPerpetual:
		details := order.Details.CexOrder
		if details == nil {
			return domain.ReasonInvalidParams, "missing cex_order details", false
		}
		if details.Symbol == "" {
			return domain.ReasonInvalidParams, "missing symbol", false
		}
		if details.Size.Cmp(decimal.Zero) <= 0 {
			return domain.ReasonInvalidParams, "size must be > 0", false
		}
		if (details.OrderType == domain.OrderLimit || details.OrderType == domain.OrderStopLimit) && details.Price == nil {
			return domain.ReasonInvalidParams, "price required for limit/stop_limit", false
		}
		if (details.OrderType == domain.OrderStop || details.OrderType == domain.OrderStopLimit) && details.StopPrice == nil {
			return domain.ReasonInvalidParams, "stop_price required for stop/stop_limit", false
		}
		if order.ProductType == domain.ProductSpot && details.ReduceOnly {
			return domain.ReasonInvalidParams, "reduce_only not allowed on spot", false
		}
		return domain.ReasonOK, "", true

	case domain.ProductAmmSwap, domain.ProductClmmSwap, domain.ProductTransfer:
		return domain.ReasonOK, "", true

	default:
		return domain.ReasonInvalidParams, "missing details: unknown product_type " + string(order.ProductType), false
	}
}
