package lifecycle

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/latentspeed/tradingengine/internal/adapter"
	"github.com/latentspeed/tradingengine/internal/enginepool"
	"github.com/latentspeed/tradingengine/internal/inflight"
	"github.com/latentspeed/tradingengine/internal/ingest"
	"github.com/latentspeed/tradingengine/internal/publish"
	"github.com/latentspeed/tradingengine/internal/router"
	"github.com/latentspeed/tradingengine/internal/stats"
	"github.com/latentspeed/tradingengine/pkg/domain"
)

type fakeAdapter struct {
	placeResp  adapter.OrderResponse
	cancelResp adapter.OrderResponse
	modifyResp adapter.OrderResponse
	queryResp  adapter.OrderResponse

	lastPlaceReq adapter.OrderRequest
}

func (f *fakeAdapter) Initialize(string, string, bool) bool { return true }
func (f *fakeAdapter) Connect(context.Context) bool         { return true }
func (f *fakeAdapter) Disconnect()                          {}
func (f *fakeAdapter) IsConnected() bool                     { return true }
func (f *fakeAdapter) PlaceOrder(_ context.Context, req adapter.OrderRequest) adapter.OrderResponse {
	f.lastPlaceReq = req
	return f.placeResp
}
func (f *fakeAdapter) CancelOrder(context.Context, string, string, string) adapter.OrderResponse {
	return f.cancelResp
}
func (f *fakeAdapter) ModifyOrder(context.Context, string, *decimal.Decimal, *decimal.Decimal) adapter.OrderResponse {
	return f.modifyResp
}
func (f *fakeAdapter) QueryOrder(context.Context, string) adapter.OrderResponse {
	return f.queryResp
}
func (f *fakeAdapter) ListOpenOrders(context.Context, adapter.OpenOrderFilters) ([]adapter.OpenOrderBrief, error) {
	return nil, nil
}
func (f *fakeAdapter) OnOrderUpdate(func(adapter.OrderUpdate)) {}
func (f *fakeAdapter) OnFill(func(adapter.FillData))           {}
func (f *fakeAdapter) OnError(func(error))                     {}

func newTestProcessor(t *testing.T, a adapter.Adapter) (*Processor, *publish.Publisher) {
	t.Helper()

	orderPool := enginepool.NewPool(8, func() *domain.ExecutionOrder { return &domain.ExecutionOrder{} })
	parser := ingest.NewParser(orderPool, nil, nil)

	r := router.New()
	r.Register("hyperliquid", a)

	pub := publish.New(publish.Config{
		Conn:         nil,
		Queue:        enginepool.NewSPSCQueue[*publish.Envelope](16),
		EnvelopePool: enginepool.NewPool(16, func() *publish.Envelope { return &publish.Envelope{} }),
		ReportPool:   enginepool.NewPool(16, func() *domain.ExecutionReport { return &domain.ExecutionReport{} }),
		FillPool:     enginepool.NewPool(16, func() *domain.Fill { return &domain.Fill{} }),
		Stats:        stats.New(slog.Default(), prometheus.NewRegistry()),
		Profile:      publish.ProfileHighPerf,
		Logger:       slog.Default(),
	})

	p := New(Config{
		Table:      inflight.New(),
		Router:     r,
		Parser:     parser,
		Publisher:  pub,
		ReportPool: enginepool.NewPool(16, func() *domain.ExecutionReport { return &domain.ExecutionReport{} }),
		FillPool:   enginepool.NewPool(16, func() *domain.Fill { return &domain.Fill{} }),
		Stats:      stats.New(slog.Default(), prometheus.NewRegistry()),
		Logger:     slog.Default(),
		Now:        func() uint64 { return 1 },
	})
	return p, pub
}

func placeOrder(clID string) *domain.ExecutionOrder {
	price := decimal.NewFromFloat(100)
	return &domain.ExecutionOrder{
		ClID:        clID,
		Action:      domain.ActionPlace,
		Venue:       "hyperliquid",
		ProductType: domain.ProductSpot,
		Details: domain.Details{
			CexOrder: &domain.CexOrderDetails{
				Symbol:    "ETHUSDT",
				Side:      domain.Buy,
				OrderType: domain.OrderLimit,
				TIF:       domain.TIFGTC,
				Size:      decimal.NewFromFloat(1),
				Price:     &price,
			},
		},
	}
}

func TestProcessPlaceAcceptedPublishesReportAndTracksOrder(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{placeResp: adapter.OrderResponse{Accepted: true, ExchangeOrderID: "EX-1"}}
	p, pub := newTestProcessor(t, a)

	order := placeOrder("A1")
	p.Process(context.Background(), order)

	if _, ok := p.table.Get("A1"); !ok {
		t.Fatal("expected order to be tracked in-flight after acceptance")
	}

	env, ok := pub.Dequeue()
	if !ok {
		t.Fatal("expected a report to be enqueued")
	}
	if env.Report == nil || env.Report.Status != domain.StatusAccepted {
		t.Errorf("report = %+v, want accepted", env.Report)
	}
}

func TestProcessPlaceNormalizesSymbolAndTIFBeforeDispatch(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{placeResp: adapter.OrderResponse{Accepted: true, ExchangeOrderID: "EX-1"}}
	p, _ := newTestProcessor(t, a)

	price := decimal.NewFromFloat(2500.0)
	order := &domain.ExecutionOrder{
		ClID:        "A1",
		Action:      domain.ActionPlace,
		Venue:       "hyperliquid",
		ProductType: domain.ProductSpot,
		Details: domain.Details{
			CexOrder: &domain.CexOrderDetails{
				Symbol:    "ETH/USDT",
				Side:      domain.Buy,
				OrderType: domain.OrderLimit,
				TIF:       domain.TimeInForce("gtc"),
				Size:      decimal.NewFromFloat(0.02),
				Price:     &price,
			},
		},
	}
	p.Process(context.Background(), order)

	if a.lastPlaceReq.Details.CexOrder == nil {
		t.Fatal("expected adapter to receive cex order details")
	}
	if got := a.lastPlaceReq.Details.CexOrder.TIF; got != domain.TIFGTC {
		t.Errorf("adapter-visible time_in_force = %q, want %q", got, domain.TIFGTC)
	}
	if got := a.lastPlaceReq.Details.CexOrder.Symbol; got != "ETH-USDT" {
		t.Errorf("adapter-visible symbol = %q, want %q", got, "ETH-USDT")
	}

	tracked, ok := p.table.Get("A1")
	if !ok {
		t.Fatal("expected order to be tracked in-flight")
	}
	if tracked.Symbol != "ETH-USDT" {
		t.Errorf("in-flight symbol = %q, want %q", tracked.Symbol, "ETH-USDT")
	}
}

func TestProcessPlaceRejectedRemovesPendingEntry(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{placeResp: adapter.OrderResponse{Accepted: false, ReasonCode: domain.ReasonInsufficientFunds, ReasonText: "balance too low"}}
	p, pub := newTestProcessor(t, a)

	order := placeOrder("A2")
	p.Process(context.Background(), order)

	if _, ok := p.table.Get("A2"); ok {
		t.Fatal("expected no in-flight entry after rejection")
	}

	env, ok := pub.Dequeue()
	if !ok {
		t.Fatal("expected a report to be enqueued")
	}
	if env.Report.Status != domain.StatusRejected || env.Report.ReasonCode != domain.ReasonInsufficientFunds {
		t.Errorf("report = %+v, want rejected/insufficient_balance", env.Report)
	}
}

func TestProcessPlaceDedupDropsNonTerminalDuplicate(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{placeResp: adapter.OrderResponse{Accepted: true, ExchangeOrderID: "EX-1"}}
	p, pub := newTestProcessor(t, a)

	p.Process(context.Background(), placeOrder("A3"))
	pub.Dequeue() // drain first report

	p.Process(context.Background(), placeOrder("A3"))
	if _, ok := pub.Dequeue(); ok {
		t.Error("expected duplicate non-terminal placement to be dropped silently")
	}
}

func TestProcessPlaceValidationRejectsReduceOnlyOnSpot(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{placeResp: adapter.OrderResponse{Accepted: true}}
	p, pub := newTestProcessor(t, a)

	order := placeOrder("A4")
	order.Details.CexOrder.ReduceOnly = true
	p.Process(context.Background(), order)

	env, ok := pub.Dequeue()
	if !ok {
		t.Fatal("expected a rejection report")
	}
	if env.Report.Status != domain.StatusRejected || env.Report.ReasonCode != domain.ReasonInvalidParams {
		t.Errorf("report = %+v, want invalid_params rejection", env.Report)
	}
	if _, ok := p.table.Get("A4"); ok {
		t.Error("expected no in-flight entry for a validation failure")
	}
}

func TestProcessCancelIdempotentOnUnknownAtVenue(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{cancelResp: adapter.OrderResponse{Accepted: true, ReasonCode: domain.ReasonOK}}
	p, pub := newTestProcessor(t, a)

	cancelOrder := &domain.ExecutionOrder{
		ClID:   "CANCEL-1",
		Action: domain.ActionCancel,
		Venue:  "hyperliquid",
		Details: domain.Details{
			Cancel: &domain.CancelDetails{ClIDToCancel: "UNKNOWN-1"},
		},
	}
	p.Process(context.Background(), cancelOrder)

	env, ok := pub.Dequeue()
	if !ok {
		t.Fatal("expected a canceled report")
	}
	if env.Report.Status != domain.StatusCanceled || env.Report.ClID != "UNKNOWN-1" {
		t.Errorf("report = %+v, want canceled for UNKNOWN-1", env.Report)
	}
}

func TestHandleFillDeduplicatesByExecID(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{placeResp: adapter.OrderResponse{Accepted: true, ExchangeOrderID: "EX-1"}}
	p, pub := newTestProcessor(t, a)

	p.Process(context.Background(), placeOrder("A5"))
	pub.Dequeue() // drain accepted report

	p.HandleFill("hyperliquid", adapter.FillData{ClID: "A5", ExecID: "X1", Size: decimal.NewFromFloat(0.5)})
	if _, ok := pub.Dequeue(); !ok {
		t.Fatal("expected first fill to be published")
	}

	p.HandleFill("hyperliquid", adapter.FillData{ClID: "A5", ExecID: "X1", Size: decimal.NewFromFloat(0.5)})
	if _, ok := pub.Dequeue(); ok {
		t.Error("expected duplicate exec_id to be dropped")
	}
}
