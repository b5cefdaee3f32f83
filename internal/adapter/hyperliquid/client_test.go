package hyperliquid

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/latentspeed/tradingengine/internal/adapter"
	"github.com/latentspeed/tradingengine/pkg/domain"
)

func TestPlaceOrderRejectsNonCexDetails(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Logger: slog.Default()})
	resp := c.PlaceOrder(context.Background(), adapter.OrderRequest{ClID: "cl-1", Details: domain.Details{}})
	if resp.Accepted || resp.ReasonCode != domain.ReasonInvalidParams {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCancelOrderIdempotentOnEmptyExchangeID(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Logger: slog.Default()})
	resp := c.CancelOrder(context.Background(), "cl-1", "ETH", "")
	if !resp.Accepted || resp.ReasonCode != domain.ReasonOK {
		t.Errorf("expected idempotent accept, got %+v", resp)
	}
}

func TestPlaceOrderAcceptedViaBatcher(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"response": map[string]any{
				"type": "default",
				"data": map[string]any{
					"statuses": []map[string]any{
						{"resting": map[string]any{"oid": 42}},
					},
				},
			},
		})
	}))
	defer server.Close()

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	fakeSignerProcess(t, stdinR, stdoutW, func(req SignRequest) SignResponse {
		return SignResponse{ID: req.ID, R: "0xr", S: "0xs", V: 27}
	})
	signer := NewSigner(stdinW, stdoutR, slog.Default())

	fetch := func(ctx context.Context) ([]AssetInfo, error) {
		return []AssetInfo{{Name: "ETH", AssetID: 1, SizeDecimals: 3}}, nil
	}

	c := NewClient(Config{Signer: signer, Fetch: fetch, Logger: slog.Default(), BatchCadence: 5 * time.Millisecond})
	c.Initialize("0xaccount", "privkey", true)
	c.http.SetBaseURL(server.URL)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.batcher.Run(runCtx)

	price := decimal.NewFromFloat(2500)
	req := adapter.OrderRequest{
		ClID:        "cl-1",
		ProductType: domain.ProductPerpetual,
		Details: domain.Details{
			CexOrder: &domain.CexOrderDetails{
				Symbol: "ETH",
				Side:   domain.Buy,
				TIF:    domain.TIFGTC,
				Size:   decimal.NewFromFloat(1),
				Price:  &price,
			},
		},
	}

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()
	resp := c.PlaceOrder(callCtx, req)
	if !resp.Accepted {
		t.Fatalf("expected acceptance, got %+v", resp)
	}
	if resp.ExchangeOrderID != "42" {
		t.Errorf("ExchangeOrderID = %q, want 42", resp.ExchangeOrderID)
	}
}

func TestPlaceOrderRequestBodyUsesTerseVenueKeys(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"response": map[string]any{
				"type": "default",
				"data": map[string]any{
					"statuses": []map[string]any{
						{"resting": map[string]any{"oid": 7}},
					},
				},
			},
		})
	}))
	defer server.Close()

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	fakeSignerProcess(t, stdinR, stdoutW, func(req SignRequest) SignResponse {
		return SignResponse{ID: req.ID, R: "0xr", S: "0xs", V: 27}
	})
	signer := NewSigner(stdinW, stdoutR, slog.Default())

	fetch := func(ctx context.Context) ([]AssetInfo, error) {
		return []AssetInfo{{Name: "ETH", AssetID: 1, SizeDecimals: 3}}, nil
	}

	c := NewClient(Config{Signer: signer, Fetch: fetch, Logger: slog.Default(), BatchCadence: 5 * time.Millisecond})
	c.Initialize("0xaccount", "privkey", true)
	c.http.SetBaseURL(server.URL)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.batcher.Run(runCtx)

	price := decimal.NewFromFloat(2500)
	req := adapter.OrderRequest{
		ClID:        "cl-1",
		ProductType: domain.ProductPerpetual,
		Details: domain.Details{
			CexOrder: &domain.CexOrderDetails{
				Symbol:     "ETH",
				Side:       domain.Buy,
				TIF:        domain.TIFGTC,
				Size:       decimal.NewFromFloat(1),
				Price:      &price,
				ReduceOnly: true,
			},
		},
	}

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()
	if resp := c.PlaceOrder(callCtx, req); !resp.Accepted {
		t.Fatalf("expected acceptance, got %+v", resp)
	}

	action, ok := gotBody["action"].(map[string]any)
	if !ok {
		t.Fatalf("action missing or wrong type: %#v", gotBody["action"])
	}
	orders, ok := action["orders"].([]any)
	if !ok || len(orders) != 1 {
		t.Fatalf("orders missing or wrong shape: %#v", action["orders"])
	}
	order, ok := orders[0].(map[string]any)
	if !ok {
		t.Fatalf("order entry wrong type: %#v", orders[0])
	}

	for _, key := range []string{"a", "b", "p", "s", "r", "t", "c"} {
		if _, present := order[key]; !present {
			t.Errorf("order missing terse key %q: %#v", key, order)
		}
	}
	for _, key := range []string{"Asset", "IsBuy", "LimitPx", "Sz", "ReduceOnly", "OrderType", "Cloid"} {
		if _, present := order[key]; present {
			t.Errorf("order unexpectedly carries Go field name %q instead of its terse key", key)
		}
	}
}

func TestPlaceOrderTimesOutWhenVenueNeverResponds(t *testing.T) {
	t.Parallel()

	stdinR, stdinW := io.Pipe()
	stdoutR, _ := io.Pipe()
	_ = stdinR
	signer := NewSigner(stdinW, stdoutR, slog.Default())

	fetch := func(ctx context.Context) ([]AssetInfo, error) {
		return []AssetInfo{{Name: "ETH", AssetID: 1, SizeDecimals: 3}}, nil
	}

	c := NewClient(Config{Signer: signer, Fetch: fetch, Logger: slog.Default(), BatchCadence: 5 * time.Millisecond})
	c.Initialize("0xaccount", "privkey", true)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.batcher.Run(runCtx)

	req := adapter.OrderRequest{
		ClID:        "cl-1",
		ProductType: domain.ProductPerpetual,
		Details: domain.Details{
			CexOrder: &domain.CexOrderDetails{
				Symbol: "ETH",
				Side:   domain.Buy,
				TIF:    domain.TIFGTC,
				Size:   decimal.NewFromFloat(1),
			},
		},
	}

	callCtx, callCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer callCancel()
	resp := c.PlaceOrder(callCtx, req)
	if resp.Accepted {
		t.Errorf("expected a timeout rejection, got acceptance")
	}
}
