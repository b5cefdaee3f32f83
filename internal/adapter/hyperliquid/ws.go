// Grounded on the teacher's internal/exchange/ws.go: a single feed type
// with auto-reconnect, exponential backoff, and a read deadline. Adapted
// from Polymarket's book/trade/order channels down to Hyperliquid's
// single userEvents subscription, which multiplexes order and fill
// updates onto one socket.
package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/latentspeed/tradingengine/internal/adapter"
)

const (
	wsReadTimeout      = 60 * time.Second
	wsWriteTimeout     = 10 * time.Second
	wsMaxReconnectWait = 30 * time.Second
)

// userFeed subscribes to one account's private order/fill stream.
type userFeed struct {
	url     string
	user    string
	connMu  sync.Mutex
	conn    *websocket.Conn
	logger  *slog.Logger

	onOrderUpdate func(adapter.OrderUpdate)
	onFill        func(adapter.FillData)
	onError       func(error)
	resolveClID   func(cloid string) (string, bool)
}

func newUserFeed(url, user string, logger *slog.Logger) *userFeed {
	return &userFeed{url: url, user: user, logger: logger.With("component", "hyperliquid_ws")}
}

// Run connects and maintains the feed with exponential backoff,
// blocking until ctx is canceled.
func (f *userFeed) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("hyperliquid ws disconnected, reconnecting", "err", err, "backoff", backoff)
		if f.onError != nil {
			f.onError(err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsMaxReconnectWait {
			backoff = wsMaxReconnectWait
		}
	}
}

// Close closes the active connection, if any.
func (f *userFeed) Close() {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

func (f *userFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	sub := map[string]any{
		"method": "subscribe",
		"subscription": map[string]string{
			"type": "userEvents",
			"user": f.user,
		},
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("hyperliquid ws connected", "user", f.user)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatch(msg)
	}
}

type userEventEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type wsFillEvent struct {
	Oid    int64  `json:"oid"`
	Cloid  string `json:"cloid"`
	Coin   string `json:"coin"`
	Px     string `json:"px"`
	Sz     string `json:"sz"`
	Side   string `json:"side"`
	Tid    int64  `json:"tid"`
	Fee    string `json:"fee"`
	FeeCur string `json:"feeToken"`
	Crossed bool  `json:"crossed"`
	Time   int64  `json:"time"`
}

type wsOrderEvent struct {
	Order struct {
		Oid   int64  `json:"oid"`
		Cloid string `json:"cloid"`
		Coin  string `json:"coin"`
	} `json:"order"`
	Status          string `json:"status"`
	CumulativeFilled string `json:"totalSz"`
	Time            int64  `json:"statusTimestamp"`
}

func (f *userFeed) dispatch(raw []byte) {
	var env userEventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		f.logger.Debug("hyperliquid ws: ignoring non-json message", "data", string(raw))
		return
	}

	switch env.Channel {
	case "fills":
		var fills []wsFillEvent
		if err := json.Unmarshal(env.Data, &fills); err != nil {
			f.logger.Error("hyperliquid ws: unmarshal fills", "err", err)
			return
		}
		for _, fl := range fills {
			f.emitFill(fl)
		}
	case "orderUpdates":
		var updates []wsOrderEvent
		if err := json.Unmarshal(env.Data, &updates); err != nil {
			f.logger.Error("hyperliquid ws: unmarshal order updates", "err", err)
			return
		}
		for _, u := range updates {
			f.emitOrderUpdate(u)
		}
	default:
		f.logger.Debug("hyperliquid ws: unhandled channel", "channel", env.Channel)
	}
}

// resolveCloid maps a venue cloid back to this gateway's cl_id, falling
// back to the cloid itself for orders this process never placed (e.g.
// resting orders from a prior process lifetime) so downstream lookups
// still have a stable, if untracked, key.
func (f *userFeed) resolveCloid(cloid string) string {
	if f.resolveClID == nil {
		return cloid
	}
	if clID, ok := f.resolveClID(cloid); ok {
		return clID
	}
	return cloid
}

func (f *userFeed) emitFill(fl wsFillEvent) {
	if f.onFill == nil {
		return
	}
	price, _ := decimal.NewFromString(fl.Px)
	size, _ := decimal.NewFromString(fl.Sz)
	fee, _ := decimal.NewFromString(fl.Fee)
	liquidity := adapter.FillData{
		ClID:            f.resolveCloid(fl.Cloid),
		ExchangeOrderID: strconv.FormatInt(fl.Oid, 10),
		ExecID:          strconv.FormatInt(fl.Tid, 10),
		Symbol:          fl.Coin,
		Price:           price,
		Size:            size,
		FeeCurrency:     fl.FeeCur,
		FeeAmount:       fee,
		TsNs:            uint64(fl.Time) * uint64(time.Millisecond),
	}
	if fl.Crossed {
		liquidity.Liquidity = "taker"
	} else {
		liquidity.Liquidity = "maker"
	}
	f.onFill(liquidity)
}

func (f *userFeed) emitOrderUpdate(u wsOrderEvent) {
	if f.onOrderUpdate == nil {
		return
	}
	filled, _ := decimal.NewFromString(u.CumulativeFilled)
	f.onOrderUpdate(adapter.OrderUpdate{
		ClID:             f.resolveCloid(u.Order.Cloid),
		ExchangeOrderID:  strconv.FormatInt(u.Order.Oid, 10),
		Symbol:           u.Order.Coin,
		RawStatus:        u.Status,
		CumulativeFilled: filled,
		TsNs:             uint64(u.Time) * uint64(time.Millisecond),
	})
}
