// Grounded on the Hyperliquid SDK's wire types (other_examples
// dwdwow-hl-go types.go: OrderWire's terse single-letter msgpack tags
// `a`/`b`/`p`/`s`/`r`/`t`/`c`, OrderTypeWire's limit/trigger union). The
// venue requires both forms of this exact shape: msgpack for the bytes
// the signature is taken over (postSignedAction, via EncodeAction) and
// JSON with the identical terse keys for the HTTP request body the
// signed action rides in — so every wire struct below carries matching
// msgpack and json tags.
package hyperliquid

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/latentspeed/tradingengine/pkg/domain"
)

// LimitOrderWire is the wire form of a GTC/IOC/ALO limit order.
type LimitOrderWire struct {
	Tif string `msgpack:"tif" json:"tif"`
}

// OrderTypeWire is the wire-encoded order type. Only the limit variant is
// defined; trigger orders have no field here.
type OrderTypeWire struct {
	Limit *LimitOrderWire `msgpack:"limit,omitempty" json:"limit,omitempty"`
}

// OrderWire is one signed order entry, using the venue's terse
// single-letter field names.
type OrderWire struct {
	Asset      int           `msgpack:"a" json:"a"`
	IsBuy      bool          `msgpack:"b" json:"b"`
	LimitPx    string        `msgpack:"p" json:"p"`
	Sz         string        `msgpack:"s" json:"s"`
	ReduceOnly bool          `msgpack:"r" json:"r"`
	OrderType  OrderTypeWire `msgpack:"t" json:"t"`
	Cloid      *string       `msgpack:"c,omitempty" json:"c,omitempty"`
}

// PlaceOrdersAction is the signed envelope for one or more order
// placements, grouped per the batcher's flush (§4.8).
type PlaceOrdersAction struct {
	Type     string      `msgpack:"type" json:"type"`
	Orders   []OrderWire `msgpack:"orders" json:"orders"`
	Grouping string      `msgpack:"grouping" json:"grouping"`
}

// CancelWire identifies one order to cancel by asset id and venue oid.
type CancelWire struct {
	Asset int   `msgpack:"a" json:"a"`
	Oid   int64 `msgpack:"o" json:"o"`
}

// CancelAction is the signed envelope for one or more cancels.
type CancelAction struct {
	Type    string       `msgpack:"type" json:"type"`
	Cancels []CancelWire `msgpack:"cancels" json:"cancels"`
}

var tifWire = map[domain.TimeInForce]string{
	domain.TIFGTC:      "Gtc",
	domain.TIFIOC:      "Ioc",
	domain.TIFPostOnly: "Alo",
}

// BuildOrderWire converts a validated CEX order into its wire form,
// using asset for the dense asset id and size-decimals quantization and
// cloid for the venue's 128-bit hex client id.
func BuildOrderWire(details *domain.CexOrderDetails, asset AssetInfo, cloid string) (OrderWire, error) {
	tif, ok := tifWire[details.TIF]
	if !ok {
		return OrderWire{}, fmt.Errorf("hyperliquid: unsupported time_in_force %q", details.TIF)
	}

	price := ""
	if details.Price != nil {
		price = details.Price.String()
	}

	size := QuantizeSize(asset, details.Size).String()

	c := cloid
	return OrderWire{
		Asset:      asset.AssetID,
		IsBuy:      details.Side == domain.Buy,
		LimitPx:    price,
		Sz:         size,
		ReduceOnly: details.ReduceOnly,
		OrderType:  OrderTypeWire{Limit: &LimitOrderWire{Tif: tif}},
		Cloid:      &c,
	}, nil
}

// EncodeAction msgpack-encodes an action: these are the bytes the signer
// hashes. The HTTP request body itself is JSON.
func EncodeAction(action any) ([]byte, error) {
	return msgpack.Marshal(action)
}
