// Package symbol implements the canonical symbol and time-in-force
// normalizer (C1). It defines total functions from a raw, venue-specific
// symbol to two canonical forms — compact (ETHUSDT) and hyphenated
// (ETH-USDT, ETH-USDT-PERP) — plus a total function that normalizes
// time-in-force tokens.
//
// Grounded on the teacher's pkg/types.TickSize: a closed-enum type with
// small total-function methods (Decimals, AmountDecimals) rather than a
// general parser.
package symbol

import (
	"strings"

	"github.com/latentspeed/tradingengine/pkg/domain"
)

// quoteCurrencies is the closed set used for longest-match splitting when
// building the hyphenated form from a compact symbol. Order does not
// matter: splitLongestQuote keeps the longest matching suffix.
var quoteCurrencies = []string{"USDT", "USDC", "BTC", "ETH", "USD", "EUR", "DAI", "FDUSD"}

// Compact canonicalizes a raw venue symbol into its compact form, e.g.
// "ETH/USDT:USDT", "ETH-USDT-PERP", and "ethusdt" all map to "ETHUSDT".
// Compact is idempotent: Compact(Compact(s, p), p) == Compact(s, p).
func Compact(raw string, product domain.ProductType) string {
	s := strings.ToUpper(strings.TrimSpace(raw))

	// Rule 1: strip settle suffix after a colon (ETH/USDT:USDT -> ETH/USDT).
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		s = s[:idx]
	}

	// Rule 2: strip -PERP suffix when building compact.
	s = strings.TrimSuffix(s, "-PERP")

	// Drop all remaining separators to produce the compact joined form.
	s = strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)

	return s
}

// IsPerp reports whether product denotes a perpetual contract, used by
// Hyphen to decide whether to re-append the -PERP suffix.
func IsPerp(product domain.ProductType) bool {
	return product == domain.ProductPerpetual
}

// Hyphen canonicalizes a raw venue symbol into its hyphenated form, e.g.
// "ETHUSDT" -> "ETH-USDT", and "ETHUSDT" with isPerp=true -> "ETH-USDT-PERP".
// Splitting is longest-quote-match over the closed quoteCurrencies set.
func Hyphen(raw string, isPerp bool) string {
	compact := Compact(raw, "")

	base, quote := splitLongestQuote(compact)
	if quote == "" {
		// No known quote currency matched: return the compact form
		// unchanged rather than guessing a split point.
		if isPerp && !strings.HasSuffix(compact, "-PERP") {
			return compact + "-PERP"
		}
		return compact
	}

	out := base + "-" + quote
	if isPerp {
		out += "-PERP"
	}
	return out
}

// Canonical produces the canonical hyphenated form for (symbol, product),
// choosing PERP suffixing from the product type. This is the function the
// round-trip law in spec.md §8 calls "canonical(s, p)".
func Canonical(raw string, product domain.ProductType) string {
	return Hyphen(Compact(raw, product), IsPerp(product))
}

// Base extracts the base asset from a raw venue symbol, e.g. "ETH/USDT",
// "ETHUSDT", and "ETH-USDT-PERP" all yield "ETH". Used by adapters whose
// asset universe is keyed by base asset alone (Hyperliquid's perpetuals).
func Base(raw string, product domain.ProductType) string {
	base, _ := splitLongestQuote(Compact(raw, product))
	return base
}

// splitLongestQuote finds the longest quote currency suffix in quoteCurrencies
// that compact ends with, and returns (base, quote). If none match, quote is "".
func splitLongestQuote(compact string) (base, quote string) {
	bestLen := -1
	for _, q := range quoteCurrencies {
		if strings.HasSuffix(compact, q) && len(compact) > len(q) {
			if len(q) > bestLen {
				bestLen = len(q)
				quote = q
			}
		}
	}
	if quote == "" {
		return compact, ""
	}
	return compact[:len(compact)-len(quote)], quote
}

// tifTable maps case-insensitive raw TIF tokens to their canonical form.
var tifTable = map[string]domain.TimeInForce{
	"gtc":       domain.TIFGTC,
	"ioc":       domain.TIFIOC,
	"fok":       domain.TIFFOK,
	"po":        domain.TIFPostOnly,
	"post_only": domain.TIFPostOnly,
}

// NormalizeTIF maps a case-insensitive raw time-in-force token to its
// canonical form. Unknown tokens are passed through unchanged (flagged by
// downstream validation, not rejected here — see spec.md §4.1).
func NormalizeTIF(raw string) domain.TimeInForce {
	if canon, ok := tifTable[strings.ToLower(raw)]; ok {
		return canon
	}
	return domain.TimeInForce(raw)
}
