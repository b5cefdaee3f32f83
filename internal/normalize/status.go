// Package normalize implements the reason & status normalizer (C9): a
// table-driven mapping from venue-native (status, reason) tokens to the
// canonical (status, reason_code, reason_text) triple defined by the
// domain package.
//
// Grounded on the teacher's WSFeed dispatch (internal/exchange/ws.go),
// which classifies inbound event_type strings via a tolerant switch
// rather than propagating the venue's own vocabulary upstream.
package normalize

import (
	"strings"

	"github.com/latentspeed/tradingengine/pkg/domain"
)

var statusTable = map[string]domain.ReportStatus{
	"new":                        domain.StatusAccepted,
	"partially_filled":           domain.StatusAccepted,
	"filled":                     domain.StatusAccepted,
	"accepted":                   domain.StatusAccepted,
	"cancelled":                  domain.StatusCanceled,
	"canceled":                   domain.StatusCanceled,
	"partially_filled_canceled":  domain.StatusCanceled,
	"inactive":                   domain.StatusCanceled,
	"deactivated":                domain.StatusCanceled,
	"rejected":                   domain.StatusRejected,
	"amended":                    domain.StatusReplaced,
	"replaced":                   domain.StatusReplaced,
}

// rejectReasonSubstrings is checked in order; the first substring match
// against the lowercased raw reason wins. Order matters where substrings
// could otherwise overlap.
var rejectReasonSubstrings = []struct {
	substr string
	code   domain.ReasonCode
}{
	{"balance", domain.ReasonInsufficientFunds},
	{"insufficient", domain.ReasonInsufficientFunds},
	{"min size", domain.ReasonMinSize},
	{"minimum size", domain.ReasonMinSize},
	{"too small", domain.ReasonMinSize},
	{"price", domain.ReasonPriceOutOfBounds},
	{"rate limit", domain.ReasonRateLimited},
	{"throttle", domain.ReasonRateLimited},
	{"expired", domain.ReasonExpired},
	{"timeout", domain.ReasonNetworkError},
	{"network", domain.ReasonNetworkError},
}

// Status maps a raw venue status token to its canonical ReportStatus. ok
// is false for a token outside the table; the caller should treat this
// as a venue_reject rather than crash on an unrecognized vocabulary
// entry.
func Status(rawStatus string) (status domain.ReportStatus, ok bool) {
	status, ok = statusTable[strings.ToLower(strings.TrimSpace(rawStatus))]
	return status, ok
}

// ClassifyRejectReason maps a raw venue rejection reason to a canonical
// ReasonCode by substring match, falling back to venue_reject when no
// substring matches.
func ClassifyRejectReason(rawReason string) domain.ReasonCode {
	lower := strings.ToLower(rawReason)
	for _, rule := range rejectReasonSubstrings {
		if strings.Contains(lower, rule.substr) {
			return rule.code
		}
	}
	return domain.ReasonVenueReject
}

// Triple is the canonical (status, reason_code, reason_text) result of
// normalizing one venue update.
type Triple struct {
	Status     domain.ReportStatus
	ReasonCode domain.ReasonCode
	ReasonText string
}

// Normalize maps a (raw_status, raw_reason) pair to its canonical Triple.
// An unrecognized raw_status is treated as a venue rejection so that no
// update is silently dropped.
func Normalize(rawStatus, rawReason string) Triple {
	status, ok := Status(rawStatus)
	if !ok {
		return Triple{Status: domain.StatusRejected, ReasonCode: domain.ReasonVenueReject, ReasonText: rawReason}
	}

	if status != domain.StatusRejected {
		return Triple{Status: status, ReasonCode: domain.ReasonOK, ReasonText: rawReason}
	}

	return Triple{Status: domain.StatusRejected, ReasonCode: ClassifyRejectReason(rawReason), ReasonText: rawReason}
}
