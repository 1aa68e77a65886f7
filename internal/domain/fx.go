package domain

import (
	"fmt"
	"strings"
	"time"
)

// FX provider names.
const (
	FxProviderYahoo    = "yahoo"
	FxProviderStooq    = "stooq"
	FxProviderECB      = "ecb"
	FxProviderIdentity = "identity"
)

// FxRate is how many units of the target currency one unit of the source buys.
type FxRate struct {
	Rate         Decimal `json:"rate"`
	Provider     string  `json:"provider"`
	CapturedAtMs int64   `json:"capturedAtMs"`
}

// NewFxRate validates rate and stamps it with capturedAt.
func NewFxRate(rate Decimal, provider string, capturedAt time.Time) (FxRate, error) {
	if !rate.IsPositive() {
		return FxRate{}, fmt.Errorf("%w: non-positive rate %s from %s", ErrUpstreamMalformedBody, rate.String(), provider)
	}
	return FxRate{Rate: rate, Provider: provider, CapturedAtMs: capturedAt.UnixMilli()}, nil
}

// CapturedAt returns the capture time.
func (r FxRate) CapturedAt() time.Time {
	return time.UnixMilli(r.CapturedAtMs)
}

// PairKey is the directional cache key, e.g. "EUR->USD".
func PairKey(from, to string) string {
	return strings.ToUpper(from) + "->" + strings.ToUpper(to)
}

// RateBounds is the open interval an FX rate must fall in to be accepted.
// The default (0.5, 2.0) only suits pairs trading near parity.
type RateBounds struct {
	Min Decimal
	Max Decimal
}

// DefaultRateBounds returns the (0.5, 2.0) plausibility window.
func DefaultRateBounds() RateBounds {
	lo, _ := NewDecimalFromString("0.5")
	hi, _ := NewDecimalFromString("2.0")
	return RateBounds{Min: lo, Max: hi}
}

// Accepts reports whether Min < rate < Max.
func (b RateBounds) Accepts(rate Decimal) bool {
	return rate.Between(b.Min, b.Max)
}
