// Package provider defines where exchange rates come from.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RateSource fetches exchange rates against a base currency.
//
// The returned map is keyed by currency code and holds the number of base
// units one unit of that currency is worth (for base USD, EUR → 1.08).
// Implementations should return every rate they could fetch even when some
// pairs fail, together with a non-nil error describing the failures.
type RateSource interface {
	// Name returns the source's display name (e.g., "Yahoo Finance").
	Name() string

	// FetchRates fetches the current rate of each code against base.
	FetchRates(ctx context.Context, base string, codes []string) (map[string]decimal.Decimal, error)
}

// PairError represents a failed fetch for one currency pair.
type PairError struct {
	Base string
	Code string
	Err  error
}

// Error implements the error interface.
func (e *PairError) Error() string {
	return fmt.Sprintf("failed to fetch rate %s/%s: %v", e.Code, e.Base, e.Err)
}

// Unwrap returns the underlying error.
func (e *PairError) Unwrap() error { return e.Err }

// StaticRateSource serves a fixed table. It is used when no network source
// is configured and in tests.
type StaticRateSource struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewStaticRateSource creates a source whose rates are expressed against base.
func NewStaticRateSource(base string, rates map[string]decimal.Decimal) *StaticRateSource {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		normalized[strings.ToUpper(code)] = rate
	}
	return &StaticRateSource{base: strings.ToUpper(base), rates: normalized}
}

// Name returns the provider's display name.
func (s *StaticRateSource) Name() string { return "static" }

// FetchRates returns the requested subset of the table, re-based onto base
// when base differs from the table's own base and is present in it.
func (s *StaticRateSource) FetchRates(_ context.Context, base string, codes []string) (map[string]decimal.Decimal, error) {
	base = strings.ToUpper(base)

	divisor := decimal.NewFromInt(1)
	if base != s.base {
		r, ok := s.rates[base]
		if !ok || !r.IsPositive() {
			return nil, fmt.Errorf("static rates: unknown base %s", base)
		}
		divisor = r
	}

	out := make(map[string]decimal.Decimal, len(codes))
	var missing []string
	for _, code := range codes {
		code = strings.ToUpper(code)
		var rate decimal.Decimal
		switch {
		case code == s.base:
			rate = decimal.NewFromInt(1)
		default:
			r, ok := s.rates[code]
			if !ok {
				missing = append(missing, code)
				continue
			}
			rate = r
		}
		out[code] = rate.Div(divisor)
	}
	if len(missing) > 0 {
		return out, fmt.Errorf("static rates: no rate for %s", strings.Join(missing, ", "))
	}
	return out, nil
}
