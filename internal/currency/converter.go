package currency

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"teymia/internal/logger"
	"teymia/internal/models"
	"teymia/internal/provider"
)

// DefaultStaleness is how long a successful refresh is considered fresh.
const DefaultStaleness = time.Hour

// Converter converts amounts between currencies through a rate table
// expressed against a single base currency. It never returns an error:
// when a rate is unknown the amount comes back unconverted.
//
// Refreshes may overlap. Every refresh takes a monotonically increasing
// token when it starts and its result is only applied if no later-started
// refresh has been applied already.
type Converter struct {
	source       provider.RateSource
	staleness    time.Duration
	asyncTimeout time.Duration
	now          func() time.Time
	log          *zap.SugaredLogger

	seq atomic.Uint64

	mu          sync.RWMutex
	base        string
	rates       map[string]decimal.Decimal // units of base per one unit of code
	lastRefresh time.Time
	applied     uint64
}

// NewConverter creates a Converter with an empty rate table for base.
// A zero staleness falls back to DefaultStaleness.
func NewConverter(source provider.RateSource, base string, staleness time.Duration) *Converter {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Converter{
		source:       source,
		staleness:    staleness,
		asyncTimeout: 30 * time.Second,
		now:          time.Now,
		log:          logger.Named("currency"),
		base:         normalize(base),
		rates:        make(map[string]decimal.Decimal),
	}
}

// SetAsyncTimeout bounds background refreshes started by RefreshRatesAsync.
func (c *Converter) SetAsyncTimeout(d time.Duration) {
	if d > 0 {
		c.asyncTimeout = d
	}
}

// Base returns the currency the rate table is expressed in.
func (c *Converter) Base() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base
}

// LastRefresh returns when rates were last applied, zero if never.
func (c *Converter) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// Rates returns a copy of the current rate table.
func (c *Converter) Rates() map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(c.rates))
	for k, v := range c.rates {
		out[k] = v
	}
	return out
}

// HasRate reports whether code can currently be converted.
func (c *Converter) HasRate(code string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rateLocked(normalize(code))
	return ok
}

// Convert returns amount × rate(from) / rate(to). If either rate is missing
// the amount is returned unchanged.
func (c *Converter) Convert(amount decimal.Decimal, fromCode, toCode string) decimal.Decimal {
	from, to := normalize(fromCode), normalize(toCode)
	if from == to {
		return amount
	}

	c.mu.RLock()
	fromRate, okFrom := c.rateLocked(from)
	toRate, okTo := c.rateLocked(to)
	c.mu.RUnlock()

	if !okFrom || !okTo {
		return amount
	}
	return amount.Mul(fromRate).Div(toRate)
}

func (c *Converter) rateLocked(code string) (decimal.Decimal, bool) {
	if code == c.base {
		return decimal.NewFromInt(1), true
	}
	rate, ok := c.rates[code]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// SetRates installs a rate table directly, as if a refresh had just finished.
func (c *Converter) SetRates(base string, rates map[string]decimal.Decimal) {
	c.apply(c.seq.Add(1), normalize(base), rates)
}

// RefreshRates fetches rates for every currency used by accounts against
// base. Source failures are logged and swallowed. It reports whether the
// result was applied; a refresh is discarded when a newer one already won.
func (c *Converter) RefreshRates(ctx context.Context, accounts []models.Account, base string) bool {
	token := c.seq.Add(1)
	base = normalize(base)
	codes := accountCodes(accounts, base)

	if c.source == nil || len(codes) == 0 {
		return c.apply(token, base, nil)
	}

	rates, err := c.source.FetchRates(ctx, base, codes)
	if err != nil {
		c.log.Warnw("rate refresh failed",
			"source", c.source.Name(),
			"base", base,
			"requested", len(codes),
			"received", len(rates),
			"error", err,
		)
		if len(rates) == 0 {
			return false
		}
	}
	return c.apply(token, base, rates)
}

// RefreshRatesIfNeeded refreshes only when the table is stale, the base
// changed, or an account currency has no rate yet.
func (c *Converter) RefreshRatesIfNeeded(ctx context.Context, accounts []models.Account, base string) bool {
	if !c.needsRefresh(accounts, normalize(base)) {
		return false
	}
	return c.RefreshRates(ctx, accounts, base)
}

// RefreshRatesAsync runs a refresh in the background. When force is false
// the staleness check applies.
func (c *Converter) RefreshRatesAsync(accounts []models.Account, base string, force bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.asyncTimeout)
		defer cancel()
		if force {
			c.RefreshRates(ctx, accounts, base)
			return
		}
		c.RefreshRatesIfNeeded(ctx, accounts, base)
	}()
}

func (c *Converter) needsRefresh(accounts []models.Account, base string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if base != c.base || c.lastRefresh.IsZero() {
		return true
	}
	if c.now().Sub(c.lastRefresh) >= c.staleness {
		return true
	}
	for _, code := range accountCodes(accounts, base) {
		if _, ok := c.rateLocked(code); !ok {
			return true
		}
	}
	return false
}

func (c *Converter) apply(token uint64, base string, rates map[string]decimal.Decimal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token <= c.applied {
		c.log.Debugw("discarding superseded rate refresh", "token", token, "applied", c.applied)
		return false
	}

	// Keep older rates for pairs that failed this time, unless the base moved.
	if base != c.base {
		c.rates = make(map[string]decimal.Decimal, len(rates))
		c.base = base
	}
	for code, rate := range rates {
		if rate.IsPositive() {
			c.rates[normalize(code)] = rate
		}
	}
	c.applied = token
	c.lastRefresh = c.now()
	return true
}

// accountCodes returns the distinct non-base currency codes used by accounts.
func accountCodes(accounts []models.Account, base string) []string {
	seen := make(map[string]struct{}, len(accounts))
	var codes []string
	for _, a := range accounts {
		code := normalize(a.CurrencyCode)
		if code == "" || code == base {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
