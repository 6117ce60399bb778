// Package query filters, groups and totals transactions for display.
// Every function is pure: inputs are never mutated and nothing is persisted.
package query

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"teymia/internal/models"
)

// Criteria narrows a transaction set. Zero values match everything.
type Criteria struct {
	Start *time.Time
	End   *time.Time

	// AccountID matches either side of a transfer.
	AccountID string
	// CategoryIDs matches any of the listed categories.
	CategoryIDs []string
	Type        models.TransactionType

	// IncludeHidden keeps hidden transactions. Single account or category
	// history views set it; default list views do not.
	IncludeHidden bool
}

// DayGroup is one calendar day of transactions, newest first.
type DayGroup struct {
	Day          time.Time            `json:"day"`
	Transactions []models.Transaction `json:"transactions"`
}

// CategoryTotal is the summed amount of one category.
type CategoryTotal struct {
	CategoryID string                 `json:"category_id"`
	Type       models.TransactionType `json:"type"`
	Total      decimal.Decimal        `json:"total"`
	Count      int                    `json:"count"`
}

// AmountFunc extracts the figure to sum from a transaction.
type AmountFunc func(t *models.Transaction) decimal.Decimal

// Converter converts an amount between two currency codes.
type Converter interface {
	Convert(amount decimal.Decimal, fromCode, toCode string) decimal.Decimal
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// FilterByDateRange keeps visible transactions dated from the start of
// start's day up to, but excluding, the start of the day after end.
func FilterByDateRange(txs []models.Transaction, start, end time.Time) []models.Transaction {
	return Filter(txs, Criteria{Start: &start, End: &end})
}

// Filter returns the transactions matching c, preserving input order.
func Filter(txs []models.Transaction, c Criteria) []models.Transaction {
	var lower, upper time.Time
	if c.Start != nil {
		lower = StartOfDay(*c.Start)
	}
	if c.End != nil {
		upper = StartOfDay(*c.End).AddDate(0, 0, 1)
	}

	var categories map[string]struct{}
	if len(c.CategoryIDs) > 0 {
		categories = make(map[string]struct{}, len(c.CategoryIDs))
		for _, id := range c.CategoryIDs {
			categories[id] = struct{}{}
		}
	}

	out := make([]models.Transaction, 0, len(txs))
	for i := range txs {
		t := &txs[i]
		if t.IsHidden && !c.IncludeHidden {
			continue
		}
		if c.Start != nil && t.Date.Before(lower) {
			continue
		}
		if c.End != nil && !t.Date.Before(upper) {
			continue
		}
		if c.AccountID != "" && !t.Touches(c.AccountID) {
			continue
		}
		if c.Type != "" && t.Type != c.Type {
			continue
		}
		if categories != nil {
			if t.CategoryID == nil {
				continue
			}
			if _, ok := categories[*t.CategoryID]; !ok {
				continue
			}
		}
		out = append(out, *t)
	}
	return out
}

// GroupByDay buckets transactions by calendar day in loc (time.Local when
// nil). Days are returned newest first, as are transactions within a day.
func GroupByDay(txs []models.Transaction, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}

	index := make(map[time.Time]int)
	var groups []DayGroup
	for _, t := range txs {
		day := StartOfDay(t.Date.In(loc))
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, DayGroup{Day: day})
		}
		groups[i].Transactions = append(groups[i].Transactions, t)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Day.After(groups[j].Day) })
	for _, g := range groups {
		sort.SliceStable(g.Transactions, func(i, j int) bool {
			return g.Transactions[i].Date.After(g.Transactions[j].Date)
		})
	}
	return groups
}

// Signed is the stored amount for income and expense. Transfers move money
// between the user's own accounts and contribute nothing.
func Signed(t *models.Transaction) decimal.Decimal {
	if t.Type == models.TransactionTypeTransfer {
		return decimal.Zero
	}
	return t.Amount
}

// ForAccount signs every transaction relative to accountID, transfers
// included.
func ForAccount(accountID string) AmountFunc {
	return func(t *models.Transaction) decimal.Decimal {
		return t.AmountForAccount(accountID)
	}
}

// InBase converts each signed amount from its account's currency into base.
// currencyOf maps an account ID to its currency code.
func InBase(currencyOf func(accountID string) string, conv Converter, base string) AmountFunc {
	return func(t *models.Transaction) decimal.Decimal {
		amount := Signed(t)
		if amount.IsZero() {
			return amount
		}
		return conv.Convert(amount, currencyOf(t.AccountID), base)
	}
}

// Sum adds up amountOf over txs.
func Sum(txs []models.Transaction, amountOf AmountFunc) decimal.Decimal {
	total := decimal.Zero
	for i := range txs {
		total = total.Add(amountOf(&txs[i]))
	}
	return total
}

// DailyTotal is the net of a day's income and expense in stored currency.
func DailyTotal(txs []models.Transaction) decimal.Decimal {
	return Sum(txs, Signed)
}

// DailyTotalForAccount is a day's net effect on one account, in that
// account's own currency.
func DailyTotalForAccount(txs []models.Transaction, accountID string) decimal.Decimal {
	return Sum(txs, ForAccount(accountID))
}

// DailyTotalInBase is a day's net across all accounts, each amount converted
// into base before summing. Transfers are left out.
func DailyTotalInBase(txs []models.Transaction, currencyOf func(accountID string) string, conv Converter, base string) decimal.Decimal {
	return Sum(txs, InBase(currencyOf, conv, base))
}

// CategoryTotals sums transactions per category, largest magnitude first.
// Transactions without a category are skipped. A nil amountOf sums the
// stored amounts.
func CategoryTotals(txs []models.Transaction, amountOf AmountFunc) []CategoryTotal {
	if amountOf == nil {
		amountOf = Signed
	}

	index := make(map[string]int)
	var totals []CategoryTotal
	for i := range txs {
		t := &txs[i]
		if t.CategoryID == nil {
			continue
		}
		j, ok := index[*t.CategoryID]
		if !ok {
			j = len(totals)
			index[*t.CategoryID] = j
			totals = append(totals, CategoryTotal{CategoryID: *t.CategoryID, Type: t.Type, Total: decimal.Zero})
		}
		totals[j].Total = totals[j].Total.Add(amountOf(t))
		totals[j].Count++
	}

	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].Total.Abs().Cmp(totals[j].Total.Abs()); c != 0 {
			return c > 0
		}
		return totals[i].CategoryID < totals[j].CategoryID
	})
	return totals
}
