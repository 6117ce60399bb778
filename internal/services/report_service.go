package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "teymia/internal/errors"
	"teymia/internal/models"
	"teymia/internal/pagination"
	"teymia/internal/query"
)

// reportService derives lists and aggregates from stored transactions.
// It never writes.
type reportService struct {
	db         *gorm.DB
	converter  query.Converter
	currencies CurrencyServicer
	loc        *time.Location
}

// NewReportService creates a new ReportServicer. Days are bucketed in loc.
func NewReportService(db *gorm.DB, converter query.Converter, currencies CurrencyServicer, loc *time.Location) ReportServicer {
	if loc == nil {
		loc = time.Local
	}
	return &reportService{db: db, converter: converter, currencies: currencies, loc: loc}
}

// ListTransactions returns a paginated, filtered list, newest first.
func (s *reportService) ListTransactions(filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	base, err := s.applyFilters(s.db.Model(&models.Transaction{}), filter)
	if err != nil {
		return nil, err
	}

	result, err := pagination.Find[models.Transaction](base, page, "date DESC, created_at DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &result, nil
}

// applyFilters narrows q in SQL. Date bounds cover whole days in s.loc and
// a category filter on a group includes its children.
func (s *reportService) applyFilters(q *gorm.DB, f TransactionFilter) (*gorm.DB, error) {
	if f.FromDate != nil {
		q = q.Where("date >= ?", query.StartOfDay(f.FromDate.In(s.loc)).UTC())
	}
	if f.ToDate != nil {
		q = q.Where("date < ?", query.StartOfDay(f.ToDate.In(s.loc)).AddDate(0, 0, 1).UTC())
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.AccountID != nil {
		if _, err := findAccount(s.db, *f.AccountID); err != nil {
			return nil, err
		}
		q = q.Where("account_id = ? OR to_account_id = ?", *f.AccountID, *f.AccountID)
	}
	if f.CategoryID != nil {
		if _, err := findCategory(s.db, *f.CategoryID); err != nil {
			return nil, err
		}
		scope, err := categoryScope(s.db, *f.CategoryID)
		if err != nil {
			return nil, err
		}
		q = q.Where("category_id IN ?", scope)
	}
	if !f.IncludeHidden {
		q = q.Where("is_hidden = ?", false)
	}
	return q, nil
}

// load fetches every transaction matching f.
func (s *reportService) load(f TransactionFilter) ([]models.Transaction, error) {
	q, err := s.applyFilters(s.db, f)
	if err != nil {
		return nil, err
	}
	var txs []models.Transaction
	if err := q.Order("date DESC").Find(&txs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return txs, nil
}

// GetDaySummaries groups matching transactions by day. With an account
// filter each day's total is that account's net in its own currency;
// otherwise it is the app-wide net in the default currency.
func (s *reportService) GetDaySummaries(filter TransactionFilter) ([]DaySummary, error) {
	txs, err := s.load(filter)
	if err != nil {
		return nil, err
	}

	total, currencyCode, err := s.dayTotaller(filter)
	if err != nil {
		return nil, err
	}

	groups := query.GroupByDay(txs, s.loc)
	summaries := make([]DaySummary, 0, len(groups))
	for _, g := range groups {
		summaries = append(summaries, DaySummary{
			DayGroup:     g,
			Label:        query.FormatDateRange(g.Day, g.Day),
			CurrencyCode: currencyCode,
			Total:        total(g.Transactions),
		})
	}
	return summaries, nil
}

func (s *reportService) dayTotaller(filter TransactionFilter) (func([]models.Transaction) decimal.Decimal, string, error) {
	if filter.AccountID != nil {
		account, err := findAccount(s.db, *filter.AccountID)
		if err != nil {
			return nil, "", err
		}
		return func(txs []models.Transaction) decimal.Decimal {
			return query.DailyTotalForAccount(txs, account.ID)
		}, account.CurrencyCode, nil
	}

	def, err := s.currencies.GetDefaultCurrency()
	if err != nil {
		return nil, "", err
	}
	currencies, err := accountCurrencies(s.db)
	if err != nil {
		return nil, "", err
	}
	return func(txs []models.Transaction) decimal.Decimal {
		return query.DailyTotalInBase(txs, currencies.of, s.converter, def.Code)
	}, def.Code, nil
}

// GetCategorySummary totals income and expense per category for the
// filtered range, converted into the default currency.
func (s *reportService) GetCategorySummary(filter TransactionFilter) (*CategorySummary, error) {
	txs, err := s.load(filter)
	if err != nil {
		return nil, err
	}

	def, err := s.currencies.GetDefaultCurrency()
	if err != nil {
		return nil, err
	}
	currencies, err := accountCurrencies(s.db)
	if err != nil {
		return nil, err
	}
	amountOf := query.InBase(currencies.of, s.converter, def.Code)

	totals := query.CategoryTotals(txs, amountOf)

	ids := make([]string, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.CategoryID)
	}
	var categories []models.Category
	if len(ids) > 0 {
		if err := s.db.Unscoped().Where("id IN ?", ids).Find(&categories).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	byID := make(map[string]models.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	summary := &CategorySummary{
		CurrencyCode: def.Code,
		Income:       decimal.Zero,
		Expense:      decimal.Zero,
		Categories:   make([]CategorySummaryItem, 0, len(totals)),
	}
	for _, t := range totals {
		switch t.Type {
		case models.TransactionTypeIncome:
			summary.Income = summary.Income.Add(t.Total)
		case models.TransactionTypeExpense:
			summary.Expense = summary.Expense.Add(t.Total.Neg())
		}
		c := byID[t.CategoryID]
		summary.Categories = append(summary.Categories, CategorySummaryItem{
			CategoryTotal: t,
			Name:          c.Name,
			Icon:          c.Icon,
		})
	}

	if filter.FromDate != nil && filter.ToDate != nil {
		summary.Label = query.FormatDateRange(filter.FromDate.In(s.loc), filter.ToDate.In(s.loc))
	}
	return summary, nil
}
