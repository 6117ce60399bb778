package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"teymia/internal/currency"
	apperrors "teymia/internal/errors"
	"teymia/internal/models"
	"teymia/internal/pagination"
	"teymia/internal/query"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db        *gorm.DB
	converter query.Converter
	loc       *time.Location
	now       func() time.Time
}

// NewBudgetService creates a new BudgetServicer. Budget windows are computed
// on calendar days in loc.
func NewBudgetService(db *gorm.DB, converter query.Converter, loc *time.Location) BudgetServicer {
	if loc == nil {
		loc = time.Local
	}
	return &budgetService{db: db, converter: converter, loc: loc, now: time.Now}
}

// CreateBudget creates a budget whose window is the period containing today.
func (s *budgetService) CreateBudget(input BudgetInput) (*models.Budget, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name is required")
	}
	if !input.LimitAmount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit must be greater than zero")
	}

	switch input.Period {
	case models.BudgetPeriodWeekly, models.BudgetPeriodMonthly, models.BudgetPeriodYearly:
	case "":
		input.Period = models.BudgetPeriodMonthly
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be weekly, monthly or yearly")
	}

	cur, ok := currency.Find(input.CurrencyCode)
	if !ok {
		return nil, apperrors.ErrCurrencyNotFound
	}

	if input.CategoryID != nil && *input.CategoryID != "" {
		category, err := findCategory(s.db, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		if category.Type != models.CategoryTypeExpense {
			return nil, apperrors.WithMessage(apperrors.ErrCategoryTypeMismatch, "budgets can only track expense categories")
		}
	} else {
		input.CategoryID = nil
	}

	start, end := query.PeriodRange(input.Period, s.now().In(s.loc))
	budget := &models.Budget{
		Name:         name,
		CategoryID:   input.CategoryID,
		CurrencyCode: cur.Code,
		LimitAmount:  input.LimitAmount,
		Period:       input.Period,
		StartDate:    start.UTC(),
		EndDate:      end.UTC(),
	}

	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	budget.SpentAmount = decimal.Zero
	return budget, nil
}

// ListBudgets returns a paginated list of budgets with spending filled in.
func (s *budgetService) ListBudgets(page pagination.PageRequest, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
	base := s.db.Model(&models.Budget{})
	if period != nil {
		base = base.Where("period = ?", *period)
	}

	result, err := pagination.Find[models.Budget](base, page, "start_date DESC, name ASC, id ASC", withCategory)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for i := range result.Data {
		spent, err := s.spent(&result.Data[i])
		if err != nil {
			return nil, err
		}
		result.Data[i].SpentAmount = spent
	}
	return &result, nil
}

// GetBudgetByID returns a budget with spending filled in.
func (s *budgetService) GetBudgetByID(budgetID string) (*models.Budget, error) {
	budget, err := s.find(budgetID)
	if err != nil {
		return nil, err
	}
	spent, err := s.spent(budget)
	if err != nil {
		return nil, err
	}
	budget.SpentAmount = spent
	return budget, nil
}

func (s *budgetService) find(budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Preload("Category").Where("id = ?", budgetID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget renames a budget or changes its limit. The window is fixed.
func (s *budgetService) UpdateBudget(budgetID string, fields BudgetUpdateFields) (*models.Budget, error) {
	budget, err := s.find(budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name cannot be empty")
		}
		updates["name"] = name
	}
	if fields.LimitAmount != nil {
		if !fields.LimitAmount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit must be greater than zero")
		}
		updates["limit_amount"] = *fields.LimitAmount
	}

	if len(updates) > 0 {
		if err := s.db.Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetBudgetByID(budgetID)
}

// DeleteBudget soft-deletes a budget.
func (s *budgetService) DeleteBudget(budgetID string) error {
	budget, err := s.find(budgetID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetBudgetProgress calculates spending against the limit for the budget's window.
func (s *budgetService) GetBudgetProgress(budgetID string) (*BudgetProgress, error) {
	budget, err := s.GetBudgetByID(budgetID)
	if err != nil {
		return nil, err
	}

	var percentage float64
	if budget.LimitAmount.IsPositive() {
		percentage, _ = budget.SpentAmount.Div(budget.LimitAmount).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	}

	return &BudgetProgress{
		BudgetID:     budget.ID,
		Label:        query.FormatDateRange(budget.StartDate.In(s.loc), budget.EndDate.In(s.loc)),
		CurrencyCode: budget.CurrencyCode,
		Budgeted:     budget.LimitAmount,
		Spent:        budget.SpentAmount,
		Remaining:    budget.LimitAmount.Sub(budget.SpentAmount),
		Percentage:   percentage,
	}, nil
}

// spent sums visible expenses inside the budget's window and category
// scope, each converted into the budget's currency.
func (s *budgetService) spent(budget *models.Budget) (decimal.Decimal, error) {
	q := s.db.Where("type = ? AND date >= ? AND date <= ?",
		models.TransactionTypeExpense, budget.StartDate.UTC(), budget.EndDate.UTC())

	if budget.CategoryID != nil {
		scope, err := categoryScope(s.db, *budget.CategoryID)
		if err != nil {
			return decimal.Zero, err
		}
		q = q.Where("category_id IN ?", scope)
	}

	var txs []models.Transaction
	if err := q.Find(&txs).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	txs = query.Filter(txs, query.Criteria{})

	currencies, err := accountCurrencies(s.db)
	if err != nil {
		return decimal.Zero, err
	}

	total := query.Sum(txs, query.InBase(currencies.of, s.converter, budget.CurrencyCode))
	return total.Neg(), nil
}

// currencyIndex maps account IDs to currency codes.
type currencyIndex map[string]string

func (c currencyIndex) of(accountID string) string { return c[accountID] }

func accountCurrencies(db *gorm.DB) (currencyIndex, error) {
	var accounts []models.Account
	if err := db.Unscoped().Select("id", "currency_code").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	index := make(currencyIndex, len(accounts))
	for _, a := range accounts {
		index[a.ID] = a.CurrencyCode
	}
	return index, nil
}

func withCategory(db *gorm.DB) *gorm.DB {
	return db.Preload("Category")
}
