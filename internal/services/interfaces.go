package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"teymia/internal/models"
	"teymia/internal/pagination"
	"teymia/internal/query"
)

// AccountInput holds the fields needed to open an account.
type AccountInput struct {
	Name           string
	CurrencyCode   string
	InitialBalance decimal.Decimal
	Icon           string
	Color          string
}

// AccountUpdateFields holds optional fields for updating an account.
// Nil pointer fields are not updated.
type AccountUpdateFields struct {
	Name  *string
	Icon  *string
	Color *string
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(input AccountInput) (*models.Account, error)
	ListAccounts() ([]models.Account, error)
	GetAccountByID(accountID string) (*models.Account, error)
	UpdateAccount(accountID string, fields AccountUpdateFields) (*models.Account, error)
	ReorderAccounts(accountIDs []string) ([]models.Account, error)
	SetDefaultAccount(accountID string) (*models.Account, error)
	DeleteAccount(accountID string) error
}

// CategoryInput holds the fields needed to create a category. A nil
// ParentID creates a group.
type CategoryInput struct {
	Name     string
	Icon     string
	Type     models.CategoryType
	ParentID *string
}

// CategoryUpdateFields holds optional fields for updating a category.
type CategoryUpdateFields struct {
	Name      *string
	Icon      *string
	SortOrder *int
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(input CategoryInput) (*models.Category, error)
	ListCategories(categoryType *models.CategoryType) ([]models.Category, error)
	GetCategoryByID(categoryID string) (*models.Category, error)
	UpdateCategory(categoryID string, fields CategoryUpdateFields) (*models.Category, error)
	DeleteCategory(categoryID string) error
}

// TransactionUpdate describes an edit. Nil fields keep their current value.
// Amount is a positive magnitude; the sign follows the resulting type.
type TransactionUpdate struct {
	Type        *models.TransactionType
	Amount      *decimal.Decimal
	AccountID   *string
	ToAccountID *string
	CategoryID  *string
	Note        *string
	Date        *time.Time
}

// LedgerServicer is the only writer of account balances.
type LedgerServicer interface {
	RecordIncome(accountID, categoryID string, amount decimal.Decimal, note string, date time.Time) (*models.Transaction, error)
	RecordExpense(accountID, categoryID string, amount decimal.Decimal, note string, date time.Time) (*models.Transaction, error)
	RecordTransfer(fromAccountID, toAccountID string, amount decimal.Decimal, note string, date time.Time) (*models.Transaction, error)
	RevertBalanceChanges(transactionID string) error
	UpdateTransaction(transactionID string, update TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(transactionID string) error
	SetHidden(transactionID string, hidden bool) (*models.Transaction, error)
	GetTransactionByID(transactionID string) (*models.Transaction, error)
	RecomputeBalance(accountID string) (decimal.Decimal, error)
	DeleteAccount(accountID string) error
}

// Conversion is the result of converting an amount for display.
type Conversion struct {
	Amount    decimal.Decimal `json:"amount"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Result    decimal.Decimal `json:"result"`
	Converted bool            `json:"converted"`
}

// RateStatus describes the converter's current rate table.
type RateStatus struct {
	Base        string                     `json:"base"`
	LastRefresh *time.Time                 `json:"last_refresh,omitempty"`
	Rates       map[string]decimal.Decimal `json:"rates"`
}

// CurrencyServicer defines the contract for the currency catalog, the
// stored default currency and display conversion.
type CurrencyServicer interface {
	ListCurrencies(kind *models.CurrencyKind) ([]models.Currency, error)
	SearchCurrencies(q string, kind *models.CurrencyKind) ([]models.Currency, error)
	GetCurrency(code string) (*models.Currency, error)
	GetDefaultCurrency() (*models.Currency, error)
	SetDefaultCurrency(code string) (*models.Currency, error)
	Convert(amount decimal.Decimal, from, to string) Conversion
	RefreshRates(ctx context.Context, force bool) (*RateStatus, error)
	RefreshRatesAsync(force bool)
	RateStatus() RateStatus
}

// BudgetInput holds the fields needed to create a budget.
type BudgetInput struct {
	Name         string
	CategoryID   *string
	CurrencyCode string
	LimitAmount  decimal.Decimal
	Period       models.BudgetPeriod
}

// BudgetUpdateFields holds optional fields for updating a budget.
type BudgetUpdateFields struct {
	Name        *string
	LimitAmount *decimal.Decimal
}

// BudgetProgress contains spending vs budget data for a budget's window.
type BudgetProgress struct {
	BudgetID     string          `json:"budget_id"`
	Label        string          `json:"label"`
	CurrencyCode string          `json:"currency_code"`
	Budgeted     decimal.Decimal `json:"budgeted"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	Percentage   float64         `json:"percentage"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(input BudgetInput) (*models.Budget, error)
	ListBudgets(page pagination.PageRequest, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(budgetID string) (*models.Budget, error)
	UpdateBudget(budgetID string, fields BudgetUpdateFields) (*models.Budget, error)
	DeleteBudget(budgetID string) error
	GetBudgetProgress(budgetID string) (*BudgetProgress, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	AccountID  *string
	CategoryID *string
	// IncludeHidden is set by single account and category history views.
	IncludeHidden bool
}

// DaySummary is one calendar day of transactions with its net total.
type DaySummary struct {
	query.DayGroup
	Label        string          `json:"label"`
	CurrencyCode string          `json:"currency_code"`
	Total        decimal.Decimal `json:"total"`
}

// CategorySummaryItem is one category's share of a range.
type CategorySummaryItem struct {
	query.CategoryTotal
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// CategorySummary aggregates a range per category in one currency.
type CategorySummary struct {
	Label        string                `json:"label"`
	CurrencyCode string                `json:"currency_code"`
	Income       decimal.Decimal       `json:"income"`
	Expense      decimal.Decimal       `json:"expense"`
	Categories   []CategorySummaryItem `json:"categories"`
}

// ReportServicer defines the read side: filtered lists and aggregates.
type ReportServicer interface {
	ListTransactions(filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	GetDaySummaries(filter TransactionFilter) ([]DaySummary, error)
	GetCategorySummary(filter TransactionFilter) (*CategorySummary, error)
}

// AuditEntry is one journaled mutation. Effects holds the signed balance
// change per account ID.
type AuditEntry struct {
	Action       string
	ResourceType string
	ResourceID   string
	Effects      map[string]decimal.Decimal
	Changes      map[string]any
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Record(db *gorm.DB, entry AuditEntry)
}
