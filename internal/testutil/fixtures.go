package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"teymia/internal/currency"
	"teymia/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Dec parses a decimal literal, failing the test on bad input.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}

// SeedCurrencies inserts the whole static catalog with USD as default.
func SeedCurrencies(t *testing.T, db *gorm.DB) {
	t.Helper()

	all := currency.List(nil)
	for i := range all {
		all[i].IsDefault = all[i].Code == "USD"
	}
	if err := db.Create(&all).Error; err != nil {
		t.Fatalf("failed to seed currencies: %v", err)
	}
}

// CreateTestAccount creates a USD account with zero balance.
func CreateTestAccount(t *testing.T, db *gorm.DB) *models.Account {
	t.Helper()
	return CreateTestAccountWithBalance(t, db, "USD", "0")
}

// CreateTestAccountWithBalance creates an account whose balance and initial
// balance are both set to balance.
func CreateTestAccountWithBalance(t *testing.T, db *gorm.DB, currencyCode, balance string) *models.Account {
	t.Helper()

	n := nextID()
	amount := Dec(t, balance)
	account := &models.Account{
		Name:           fmt.Sprintf("Test Account %d", n),
		CurrencyCode:   currencyCode,
		Balance:        amount,
		InitialBalance: amount,
		SortOrder:      int(n),
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCategory creates a top-level category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:      fmt.Sprintf("Test Category %d", nextID()),
		Type:      categoryType,
		SortOrder: int(nextID()),
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestChildCategory creates a category inside parent.
func CreateTestChildCategory(t *testing.T, db *gorm.DB, parent *models.Category) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:      fmt.Sprintf("Test Subcategory %d", nextID()),
		Type:      parent.Type,
		SortOrder: int(nextID()),
		ParentID:  &parent.ID,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test child category: %v", err)
	}
	return category
}

// CreateTestTransaction inserts a transaction row as-is. It does not touch
// any account balance.
func CreateTestTransaction(t *testing.T, db *gorm.DB, accountID string, categoryID *string, txType models.TransactionType, amount string, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		AccountID:  accountID,
		CategoryID: categoryID,
		Type:       txType,
		Amount:     Dec(t, amount),
		Date:       date.UTC(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestBudget creates a monthly USD budget of 100 for the current month.
func CreateTestBudget(t *testing.T, db *gorm.DB, categoryID *string) *models.Budget {
	t.Helper()

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	budget := &models.Budget{
		Name:         fmt.Sprintf("Test Budget %d", nextID()),
		CategoryID:   categoryID,
		CurrencyCode: "USD",
		LimitAmount:  decimal.NewFromInt(100),
		Period:       models.BudgetPeriodMonthly,
		StartDate:    start,
		EndDate:      start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// ReloadAccount reads the account back from the store.
func ReloadAccount(t *testing.T, db *gorm.DB, accountID string) *models.Account {
	t.Helper()

	var account models.Account
	if err := db.Where("id = ?", accountID).First(&account).Error; err != nil {
		t.Fatalf("failed to reload account %s: %v", accountID, err)
	}
	return &account
}
