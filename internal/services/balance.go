package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "teymia/internal/errors"
	"teymia/internal/models"
)

// applyBalanceEffects adds the transaction's effects to every account it
// touches. With reverse set the effects are subtracted instead. The applied
// deltas are returned.
func applyBalanceEffects(tx *gorm.DB, t *models.Transaction, reverse bool) (map[string]decimal.Decimal, error) {
	effects := t.BalanceEffects()
	if reverse {
		effects = negateEffects(effects)
	}
	for accountID, delta := range effects {
		if err := adjustBalance(tx, accountID, delta); err != nil {
			return nil, err
		}
	}
	return effects, nil
}

func negateEffects(effects map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(effects))
	for accountID, delta := range effects {
		out[accountID] = delta.Neg()
	}
	return out
}

// mergeEffects sums per-account deltas. Accounts that net to zero are
// dropped.
func mergeEffects(sets ...map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, set := range sets {
		for accountID, delta := range set {
			out[accountID] = out[accountID].Add(delta)
		}
	}
	for accountID, delta := range out {
		if delta.IsZero() {
			delete(out, accountID)
		}
	}
	return out
}

// adjustBalance adds delta to the stored balance of accountID.
func adjustBalance(tx *gorm.DB, accountID string, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}

	var account models.Account
	if err := tx.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrAccountNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	account.Balance = account.Balance.Add(delta)
	if err := tx.Model(&account).Update("balance", account.Balance).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// findAccount loads an account by ID.
func findAccount(db *gorm.DB, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}
	var account models.Account
	if err := db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// findCategory loads a category by ID.
func findCategory(db *gorm.DB, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// categoryScope returns categoryID plus the IDs of its children.
func categoryScope(db *gorm.DB, categoryID string) ([]string, error) {
	var childIDs []string
	if err := db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Pluck("id", &childIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return append([]string{categoryID}, childIDs...), nil
}

// signedAmount turns a positive magnitude into the stored amount for typ.
func signedAmount(typ models.TransactionType, magnitude decimal.Decimal) decimal.Decimal {
	if typ == models.TransactionTypeExpense {
		return magnitude.Abs().Neg()
	}
	return magnitude.Abs()
}
