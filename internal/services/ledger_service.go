package services

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "teymia/internal/errors"
	"teymia/internal/logger"
	"teymia/internal/models"
)

// ledgerService applies and reverts the balance effects of transactions.
// Writers are serialized; every operation commits or rolls back as a whole.
type ledgerService struct {
	db    *gorm.DB
	audit AuditServicer
	log   *zap.SugaredLogger
	now   func() time.Time

	mu sync.Mutex
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB, audit AuditServicer) LedgerServicer {
	return &ledgerService{
		db:    db,
		audit: audit,
		log:   logger.Named("ledger"),
		now:   time.Now,
	}
}

// RecordIncome adds amount to the account.
func (s *ledgerService) RecordIncome(accountID, categoryID string, amount decimal.Decimal, note string, date time.Time) (*models.Transaction, error) {
	return s.record(&models.Transaction{
		AccountID:  accountID,
		CategoryID: optionalID(categoryID),
		Type:       models.TransactionTypeIncome,
		Note:       note,
		Date:       date,
	}, amount)
}

// RecordExpense subtracts amount from the account.
func (s *ledgerService) RecordExpense(accountID, categoryID string, amount decimal.Decimal, note string, date time.Time) (*models.Transaction, error) {
	return s.record(&models.Transaction{
		AccountID:  accountID,
		CategoryID: optionalID(categoryID),
		Type:       models.TransactionTypeExpense,
		Note:       note,
		Date:       date,
	}, amount)
}

// RecordTransfer moves amount from one account to another as a single record.
func (s *ledgerService) RecordTransfer(fromAccountID, toAccountID string, amount decimal.Decimal, note string, date time.Time) (*models.Transaction, error) {
	return s.record(&models.Transaction{
		AccountID:   fromAccountID,
		ToAccountID: optionalID(toAccountID),
		Type:        models.TransactionTypeTransfer,
		Note:        note,
		Date:        date,
	}, amount)
}

func (s *ledgerService) record(t *models.Transaction, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	t.Amount = signedAmount(t.Type, amount)
	if t.Date.IsZero() {
		t.Date = s.now()
	}
	t.Date = t.Date.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := validateTransaction(tx, t); err != nil {
			return err
		}
		if err := tx.Create(t).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		effects, err := applyBalanceEffects(tx, t, false)
		if err != nil {
			return err
		}
		s.audit.Record(tx, AuditEntry{
			Action:       "create_transaction",
			ResourceType: "transaction",
			ResourceID:   t.ID,
			Effects:      effects,
			Changes:      map[string]any{"type": t.Type, "amount": t.Amount.String()},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RevertBalanceChanges undoes the transaction's balance effects and leaves
// the record in place. Calling it twice without re-applying in between
// over-corrects; callers track whether a record is already reverted.
func (s *ledgerService) RevertBalanceChanges(transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		t, err := findTransaction(tx, transactionID)
		if err != nil {
			return err
		}
		effects, err := applyBalanceEffects(tx, t, true)
		if err != nil {
			return err
		}
		s.audit.Record(tx, AuditEntry{
			Action:       "revert_transaction",
			ResourceType: "transaction",
			ResourceID:   transactionID,
			Effects:      effects,
		})
		return nil
	})
}

// UpdateTransaction edits a transaction by reverting its old effects,
// replacing its fields and applying the new effects.
func (s *ledgerService) UpdateTransaction(transactionID string, update TransactionUpdate) (*models.Transaction, error) {
	if update.Amount != nil && !update.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if update.Type != nil && !update.Type.Valid() {
		return nil, apperrors.ErrInvalidTransactionType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		old, err := findTransaction(tx, transactionID)
		if err != nil {
			return err
		}

		next := mergeUpdate(*old, update)
		if err := validateTransaction(tx, &next); err != nil {
			return err
		}

		reverted, err := applyBalanceEffects(tx, old, true)
		if err != nil {
			return err
		}
		if err := tx.Save(&next).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		applied, err := applyBalanceEffects(tx, &next, false)
		if err != nil {
			return err
		}

		s.audit.Record(tx, AuditEntry{
			Action:       "update_transaction",
			ResourceType: "transaction",
			ResourceID:   transactionID,
			Effects:      mergeEffects(reverted, applied),
			Changes: map[string]any{
				"old_amount": old.Amount.String(),
				"new_amount": next.Amount.String(),
				"old_type":   old.Type,
				"new_type":   next.Type,
			},
		})
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// mergeUpdate returns a copy of t with the update applied and the fields
// that do not belong to the resulting type cleared.
func mergeUpdate(t models.Transaction, u TransactionUpdate) models.Transaction {
	magnitude := t.Amount.Abs()
	if u.Amount != nil {
		magnitude = *u.Amount
	}
	if u.Type != nil {
		t.Type = *u.Type
	}
	if u.AccountID != nil {
		t.AccountID = *u.AccountID
	}
	if u.ToAccountID != nil {
		t.ToAccountID = optionalID(*u.ToAccountID)
	}
	if u.CategoryID != nil {
		t.CategoryID = optionalID(*u.CategoryID)
	}
	if u.Note != nil {
		t.Note = *u.Note
	}
	if u.Date != nil && !u.Date.IsZero() {
		t.Date = u.Date.UTC()
	}

	if t.Type == models.TransactionTypeTransfer {
		t.CategoryID = nil
	} else {
		t.ToAccountID = nil
	}
	t.Amount = signedAmount(t.Type, magnitude)
	return t
}

// DeleteTransaction reverts the transaction's effects and deletes it.
func (s *ledgerService) DeleteTransaction(transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		t, err := findTransaction(tx, transactionID)
		if err != nil {
			return err
		}
		effects, err := applyBalanceEffects(tx, t, true)
		if err != nil {
			return err
		}
		if err := tx.Delete(t).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		s.audit.Record(tx, AuditEntry{
			Action:       "delete_transaction",
			ResourceType: "transaction",
			ResourceID:   transactionID,
			Effects:      effects,
		})
		return nil
	})
}

// SetHidden flags a transaction as hidden from default views. Balances are
// not affected.
func (s *ledgerService) SetHidden(transactionID string, hidden bool) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		t, err := findTransaction(tx, transactionID)
		if err != nil {
			return err
		}
		if t.IsHidden == hidden {
			result = t
			return nil
		}
		if err := tx.Model(t).Update("is_hidden", hidden).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		t.IsHidden = hidden

		action := "show_transaction"
		if hidden {
			action = "hide_transaction"
		}
		s.audit.Record(tx, AuditEntry{Action: action, ResourceType: "transaction", ResourceID: transactionID})
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetTransactionByID retrieves a transaction by ID.
func (s *ledgerService) GetTransactionByID(transactionID string) (*models.Transaction, error) {
	return findTransaction(s.db, transactionID)
}

// RecomputeBalance returns the balance implied by the account's initial
// balance and every stored transaction touching it, hidden ones included.
func (s *ledgerService) RecomputeBalance(accountID string) (decimal.Decimal, error) {
	account, err := findAccount(s.db, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	var txs []models.Transaction
	if err := s.db.Where("account_id = ? OR to_account_id = ?", accountID, accountID).Find(&txs).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	balance := account.InitialBalance
	for i := range txs {
		balance = balance.Add(txs[i].AmountForAccount(accountID))
	}
	return balance, nil
}

// DeleteAccount deletes an account together with every transaction that
// references it. Transfers are reverted first so the counterpart account's
// balance stays consistent. If the account was the default, the next
// account in display order takes over.
func (s *ledgerService) DeleteAccount(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		account, err := findAccount(tx, accountID)
		if err != nil {
			return err
		}

		var txs []models.Transaction
		if err := tx.Where("account_id = ? OR to_account_id = ?", accountID, accountID).Find(&txs).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		var reverted []map[string]decimal.Decimal
		for i := range txs {
			effects, err := revertOthers(tx, &txs[i], accountID)
			if err != nil {
				return err
			}
			reverted = append(reverted, effects)
			if err := tx.Delete(&txs[i]).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}

		if err := tx.Delete(account).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if account.IsDefault {
			var next models.Account
			err := tx.Order("sort_order ASC, created_at ASC").First(&next).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
			case err != nil:
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			default:
				if err := tx.Model(&next).Update("is_default", true).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternalServer, err)
				}
			}
		}

		s.audit.Record(tx, AuditEntry{
			Action:       "delete_account",
			ResourceType: "account",
			ResourceID:   accountID,
			Effects:      mergeEffects(reverted...),
			Changes:      map[string]any{"transactions_removed": len(txs)},
		})
		s.log.Infow("account deleted", "account_id", accountID, "transactions_removed", len(txs))
		return nil
	})
}

// revertOthers reverts t's effects on every account except skip and
// returns the applied deltas.
func revertOthers(tx *gorm.DB, t *models.Transaction, skip string) (map[string]decimal.Decimal, error) {
	effects := make(map[string]decimal.Decimal)
	for accountID, delta := range t.BalanceEffects() {
		if accountID == skip {
			continue
		}
		if err := adjustBalance(tx, accountID, delta.Neg()); err != nil {
			return nil, err
		}
		effects[accountID] = delta.Neg()
	}
	return effects, nil
}

// validateTransaction checks t against the accounts and categories it
// references. t.Amount must already be signed.
func validateTransaction(tx *gorm.DB, t *models.Transaction) error {
	if !t.Type.Valid() {
		return apperrors.ErrInvalidTransactionType
	}
	if t.Amount.IsZero() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}

	if t.Type == models.TransactionTypeTransfer {
		if t.ToAccountID == nil {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "destination account is required for transfers")
		}
		if *t.ToAccountID == t.AccountID {
			return apperrors.ErrSameAccountTransfer
		}
		if _, err := findAccount(tx, t.AccountID); err != nil {
			return err
		}
		if _, err := findAccount(tx, *t.ToAccountID); err != nil {
			return err
		}
		return nil
	}

	if _, err := findAccount(tx, t.AccountID); err != nil {
		return err
	}
	if t.CategoryID == nil {
		return apperrors.ErrCategoryRequired
	}
	category, err := findCategory(tx, *t.CategoryID)
	if err != nil {
		return err
	}
	if string(category.Type) != string(t.Type) {
		return apperrors.ErrCategoryTypeMismatch
	}
	return nil
}

func findTransaction(db *gorm.DB, transactionID string) (*models.Transaction, error) {
	var t models.Transaction
	if err := db.Where("id = ?", transactionID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &t, nil
}

// optionalID maps an empty ID to nil.
func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
