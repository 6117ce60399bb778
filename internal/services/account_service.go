package services

import (
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"teymia/internal/currency"
	apperrors "teymia/internal/errors"
	"teymia/internal/models"
)

// accountService handles account-related business logic. Balance changes
// and deletion go through the ledger.
type accountService struct {
	db     *gorm.DB
	ledger LedgerServicer
	audit  AuditServicer
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB, ledger LedgerServicer, audit AuditServicer) AccountServicer {
	return &accountService{db: db, ledger: ledger, audit: audit}
}

// CreateAccount opens an account at the end of the display order. The first
// account becomes the default.
func (s *accountService) CreateAccount(input AccountInput) (*models.Account, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}

	cur, ok := currency.Find(input.CurrencyCode)
	if !ok {
		return nil, apperrors.ErrCurrencyNotFound
	}

	account := &models.Account{
		Name:           name,
		CurrencyCode:   cur.Code,
		Balance:        input.InitialBalance,
		InitialBalance: input.InitialBalance,
		Icon:           input.Icon,
		Color:          input.Color,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		var maxOrder int
		if err := tx.Model(&models.Account{}).Select("COALESCE(MAX(sort_order), -1)").Scan(&maxOrder).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		account.SortOrder = maxOrder + 1
		account.IsDefault = count == 0

		if err := tx.Create(account).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		s.audit.Record(tx, AuditEntry{
			Action:       "create_account",
			ResourceType: "account",
			ResourceID:   account.ID,
			Effects:      mergeEffects(map[string]decimal.Decimal{account.ID: account.InitialBalance}),
			Changes:      map[string]any{"currency": account.CurrencyCode},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts returns every account in display order.
func (s *accountService) ListAccounts() ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.Order("sort_order ASC, created_at ASC").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return accounts, nil
}

// GetAccountByID retrieves an account by ID.
func (s *accountService) GetAccountByID(accountID string) (*models.Account, error) {
	return findAccount(s.db, accountID)
}

// UpdateAccount updates the descriptive fields of an account. Currency and
// balance cannot be edited here.
func (s *accountService) UpdateAccount(accountID string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name cannot be empty")
		}
		updates["name"] = name
	}
	if fields.Icon != nil {
		updates["icon"] = *fields.Icon
	}
	if fields.Color != nil {
		updates["color"] = *fields.Color
	}

	if len(updates) > 0 {
		if err := s.db.Model(account).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// Reload to get fresh data
		if err := s.db.Where("id = ?", account.ID).First(account).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return account, nil
}

// ReorderAccounts assigns sort orders following the given ID sequence.
// Accounts left out keep their relative order after the listed ones.
func (s *accountService) ReorderAccounts(accountIDs []string) ([]models.Account, error) {
	if len(accountIDs) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account IDs are required")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var accounts []models.Account
		if err := tx.Order("sort_order ASC, created_at ASC").Find(&accounts).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		position := make(map[string]int, len(accountIDs))
		for i, id := range accountIDs {
			if _, dup := position[id]; dup {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "duplicate account ID in order")
			}
			position[id] = i
		}

		known := make(map[string]bool, len(accounts))
		for _, a := range accounts {
			known[a.ID] = true
		}
		for id := range position {
			if !known[id] {
				return apperrors.ErrAccountNotFound
			}
		}

		next := len(accountIDs)
		for _, a := range accounts {
			order, ok := position[a.ID]
			if !ok {
				order = next
				next++
			}
			if order == a.SortOrder {
				continue
			}
			if err := tx.Model(&models.Account{}).Where("id = ?", a.ID).Update("sort_order", order).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ListAccounts()
}

// SetDefaultAccount makes accountID the only default account.
func (s *accountService) SetDefaultAccount(accountID string) (*models.Account, error) {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Account{}).Where("is_default = ? AND id <> ?", true, accountID).
			Update("is_default", false).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Model(account).Update("is_default", true).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	account.IsDefault = true
	return account, nil
}

// DeleteAccount deletes the account and every transaction referencing it.
func (s *accountService) DeleteAccount(accountID string) error {
	return s.ledger.DeleteAccount(accountID)
}
