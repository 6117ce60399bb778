package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
		return true
	}
	return false
}

// Transaction is a single ledger record.
//
// Amount is signed for income (+) and expense (-). A transfer stores the
// positive magnitude moved from AccountID to ToAccountID.
type Transaction struct {
	Base
	AccountID   string          `gorm:"type:uuid;not null;index" json:"account_id"`
	ToAccountID *string         `gorm:"type:uuid;index" json:"to_account_id,omitempty"`
	CategoryID  *string         `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Type        TransactionType `gorm:"size:10;not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Note        string          `json:"note"`
	Date        time.Time       `gorm:"not null;index" json:"date"`
	IsHidden    bool            `gorm:"not null;default:false" json:"is_hidden"`
}

// AmountForAccount returns the signed effect of the transaction on the given
// account: transfers are negative on the source and positive on the target,
// and zero for an account the transaction does not touch.
func (t *Transaction) AmountForAccount(accountID string) decimal.Decimal {
	if t.Type == TransactionTypeTransfer {
		switch {
		case t.AccountID == accountID:
			return t.Amount.Abs().Neg()
		case t.ToAccountID != nil && *t.ToAccountID == accountID:
			return t.Amount.Abs()
		default:
			return decimal.Zero
		}
	}
	if t.AccountID != accountID {
		return decimal.Zero
	}
	return t.Amount
}

// BalanceEffects returns the balance delta the transaction applies to each
// account it touches.
func (t *Transaction) BalanceEffects() map[string]decimal.Decimal {
	effects := map[string]decimal.Decimal{
		t.AccountID: t.AmountForAccount(t.AccountID),
	}
	if t.Type == TransactionTypeTransfer && t.ToAccountID != nil {
		effects[*t.ToAccountID] = t.AmountForAccount(*t.ToAccountID)
	}
	return effects
}

// Touches reports whether the transaction references the account on either side.
func (t *Transaction) Touches(accountID string) bool {
	return t.AccountID == accountID || (t.ToAccountID != nil && *t.ToAccountID == accountID)
}
