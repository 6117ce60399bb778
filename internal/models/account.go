package models

import "github.com/shopspring/decimal"

// Account holds money in a single currency. Balance is only ever changed by
// the ledger; InitialBalance is what the user opened the account with.
type Account struct {
	Base
	Name           string          `gorm:"not null" json:"name"`
	CurrencyCode   string          `gorm:"size:10;not null" json:"currency_code"`
	Balance        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`
	InitialBalance decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"initial_balance"`
	SortOrder      int             `gorm:"not null;default:0" json:"sort_order"`
	IsDefault      bool            `gorm:"not null;default:false" json:"is_default"`
	Icon           string          `json:"icon,omitempty"`
	Color          string          `json:"color,omitempty"`
}
