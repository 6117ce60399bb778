package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodWeekly  BudgetPeriod = "weekly"
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
)

// Budget caps expense spending over a window derived from Period at creation.
// A nil CategoryID covers every expense; a group covers its children too.
type Budget struct {
	Base
	Name         string          `gorm:"not null" json:"name"`
	CategoryID   *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	CurrencyCode string          `gorm:"size:10;not null" json:"currency_code"`
	LimitAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"limit_amount"`
	Period       BudgetPeriod    `gorm:"size:10;not null" json:"period"`
	StartDate    time.Time       `gorm:"not null" json:"start_date"`
	EndDate      time.Time       `gorm:"not null" json:"end_date"`
	SpentAmount  decimal.Decimal `gorm:"-" json:"spent_amount"` // Populated at query time

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
