package models

// CurrencyKind distinguishes government-issued currencies from crypto assets.
type CurrencyKind string

const (
	CurrencyKindFiat   CurrencyKind = "fiat"
	CurrencyKindCrypto CurrencyKind = "crypto"
)

// Currency is a catalog entry. Only IsDefault ever changes after seeding.
type Currency struct {
	Code      string       `gorm:"primaryKey;size:10" json:"code"`
	Symbol    string       `gorm:"size:10;not null" json:"symbol"`
	Name      string       `gorm:"size:100;not null" json:"name"`
	Kind      CurrencyKind `gorm:"size:10;not null" json:"kind"`
	IsDefault bool         `gorm:"not null;default:false" json:"is_default"`
}
