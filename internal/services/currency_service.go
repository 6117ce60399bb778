package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"teymia/internal/currency"
	apperrors "teymia/internal/errors"
	"teymia/internal/models"
)

// currencyService serves the static catalog, the stored default currency
// and display conversion through a shared Converter.
type currencyService struct {
	db        *gorm.DB
	converter *currency.Converter
}

// NewCurrencyService creates a new CurrencyServicer.
func NewCurrencyService(db *gorm.DB, converter *currency.Converter) CurrencyServicer {
	return &currencyService{db: db, converter: converter}
}

// ListCurrencies returns the catalog with the stored default flagged.
func (s *currencyService) ListCurrencies(kind *models.CurrencyKind) ([]models.Currency, error) {
	return s.markDefault(currency.List(kind))
}

// SearchCurrencies searches the catalog by code or name.
func (s *currencyService) SearchCurrencies(q string, kind *models.CurrencyKind) ([]models.Currency, error) {
	return s.markDefault(currency.Search(q, kind))
}

func (s *currencyService) markDefault(list []models.Currency) ([]models.Currency, error) {
	def, err := s.defaultCode()
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].IsDefault = list[i].Code == def
	}
	return list, nil
}

// GetCurrency looks up one catalog entry.
func (s *currencyService) GetCurrency(code string) (*models.Currency, error) {
	c, ok := currency.Find(code)
	if !ok {
		return nil, apperrors.ErrCurrencyNotFound
	}
	def, err := s.defaultCode()
	if err != nil {
		return nil, err
	}
	c.IsDefault = c.Code == def
	return &c, nil
}

// GetDefaultCurrency returns the user's default currency. With nothing
// stored yet the converter's base currency is used.
func (s *currencyService) GetDefaultCurrency() (*models.Currency, error) {
	code, err := s.defaultCode()
	if err != nil {
		return nil, err
	}
	c, ok := currency.Find(code)
	if !ok {
		return nil, apperrors.ErrCurrencyNotFound
	}
	c.IsDefault = true
	return &c, nil
}

func (s *currencyService) defaultCode() (string, error) {
	var stored models.Currency
	err := s.db.Where("is_default = ?", true).First(&stored).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.converter.Base(), nil
	case err != nil:
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return stored.Code, nil
}

// SetDefaultCurrency makes code the only default currency.
func (s *currencyService) SetDefaultCurrency(code string) (*models.Currency, error) {
	c, ok := currency.Find(code)
	if !ok {
		return nil, apperrors.ErrCurrencyNotFound
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Currency{}).Where("is_default = ?", true).
			Update("is_default", false).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		row := c
		row.IsDefault = true
		// Save upserts by primary key so a missing catalog row is created.
		if err := tx.Save(&row).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.IsDefault = true
	return &c, nil
}

// Convert converts amount for display. Unknown rates leave it unchanged.
func (s *currencyService) Convert(amount decimal.Decimal, from, to string) Conversion {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	return Conversion{
		Amount:    amount,
		From:      from,
		To:        to,
		Result:    s.converter.Convert(amount, from, to),
		Converted: from == to || (s.converter.HasRate(from) && s.converter.HasRate(to)),
	}
}

// RefreshRates fetches rates for every account currency. Without force the
// converter's staleness window is honoured. Source failures are not errors.
func (s *currencyService) RefreshRates(ctx context.Context, force bool) (*RateStatus, error) {
	accounts, base, err := s.refreshInputs()
	if err != nil {
		return nil, err
	}
	if force {
		s.converter.RefreshRates(ctx, accounts, base)
	} else {
		s.converter.RefreshRatesIfNeeded(ctx, accounts, base)
	}
	status := s.RateStatus()
	return &status, nil
}

// RefreshRatesAsync refreshes in the background; read errors are dropped.
func (s *currencyService) RefreshRatesAsync(force bool) {
	accounts, base, err := s.refreshInputs()
	if err != nil {
		return
	}
	s.converter.RefreshRatesAsync(accounts, base, force)
}

func (s *currencyService) refreshInputs() ([]models.Account, string, error) {
	var accounts []models.Account
	if err := s.db.Select("id", "currency_code").Find(&accounts).Error; err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	// Aggregates are shown in the default currency, so it needs a rate too.
	def, err := s.defaultCode()
	if err != nil {
		return nil, "", err
	}
	accounts = append(accounts, models.Account{CurrencyCode: def})
	return accounts, s.converter.Base(), nil
}

// RateStatus reports the current rate table.
func (s *currencyService) RateStatus() RateStatus {
	status := RateStatus{
		Base:  s.converter.Base(),
		Rates: s.converter.Rates(),
	}
	if last := s.converter.LastRefresh(); !last.IsZero() {
		status.LastRefresh = &last
	}
	return status
}
