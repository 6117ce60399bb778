package services

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"teymia/internal/currency"
	apperrors "teymia/internal/errors"
	"teymia/internal/logger"
	"teymia/internal/models"
)

// MainAccountName is the name of the account created on first start.
const MainAccountName = "Main Account"

type seedGroup struct {
	name     string
	icon     string
	children [][2]string // name, icon
}

var defaultExpenseGroups = []seedGroup{
	{"Food & Drinks", "fork.knife", [][2]string{{"Groceries", "cart"}, {"Restaurants", "takeoutbag"}, {"Coffee", "cup"}}},
	{"Transport", "car", [][2]string{{"Public Transport", "bus"}, {"Taxi", "car.side"}, {"Fuel", "fuelpump"}}},
	{"Housing", "house", [][2]string{{"Rent", "key"}, {"Utilities", "bolt"}, {"Internet", "wifi"}}},
	{"Shopping", "bag", [][2]string{{"Clothes", "tshirt"}, {"Electronics", "desktopcomputer"}}},
	{"Health", "cross.case", [][2]string{{"Pharmacy", "pills"}, {"Doctor", "stethoscope"}}},
	{"Entertainment", "gamecontroller", [][2]string{{"Movies", "film"}, {"Subscriptions", "repeat"}}},
	{"Other", "ellipsis", [][2]string{{"Gifts", "gift"}, {"Miscellaneous", "questionmark"}}},
}

var defaultIncomeGroups = []seedGroup{
	{"Work", "briefcase", [][2]string{{"Salary", "banknote"}, {"Bonus", "star"}, {"Freelance", "laptopcomputer"}}},
	{"Other Income", "plus.circle", [][2]string{{"Gifts Received", "gift"}, {"Interest", "percent"}, {"Refunds", "arrow.uturn.left"}}},
}

// Bootstrapper seeds a fresh store. Every step is skipped when its data
// already exists, so Seed can run on every start.
type Bootstrapper struct {
	db           *gorm.DB
	baseCurrency string
	log          *zap.SugaredLogger
}

// NewBootstrapper creates a Bootstrapper. baseCurrency becomes the default
// currency and the main account's currency when nothing is stored yet.
func NewBootstrapper(db *gorm.DB, baseCurrency string) *Bootstrapper {
	return &Bootstrapper{db: db, baseCurrency: baseCurrency, log: logger.Named("bootstrap")}
}

// Seed inserts the currency catalog, the default category taxonomy and the
// main account.
func (b *Bootstrapper) Seed() error {
	base, ok := currency.Find(b.baseCurrency)
	if !ok {
		return apperrors.WithMessage(apperrors.ErrCurrencyNotFound, "unknown base currency "+b.baseCurrency)
	}

	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := seedCurrencies(tx, base.Code); err != nil {
			return err
		}
		created, err := seedCategories(tx)
		if err != nil {
			return err
		}
		if created > 0 {
			b.log.Infow("seeded default categories", "count", created)
		}
		account, err := seedMainAccount(tx, base.Code)
		if err != nil {
			return err
		}
		if account != nil {
			b.log.Infow("created main account", "account_id", account.ID, "currency", account.CurrencyCode)
		}
		return nil
	})
}

func seedCurrencies(tx *gorm.DB, defaultCode string) error {
	all := currency.List(nil)
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&all).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var defaults int64
	if err := tx.Model(&models.Currency{}).Where("is_default = ?", true).Count(&defaults).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if defaults > 0 {
		return nil
	}
	if err := tx.Model(&models.Currency{}).Where("code = ?", defaultCode).Update("is_default", true).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func seedCategories(tx *gorm.DB) (int, error) {
	var count int64
	if err := tx.Model(&models.Category{}).Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return 0, nil
	}

	created := 0
	insert := func(groups []seedGroup, categoryType models.CategoryType) error {
		for i, g := range groups {
			group := &models.Category{
				Name:      g.name,
				Icon:      g.icon,
				Type:      categoryType,
				SortOrder: i,
				IsDefault: true,
			}
			if err := tx.Create(group).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			created++
			for j, c := range g.children {
				child := &models.Category{
					Name:      c[0],
					Icon:      c[1],
					Type:      categoryType,
					SortOrder: j,
					IsDefault: true,
					ParentID:  &group.ID,
				}
				if err := tx.Create(child).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternalServer, err)
				}
				created++
			}
		}
		return nil
	}

	if err := insert(defaultExpenseGroups, models.CategoryTypeExpense); err != nil {
		return 0, err
	}
	if err := insert(defaultIncomeGroups, models.CategoryTypeIncome); err != nil {
		return 0, err
	}
	return created, nil
}

func seedMainAccount(tx *gorm.DB, currencyCode string) (*models.Account, error) {
	var count int64
	if err := tx.Model(&models.Account{}).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, nil
	}

	account := &models.Account{
		Name:           MainAccountName,
		CurrencyCode:   currencyCode,
		Balance:        decimal.Zero,
		InitialBalance: decimal.Zero,
		IsDefault:      true,
		Icon:           "wallet",
	}
	if err := tx.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return account, nil
}
