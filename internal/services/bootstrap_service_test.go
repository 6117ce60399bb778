package services

import (
	"testing"

	"teymia/internal/models"
	"teymia/internal/testutil"
)

func TestBootstrapSeed(t *testing.T) {
	t.Run("fresh_store", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		testutil.AssertNoError(t, NewBootstrapper(db, "eur").Seed())

		var def models.Currency
		testutil.AssertNoError(t, db.Where("is_default = ?", true).First(&def).Error)
		if def.Code != "EUR" {
			t.Errorf("expected default EUR, got %s", def.Code)
		}

		var accounts []models.Account
		testutil.AssertNoError(t, db.Find(&accounts).Error)
		if len(accounts) != 1 {
			t.Fatalf("expected 1 account, got %d", len(accounts))
		}
		if accounts[0].Name != MainAccountName || accounts[0].CurrencyCode != "EUR" || !accounts[0].IsDefault {
			t.Errorf("unexpected main account: %+v", accounts[0])
		}

		var groups []models.Category
		testutil.AssertNoError(t, db.Where("parent_id IS NULL").Find(&groups).Error)
		if len(groups) != len(defaultExpenseGroups)+len(defaultIncomeGroups) {
			t.Errorf("expected %d groups, got %d", len(defaultExpenseGroups)+len(defaultIncomeGroups), len(groups))
		}
		for _, g := range groups {
			if !g.IsDefault {
				t.Errorf("expected %s to be a default category", g.Name)
			}
		}

		var mismatched int64
		db.Table("categories AS c").
			Joins("JOIN categories AS p ON p.id = c.parent_id").
			Where("c.type <> p.type").
			Count(&mismatched)
		if mismatched != 0 {
			t.Errorf("expected children to share their group's type, %d differ", mismatched)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		b := NewBootstrapper(db, "USD")

		testutil.AssertNoError(t, b.Seed())
		var categories, accounts, currencies int64
		db.Model(&models.Category{}).Count(&categories)
		db.Model(&models.Account{}).Count(&accounts)
		db.Model(&models.Currency{}).Count(&currencies)

		testutil.AssertNoError(t, b.Seed())
		var categories2, accounts2, currencies2 int64
		db.Model(&models.Category{}).Count(&categories2)
		db.Model(&models.Account{}).Count(&accounts2)
		db.Model(&models.Currency{}).Count(&currencies2)

		if categories != categories2 || accounts != accounts2 || currencies != currencies2 {
			t.Errorf("second seed changed counts: categories %d->%d accounts %d->%d currencies %d->%d",
				categories, categories2, accounts, accounts2, currencies, currencies2)
		}
	})

	t.Run("keeps_existing_default_currency", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		testutil.AssertNoError(t, NewBootstrapper(db, "USD").Seed())
		testutil.AssertNoError(t, NewBootstrapper(db, "GBP").Seed())

		var def models.Currency
		testutil.AssertNoError(t, db.Where("is_default = ?", true).First(&def).Error)
		if def.Code != "USD" {
			t.Errorf("expected USD to stay default, got %s", def.Code)
		}
	})

	t.Run("unknown_base", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		testutil.AssertAppError(t, NewBootstrapper(db, "XXX").Seed(), "CURRENCY_NOT_FOUND")
	})
}
