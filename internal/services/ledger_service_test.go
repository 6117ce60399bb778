package services

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"teymia/internal/models"
	"teymia/internal/testutil"
)

func TestRecordIncome(t *testing.T) {
	t.Run("increases_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		account := testutil.CreateTestAccount(t, db)
		salary := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

		tx, err := ledger.RecordIncome(account.ID, salary.ID, testutil.Dec(t, "5000"), "Salary", time.Now())
		testutil.AssertNoError(t, err)

		if tx.ID == "" {
			t.Fatal("expected transaction ID")
		}
		if !tx.Amount.Equal(testutil.Dec(t, "5000")) {
			t.Errorf("expected amount 5000, got %s", tx.Amount)
		}
		testutil.AssertBalance(t, db, account.ID, "5000")
	})

	t.Run("zero_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		account := testutil.CreateTestAccount(t, db)
		salary := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

		_, err := ledger.RecordIncome(account.ID, salary.ID, decimal.Zero, "", time.Now())
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("missing_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		salary := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

		_, err := ledger.RecordIncome("0190a8d2-0000-7000-8000-000000000000", salary.ID, testutil.Dec(t, "1"), "", time.Now())
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("missing_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		account := testutil.CreateTestAccount(t, db)

		_, err := ledger.RecordIncome(account.ID, "", testutil.Dec(t, "1"), "", time.Now())
		testutil.AssertAppError(t, err, "CATEGORY_REQUIRED")
		testutil.AssertBalance(t, db, account.ID, "0")
	})

	t.Run("category_type_mismatch", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		account := testutil.CreateTestAccount(t, db)
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		_, err := ledger.RecordIncome(account.ID, groceries.ID, testutil.Dec(t, "1"), "", time.Now())
		testutil.AssertAppError(t, err, "CATEGORY_TYPE_MISMATCH")

		var count int64
		db.Model(&models.Transaction{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no transaction to be stored, got %d", count)
		}
	})
}

func TestRecordExpense(t *testing.T) {
	t.Run("decreases_balance_and_stores_negative_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		account := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		tx, err := ledger.RecordExpense(account.ID, groceries.ID, testutil.Dec(t, "30"), "", time.Now())
		testutil.AssertNoError(t, err)

		if !tx.Amount.Equal(testutil.Dec(t, "-30")) {
			t.Errorf("expected stored amount -30, got %s", tx.Amount)
		}
		testutil.AssertBalance(t, db, account.ID, "70")
	})

	t.Run("negative_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		account := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		_, err := ledger.RecordExpense(account.ID, groceries.ID, testutil.Dec(t, "-5"), "", time.Now())
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		testutil.AssertBalance(t, db, account.ID, "100")
	})

	t.Run("defaults_date_to_now", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		account := testutil.CreateTestAccount(t, db)
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		before := time.Now().Add(-time.Second)
		tx, err := ledger.RecordExpense(account.ID, groceries.ID, testutil.Dec(t, "1"), "", time.Time{})
		testutil.AssertNoError(t, err)
		if tx.Date.Before(before) {
			t.Errorf("expected date to default to now, got %s", tx.Date)
		}
	})

	t.Run("child_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		account := testutil.CreateTestAccount(t, db)
		food := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		coffee := testutil.CreateTestChildCategory(t, db, food)

		_, err := ledger.RecordExpense(account.ID, coffee.ID, testutil.Dec(t, "3.50"), "flat white", time.Now())
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, db, account.ID, "-3.5")
	})
}

func TestRecordTransfer(t *testing.T) {
	t.Run("moves_money", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		from := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		to := testutil.CreateTestAccountWithBalance(t, db, "USD", "10")

		tx, err := ledger.RecordTransfer(from.ID, to.ID, testutil.Dec(t, "40"), "savings", time.Now())
		testutil.AssertNoError(t, err)

		if tx.ToAccountID == nil || *tx.ToAccountID != to.ID {
			t.Fatal("expected destination account to be recorded")
		}
		if tx.CategoryID != nil {
			t.Error("expected transfer to have no category")
		}
		if !tx.Amount.Equal(testutil.Dec(t, "40")) {
			t.Errorf("expected stored magnitude 40, got %s", tx.Amount)
		}
		testutil.AssertBalance(t, db, from.ID, "60")
		testutil.AssertBalance(t, db, to.ID, "50")
	})

	t.Run("same_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		account := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")

		_, err := ledger.RecordTransfer(account.ID, account.ID, testutil.Dec(t, "10"), "", time.Now())
		testutil.AssertAppError(t, err, "SAME_ACCOUNT_TRANSFER")
		testutil.AssertBalance(t, db, account.ID, "100")
	})

	t.Run("same_unknown_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)

		_, err := ledger.RecordTransfer("nope", "nope", testutil.Dec(t, "10"), "", time.Now())
		testutil.AssertAppError(t, err, "SAME_ACCOUNT_TRANSFER")
	})

	t.Run("missing_destination", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		from := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")

		_, err := ledger.RecordTransfer(from.ID, "0190a8d2-0000-7000-8000-000000000000", testutil.Dec(t, "10"), "", time.Now())
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
		testutil.AssertBalance(t, db, from.ID, "100")
	})
}

func TestRevertBalanceChanges(t *testing.T) {
	t.Run("restores_pre_transaction_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		b := testutil.CreateTestAccountWithBalance(t, db, "USD", "0")
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		salary := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

		expense, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "12.34"), "", time.Now())
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, ledger.RevertBalanceChanges(expense.ID))
		testutil.AssertBalance(t, db, a.ID, "100")

		income, err := ledger.RecordIncome(a.ID, salary.ID, testutil.Dec(t, "7"), "", time.Now())
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, ledger.RevertBalanceChanges(income.ID))
		testutil.AssertBalance(t, db, a.ID, "100")

		transfer, err := ledger.RecordTransfer(a.ID, b.ID, testutil.Dec(t, "25"), "", time.Now())
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, ledger.RevertBalanceChanges(transfer.ID))
		testutil.AssertBalance(t, db, a.ID, "100")
		testutil.AssertBalance(t, db, b.ID, "0")
	})

	t.Run("double_revert_over_corrects", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		expense, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "30"), "", time.Now())
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, ledger.RevertBalanceChanges(expense.ID))
		testutil.AssertNoError(t, ledger.RevertBalanceChanges(expense.ID))
		testutil.AssertBalance(t, db, a.ID, "130")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)

		err := ledger.RevertBalanceChanges("missing")
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestUpdateTransaction(t *testing.T) {
	t.Run("amount_only", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		a := testutil.CreateTestAccountWithBalance(t, db, "USD", "200")
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		tx, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "15"), "", time.Now())
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, db, a.ID, "185")

		// balance_before_edit + A - B
		newAmount := testutil.Dec(t, "40")
		updated, err := ledger.UpdateTransaction(tx.ID, TransactionUpdate{Amount: &newAmount})
		testutil.AssertNoError(t, err)
		if !updated.Amount.Equal(testutil.Dec(t, "-40")) {
			t.Errorf("expected amount -40, got %s", updated.Amount)
		}
		testutil.AssertBalance(t, db, a.ID, "160")
	})

	t.Run("move_to_other_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		b := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		tx, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "10"), "", time.Now())
		testutil.AssertNoError(t, err)

		_, err = ledger.UpdateTransaction(tx.ID, TransactionUpdate{AccountID: &b.ID})
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, db, a.ID, "100")
		testutil.AssertBalance(t, db, b.ID, "90")
	})

	t.Run("expense_to_transfer", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		b := testutil.CreateTestAccountWithBalance(t, db, "USD", "0")
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		tx, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "10"), "", time.Now())
		testutil.AssertNoError(t, err)

		transfer := models.TransactionTypeTransfer
		updated, err := ledger.UpdateTransaction(tx.ID, TransactionUpdate{Type: &transfer, ToAccountID: &b.ID})
		testutil.AssertNoError(t, err)

		if updated.CategoryID != nil {
			t.Error("expected category to be cleared for a transfer")
		}
		if !updated.Amount.Equal(testutil.Dec(t, "10")) {
			t.Errorf("expected transfer magnitude 10, got %s", updated.Amount)
		}
		testutil.AssertBalance(t, db, a.ID, "90")
		testutil.AssertBalance(t, db, b.ID, "10")
	})

	t.Run("transfer_to_income", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		b := testutil.CreateTestAccountWithBalance(t, db, "USD", "0")
		salary := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

		tx, err := ledger.RecordTransfer(a.ID, b.ID, testutil.Dec(t, "30"), "", time.Now())
		testutil.AssertNoError(t, err)

		income := models.TransactionTypeIncome
		updated, err := ledger.UpdateTransaction(tx.ID, TransactionUpdate{Type: &income, CategoryID: &salary.ID})
		testutil.AssertNoError(t, err)

		if updated.ToAccountID != nil {
			t.Error("expected destination to be cleared")
		}
		testutil.AssertBalance(t, db, a.ID, "130")
		testutil.AssertBalance(t, db, b.ID, "0")
	})

	t.Run("invalid_update_leaves_balances", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		salary := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

		tx, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "10"), "", time.Now())
		testutil.AssertNoError(t, err)

		_, err = ledger.UpdateTransaction(tx.ID, TransactionUpdate{CategoryID: &salary.ID})
		testutil.AssertAppError(t, err, "CATEGORY_TYPE_MISMATCH")

		transfer := models.TransactionTypeTransfer
		_, err = ledger.UpdateTransaction(tx.ID, TransactionUpdate{Type: &transfer, ToAccountID: &a.ID})
		testutil.AssertAppError(t, err, "SAME_ACCOUNT_TRANSFER")

		zero := decimal.Zero
		_, err = ledger.UpdateTransaction(tx.ID, TransactionUpdate{Amount: &zero})
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		testutil.AssertBalance(t, db, a.ID, "90")
		stored, err := ledger.GetTransactionByID(tx.ID)
		testutil.AssertNoError(t, err)
		if !stored.Amount.Equal(testutil.Dec(t, "-10")) {
			t.Errorf("expected stored amount to stay -10, got %s", stored.Amount)
		}
	})

	t.Run("note_and_date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		tx, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "10"), "old", time.Now())
		testutil.AssertNoError(t, err)

		note := "new"
		date := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
		updated, err := ledger.UpdateTransaction(tx.ID, TransactionUpdate{Note: &note, Date: &date})
		testutil.AssertNoError(t, err)
		if updated.Note != "new" || !updated.Date.Equal(date) {
			t.Errorf("expected note and date to change, got %q %s", updated.Note, updated.Date)
		}
		testutil.AssertBalance(t, db, a.ID, "90")
	})
}

func TestDeleteTransaction(t *testing.T) {
	t.Run("reverts_then_deletes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)
		a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
		b := testutil.CreateTestAccountWithBalance(t, db, "USD", "0")

		tx, err := ledger.RecordTransfer(a.ID, b.ID, testutil.Dec(t, "40"), "", time.Now())
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, ledger.DeleteTransaction(tx.ID))
		testutil.AssertBalance(t, db, a.ID, "100")
		testutil.AssertBalance(t, db, b.ID, "0")

		_, err = ledger.GetTransactionByID(tx.ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := newLedger(db)

		testutil.AssertAppError(t, ledger.DeleteTransaction("missing"), "TRANSACTION_NOT_FOUND")
	})
}

func TestExpenseEditDeleteScenario(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ledger := newLedger(db)
	a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100.00")
	groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

	tx, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "30"), "", time.Now())
	testutil.AssertNoError(t, err)
	testutil.AssertBalance(t, db, a.ID, "70.00")

	fifty := testutil.Dec(t, "50")
	_, err = ledger.UpdateTransaction(tx.ID, TransactionUpdate{Amount: &fifty})
	testutil.AssertNoError(t, err)
	testutil.AssertBalance(t, db, a.ID, "50.00")

	testutil.AssertNoError(t, ledger.DeleteTransaction(tx.ID))
	testutil.AssertBalance(t, db, a.ID, "100.00")
}

func TestSetHidden(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ledger := newLedger(db)
	a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
	groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

	tx, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "30"), "", time.Now())
	testutil.AssertNoError(t, err)

	hidden, err := ledger.SetHidden(tx.ID, true)
	testutil.AssertNoError(t, err)
	if !hidden.IsHidden {
		t.Error("expected transaction to be hidden")
	}
	// Hiding is a view filter; the expense still counts.
	testutil.AssertBalance(t, db, a.ID, "70")

	recomputed, err := ledger.RecomputeBalance(a.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, "recomputed balance", recomputed, "70")

	shown, err := ledger.SetHidden(tx.ID, false)
	testutil.AssertNoError(t, err)
	if shown.IsHidden {
		t.Error("expected transaction to be visible again")
	}
	reloaded, err := ledger.GetTransactionByID(tx.ID)
	testutil.AssertNoError(t, err)
	if reloaded.IsHidden {
		t.Error("expected stored transaction to be visible")
	}

	_, err = ledger.SetHidden("0190a8d2-0000-7000-8000-000000000000", true)
	testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
}

func TestSetHidden_ConcurrentWithWriters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ledger := newLedger(db)
	a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
	groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

	target, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "10"), "", time.Now())
	testutil.AssertNoError(t, err)

	one := testutil.Dec(t, "1")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(hidden bool) {
			defer wg.Done()
			if _, err := ledger.SetHidden(target.ID, hidden); err != nil {
				t.Errorf("set hidden failed: %v", err)
			}
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			if _, err := ledger.RecordExpense(a.ID, groceries.ID, one, "", time.Now()); err != nil {
				t.Errorf("record failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// 100 - 10 - 10 x 1
	testutil.AssertBalance(t, db, a.ID, "80")
	recomputed, err := ledger.RecomputeBalance(a.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, "recomputed balance", recomputed, "80")
}

func TestBalanceConsistency(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ledger := newLedger(db)
	a := testutil.CreateTestAccountWithBalance(t, db, "USD", "250")
	b := testutil.CreateTestAccountWithBalance(t, db, "EUR", "-20")
	groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
	salary := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

	income, err := ledger.RecordIncome(a.ID, salary.ID, testutil.Dec(t, "1000"), "", time.Now())
	testutil.AssertNoError(t, err)
	e1, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "45.10"), "", time.Now())
	testutil.AssertNoError(t, err)
	e2, err := ledger.RecordExpense(b.ID, groceries.ID, testutil.Dec(t, "9.99"), "", time.Now())
	testutil.AssertNoError(t, err)
	tr, err := ledger.RecordTransfer(a.ID, b.ID, testutil.Dec(t, "300"), "", time.Now())
	testutil.AssertNoError(t, err)

	amount := testutil.Dec(t, "120")
	_, err = ledger.UpdateTransaction(tr.ID, TransactionUpdate{Amount: &amount, AccountID: &b.ID, ToAccountID: &a.ID})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, ledger.DeleteTransaction(e1.ID))
	_, err = ledger.UpdateTransaction(e2.ID, TransactionUpdate{AccountID: &a.ID})
	testutil.AssertNoError(t, err)
	_, err = ledger.SetHidden(income.ID, true)
	testutil.AssertNoError(t, err)

	for _, id := range []string{a.ID, b.ID} {
		want, err := ledger.RecomputeBalance(id)
		testutil.AssertNoError(t, err)
		got := testutil.ReloadAccount(t, db, id).Balance
		if !got.Equal(want) {
			t.Errorf("account %s: stored balance %s, recomputed %s", id, got, want)
		}
	}
	// 250 + 1000 - 9.99 + 120
	testutil.AssertBalance(t, db, a.ID, "1360.01")
	// -20 - 120
	testutil.AssertBalance(t, db, b.ID, "-140")
}

func TestLedger_ConcurrentWriters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ledger := newLedger(db)
	a := testutil.CreateTestAccountWithBalance(t, db, "USD", "0")
	salary := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

	amount := testutil.Dec(t, "1.5")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.RecordIncome(a.ID, salary.ID, amount, "", time.Now()); err != nil {
				t.Errorf("record failed: %v", err)
			}
		}()
	}
	wg.Wait()

	testutil.AssertBalance(t, db, a.ID, "30")
}

func TestDeleteAccountCascade(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ledger := newLedger(db)
	a := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
	b := testutil.CreateTestAccountWithBalance(t, db, "USD", "100")
	groceries := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

	if err := db.Model(a).Update("is_default", true).Error; err != nil {
		t.Fatalf("failed to mark default: %v", err)
	}

	_, err := ledger.RecordExpense(a.ID, groceries.ID, testutil.Dec(t, "10"), "", time.Now())
	testutil.AssertNoError(t, err)
	_, err = ledger.RecordTransfer(a.ID, b.ID, testutil.Dec(t, "25"), "", time.Now())
	testutil.AssertNoError(t, err)
	_, err = ledger.RecordTransfer(b.ID, a.ID, testutil.Dec(t, "5"), "", time.Now())
	testutil.AssertNoError(t, err)
	testutil.AssertBalance(t, db, b.ID, "120")

	testutil.AssertNoError(t, ledger.DeleteAccount(a.ID))

	// b is back to its balance without any transfer involving a.
	testutil.AssertBalance(t, db, b.ID, "100")

	var remaining int64
	db.Model(&models.Transaction{}).Count(&remaining)
	if remaining != 0 {
		t.Errorf("expected all transactions touching the account to be deleted, got %d", remaining)
	}
	if !testutil.ReloadAccount(t, db, b.ID).IsDefault {
		t.Error("expected the remaining account to become default")
	}

	testutil.AssertAppError(t, ledger.DeleteAccount(a.ID), "ACCOUNT_NOT_FOUND")
}
