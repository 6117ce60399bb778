package services

import (
	"testing"
	"time"

	"teymia/internal/models"
	"teymia/internal/testutil"
)

func TestCreateCategory(t *testing.T) {
	t.Run("group", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)

		category, err := svc.CreateCategory(CategoryInput{Name: "Pets", Icon: "pawprint", Type: models.CategoryTypeExpense})
		testutil.AssertNoError(t, err)

		if category.ID == "" {
			t.Fatal("expected category ID")
		}
		if !category.IsGroup() {
			t.Error("expected a group")
		}
		if category.IsDefault {
			t.Error("user categories are never default")
		}
	})

	t.Run("child_inherits_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		group := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

		child, err := svc.CreateCategory(CategoryInput{Name: "Tips", ParentID: &group.ID})
		testutil.AssertNoError(t, err)

		if child.Type != models.CategoryTypeIncome {
			t.Errorf("expected income, got %s", child.Type)
		}
		if child.ParentID == nil || *child.ParentID != group.ID {
			t.Error("expected child to reference the group")
		}
	})

	t.Run("sort_order_appends_within_parent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		group := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		first, err := svc.CreateCategory(CategoryInput{Name: "One", ParentID: &group.ID})
		testutil.AssertNoError(t, err)
		second, err := svc.CreateCategory(CategoryInput{Name: "Two", ParentID: &group.ID})
		testutil.AssertNoError(t, err)

		if first.SortOrder != 0 || second.SortOrder != 1 {
			t.Errorf("expected sort orders 0 and 1, got %d and %d", first.SortOrder, second.SortOrder)
		}
	})

	t.Run("type_mismatch_with_group", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		group := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

		_, err := svc.CreateCategory(CategoryInput{Name: "Rent", Type: models.CategoryTypeExpense, ParentID: &group.ID})
		testutil.AssertAppError(t, err, "CATEGORY_TYPE_MISMATCH")
	})

	t.Run("too_deep", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		group := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		child := testutil.CreateTestChildCategory(t, db, group)

		_, err := svc.CreateCategory(CategoryInput{Name: "Grandchild", ParentID: &child.ID})
		testutil.AssertAppError(t, err, "CATEGORY_TOO_DEEP")
	})

	t.Run("duplicate_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)

		_, err := svc.CreateCategory(CategoryInput{Name: "Travel", Type: models.CategoryTypeExpense})
		testutil.AssertNoError(t, err)
		_, err = svc.CreateCategory(CategoryInput{Name: "travel", Type: models.CategoryTypeExpense})
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		// Same name is fine under the other type.
		_, err = svc.CreateCategory(CategoryInput{Name: "Travel", Type: models.CategoryTypeIncome})
		testutil.AssertNoError(t, err)
	})

	t.Run("invalid_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)

		_, err := svc.CreateCategory(CategoryInput{Name: "Odd", Type: "transfer"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("missing_parent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)

		missing := "missing"
		_, err := svc.CreateCategory(CategoryInput{Name: "Orphan", ParentID: &missing})
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestListCategories(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCategoryService(db)

	food := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
	testutil.CreateTestChildCategory(t, db, food)
	testutil.CreateTestChildCategory(t, db, food)
	testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)

	all, err := svc.ListCategories(nil)
	testutil.AssertNoError(t, err)
	if len(all) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(all))
	}

	expense := models.CategoryTypeExpense
	groups, err := svc.ListCategories(&expense)
	testutil.AssertNoError(t, err)
	if len(groups) != 1 {
		t.Fatalf("expected 1 expense group, got %d", len(groups))
	}
	if len(groups[0].Children) != 2 {
		t.Errorf("expected 2 children, got %d", len(groups[0].Children))
	}
}

func TestUpdateCategory(t *testing.T) {
	t.Run("rename_and_reorder", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		name, order := "Utilities", 7
		updated, err := svc.UpdateCategory(category.ID, CategoryUpdateFields{Name: &name, SortOrder: &order})
		testutil.AssertNoError(t, err)
		if updated.Name != "Utilities" || updated.SortOrder != 7 {
			t.Errorf("unexpected category after update: %+v", updated)
		}
	})

	t.Run("name_taken_by_sibling", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		a := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		b := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		_, err := svc.UpdateCategory(b.ID, CategoryUpdateFields{Name: &a.Name})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)

		_, err := svc.UpdateCategory("missing", CategoryUpdateFields{})
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestDeleteCategory(t *testing.T) {
	t.Run("unused", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, &category.ID)

		testutil.AssertNoError(t, svc.DeleteCategory(category.ID))

		_, err := svc.GetCategoryByID(category.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")

		var count int64
		db.Model(&models.Budget{}).Where("id = ?", budget.ID).Count(&count)
		if count != 0 {
			t.Error("expected scoped budget to be removed")
		}
	})

	t.Run("default_protected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		db.Model(category).Update("is_default", true)

		testutil.AssertAppError(t, svc.DeleteCategory(category.ID), "CATEGORY_PROTECTED")
	})

	t.Run("has_children", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		group := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		testutil.CreateTestChildCategory(t, db, group)

		testutil.AssertAppError(t, svc.DeleteCategory(group.ID), "CATEGORY_HAS_CHILDREN")
	})

	t.Run("in_use", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		account := testutil.CreateTestAccount(t, db)
		testutil.CreateTestTransaction(t, db, account.ID, &category.ID, models.TransactionTypeExpense, "-5", time.Now())

		testutil.AssertAppError(t, svc.DeleteCategory(category.ID), "CATEGORY_IN_USE")
	})
}

func TestGetDefaultCategory(t *testing.T) {
	categories := []models.Category{
		{Name: "Salary", Type: models.CategoryTypeIncome, SortOrder: 0},
		{Name: "Rent", Type: models.CategoryTypeExpense, SortOrder: 2},
		{Name: "Food", Type: models.CategoryTypeExpense, SortOrder: 1},
		{Name: "Fun", Type: models.CategoryTypeExpense, SortOrder: 1},
	}

	got := GetDefaultCategory(models.CategoryTypeExpense, categories)
	if got == nil || got.Name != "Food" {
		t.Errorf("expected Food, got %+v", got)
	}

	got = GetDefaultCategory(models.CategoryTypeIncome, categories)
	if got == nil || got.Name != "Salary" {
		t.Errorf("expected Salary, got %+v", got)
	}

	if got := GetDefaultCategory(models.CategoryTypeIncome, categories[1:]); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
	if got := GetDefaultCategory(models.CategoryTypeExpense, nil); got != nil {
		t.Errorf("expected nil for empty input, got %+v", got)
	}
}
