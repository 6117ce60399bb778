package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "teymia/internal/errors"
	"teymia/internal/models"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a group, or a category inside a group when
// ParentID is set. Children inherit the group's type.
func (s *categoryService) CreateCategory(input CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	categoryType := input.Type
	if input.ParentID != nil && *input.ParentID != "" {
		parent, err := findCategory(s.db, *input.ParentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrCategoryNotFound) {
				return nil, apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
			}
			return nil, err
		}
		if !parent.IsGroup() {
			return nil, apperrors.ErrCategoryTooDeep
		}
		if categoryType == "" {
			categoryType = parent.Type
		}
		if categoryType != parent.Type {
			return nil, apperrors.ErrCategoryTypeChange
		}
	} else {
		input.ParentID = nil
	}

	if categoryType != models.CategoryTypeIncome && categoryType != models.CategoryTypeExpense {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must be income or expense")
	}

	// Names are unique among siblings.
	siblings := s.siblings(input.ParentID).Where("type = ?", categoryType)
	var count int64
	if err := siblings.Where("LOWER(name) = ?", strings.ToLower(name)).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category with this name already exists")
	}

	var maxOrder int
	if err := s.siblings(input.ParentID).Select("COALESCE(MAX(sort_order), -1)").Scan(&maxOrder).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	category := &models.Category{
		Name:      name,
		Icon:      input.Icon,
		Type:      categoryType,
		SortOrder: maxOrder + 1,
		ParentID:  input.ParentID,
	}
	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

func (s *categoryService) siblings(parentID *string) *gorm.DB {
	q := s.db.Model(&models.Category{})
	if parentID == nil {
		return q.Where("parent_id IS NULL")
	}
	return q.Where("parent_id = ?", *parentID)
}

// ListCategories returns the groups in sort order with their children
// loaded, optionally restricted to one type.
func (s *categoryService) ListCategories(categoryType *models.CategoryType) ([]models.Category, error) {
	q := s.db.Where("parent_id IS NULL").
		Preload("Children", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, name ASC")
		}).
		Order("sort_order ASC, name ASC")
	if categoryType != nil {
		q = q.Where("type = ?", *categoryType)
	}

	var categories []models.Category
	if err := q.Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

// GetCategoryByID retrieves a category with its children.
func (s *categoryService) GetCategoryByID(categoryID string) (*models.Category, error) {
	var category models.Category
	err := s.db.Preload("Children", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC, name ASC")
	}).Where("id = ?", categoryID).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory renames, re-icons or reorders a category. Type and parent
// are fixed once transactions may reference the category.
func (s *categoryService) UpdateCategory(categoryID string, fields CategoryUpdateFields) (*models.Category, error) {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
		}
		if !strings.EqualFold(name, category.Name) {
			var count int64
			if err := s.siblings(category.ParentID).
				Where("type = ? AND LOWER(name) = ? AND id <> ?", category.Type, strings.ToLower(name), category.ID).
				Count(&count).Error; err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if count > 0 {
				return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category with this name already exists")
			}
		}
		updates["name"] = name
	}
	if fields.Icon != nil {
		updates["icon"] = *fields.Icon
	}
	if fields.SortOrder != nil {
		updates["sort_order"] = *fields.SortOrder
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Category{}).Where("id = ?", category.ID).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.GetCategoryByID(category.ID)
	}
	return category, nil
}

// DeleteCategory deletes a user-created category that no transaction uses.
// Budgets scoped to it are removed with it.
func (s *categoryService) DeleteCategory(categoryID string) error {
	category, err := findCategory(s.db, categoryID)
	if err != nil {
		return err
	}
	if category.IsDefault {
		return apperrors.ErrCategoryProtected
	}

	var childCount int64
	if err := s.db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if childCount > 0 {
		return apperrors.ErrCategoryHasChildren
	}

	var txCount int64
	if err := s.db.Model(&models.Transaction{}).Where("category_id = ?", categoryID).Count(&txCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if txCount > 0 {
		return apperrors.ErrCategoryInUse
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", categoryID).Delete(&models.Budget{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// GetDefaultCategory returns the category of the given type with the lowest
// sort order, or nil when none match. Ties keep input order.
func GetDefaultCategory(forType models.CategoryType, categories []models.Category) *models.Category {
	var best *models.Category
	for i := range categories {
		c := &categories[i]
		if c.Type != forType {
			continue
		}
		if best == nil || c.SortOrder < best.SortOrder {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	found := *best
	return &found
}
