package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category is either a group (ParentID == nil) or a category inside a group.
// The taxonomy is at most two levels deep and a child shares its group's type.
type Category struct {
	Base
	Name      string       `gorm:"not null" json:"name"`
	Icon      string       `json:"icon,omitempty"`
	Type      CategoryType `gorm:"size:10;not null" json:"type"`
	SortOrder int          `gorm:"not null;default:0" json:"sort_order"`
	IsDefault bool         `gorm:"not null;default:false" json:"is_default"`
	ParentID  *string      `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	// Relationships
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// IsGroup reports whether the category is a top-level group.
func (c *Category) IsGroup() bool {
	return c.ParentID == nil
}
