package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/writer"
)

// categoryService handles the two-level category tree.
type categoryService struct {
	db    *gorm.DB
	queue *writer.Queue
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB, queue *writer.Queue) CategoryServicer {
	return &categoryService{db: db, queue: queue}
}

// checkParent validates parentID as the parent of a category of the given
// kind: it must be a root of the same ledger and kind.
func checkParent(tx *gorm.DB, ledgerID, parentID string, kind models.CategoryKind) error {
	parent, err := referencedCategory(tx, ledgerID, parentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCategoryNotFound) {
			return apperrors.WithMessage(apperrors.ErrCategoryNotFound, "Parent category not found")
		}
		return err
	}
	if !parent.IsRoot() {
		return apperrors.ErrCategoryTooDeep
	}
	if parent.Kind != kind {
		return apperrors.WithMessage(apperrors.ErrCategoryKindMismatch, "A child category must have its parent's kind")
	}
	return nil
}

// CreateCategory creates a root or child category.
func (s *categoryService) CreateCategory(ledgerID string, input CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if !input.Kind.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unsupported category kind")
	}

	category := &models.Category{
		LedgerID:      ledgerID,
		Name:          name,
		Kind:          input.Kind,
		ParentID:      input.ParentID,
		Icon:          input.Icon,
		Color:         input.Color,
		IsQuickSelect: input.IsQuickSelect,
		IsHidden:      input.IsHidden,
		SortOrder:     input.SortOrder,
	}

	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := requireLedger(tx, ledgerID); err != nil {
				return err
			}
			if input.ParentID != nil {
				if err := checkParent(tx, ledgerID, *input.ParentID, input.Kind); err != nil {
					return err
				}
			}
			if err := tx.Create(category).Error; err != nil {
				return internal(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	return category, nil
}

// GetCategoryTree returns root categories with their children, both ordered
// by sort order then name. Children of a filtered-out root are omitted.
func (s *categoryService) GetCategoryTree(ledgerID string, kind *models.CategoryKind, includeHidden bool) ([]models.BranchScope, error) {
	if err := requireLedger(s.db, ledgerID); err != nil {
		return nil, err
	}

	q := s.db.Where("ledger_id = ?", ledgerID)
	if kind != nil {
		q = q.Where("kind = ?", *kind)
	}
	if !includeHidden {
		q = q.Where("is_hidden = ?", false)
	}

	var categories []models.Category
	if err := q.Order("sort_order ASC, name ASC").Find(&categories).Error; err != nil {
		return nil, internal(err)
	}

	return buildTree(categories), nil
}

// buildTree groups ordered categories into branches.
func buildTree(categories []models.Category) []models.BranchScope {
	index := make(map[string]int)
	tree := make([]models.BranchScope, 0)
	for _, c := range categories {
		if c.IsRoot() {
			index[c.ID] = len(tree)
			tree = append(tree, models.BranchScope{Root: c, Children: []models.Category{}})
		}
	}
	for _, c := range categories {
		if c.IsRoot() {
			continue
		}
		if i, ok := index[*c.ParentID]; ok {
			tree[i].Children = append(tree[i].Children, c)
		}
	}
	return tree
}

// GetCategoryByID returns a category with its parent and children loaded.
func (s *categoryService) GetCategoryByID(ledgerID, categoryID string) (*models.Category, error) {
	var category models.Category
	err := s.db.
		Preload("Parent").
		Preload("Children", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, name ASC") }).
		Where("id = ? AND ledger_id = ?", categoryID, ledgerID).
		First(&category).Error
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrCategoryNotFound)
	}
	return &category, nil
}

func findCategory(tx *gorm.DB, ledgerID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := tx.Where("id = ? AND ledger_id = ?", categoryID, ledgerID).First(&category).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrCategoryNotFound)
	}
	return &category, nil
}

func countChildren(tx *gorm.DB, categoryID string) (int64, error) {
	var n int64
	if err := tx.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&n).Error; err != nil {
		return 0, internal(err)
	}
	return n, nil
}

// UpdateCategory updates a category's fields and optionally moves it.
func (s *categoryService) UpdateCategory(ledgerID, categoryID string, update CategoryUpdate) (*models.Category, error) {
	if update.ParentID != nil && *update.ParentID == categoryID {
		return nil, apperrors.ErrSelfParentCategory
	}

	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			category, err := findCategory(tx, ledgerID, categoryID)
			if err != nil {
				return err
			}

			updates := make(map[string]interface{})
			if update.Name != nil {
				name := strings.TrimSpace(*update.Name)
				if name == "" {
					return apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
				}
				updates["name"] = name
			}
			if update.Icon != nil {
				updates["icon"] = *update.Icon
			}
			if update.Color != nil {
				updates["color"] = *update.Color
			}
			if update.IsQuickSelect != nil {
				updates["is_quick_select"] = *update.IsQuickSelect
			}
			if update.IsHidden != nil {
				updates["is_hidden"] = *update.IsHidden
			}
			if update.SortOrder != nil {
				updates["sort_order"] = *update.SortOrder
			}

			switch {
			case update.ClearParent:
				updates["parent_id"] = nil
			case update.ParentID != nil:
				children, err := countChildren(tx, category.ID)
				if err != nil {
					return err
				}
				if children > 0 {
					return apperrors.WithMessage(apperrors.ErrCategoryTooDeep, "A category with children cannot become a child")
				}
				if err := checkParent(tx, ledgerID, *update.ParentID, category.Kind); err != nil {
					return err
				}
				updates["parent_id"] = *update.ParentID
			}

			if len(updates) == 0 {
				return nil
			}
			if err := tx.Model(category).Updates(updates).Error; err != nil {
				return internal(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	return s.GetCategoryByID(ledgerID, categoryID)
}

// DeleteCategory deletes a category that has no children and no budgets.
// Its transactions become uncategorised.
func (s *categoryService) DeleteCategory(ledgerID, categoryID string) error {
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			category, err := findCategory(tx, ledgerID, categoryID)
			if err != nil {
				return err
			}

			children, err := countChildren(tx, category.ID)
			if err != nil {
				return err
			}
			if children > 0 {
				return apperrors.ErrCategoryHasChildren
			}

			var budgets int64
			if err := tx.Model(&models.Budget{}).Where("category_id = ?", category.ID).Count(&budgets).Error; err != nil {
				return internal(err)
			}
			if budgets > 0 {
				return apperrors.ErrCategoryInUse
			}

			if err := tx.Model(&models.Transaction{}).
				Where("category_id = ?", category.ID).
				Update("category_id", nil).Error; err != nil {
				return internal(err)
			}
			if err := tx.Delete(category).Error; err != nil {
				return internal(err)
			}
			return nil
		})
	})
	if err != nil {
		return internal(err)
	}
	return nil
}

// GetCategoryScope returns the categories whose transactions roll up into
// categoryID.
func (s *categoryService) GetCategoryScope(ledgerID, categoryID string) (models.CategoryScope, error) {
	return categoryScope(s.db, ledgerID, categoryID)
}

func categoryScope(db *gorm.DB, ledgerID, categoryID string) (models.CategoryScope, error) {
	category, err := findCategory(db, ledgerID, categoryID)
	if err != nil {
		return nil, err
	}

	var children []models.Category
	if category.IsRoot() {
		if err := db.Where("parent_id = ?", category.ID).Order("sort_order ASC, name ASC").Find(&children).Error; err != nil {
			return nil, internal(err)
		}
	}
	return models.ScopeOf(*category, children), nil
}

// GetCategoryTransactions pages through every transaction in the category's
// scope: a root includes its children, a child only itself.
func (s *categoryService) GetCategoryTransactions(ledgerID, categoryID string, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	scope, err := categoryScope(s.db, ledgerID, categoryID)
	if err != nil {
		return nil, err
	}
	base := s.db.Model(&models.Transaction{}).
		Where("ledger_id = ? AND category_id IN ?", ledgerID, scope.CategoryIDs())
	return pageTransactions(base, page)
}

// FullPath returns "Parent > Child" for a child and the name for a root.
func (s *categoryService) FullPath(ledgerID, categoryID string) (string, error) {
	category, err := s.GetCategoryByID(ledgerID, categoryID)
	if err != nil {
		return "", err
	}
	return category.FullPath(), nil
}
