package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/services"
)

// CategoryHandler handles category tree requests.
type CategoryHandler struct {
	categoryService services.CategoryServicer
	auditService    services.AuditServicer
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categoryService services.CategoryServicer, auditService services.AuditServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, auditService: auditService}
}

// CreateCategoryRequest represents the request payload for creating a category.
type CreateCategoryRequest struct {
	Name          string              `json:"name" binding:"required,min=1,max=100"`
	Kind          models.CategoryKind `json:"kind" binding:"required,category_kind"`
	ParentID      *string             `json:"parent_id" binding:"omitempty,uuid"`
	Icon          string              `json:"icon" binding:"max=50"`
	Color         string              `json:"color" binding:"omitempty,hex_color"`
	IsQuickSelect bool                `json:"is_quick_select"`
	IsHidden      bool                `json:"is_hidden"`
	SortOrder     int                 `json:"sort_order" binding:"min=0"`
}

// UpdateCategoryRequest represents the request payload for updating a
// category. parent_id moves it under another root category; clear_parent
// makes it a root.
type UpdateCategoryRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1,max=100"`
	Icon          *string `json:"icon" binding:"omitempty,max=50"`
	Color         *string `json:"color" binding:"omitempty,hex_color"`
	IsQuickSelect *bool   `json:"is_quick_select"`
	IsHidden      *bool   `json:"is_hidden"`
	SortOrder     *int    `json:"sort_order" binding:"omitempty,min=0"`
	ParentID      *string `json:"parent_id" binding:"omitempty,uuid"`
	ClearParent   bool    `json:"clear_parent"`
}

// CreateCategory handles the creation of a new category.
// @Summary     Create a category
// @Description Create a root category, or a child under a root category of the same kind
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string                true "Ledger ID"
// @Param       request  body CreateCategoryRequest true "Category details"
// @Success     201 {object} models.Category "Category created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Parent category not found"
// @Failure     422 {object} ErrorResponse "Nesting or kind rule violated"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	category, err := h.categoryService.CreateCategory(ledgerID, services.CategoryInput{
		Name:          req.Name,
		Kind:          req.Kind,
		ParentID:      req.ParentID,
		Icon:          req.Icon,
		Color:         req.Color,
		IsQuickSelect: req.IsQuickSelect,
		IsHidden:      req.IsHidden,
		SortOrder:     req.SortOrder,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "CREATE_CATEGORY", "category", category.ID, c.ClientIP(),
		map[string]interface{}{"name": category.Name, "kind": category.Kind})

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// GetCategoryTree handles listing the category tree of a ledger.
// @Summary     Get the category tree
// @Description Root categories in sort order, each with its children
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID       path  string true  "Ledger ID"
// @Param       kind           query string false "Filter by kind (expense/income)"
// @Param       include_hidden query bool   false "Include hidden categories"
// @Success     200 {array} models.BranchScope "Category tree"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/categories [get]
func (h *CategoryHandler) GetCategoryTree(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var kind *models.CategoryKind
	if v := c.Query("kind"); v != "" {
		k := models.CategoryKind(v)
		if !k.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "kind must be 'expense' or 'income'"))
			return
		}
		kind = &k
	}

	includeHidden, err := parseBoolQuery(c, "include_hidden")
	if err != nil {
		respondWithError(c, err)
		return
	}

	tree, err := h.categoryService.GetCategoryTree(ledgerID, kind, includeHidden != nil && *includeHidden)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": tree})
}

// GetCategory handles fetching a single category with its display path.
// @Summary     Get a category
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID   path string true "Ledger ID"
// @Param       categoryID path string true "Category ID"
// @Success     200 {object} models.Category "Category"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/categories/{categoryID} [get]
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	ledgerID, categoryID, err := pathIDs(c, "categoryID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategoryByID(ledgerID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	fullPath, err := h.categoryService.FullPath(ledgerID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category, "full_path": fullPath})
}

// UpdateCategory handles category updates and moves.
// @Summary     Update a category
// @Tags        categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID   path string                true "Ledger ID"
// @Param       categoryID path string                true "Category ID"
// @Param       request    body UpdateCategoryRequest true "Fields to update"
// @Success     200 {object} models.Category "Category updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     422 {object} ErrorResponse "Nesting or kind rule violated"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/categories/{categoryID} [put]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	ledgerID, categoryID, err := pathIDs(c, "categoryID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}
	if req.ClearParent && req.ParentID != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "parent_id and clear_parent are mutually exclusive"))
		return
	}

	category, err := h.categoryService.UpdateCategory(ledgerID, categoryID, services.CategoryUpdate{
		Name:          req.Name,
		Icon:          req.Icon,
		Color:         req.Color,
		IsQuickSelect: req.IsQuickSelect,
		IsHidden:      req.IsHidden,
		SortOrder:     req.SortOrder,
		ParentID:      req.ParentID,
		ClearParent:   req.ClearParent,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "UPDATE_CATEGORY", "category", category.ID, c.ClientIP(),
		map[string]interface{}{"name": category.Name, "parent_id": category.ParentID})

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory handles deleting a category.
// @Summary     Delete a category
// @Description Delete a category without children or budgets. Its transactions become uncategorised.
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID   path string true "Ledger ID"
// @Param       categoryID path string true "Category ID"
// @Success     200 {object} MessageResponse "Category deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Category has children or budgets"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/categories/{categoryID} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	ledgerID, categoryID, err := pathIDs(c, "categoryID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.categoryService.DeleteCategory(ledgerID, categoryID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "DELETE_CATEGORY", "category", categoryID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}

// GetCategoryTransactions handles listing the transactions in a category's
// scope. A root category includes its children.
// @Summary     List category transactions
// @Tags        categories
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID   path  string true  "Ledger ID"
// @Param       categoryID path  string true  "Category ID"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/categories/{categoryID}/transactions [get]
func (h *CategoryHandler) GetCategoryTransactions(c *gin.Context) {
	ledgerID, categoryID, err := pathIDs(c, "categoryID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	result, err := h.categoryService.GetCategoryTransactions(ledgerID, categoryID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
