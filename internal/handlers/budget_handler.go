package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auditService: auditService}
}

// CreateBudgetRequest represents the request payload for creating a budget.
// start_date defaults to the first day of the current month; end_date is
// required for custom budgets only.
type CreateBudgetRequest struct {
	CategoryID      string              `json:"category_id" binding:"required,uuid"`
	Name            string              `json:"name" binding:"required,min=1,max=100"`
	Amount          decimal.Decimal     `json:"amount" binding:"required,dec_gt0"`
	Period          models.BudgetPeriod `json:"period" binding:"required,budget_period"`
	StartDate       *string             `json:"start_date"`
	EndDate         *string             `json:"end_date"`
	RolloverEnabled bool                `json:"rollover_enabled"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	Name            *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Amount          *decimal.Decimal `json:"amount" binding:"omitempty,dec_gt0"`
	EndDate         *string          `json:"end_date"`
	RolloverEnabled *bool            `json:"rollover_enabled"`
	IsActive        *bool            `json:"is_active"`
}

// CreateBudget handles the creation of a new budget.
// @Summary     Create a budget
// @Description Create a spending cap on an expense category for a monthly, yearly or custom window
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string              true "Ledger ID"
// @Param       request  body CreateBudgetRequest true "Budget details"
// @Success     201 {object} models.Budget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	startDate, err := parseOptionalTime(req.StartDate)
	if err != nil {
		respondWithError(c, err)
		return
	}
	endDate, err := parseOptionalTime(req.EndDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	input := services.BudgetInput{
		CategoryID:      req.CategoryID,
		Name:            req.Name,
		Amount:          req.Amount,
		Period:          req.Period,
		StartDate:       startDate,
		RolloverEnabled: req.RolloverEnabled,
	}
	if !endDate.IsZero() {
		input.EndDate = &endDate
	}

	budget, err := h.budgetService.CreateBudget(ledgerID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "CREATE_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"name": budget.Name, "amount": budget.Amount.String(), "period": budget.Period})

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// GetBudgets handles listing the budgets of a ledger.
// @Summary     Get budgets
// @Description Get a paginated list of budgets
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID  path  string true  "Ledger ID"
// @Param       is_active query bool   false "Filter by active status"
// @Param       period    query string false "Filter by period (monthly/yearly/custom)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Budget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	isActive, err := parseBoolQuery(c, "is_active")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var period *models.BudgetPeriod
	if v := c.Query("period"); v != "" {
		p := models.BudgetPeriod(v)
		if !p.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be 'monthly', 'yearly' or 'custom'"))
			return
		}
		period = &p
	}

	result, err := h.budgetService.GetLedgerBudgets(ledgerID, page, isActive, period)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBudget handles retrieving a specific budget.
// @Summary     Get budget by ID
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Param       budgetID path string true "Budget ID"
// @Success     200 {object} models.Budget "Budget details"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/budgets/{budgetID} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	ledgerID, budgetID, err := pathIDs(c, "budgetID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudgetByID(ledgerID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// UpdateBudget handles updating an existing budget.
// @Summary     Update budget
// @Description Update a budget. end_date may only change on custom budgets.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string              true "Ledger ID"
// @Param       budgetID path string              true "Budget ID"
// @Param       request  body UpdateBudgetRequest true "Updated budget details"
// @Success     200 {object} models.Budget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input or budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/budgets/{budgetID} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	ledgerID, budgetID, err := pathIDs(c, "budgetID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	update := services.BudgetUpdate{
		Name:            req.Name,
		Amount:          req.Amount,
		RolloverEnabled: req.RolloverEnabled,
		IsActive:        req.IsActive,
	}
	endDate, err := parseOptionalTime(req.EndDate)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !endDate.IsZero() {
		update.EndDate = &endDate
	}

	budget, err := h.budgetService.UpdateBudget(ledgerID, budgetID, update)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "UPDATE_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"name": budget.Name, "amount": budget.Amount.String(), "is_active": budget.IsActive})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// DeleteBudget handles deleting a budget.
// @Summary     Delete budget
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Param       budgetID path string true "Budget ID"
// @Success     200 {object} MessageResponse "Budget deleted"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/budgets/{budgetID} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	ledgerID, budgetID, err := pathIDs(c, "budgetID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeleteBudget(ledgerID, budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "DELETE_BUDGET", "budget", budgetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Budget deleted successfully"})
}

// GetBudgetUsage handles reporting how much of a budget has been spent.
// @Summary     Get budget usage
// @Description Spending, remaining amount, status band and daily allowance for the budget's current window
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path  string true  "Ledger ID"
// @Param       budgetID path  string true  "Budget ID"
// @Param       at       query string false "Evaluate as of this time (RFC3339 or YYYY-MM-DD, default now)"
// @Success     200 {object} models.BudgetUsage "Budget usage"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/budgets/{budgetID}/usage [get]
func (h *BudgetHandler) GetBudgetUsage(c *gin.Context) {
	ledgerID, budgetID, err := pathIDs(c, "budgetID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	at, err := parseDateQuery(c, "at")
	if err != nil {
		respondWithError(c, err)
		return
	}
	now := time.Now().UTC()
	if at != nil {
		now = *at
	}

	usage, err := h.budgetService.GetBudgetUsage(ledgerID, budgetID, now)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

// RolloverBudget handles closing a budget's window early.
// @Summary     Roll a budget over
// @Description Advance the budget to its next window, carrying any unspent amount when rollover is enabled
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Param       budgetID path string true "Budget ID"
// @Success     200 {object} models.Budget "Rolled over budget"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/budgets/{budgetID}/rollover [post]
func (h *BudgetHandler) RolloverBudget(c *gin.Context) {
	ledgerID, budgetID, err := pathIDs(c, "budgetID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.RolloverBudget(ledgerID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "ROLLOVER_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"rollover_amount": budget.RolloverAmount.String()})

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}
