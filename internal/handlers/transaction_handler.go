package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/services"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, auditService: auditService}
}

// TransactionRequest represents the request payload for creating, updating
// or revising a transaction. Which accounts are required depends on the type:
// expense takes a source, income and adjustment a destination, transfer both.
// Amount is a positive magnitude, or the signed delta for adjustments.
type TransactionRequest struct {
	Type                 models.TransactionType `json:"type" binding:"required,transaction_type"`
	Amount               decimal.Decimal        `json:"amount"`
	Date                 *string                `json:"date"`
	SourceAccountID      *string                `json:"source_account_id" binding:"omitempty,uuid"`
	DestinationAccountID *string                `json:"destination_account_id" binding:"omitempty,uuid"`
	CategoryID           *string                `json:"category_id" binding:"omitempty,uuid"`
	Note                 string                 `json:"note" binding:"max=500"`
	TagIDs               []string               `json:"tag_ids" binding:"omitempty,max=20,dive,uuid"`
}

// bindTransactionInput binds and converts a TransactionRequest.
func bindTransactionInput(c *gin.Context) (services.TransactionInput, error) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return services.TransactionInput{}, bindingError(err)
	}

	date, err := parseOptionalTime(req.Date)
	if err != nil {
		return services.TransactionInput{}, err
	}

	return services.TransactionInput{
		Type:                 req.Type,
		Amount:               req.Amount,
		Date:                 date,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		CategoryID:           req.CategoryID,
		Note:                 req.Note,
		TagIDs:               req.TagIDs,
	}, nil
}

func transactionChanges(t *models.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"type":   t.Type,
		"amount": t.Amount.String(),
		"state":  t.State,
	}
}

// CreateTransaction handles recording a transaction. New transactions are
// applied immediately.
// @Summary     Create a transaction
// @Description Record an expense, income, transfer or adjustment and apply it to the account balances
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string             true "Ledger ID"
// @Param       request  body TransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account, category or tag not found"
// @Failure     422 {object} ErrorResponse "Transaction shape rejected"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	input, err := bindTransactionInput(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.CreateTransaction(ledgerID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "CREATE_TRANSACTION", "transaction", transaction.ID, c.ClientIP(),
		transactionChanges(transaction))

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetTransactions handles listing the transactions of a ledger.
// @Summary     List transactions
// @Description Get a paginated list of transactions, newest first, with optional filters
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID    path  string true  "Ledger ID"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Param       from_date   query string false "Filter by start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date     query string false "Filter by end date (RFC3339 or YYYY-MM-DD)"
// @Param       type        query string false "Filter by type (expense, income, transfer, adjustment)"
// @Param       state       query string false "Filter by state (pending, applied, reverted)"
// @Param       category_id query string false "Filter by category ID"
// @Param       account_id  query string false "Filter by source or destination account ID"
// @Param       tag_id      query string false "Filter by tag ID"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/transactions [get]
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
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

	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetLedgerTransactions(ledgerID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter
	var err error

	if filter.FromDate, err = parseDateQuery(c, "from_date"); err != nil {
		return filter, err
	}
	if filter.ToDate, err = parseDateQuery(c, "to_date"); err != nil {
		return filter, err
	}
	if filter.FromDate != nil && filter.ToDate != nil && filter.ToDate.Before(*filter.FromDate) {
		return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "to_date must not be before from_date")
	}

	if v := c.Query("type"); v != "" {
		t := models.TransactionType(v)
		if !t.Valid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid type filter")
		}
		filter.Type = &t
	}
	if v := c.Query("state"); v != "" {
		s := models.TransactionState(v)
		switch s {
		case models.TransactionStatePending, models.TransactionStateApplied, models.TransactionStateReverted:
			filter.State = &s
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid state filter")
		}
	}

	if filter.CategoryID, err = parseUUIDQuery(c, "category_id"); err != nil {
		return filter, err
	}
	if filter.AccountID, err = parseUUIDQuery(c, "account_id"); err != nil {
		return filter, err
	}
	if filter.TagID, err = parseUUIDQuery(c, "tag_id"); err != nil {
		return filter, err
	}
	return filter, nil
}

// GetTransaction handles fetching a single transaction.
// @Summary     Get a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID      path string true "Ledger ID"
// @Param       transactionID path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/transactions/{transactionID} [get]
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	ledgerID, transactionID, err := pathIDs(c, "transactionID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(ledgerID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransaction handles editing a transaction that is not applied.
// @Summary     Update a transaction
// @Description Replace the fields of a pending or reverted transaction. Applied transactions must be reverted or revised instead.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID      path string             true "Ledger ID"
// @Param       transactionID path string             true "Transaction ID"
// @Param       request       body TransactionRequest true "Transaction details"
// @Success     200 {object} models.Transaction "Transaction updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Transaction still applied"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/transactions/{transactionID} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	h.replace(c, "UPDATE_TRANSACTION", h.transactionService.UpdateTransaction)
}

// ReviseTransaction handles editing an applied transaction in one step.
// @Summary     Revise a transaction
// @Description Revert an applied transaction, replace its fields and apply it again atomically
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID      path string             true "Ledger ID"
// @Param       transactionID path string             true "Transaction ID"
// @Param       request       body TransactionRequest true "Transaction details"
// @Success     200 {object} models.Transaction "Transaction revised"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Transaction not applied"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/transactions/{transactionID}/revise [post]
func (h *TransactionHandler) ReviseTransaction(c *gin.Context) {
	h.replace(c, "REVISE_TRANSACTION", h.transactionService.ReviseTransaction)
}

func (h *TransactionHandler) replace(c *gin.Context, action string,
	fn func(ledgerID, transactionID string, input services.TransactionInput) (*models.Transaction, error)) {
	ledgerID, transactionID, err := pathIDs(c, "transactionID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	input, err := bindTransactionInput(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := fn(ledgerID, transactionID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, action, "transaction", transaction.ID, c.ClientIP(),
		transactionChanges(transaction))

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// ApplyTransaction handles applying a pending or reverted transaction.
// @Summary     Apply a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID      path string true "Ledger ID"
// @Param       transactionID path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction applied"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Transaction already applied"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/transactions/{transactionID}/apply [post]
func (h *TransactionHandler) ApplyTransaction(c *gin.Context) {
	h.transition(c, "APPLY_TRANSACTION", h.transactionService.ApplyTransaction)
}

// RevertTransaction handles reverting an applied transaction.
// @Summary     Revert a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID      path string true "Ledger ID"
// @Param       transactionID path string true "Transaction ID"
// @Success     200 {object} models.Transaction "Transaction reverted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Transaction not applied"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/transactions/{transactionID}/revert [post]
func (h *TransactionHandler) RevertTransaction(c *gin.Context) {
	h.transition(c, "REVERT_TRANSACTION", h.transactionService.RevertTransaction)
}

func (h *TransactionHandler) transition(c *gin.Context, action string,
	fn func(ledgerID, transactionID string) (*models.Transaction, error)) {
	ledgerID, transactionID, err := pathIDs(c, "transactionID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := fn(ledgerID, transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, action, "transaction", transaction.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles deleting a transaction that is not applied.
// @Summary     Delete a transaction
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID      path string true "Ledger ID"
// @Param       transactionID path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     409 {object} ErrorResponse "Transaction still applied"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/transactions/{transactionID} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	ledgerID, transactionID, err := pathIDs(c, "transactionID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.transactionService.DeleteTransaction(ledgerID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "DELETE_TRANSACTION", "transaction", transactionID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}
