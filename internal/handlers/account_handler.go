package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/services"
)

// AccountHandler handles account-related requests.
type AccountHandler struct {
	accountService services.AccountServicer
	auditService   services.AuditServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.AccountServicer, auditService services.AuditServicer) *AccountHandler {
	return &AccountHandler{accountService: accountService, auditService: auditService}
}

// CreateAccountRequest represents the request payload for creating an account.
// The credit fields only apply to credit cards.
type CreateAccountRequest struct {
	Name             string             `json:"name" binding:"required,min=1,max=100"`
	Kind             models.AccountKind `json:"kind" binding:"required,account_kind"`
	OpeningBalance   decimal.Decimal    `json:"opening_balance"`
	CreditLimit      decimal.Decimal    `json:"credit_limit" binding:"dec_gte0"`
	StatementDay     int                `json:"statement_day" binding:"omitempty,min=1,max=31"`
	DueDay           int                `json:"due_day" binding:"omitempty,min=1,max=31"`
	ExcludeFromTotal bool               `json:"exclude_from_total"`
	SortOrder        int                `json:"sort_order" binding:"min=0"`
}

// UpdateAccountRequest represents the request payload for updating an account.
type UpdateAccountRequest struct {
	Name             *string          `json:"name" binding:"omitempty,min=1,max=100"`
	ExcludeFromTotal *bool            `json:"exclude_from_total"`
	SortOrder        *int             `json:"sort_order" binding:"omitempty,min=0"`
	CreditLimit      *decimal.Decimal `json:"credit_limit" binding:"omitempty,dec_gte0"`
	StatementDay     *int             `json:"statement_day" binding:"omitempty,min=1,max=31"`
	DueDay           *int             `json:"due_day" binding:"omitempty,min=1,max=31"`
}

// ArchiveAccountRequest represents the request payload for archiving or
// restoring an account.
type ArchiveAccountRequest struct {
	Archived *bool `json:"archived" binding:"required"`
}

// AdjustBalanceRequest represents the request payload for correcting an
// account balance.
type AdjustBalanceRequest struct {
	TargetBalance *decimal.Decimal `json:"target_balance"`
	Date          *string          `json:"date"`
	Note          string           `json:"note" binding:"max=500"`
}

// CreateAccount handles the creation of a new account.
// @Summary     Create an account
// @Description Create an account in a ledger. A non-zero opening balance is recorded as an adjustment.
// @Tags        accounts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string               true "Ledger ID"
// @Param       request  body CreateAccountRequest true "Account details"
// @Success     201 {object} models.Account "Account created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Ledger not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/accounts [post]
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	account, err := h.accountService.CreateAccount(ledgerID, services.AccountInput{
		Name:             req.Name,
		Kind:             req.Kind,
		OpeningBalance:   req.OpeningBalance,
		CreditLimit:      req.CreditLimit,
		StatementDay:     req.StatementDay,
		DueDay:           req.DueDay,
		ExcludeFromTotal: req.ExcludeFromTotal,
		SortOrder:        req.SortOrder,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "CREATE_ACCOUNT", "account", account.ID, c.ClientIP(),
		map[string]interface{}{"name": account.Name, "kind": account.Kind, "opening_balance": req.OpeningBalance.String()})

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// GetAccounts handles listing the accounts of a ledger.
// @Summary     List accounts
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID         path  string true  "Ledger ID"
// @Param       include_archived query bool   false "Include archived accounts"
// @Success     200 {array} models.Account "Accounts"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/accounts [get]
func (h *AccountHandler) GetAccounts(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	includeArchived, err := parseBoolQuery(c, "include_archived")
	if err != nil {
		respondWithError(c, err)
		return
	}

	accounts, err := h.accountService.GetLedgerAccounts(ledgerID, includeArchived != nil && *includeArchived)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// GetAccount handles fetching a single account.
// @Summary     Get an account
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID  path string true "Ledger ID"
// @Param       accountID path string true "Account ID"
// @Success     200 {object} models.Account "Account"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/accounts/{accountID} [get]
func (h *AccountHandler) GetAccount(c *gin.Context) {
	ledgerID, accountID, err := pathIDs(c, "accountID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.accountService.GetAccountByID(ledgerID, accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// UpdateAccount handles account updates.
// @Summary     Update an account
// @Tags        accounts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID  path string               true "Ledger ID"
// @Param       accountID path string               true "Account ID"
// @Param       request   body UpdateAccountRequest true "Fields to update"
// @Success     200 {object} models.Account "Account updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/accounts/{accountID} [put]
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	ledgerID, accountID, err := pathIDs(c, "accountID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	account, err := h.accountService.UpdateAccount(ledgerID, accountID, services.AccountUpdate{
		Name:             req.Name,
		ExcludeFromTotal: req.ExcludeFromTotal,
		SortOrder:        req.SortOrder,
		CreditLimit:      req.CreditLimit,
		StatementDay:     req.StatementDay,
		DueDay:           req.DueDay,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "UPDATE_ACCOUNT", "account", account.ID, c.ClientIP(),
		map[string]interface{}{"name": account.Name})

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// SetAccountArchived handles archiving and restoring an account.
// @Summary     Archive or restore an account
// @Description Archived accounts keep their history but cannot be used by new transactions
// @Tags        accounts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID  path string                true "Ledger ID"
// @Param       accountID path string                true "Account ID"
// @Param       request   body ArchiveAccountRequest true "Archive flag"
// @Success     200 {object} models.Account "Account"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/accounts/{accountID}/archive [put]
func (h *AccountHandler) SetAccountArchived(c *gin.Context) {
	ledgerID, accountID, err := pathIDs(c, "accountID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ArchiveAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	account, err := h.accountService.SetAccountArchived(ledgerID, accountID, *req.Archived)
	if err != nil {
		respondWithError(c, err)
		return
	}

	action := "UNARCHIVE_ACCOUNT"
	if account.IsArchived {
		action = "ARCHIVE_ACCOUNT"
	}
	h.auditService.Log(ledgerID, action, "account", account.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// DeleteAccount handles deleting an unused account.
// @Summary     Delete an account
// @Description Delete an account that no transaction references
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID  path string true "Ledger ID"
// @Param       accountID path string true "Account ID"
// @Success     200 {object} MessageResponse "Account deleted"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     409 {object} ErrorResponse "Account in use"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/accounts/{accountID} [delete]
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	ledgerID, accountID, err := pathIDs(c, "accountID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.accountService.DeleteAccount(ledgerID, accountID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "DELETE_ACCOUNT", "account", accountID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

// AdjustBalance handles correcting an account to a target balance.
// @Summary     Adjust an account balance
// @Description Record an applied adjustment that moves the account to the target balance
// @Tags        accounts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID  path string               true "Ledger ID"
// @Param       accountID path string               true "Account ID"
// @Param       request   body AdjustBalanceRequest true "Target balance"
// @Success     201 {object} models.Transaction "Adjustment recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     422 {object} ErrorResponse "No adjustment needed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/accounts/{accountID}/adjust [post]
func (h *AccountHandler) AdjustBalance(c *gin.Context) {
	ledgerID, accountID, err := pathIDs(c, "accountID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}
	if req.TargetBalance == nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "target_balance is required"))
		return
	}

	date, err := parseOptionalTime(req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	transaction, err := h.accountService.AdjustBalance(ledgerID, accountID, *req.TargetBalance, date, req.Note)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "ADJUST_BALANCE", "account", accountID, c.ClientIP(),
		map[string]interface{}{"target_balance": req.TargetBalance.String(), "delta": transaction.Amount.String()})

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetAccountSummary handles the balance summary of a ledger.
// @Summary     Get the account summary
// @Description Total assets and liabilities plus each account's balance and available balance
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Success     200 {object} services.AccountSummary "Summary"
// @Failure     400 {object} ErrorResponse "Invalid ledger ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Ledger not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/accounts/summary [get]
func (h *AccountHandler) GetAccountSummary(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.accountService.GetAccountSummary(ledgerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
