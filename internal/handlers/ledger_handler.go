package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pocketbook/internal/services"
)

// LedgerHandler handles ledger registry requests.
type LedgerHandler struct {
	ledgerService services.LedgerServicer
	auditService  services.AuditServicer
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerService services.LedgerServicer, auditService services.AuditServicer) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, auditService: auditService}
}

// CreateLedgerRequest represents the request payload for creating a ledger.
type CreateLedgerRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=100"`
	CurrencyCode string `json:"currency_code" binding:"required,iso4217"`
	SortOrder    int    `json:"sort_order" binding:"min=0"`
}

// UpdateLedgerRequest represents the request payload for updating a ledger.
type UpdateLedgerRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=1,max=100"`
	CurrencyCode *string `json:"currency_code" binding:"omitempty,iso4217"`
	SortOrder    *int    `json:"sort_order" binding:"omitempty,min=0"`
	IsArchived   *bool   `json:"is_archived"`
}

// CreateLedger handles the creation of a new ledger.
// @Summary     Create a ledger
// @Description Create a ledger seeded with a cash account and the default category tree. The first ledger becomes the default.
// @Tags        ledgers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateLedgerRequest true "Ledger details"
// @Success     201 {object} models.Ledger "Ledger created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers [post]
func (h *LedgerHandler) CreateLedger(c *gin.Context) {
	var req CreateLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	ledger, err := h.ledgerService.CreateLedger(services.LedgerInput{
		Name:         req.Name,
		CurrencyCode: req.CurrencyCode,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledger.ID, "CREATE_LEDGER", "ledger", ledger.ID, c.ClientIP(),
		map[string]interface{}{"name": ledger.Name, "currency_code": ledger.CurrencyCode})

	c.JSON(http.StatusCreated, gin.H{"ledger": ledger})
}

// GetLedgers handles listing ledgers.
// @Summary     List ledgers
// @Description List ledgers ordered by sort order
// @Tags        ledgers
// @Produce     json
// @Security    BearerAuth
// @Param       include_archived query bool false "Include archived ledgers"
// @Success     200 {array} models.Ledger "Ledgers"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers [get]
func (h *LedgerHandler) GetLedgers(c *gin.Context) {
	includeArchived, err := parseBoolQuery(c, "include_archived")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ledgers, err := h.ledgerService.GetLedgers(includeArchived != nil && *includeArchived)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ledgers": ledgers})
}

// GetLedger handles fetching a single ledger.
// @Summary     Get a ledger
// @Tags        ledgers
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Success     200 {object} models.Ledger "Ledger"
// @Failure     400 {object} ErrorResponse "Invalid ledger ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Ledger not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID} [get]
func (h *LedgerHandler) GetLedger(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ledger, err := h.ledgerService.GetLedgerByID(ledgerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ledger": ledger})
}

// UpdateLedger handles ledger updates, including archiving.
// @Summary     Update a ledger
// @Description Rename, re-currency, reorder, archive or unarchive a ledger
// @Tags        ledgers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string              true "Ledger ID"
// @Param       request  body UpdateLedgerRequest true "Fields to update"
// @Success     200 {object} models.Ledger "Ledger updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Ledger not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID} [put]
func (h *LedgerHandler) UpdateLedger(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindingError(err))
		return
	}

	ledger, err := h.ledgerService.UpdateLedger(ledgerID, services.LedgerUpdate{
		Name:         req.Name,
		CurrencyCode: req.CurrencyCode,
		SortOrder:    req.SortOrder,
		IsArchived:   req.IsArchived,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledger.ID, "UPDATE_LEDGER", "ledger", ledger.ID, c.ClientIP(),
		map[string]interface{}{"name": ledger.Name, "is_archived": ledger.IsArchived})

	c.JSON(http.StatusOK, gin.H{"ledger": ledger})
}

// SetDefaultLedger handles marking a ledger as the default.
// @Summary     Set the default ledger
// @Description Make this ledger the single default ledger
// @Tags        ledgers
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Success     200 {object} models.Ledger "Default ledger"
// @Failure     400 {object} ErrorResponse "Invalid ledger ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Ledger not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/default [post]
func (h *LedgerHandler) SetDefaultLedger(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ledger, err := h.ledgerService.SetDefaultLedger(ledgerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledger.ID, "SET_DEFAULT_LEDGER", "ledger", ledger.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"ledger": ledger})
}

// DeleteLedger handles deleting a ledger and everything in it.
// @Summary     Delete a ledger
// @Description Delete a ledger with its accounts, categories, transactions, budgets and tags. Another ledger is promoted to default if needed.
// @Tags        ledgers
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Success     200 {object} MessageResponse "Ledger deleted"
// @Failure     400 {object} ErrorResponse "Invalid ledger ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Ledger not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID} [delete]
func (h *LedgerHandler) DeleteLedger(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.ledgerService.DeleteLedger(c.Request.Context(), ledgerID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(ledgerID, "DELETE_LEDGER", "ledger", ledgerID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Ledger deleted successfully"})
}

// GetCurrentLedger handles resolving the ledger the owner is working in.
// @Summary     Get the current ledger
// @Description Resolve the current ledger: the default if active, else the last used, else the first by sort order
// @Tags        ledgers
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.Ledger "Current ledger"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "No ledger available"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/current [get]
func (h *LedgerHandler) GetCurrentLedger(c *gin.Context) {
	ledger, err := h.ledgerService.ResolveCurrentLedger(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ledger": ledger})
}

// SetCurrentLedger handles switching the current ledger.
// @Summary     Switch the current ledger
// @Description Remember this ledger as the last used one
// @Tags        ledgers
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path string true "Ledger ID"
// @Success     200 {object} models.Ledger "Current ledger"
// @Failure     400 {object} ErrorResponse "Invalid ledger ID or archived ledger"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Ledger not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/current [post]
func (h *LedgerHandler) SetCurrentLedger(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	ledger, err := h.ledgerService.SetCurrentLedger(c.Request.Context(), ledgerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ledger": ledger})
}
