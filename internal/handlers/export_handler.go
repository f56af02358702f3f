package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/services"
)

// ExportHandler serves the read-only transaction projection.
type ExportHandler struct {
	exportService services.ExportServicer
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exportService services.ExportServicer) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// ExportResponse wraps the exported rows.
type ExportResponse struct {
	Rows []services.ExportRow `json:"rows"`
}

// ExportTransactions handles exporting a ledger's transactions.
// @Summary     Export transactions
// @Description Transactions as flat rows with the category path and account name, oldest first
// @Tags        export
// @Produce     json
// @Security    BearerAuth
// @Param       ledgerID path  string true  "Ledger ID"
// @Param       from     query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to       query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} ExportResponse "Export rows"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Ledger not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ledgers/{ledgerID}/export [get]
func (h *ExportHandler) ExportTransactions(c *gin.Context) {
	ledgerID, err := parsePathID(c, "ledgerID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	from, err := parseDateQuery(c, "from")
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := parseDateQuery(c, "to")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "to must not be before from"))
		return
	}

	rows, err := h.exportService.ExportRows(ledgerID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if rows == nil {
		rows = []services.ExportRow{}
	}

	c.JSON(http.StatusOK, ExportResponse{Rows: rows})
}
