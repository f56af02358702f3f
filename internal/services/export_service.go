package services

import (
	"time"

	"gorm.io/gorm"

	"pocketbook/internal/models"
)

// exportService builds the read-only projection used by exporters.
type exportService struct {
	db *gorm.DB
}

// NewExportService creates a new ExportServicer.
func NewExportService(db *gorm.DB) ExportServicer {
	return &exportService{db: db}
}

// ExportRows returns every transaction of the ledger in date order, with the
// category shown as its full path and the primary account by name. from and
// to are inclusive bounds.
func (s *exportService) ExportRows(ledgerID string, from, to *time.Time) ([]ExportRow, error) {
	var rows []ExportRow
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := requireLedger(tx, ledgerID); err != nil {
			return err
		}

		q := applyTransactionFilters(
			tx.Where("ledger_id = ?", ledgerID),
			TransactionFilter{FromDate: from, ToDate: to},
		)
		var transactions []models.Transaction
		if err := q.Preload("SourceAccount").
			Preload("DestinationAccount").
			Preload("Category.Parent").
			Order("date ASC, created_at ASC").
			Find(&transactions).Error; err != nil {
			return internal(err)
		}

		rows = make([]ExportRow, 0, len(transactions))
		for i := range transactions {
			rows = append(rows, exportRow(&transactions[i]))
		}
		return nil
	})
	if err != nil {
		return nil, internal(err)
	}
	return rows, nil
}

func exportRow(t *models.Transaction) ExportRow {
	row := ExportRow{
		TransactionID: t.ID,
		Date:          t.Date,
		Type:          t.Type,
		Amount:        t.DisplayAmount(),
		Note:          t.Note,
	}
	if t.Category != nil {
		row.Category = t.Category.FullPath()
	}

	if account := t.PrimaryAccount(); account != nil {
		row.Account = account.Name
	}
	return row
}
