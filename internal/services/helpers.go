package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/events"
	"pocketbook/internal/logger"
	"pocketbook/internal/models"
	"pocketbook/internal/writer"
)

// notFoundOr maps gorm.ErrRecordNotFound to notFound and wraps anything else
// as an internal error.
func notFoundOr(err error, notFound *apperrors.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// internal wraps a database error unless it is already an AppError.
func internal(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// requireLedger checks that the ledger exists.
func requireLedger(db *gorm.DB, ledgerID string) error {
	var count int64
	if err := db.Model(&models.Ledger{}).Where("id = ?", ledgerID).Count(&count).Error; err != nil {
		return internal(err)
	}
	if count == 0 {
		return apperrors.ErrLedgerNotFound
	}
	return nil
}

// checkMoney rejects amounts that would be rounded or overflow when stored.
func checkMoney(amounts ...decimal.Decimal) error {
	for _, d := range amounts {
		if !models.FitsMoney(d) {
			return apperrors.WithMessage(apperrors.ErrInvalidAmount, "Amounts can have at most 4 decimal places and 16 integer digits")
		}
	}
	return nil
}

// inLedgerLane runs fn on the ledger's writer lane once the ledger is known to
// exist, so requests for unknown ledgers never open a lane.
func inLedgerLane(db *gorm.DB, queue *writer.Queue, ledgerID string, fn func() error) error {
	if err := requireLedger(db, ledgerID); err != nil {
		return err
	}
	return queue.Do(ledgerID, fn)
}

// referencedAccount loads an account referenced by another entity. It must
// live in ledgerID and must not be archived.
func referencedAccount(db *gorm.DB, ledgerID, accountID string) (*models.Account, error) {
	var account models.Account
	if err := db.Where("id = ?", accountID).First(&account).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrAccountNotFound)
	}
	if account.LedgerID != ledgerID {
		return nil, apperrors.ErrCrossLedgerEntry
	}
	if account.IsArchived {
		return nil, apperrors.ErrAccountArchived
	}
	return &account, nil
}

// referencedCategory loads a category referenced by another entity. It must
// live in ledgerID.
func referencedCategory(db *gorm.DB, ledgerID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrCategoryNotFound)
	}
	if category.LedgerID != ledgerID {
		return nil, apperrors.ErrCrossLedgerEntry
	}
	return &category, nil
}

// referencedTags loads tags by id. Every tag must exist and live in ledgerID.
func referencedTags(db *gorm.DB, ledgerID string, tagIDs []string) ([]models.Tag, error) {
	if len(tagIDs) == 0 {
		return []models.Tag{}, nil
	}
	unique := make([]string, 0, len(tagIDs))
	seen := make(map[string]bool, len(tagIDs))
	for _, id := range tagIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var tags []models.Tag
	if err := db.Where("id IN ?", unique).Find(&tags).Error; err != nil {
		return nil, internal(err)
	}
	if len(tags) != len(unique) {
		return nil, apperrors.ErrTagNotFound
	}
	for _, tag := range tags {
		if tag.LedgerID != ledgerID {
			return nil, apperrors.ErrCrossLedgerEntry
		}
	}
	return tags, nil
}

// publish sends an event after commit. Failures are logged, never returned.
func publish(p events.Publisher, typ events.Type, ledgerID, entityID string) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Publish(ctx, events.New(typ, ledgerID, entityID)); err != nil {
		logger.Named("events").Warnw("Failed to publish event",
			"type", typ,
			"ledger_id", ledgerID,
			"entity_id", entityID,
			"error", err,
		)
	}
}
