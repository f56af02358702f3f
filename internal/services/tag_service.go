package services

import (
	"strings"

	"gorm.io/gorm"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/writer"
)

// tagService handles transaction tags.
type tagService struct {
	db    *gorm.DB
	queue *writer.Queue
}

// NewTagService creates a new TagServicer.
func NewTagService(db *gorm.DB, queue *writer.Queue) TagServicer {
	return &tagService{db: db, queue: queue}
}

func ensureUniqueTagName(tx *gorm.DB, ledgerID, name, exceptID string) error {
	q := tx.Model(&models.Tag{}).Where("ledger_id = ? AND name = ?", ledgerID, name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return internal(err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateTag
	}
	return nil
}

// CreateTag creates a tag. Names are unique within a ledger.
func (s *tagService) CreateTag(ledgerID, name, color string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "tag name is required")
	}

	tag := &models.Tag{LedgerID: ledgerID, Name: name, Color: color}
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := requireLedger(tx, ledgerID); err != nil {
				return err
			}
			if err := ensureUniqueTagName(tx, ledgerID, name, ""); err != nil {
				return err
			}
			if err := tx.Create(tag).Error; err != nil {
				return internal(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	return tag, nil
}

// GetLedgerTags lists a ledger's tags by name.
func (s *tagService) GetLedgerTags(ledgerID string) ([]models.Tag, error) {
	if err := requireLedger(s.db, ledgerID); err != nil {
		return nil, err
	}
	var tags []models.Tag
	if err := s.db.Where("ledger_id = ?", ledgerID).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, internal(err)
	}
	return tags, nil
}

// GetTagByID returns a tag if it belongs to the ledger.
func (s *tagService) GetTagByID(ledgerID, tagID string) (*models.Tag, error) {
	return findTag(s.db, ledgerID, tagID)
}

func findTag(tx *gorm.DB, ledgerID, tagID string) (*models.Tag, error) {
	var tag models.Tag
	if err := tx.Where("id = ? AND ledger_id = ?", tagID, ledgerID).First(&tag).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrTagNotFound)
	}
	return &tag, nil
}

// UpdateTag renames or recolours a tag.
func (s *tagService) UpdateTag(ledgerID, tagID string, name, color *string) (*models.Tag, error) {
	var tag *models.Tag
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			if tag, err = findTag(tx, ledgerID, tagID); err != nil {
				return err
			}

			updates := make(map[string]interface{})
			if name != nil {
				trimmed := strings.TrimSpace(*name)
				if trimmed == "" {
					return apperrors.WithMessage(apperrors.ErrInvalidInput, "tag name is required")
				}
				if err := ensureUniqueTagName(tx, ledgerID, trimmed, tagID); err != nil {
					return err
				}
				updates["name"] = trimmed
			}
			if color != nil {
				updates["color"] = *color
			}
			if len(updates) == 0 {
				return nil
			}
			if err := tx.Model(tag).Updates(updates).Error; err != nil {
				return internal(err)
			}
			return tx.First(tag, "id = ?", tagID).Error
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	return tag, nil
}

// DeleteTag deletes a tag and detaches it from every transaction.
func (s *tagService) DeleteTag(ledgerID, tagID string) error {
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			tag, err := findTag(tx, ledgerID, tagID)
			if err != nil {
				return err
			}
			if err := tx.Exec("DELETE FROM transaction_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
				return internal(err)
			}
			if err := tx.Delete(tag).Error; err != nil {
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
