package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/currency"
	"gorm.io/gorm"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/events"
	"pocketbook/internal/logger"
	"pocketbook/internal/models"
	"pocketbook/internal/preferences"
	"pocketbook/internal/writer"
)

type seedCategory struct {
	name     string
	kind     models.CategoryKind
	icon     string
	children []string
}

// defaultCategories is the tree every new ledger starts with.
var defaultCategories = []seedCategory{
	{name: "Food", kind: models.CategoryKindExpense, icon: "fork.knife", children: []string{"Groceries", "Dining Out", "Coffee"}},
	{name: "Transport", kind: models.CategoryKindExpense, icon: "car", children: []string{"Fuel", "Public Transit", "Parking"}},
	{name: "Housing", kind: models.CategoryKindExpense, icon: "house", children: []string{"Rent", "Utilities"}},
	{name: "Shopping", kind: models.CategoryKindExpense, icon: "bag"},
	{name: "Health", kind: models.CategoryKindExpense, icon: "cross"},
	{name: "Entertainment", kind: models.CategoryKindExpense, icon: "film"},
	{name: "Salary", kind: models.CategoryKindIncome, icon: "banknote"},
	{name: "Bonus", kind: models.CategoryKindIncome, icon: "gift"},
	{name: "Other Income", kind: models.CategoryKindIncome, icon: "plus"},
}

const defaultAccountName = "Cash"

// ledgerService is the ledger registry. Operations that affect more than one
// ledger run in the registry writer lane.
type ledgerService struct {
	db     *gorm.DB
	queue  *writer.Queue
	prefs  preferences.Store
	events events.Publisher
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB, queue *writer.Queue, prefs preferences.Store, publisher events.Publisher) LedgerServicer {
	return &ledgerService{db: db, queue: queue, prefs: prefs, events: publisher}
}

func normaliseCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "currency code must be a three-letter ISO 4217 code")
	}
	if _, err := currency.ParseISO(code); err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown currency code "+code)
	}
	return code, nil
}

// CreateLedger creates a ledger seeded with a cash account and the default
// category tree. The first ledger becomes the default.
func (s *ledgerService) CreateLedger(input LedgerInput) (*models.Ledger, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "ledger name is required")
	}
	currency, err := normaliseCurrency(input.CurrencyCode)
	if err != nil {
		return nil, err
	}

	ledger := &models.Ledger{
		Name:         name,
		CurrencyCode: currency,
		SortOrder:    input.SortOrder,
	}

	err = s.queue.Do(writer.RegistryKey, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var defaults int64
			if err := tx.Model(&models.Ledger{}).Where("is_default = ?", true).Count(&defaults).Error; err != nil {
				return internal(err)
			}
			ledger.IsDefault = defaults == 0

			if err := tx.Create(ledger).Error; err != nil {
				return internal(err)
			}
			return seedLedger(tx, ledger.ID)
		})
	})
	if err != nil {
		return nil, internal(err)
	}

	s.checkInvariants()
	return ledger, nil
}

func seedLedger(tx *gorm.DB, ledgerID string) error {
	cash := &models.Account{
		LedgerID: ledgerID,
		Name:     defaultAccountName,
		Kind:     models.AccountKindCash,
	}
	if err := tx.Create(cash).Error; err != nil {
		return internal(err)
	}

	for i, seed := range defaultCategories {
		root := &models.Category{
			LedgerID:      ledgerID,
			Name:          seed.name,
			Kind:          seed.kind,
			Icon:          seed.icon,
			IsQuickSelect: i < 3,
			SortOrder:     i,
		}
		if err := tx.Create(root).Error; err != nil {
			return internal(err)
		}
		for j, childName := range seed.children {
			child := &models.Category{
				LedgerID:  ledgerID,
				Name:      childName,
				Kind:      seed.kind,
				ParentID:  &root.ID,
				SortOrder: j,
			}
			if err := tx.Create(child).Error; err != nil {
				return internal(err)
			}
		}
	}
	return nil
}

// GetLedgers lists ledgers by sort order.
func (s *ledgerService) GetLedgers(includeArchived bool) ([]models.Ledger, error) {
	q := s.db.Model(&models.Ledger{})
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	var ledgers []models.Ledger
	if err := q.Order("sort_order ASC, created_at ASC").Find(&ledgers).Error; err != nil {
		return nil, internal(err)
	}
	return ledgers, nil
}

// GetLedgerByID returns a ledger by ID.
func (s *ledgerService) GetLedgerByID(ledgerID string) (*models.Ledger, error) {
	return findLedger(s.db, ledgerID)
}

func findLedger(db *gorm.DB, ledgerID string) (*models.Ledger, error) {
	var ledger models.Ledger
	if err := db.Where("id = ?", ledgerID).First(&ledger).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrLedgerNotFound)
	}
	return &ledger, nil
}

// UpdateLedger updates a ledger's name, currency, sort order or archived flag.
func (s *ledgerService) UpdateLedger(ledgerID string, update LedgerUpdate) (*models.Ledger, error) {
	updates := make(map[string]interface{})
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "ledger name is required")
		}
		updates["name"] = name
	}
	if update.CurrencyCode != nil {
		currency, err := normaliseCurrency(*update.CurrencyCode)
		if err != nil {
			return nil, err
		}
		updates["currency_code"] = currency
	}
	if update.SortOrder != nil {
		updates["sort_order"] = *update.SortOrder
	}
	if update.IsArchived != nil {
		updates["is_archived"] = *update.IsArchived
	}

	err := s.queue.Do(writer.RegistryKey, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			ledger, err := findLedger(tx, ledgerID)
			if err != nil {
				return err
			}
			if len(updates) == 0 {
				return nil
			}
			if err := tx.Model(ledger).Updates(updates).Error; err != nil {
				return internal(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	return s.GetLedgerByID(ledgerID)
}

// SetDefaultLedger makes ledgerID the only default ledger. Every other flag
// is cleared before the target's is set, in one database transaction.
func (s *ledgerService) SetDefaultLedger(ledgerID string) (*models.Ledger, error) {
	var ledger *models.Ledger
	err := s.queue.Do(writer.RegistryKey, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			if ledger, err = findLedger(tx, ledgerID); err != nil {
				return err
			}
			if err := tx.Model(&models.Ledger{}).
				Where("id <> ? AND is_default = ?", ledgerID, true).
				Update("is_default", false).Error; err != nil {
				return internal(err)
			}
			if err := tx.Model(ledger).Update("is_default", true).Error; err != nil {
				return internal(err)
			}
			ledger.IsDefault = true
			return nil
		})
	})
	if err != nil {
		return nil, internal(err)
	}

	publish(s.events, events.LedgerDefaultChanged, ledgerID, ledgerID)
	s.checkInvariants()
	return ledger, nil
}

// DeleteLedger deletes a ledger and everything it owns in one database
// transaction. A deleted default is replaced by the first remaining ledger,
// preferring non-archived ones, and a current-ledger preference pointing at
// it is cleared.
func (s *ledgerService) DeleteLedger(ctx context.Context, ledgerID string) error {
	err := s.queue.Do(writer.RegistryKey, func() error {
		return s.queue.Do(ledgerID, func() error {
			return s.db.Transaction(func(tx *gorm.DB) error {
				ledger, err := findLedger(tx, ledgerID)
				if err != nil {
					return err
				}
				if err := cascadeDelete(tx, ledgerID); err != nil {
					return err
				}
				if err := tx.Delete(ledger).Error; err != nil {
					return internal(err)
				}
				if ledger.IsDefault {
					return promoteDefault(tx)
				}
				return nil
			})
		})
	})
	if err != nil {
		return internal(err)
	}

	current, err := s.prefs.Get(ctx, preferences.CurrentLedgerKey)
	if err != nil {
		logger.Named("ledger").Warnw("Failed to read current ledger preference", "error", err)
	} else if current == ledgerID {
		if err := s.prefs.Delete(ctx, preferences.CurrentLedgerKey); err != nil {
			logger.Named("ledger").Warnw("Failed to clear current ledger preference", "error", err)
		}
	}

	publish(s.events, events.LedgerDeleted, ledgerID, ledgerID)
	s.checkInvariants()
	return nil
}

// cascadeDelete removes every row owned by the ledger, children before
// parents.
func cascadeDelete(tx *gorm.DB, ledgerID string) error {
	steps := []func() error{
		func() error {
			return tx.Exec("DELETE FROM transaction_tags WHERE transaction_id IN (SELECT id FROM transactions WHERE ledger_id = ?)", ledgerID).Error
		},
		func() error { return tx.Where("ledger_id = ?", ledgerID).Delete(&models.Transaction{}).Error },
		func() error { return tx.Where("ledger_id = ?", ledgerID).Delete(&models.Budget{}).Error },
		func() error { return tx.Where("ledger_id = ?", ledgerID).Delete(&models.Tag{}).Error },
		func() error {
			return tx.Where("ledger_id = ? AND parent_id IS NOT NULL", ledgerID).Delete(&models.Category{}).Error
		},
		func() error { return tx.Where("ledger_id = ?", ledgerID).Delete(&models.Category{}).Error },
		func() error { return tx.Where("ledger_id = ?", ledgerID).Delete(&models.Account{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return internal(err)
		}
	}
	return nil
}

func promoteDefault(tx *gorm.DB) error {
	var next models.Ledger
	err := tx.Order("is_archived ASC, sort_order ASC, created_at ASC").First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return internal(err)
	}
	if err := tx.Model(&next).Update("is_default", true).Error; err != nil {
		return internal(err)
	}
	return nil
}

// ResolveCurrentLedger picks the ledger to show: the non-archived default,
// then the last-used ledger if it still exists and is not archived, then the
// first non-archived ledger by sort order.
func (s *ledgerService) ResolveCurrentLedger(ctx context.Context) (*models.Ledger, error) {
	var ledger models.Ledger

	err := s.db.Where("is_default = ? AND is_archived = ?", true, false).First(&ledger).Error
	if err == nil {
		return &ledger, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal(err)
	}

	lastUsed, err := s.prefs.Get(ctx, preferences.CurrentLedgerKey)
	if err != nil {
		logger.Named("ledger").Warnw("Failed to read current ledger preference", "error", err)
	} else if lastUsed != "" {
		err := s.db.Where("id = ? AND is_archived = ?", lastUsed, false).First(&ledger).Error
		if err == nil {
			return &ledger, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal(err)
		}
	}

	err = s.db.Where("is_archived = ?", false).Order("sort_order ASC, created_at ASC").First(&ledger).Error
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrNoCurrentLedger)
	}
	return &ledger, nil
}

// SetCurrentLedger records ledgerID as the last-used ledger.
func (s *ledgerService) SetCurrentLedger(ctx context.Context, ledgerID string) (*models.Ledger, error) {
	ledger, err := s.GetLedgerByID(ledgerID)
	if err != nil {
		return nil, err
	}
	if ledger.IsArchived {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "an archived ledger cannot be the current ledger")
	}
	if err := s.prefs.Set(ctx, preferences.CurrentLedgerKey, ledgerID); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ledger, nil
}

// ownedTables lists every table whose rows belong to a ledger.
var ownedTables = []string{"accounts", "categories", "transactions", "budgets", "tags"}

// VerifyInvariants checks that exactly one ledger is the default whenever
// ledgers exist and that no row outlives its ledger. Violations are logged
// at DPanic level, which panics in development builds.
func (s *ledgerService) VerifyInvariants() error {
	var violation string
	var fields []interface{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ledgers, defaults int64
		if err := tx.Model(&models.Ledger{}).Count(&ledgers).Error; err != nil {
			return internal(err)
		}
		if err := tx.Model(&models.Ledger{}).Where("is_default = ?", true).Count(&defaults).Error; err != nil {
			return internal(err)
		}
		if ledgers > 0 && defaults != 1 {
			violation = "default ledger count is not one"
			fields = []interface{}{"ledgers", ledgers, "defaults", defaults}
			return nil
		}

		for _, table := range ownedTables {
			var orphans int64
			if err := tx.Table(table).
				Where("ledger_id NOT IN (SELECT id FROM ledgers)").
				Count(&orphans).Error; err != nil {
				return internal(err)
			}
			if orphans > 0 {
				violation = "rows outlived their ledger"
				fields = []interface{}{"table", table, "orphans", orphans}
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return internal(err)
	}
	if violation == "" {
		return nil
	}

	logger.Named("ledger").DPanicw("Ledger invariant violated: "+violation, fields...)
	return apperrors.WithMessage(apperrors.ErrInvariantViolation, violation)
}

// checkInvariants runs VerifyInvariants after a registry mutation.
func (s *ledgerService) checkInvariants() {
	if err := s.VerifyInvariants(); err != nil {
		logger.Named("ledger").Errorw("Invariant check failed", "error", err)
	}
}
