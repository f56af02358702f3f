package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/events"
	"pocketbook/internal/logger"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/writer"
)

// budgetService handles budgets. Usage is always derived from transactions
// at read time; only the window and the rollover amount are stored.
type budgetService struct {
	db                  *gorm.DB
	queue               *writer.Queue
	events              events.Publisher
	rolloverConcurrency int
}

// NewBudgetService creates a new BudgetServicer. rolloverConcurrency bounds
// how many ledgers RolloverDueBudgets works on at once.
func NewBudgetService(db *gorm.DB, queue *writer.Queue, publisher events.Publisher, rolloverConcurrency int) BudgetServicer {
	if rolloverConcurrency < 1 {
		rolloverConcurrency = 1
	}
	return &budgetService{
		db:                  db,
		queue:               queue,
		events:              publisher,
		rolloverConcurrency: rolloverConcurrency,
	}
}

// CreateBudget creates an active budget on an expense category. Monthly and
// yearly windows end one period after start; custom windows need an explicit
// end after start.
func (s *budgetService) CreateBudget(ledgerID string, input BudgetInput) (*models.Budget, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name is required")
	}
	if !input.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidAmount, "Budget amount must be greater than zero")
	}
	if err := checkMoney(input.Amount); err != nil {
		return nil, err
	}
	if !input.Period.Valid() {
		return nil, apperrors.ErrInvalidBudgetPeriod
	}

	start := input.StartDate
	if start.IsZero() {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	start = start.UTC()

	var end time.Time
	if input.Period == models.BudgetPeriodCustom {
		if input.EndDate == nil || !input.EndDate.After(start) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidBudgetPeriod, "Custom budgets need an end date after the start date")
		}
		end = input.EndDate.UTC()
	} else {
		end = models.PeriodEnd(input.Period, start)
	}

	budget := &models.Budget{
		LedgerID:        ledgerID,
		CategoryID:      input.CategoryID,
		Name:            name,
		Amount:          input.Amount,
		Period:          input.Period,
		StartDate:       start,
		EndDate:         end,
		AnchorDay:       start.Day(),
		RolloverEnabled: input.RolloverEnabled,
		RolloverAmount:  decimal.Zero,
		IsActive:        true,
	}

	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := requireLedger(tx, ledgerID); err != nil {
				return err
			}
			category, err := referencedCategory(tx, ledgerID, input.CategoryID)
			if err != nil {
				return err
			}
			if category.Kind != models.CategoryKindExpense {
				return apperrors.WithMessage(apperrors.ErrCategoryKindMismatch, "Budgets can only track expense categories")
			}
			if err := tx.Create(budget).Error; err != nil {
				return internal(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	return budget, nil
}

// GetLedgerBudgets returns a paginated list of budgets with optional filters.
func (s *budgetService) GetLedgerBudgets(
	ledgerID string,
	page pagination.PageRequest,
	isActive *bool,
	period *models.BudgetPeriod,
) (*pagination.PageResponse[models.Budget], error) {
	if err := requireLedger(s.db, ledgerID); err != nil {
		return nil, err
	}
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("ledger_id = ?", ledgerID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}
	if period != nil {
		base = base.Where("period = ?", *period)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, internal(err)
	}

	var budgets []models.Budget
	if err := base.Preload("Category").
		Scopes(pagination.Paginate(page)).
		Order("name ASC, created_at ASC").
		Find(&budgets).Error; err != nil {
		return nil, internal(err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID returns a budget with its category loaded.
func (s *budgetService) GetBudgetByID(ledgerID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Preload("Category").Where("id = ? AND ledger_id = ?", budgetID, ledgerID).First(&budget).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrBudgetNotFound)
	}
	return &budget, nil
}

func findBudget(tx *gorm.DB, ledgerID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := tx.Where("id = ? AND ledger_id = ?", budgetID, ledgerID).First(&budget).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrBudgetNotFound)
	}
	return &budget, nil
}

// UpdateBudget updates an existing budget's fields.
func (s *budgetService) UpdateBudget(ledgerID, budgetID string, update BudgetUpdate) (*models.Budget, error) {
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			budget, err := findBudget(tx, ledgerID, budgetID)
			if err != nil {
				return err
			}

			updates := make(map[string]interface{})
			if update.Name != nil {
				name := strings.TrimSpace(*update.Name)
				if name == "" {
					return apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name is required")
				}
				updates["name"] = name
			}
			if update.Amount != nil {
				if !update.Amount.IsPositive() {
					return apperrors.WithMessage(apperrors.ErrInvalidAmount, "Budget amount must be greater than zero")
				}
				if err := checkMoney(*update.Amount); err != nil {
					return err
				}
				updates["amount"] = *update.Amount
			}
			if update.EndDate != nil {
				if budget.Period != models.BudgetPeriodCustom {
					return apperrors.WithMessage(apperrors.ErrInvalidBudgetPeriod, "Only custom budgets have an adjustable end date")
				}
				if !update.EndDate.After(budget.StartDate) {
					return apperrors.WithMessage(apperrors.ErrInvalidBudgetPeriod, "End date must be after the start date")
				}
				updates["end_date"] = update.EndDate.UTC()
			}
			if update.RolloverEnabled != nil {
				updates["rollover_enabled"] = *update.RolloverEnabled
			}
			if update.IsActive != nil {
				updates["is_active"] = *update.IsActive
			}

			if len(updates) == 0 {
				return nil
			}
			if err := tx.Model(budget).Updates(updates).Error; err != nil {
				return internal(err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	return s.GetBudgetByID(ledgerID, budgetID)
}

// DeleteBudget deletes a budget.
func (s *budgetService) DeleteBudget(ledgerID, budgetID string) error {
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		result := s.db.Where("id = ? AND ledger_id = ?", budgetID, ledgerID).Delete(&models.Budget{})
		if result.Error != nil {
			return internal(result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrBudgetNotFound
		}
		return nil
	})
	if err != nil {
		return internal(err)
	}
	return nil
}

// usedAmount sums applied expenses in the budget category's scope inside the
// current window. Amounts are added as decimals in Go.
func usedAmount(tx *gorm.DB, budget *models.Budget) (decimal.Decimal, error) {
	scope, err := categoryScope(tx, budget.LedgerID, budget.CategoryID)
	if err != nil {
		return decimal.Zero, err
	}

	var amounts []decimal.Decimal
	err = tx.Model(&models.Transaction{}).
		Where("ledger_id = ? AND type = ? AND state = ?", budget.LedgerID, models.TransactionTypeExpense, models.TransactionStateApplied).
		Where("category_id IN ?", scope.CategoryIDs()).
		Where("date >= ? AND date < ?", budget.StartDate, budget.EndDate).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, internal(err)
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

// GetBudgetUsage derives used, remaining, progress, status and daily average
// for the budget's current window as seen at now.
func (s *budgetService) GetBudgetUsage(ledgerID, budgetID string, now time.Time) (*models.BudgetUsage, error) {
	var usage models.BudgetUsage
	err := s.db.Transaction(func(tx *gorm.DB) error {
		budget, err := findBudget(tx, ledgerID, budgetID)
		if err != nil {
			return err
		}
		used, err := usedAmount(tx, budget)
		if err != nil {
			return err
		}
		usage = budget.Usage(used, now)
		return nil
	})
	if err != nil {
		return nil, internal(err)
	}
	return &usage, nil
}

// rollover rolls budget once and stores the new window and rollover amount.
func rollover(tx *gorm.DB, budget *models.Budget) (bool, error) {
	used, err := usedAmount(tx, budget)
	if err != nil {
		return false, err
	}
	if !budget.Rollover(used) {
		return false, nil
	}
	err = tx.Model(budget).Updates(map[string]interface{}{
		"rollover_amount": budget.RolloverAmount,
		"start_date":      budget.StartDate,
		"end_date":        budget.EndDate,
	}).Error
	if err != nil {
		return false, internal(err)
	}
	return true, nil
}

// RolloverBudget carries the budget's remainder into its next window. It is
// a no-op when rollover is disabled.
func (s *budgetService) RolloverBudget(ledgerID, budgetID string) (*models.Budget, error) {
	var rolled bool
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			budget, err := findBudget(tx, ledgerID, budgetID)
			if err != nil {
				return err
			}
			rolled, err = rollover(tx, budget)
			return err
		})
	})
	if err != nil {
		return nil, internal(err)
	}

	if rolled {
		publish(s.events, events.BudgetRolledOver, ledgerID, budgetID)
	}
	return s.GetBudgetByID(ledgerID, budgetID)
}

// dueBudgets selects active monthly and yearly budgets with rollover enabled
// whose window ended at or before now.
func dueBudgets(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Model(&models.Budget{}).
		Where("is_active = ? AND rollover_enabled = ?", true, true).
		Where("period IN ?", []models.BudgetPeriod{models.BudgetPeriodMonthly, models.BudgetPeriodYearly}).
		Where("end_date <= ?", now.UTC())
}

// RolloverDueBudgets rolls every due budget forward until its window
// contains now, working on several ledgers at once. It returns how many
// rollovers were performed.
func (s *budgetService) RolloverDueBudgets(now time.Time) (int, error) {
	var ledgerIDs []string
	if err := dueBudgets(s.db, now).Distinct().Pluck("ledger_id", &ledgerIDs).Error; err != nil {
		return 0, internal(err)
	}
	if len(ledgerIDs) == 0 {
		return 0, nil
	}

	log := logger.Named("rollover")
	counts := make([]int, len(ledgerIDs))

	var g errgroup.Group
	g.SetLimit(s.rolloverConcurrency)
	for i, ledgerID := range ledgerIDs {
		g.Go(func() error {
			var rolledIDs []string
			err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
				rolledIDs = rolledIDs[:0]
				return s.db.Transaction(func(tx *gorm.DB) error {
					var budgets []models.Budget
					if err := dueBudgets(tx, now).Where("ledger_id = ?", ledgerID).Find(&budgets).Error; err != nil {
						return internal(err)
					}
					for j := range budgets {
						b := &budgets[j]
						for !b.EndDate.After(now) {
							ok, err := rollover(tx, b)
							if err != nil {
								return err
							}
							if !ok {
								break
							}
							counts[i]++
						}
						rolledIDs = append(rolledIDs, b.ID)
					}
					return nil
				})
			})
			if err != nil {
				counts[i] = 0
				log.Errorw("Budget rollover failed", "ledger_id", ledgerID, "error", err)
				return err
			}
			for _, id := range rolledIDs {
				publish(s.events, events.BudgetRolledOver, ledgerID, id)
			}
			return nil
		})
	}
	err := g.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	if err != nil {
		return total, internal(err)
	}
	return total, nil
}
