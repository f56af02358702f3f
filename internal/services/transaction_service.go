package services

import (
	"time"

	"gorm.io/gorm"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/events"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/writer"
)

// transactionService is the transaction engine. Every mutation runs in the
// ledger's writer lane and inside one database transaction.
type transactionService struct {
	db             *gorm.DB
	queue          *writer.Queue
	accountService AccountServicer
	events         events.Publisher
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, queue *writer.Queue, accountService AccountServicer, publisher events.Publisher) TransactionServicer {
	return &transactionService{
		db:             db,
		queue:          queue,
		accountService: accountService,
		events:         publisher,
	}
}

// checkShape validates type, amount and which accounts are present. It does
// not touch the database.
func checkShape(input TransactionInput) error {
	if !input.Type.Valid() {
		return apperrors.ErrInvalidTransactionType
	}

	if input.Type == models.TransactionTypeAdjustment {
		if input.Amount.IsZero() {
			return apperrors.WithMessage(apperrors.ErrInvalidAmount, "Adjustment amount must not be zero")
		}
	} else if !input.Amount.IsPositive() {
		return apperrors.ErrInvalidAmount
	}
	if err := checkMoney(input.Amount); err != nil {
		return err
	}

	src, dst := input.SourceAccountID, input.DestinationAccountID
	switch input.Type {
	case models.TransactionTypeExpense:
		if src == nil {
			return apperrors.ErrMissingSourceAccount
		}
		if dst != nil {
			return apperrors.WithMessage(apperrors.ErrUnexpectedAccount, "Expenses do not take a destination account")
		}
	case models.TransactionTypeIncome:
		if dst == nil {
			return apperrors.ErrMissingDestination
		}
		if src != nil {
			return apperrors.WithMessage(apperrors.ErrUnexpectedAccount, "Income does not take a source account")
		}
	case models.TransactionTypeTransfer:
		if src == nil {
			return apperrors.ErrMissingSourceAccount
		}
		if dst == nil {
			return apperrors.ErrMissingDestination
		}
		if *src == *dst {
			return apperrors.ErrSameAccountTransfer
		}
	case models.TransactionTypeAdjustment:
		if dst == nil {
			return apperrors.ErrMissingDestination
		}
		if src != nil {
			return apperrors.WithMessage(apperrors.ErrUnexpectedAccount, "Adjustments take a single destination account")
		}
	}

	if input.CategoryID != nil &&
		(input.Type == models.TransactionTypeTransfer || input.Type == models.TransactionTypeAdjustment) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Transfers and adjustments do not take a category")
	}
	return nil
}

// checkAccounts requires every present account to be a live account of the
// ledger.
func checkAccounts(tx *gorm.DB, ledgerID string, ids ...*string) error {
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, err := referencedAccount(tx, ledgerID, *id); err != nil {
			return err
		}
	}
	return nil
}

// resolve validates input against the ledger's data and returns the
// transaction it describes together with its tags. Nothing is written.
func resolve(tx *gorm.DB, ledgerID string, input TransactionInput) (*models.Transaction, []models.Tag, error) {
	if err := checkShape(input); err != nil {
		return nil, nil, err
	}
	if err := requireLedger(tx, ledgerID); err != nil {
		return nil, nil, err
	}

	if err := checkAccounts(tx, ledgerID, input.SourceAccountID, input.DestinationAccountID); err != nil {
		return nil, nil, err
	}

	if input.CategoryID != nil {
		category, err := referencedCategory(tx, ledgerID, *input.CategoryID)
		if err != nil {
			return nil, nil, err
		}
		if string(category.Kind) != string(input.Type) {
			return nil, nil, apperrors.WithMessage(apperrors.ErrCategoryKindMismatch,
				"Category kind "+string(category.Kind)+" does not match transaction type "+string(input.Type))
		}
	}

	tags, err := referencedTags(tx, ledgerID, input.TagIDs)
	if err != nil {
		return nil, nil, err
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	return &models.Transaction{
		LedgerID:             ledgerID,
		Type:                 input.Type,
		Amount:               input.Amount,
		Date:                 date.UTC(),
		SourceAccountID:      input.SourceAccountID,
		DestinationAccountID: input.DestinationAccountID,
		CategoryID:           input.CategoryID,
		Note:                 input.Note,
	}, tags, nil
}

// CreateTransaction validates, persists and applies a transaction.
func (s *transactionService) CreateTransaction(ledgerID string, input TransactionInput) (*models.Transaction, error) {
	if err := checkShape(input); err != nil {
		return nil, err
	}

	var txn *models.Transaction
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var tags []models.Tag
			var err error
			txn, tags, err = resolve(tx, ledgerID, input)
			if err != nil {
				return err
			}

			txn.State = models.TransactionStateApplied
			txn.Tags = tags
			if err := tx.Create(txn).Error; err != nil {
				return internal(err)
			}
			return s.accountService.ApplyBalanceEffects(tx, txn)
		})
	})
	if err != nil {
		return nil, internal(err)
	}

	publish(s.events, events.TransactionCreated, ledgerID, txn.ID)
	return txn, nil
}

// GetLedgerTransactions returns a filtered page of transactions, newest first.
func (s *transactionService) GetLedgerTransactions(ledgerID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if err := requireLedger(s.db, ledgerID); err != nil {
		return nil, err
	}
	base := applyTransactionFilters(s.db.Model(&models.Transaction{}).Where("ledger_id = ?", ledgerID), filter)
	return pageTransactions(base, page)
}

func pageTransactions(base *gorm.DB, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, internal(err)
	}

	var transactions []models.Transaction
	if err := base.Preload("Tags").
		Scopes(pagination.Paginate(page)).
		Order("date DESC, created_at DESC").
		Find(&transactions).Error; err != nil {
		return nil, internal(err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", f.FromDate.UTC())
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", f.ToDate.UTC())
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.State != nil {
		q = q.Where("state = ?", *f.State)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.AccountID != nil {
		q = q.Where("source_account_id = ? OR destination_account_id = ?", *f.AccountID, *f.AccountID)
	}
	if f.TagID != nil {
		q = q.Where("id IN (SELECT transaction_id FROM transaction_tags WHERE tag_id = ?)", *f.TagID)
	}
	return q
}

// GetTransactionByID returns a transaction with its accounts, category and
// tags loaded.
func (s *transactionService) GetTransactionByID(ledgerID, transactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.
		Preload("SourceAccount").
		Preload("DestinationAccount").
		Preload("Category.Parent").
		Preload("Tags").
		Where("id = ? AND ledger_id = ?", transactionID, ledgerID).
		First(&txn).Error
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrTransactionNotFound)
	}
	return &txn, nil
}

func findTransaction(tx *gorm.DB, ledgerID, transactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := tx.Where("id = ? AND ledger_id = ?", transactionID, ledgerID).First(&txn).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrTransactionNotFound)
	}
	return &txn, nil
}

// transition moves txn from one of the from states to the target state. The
// update is conditional on the stored state so a stale read cannot apply or
// revert twice.
func transition(tx *gorm.DB, txn *models.Transaction, to models.TransactionState, from ...models.TransactionState) (bool, error) {
	result := tx.Model(&models.Transaction{}).
		Where("id = ? AND state IN ?", txn.ID, from).
		Update("state", to)
	if result.Error != nil {
		return false, internal(result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	txn.State = to
	return true, nil
}

// ApplyTransaction applies a pending or reverted transaction.
func (s *transactionService) ApplyTransaction(ledgerID, transactionID string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			if txn, err = findTransaction(tx, ledgerID, transactionID); err != nil {
				return err
			}
			ok, err := transition(tx, txn, models.TransactionStateApplied,
				models.TransactionStatePending, models.TransactionStateReverted)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.ErrTransactionApplied
			}
			if err := checkAccounts(tx, ledgerID, txn.SourceAccountID, txn.DestinationAccountID); err != nil {
				return err
			}
			return s.accountService.ApplyBalanceEffects(tx, txn)
		})
	})
	if err != nil {
		return nil, internal(err)
	}

	publish(s.events, events.TransactionApplied, ledgerID, txn.ID)
	return txn, nil
}

// RevertTransaction removes an applied transaction's balance effects.
func (s *transactionService) RevertTransaction(ledgerID, transactionID string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			if txn, err = findTransaction(tx, ledgerID, transactionID); err != nil {
				return err
			}
			ok, err := transition(tx, txn, models.TransactionStateReverted, models.TransactionStateApplied)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.ErrTransactionNotApplied
			}
			return s.accountService.RevertBalanceEffects(tx, txn)
		})
	})
	if err != nil {
		return nil, internal(err)
	}

	publish(s.events, events.TransactionReverted, ledgerID, txn.ID)
	return txn, nil
}

// overwrite stores next's fields and tags on the transaction with id.
func overwrite(tx *gorm.DB, id string, next *models.Transaction, tags []models.Tag) error {
	updates := map[string]interface{}{
		"type":                   next.Type,
		"amount":                 next.Amount,
		"date":                   next.Date,
		"source_account_id":      next.SourceAccountID,
		"destination_account_id": next.DestinationAccountID,
		"category_id":            next.CategoryID,
		"note":                   next.Note,
	}
	if err := tx.Model(&models.Transaction{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return internal(err)
	}

	owner := &models.Transaction{Base: models.Base{ID: id}}
	assoc := tx.Model(owner).Association("Tags")
	if len(tags) == 0 {
		if err := assoc.Clear(); err != nil {
			return internal(err)
		}
		return nil
	}
	if err := assoc.Replace(tags); err != nil {
		return internal(err)
	}
	return nil
}

// UpdateTransaction changes a transaction that is not currently applied.
// Applied transactions must be reverted first, or changed with
// ReviseTransaction.
func (s *transactionService) UpdateTransaction(ledgerID, transactionID string, input TransactionInput) (*models.Transaction, error) {
	if err := checkShape(input); err != nil {
		return nil, err
	}

	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			current, err := findTransaction(tx, ledgerID, transactionID)
			if err != nil {
				return err
			}
			if current.IsApplied() {
				return apperrors.ErrTransactionStillApplied
			}
			next, tags, err := resolve(tx, ledgerID, input)
			if err != nil {
				return err
			}
			return overwrite(tx, current.ID, next, tags)
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	return s.GetTransactionByID(ledgerID, transactionID)
}

// ReviseTransaction replaces an applied transaction's fields as one unit:
// the old effects are reverted and the new ones applied in the same
// database transaction, so balances never show the intermediate state.
func (s *transactionService) ReviseTransaction(ledgerID, transactionID string, input TransactionInput) (*models.Transaction, error) {
	if err := checkShape(input); err != nil {
		return nil, err
	}

	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			current, err := findTransaction(tx, ledgerID, transactionID)
			if err != nil {
				return err
			}
			if !current.IsApplied() {
				return apperrors.ErrTransactionNotApplied
			}
			next, tags, err := resolve(tx, ledgerID, input)
			if err != nil {
				return err
			}

			if err := s.accountService.RevertBalanceEffects(tx, current); err != nil {
				return err
			}
			if err := overwrite(tx, current.ID, next, tags); err != nil {
				return err
			}
			next.ID = current.ID
			return s.accountService.ApplyBalanceEffects(tx, next)
		})
	})
	if err != nil {
		return nil, internal(err)
	}

	publish(s.events, events.TransactionRevised, ledgerID, transactionID)
	return s.GetTransactionByID(ledgerID, transactionID)
}

// DeleteTransaction deletes a transaction that is not applied. It never
// reverts on the caller's behalf.
func (s *transactionService) DeleteTransaction(ledgerID, transactionID string) error {
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			txn, err := findTransaction(tx, ledgerID, transactionID)
			if err != nil {
				return err
			}
			if txn.IsApplied() {
				return apperrors.ErrTransactionStillApplied
			}
			if err := tx.Model(txn).Association("Tags").Clear(); err != nil {
				return internal(err)
			}
			if err := tx.Delete(txn).Error; err != nil {
				return internal(err)
			}
			return nil
		})
	})
	if err != nil {
		return internal(err)
	}

	publish(s.events, events.TransactionDeleted, ledgerID, transactionID)
	return nil
}
