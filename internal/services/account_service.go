package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/events"
	"pocketbook/internal/models"
	"pocketbook/internal/writer"
)

const openingBalanceNote = "Opening balance"

// accountService handles accounts and their balances.
type accountService struct {
	db     *gorm.DB
	queue  *writer.Queue
	events events.Publisher
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB, queue *writer.Queue, publisher events.Publisher) AccountServicer {
	return &accountService{db: db, queue: queue, events: publisher}
}

func validateCreditDays(statementDay, dueDay int) error {
	if statementDay < 0 || statementDay > 31 || dueDay < 0 || dueDay > 31 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "statement and due day must be between 1 and 31")
	}
	return nil
}

// CreateAccount creates an account. A non-zero opening balance is recorded
// as an applied adjustment so the balance always equals the sum of its
// applied transactions.
func (s *accountService) CreateAccount(ledgerID string, input AccountInput) (*models.Account, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if !input.Kind.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unsupported account kind")
	}
	if input.Kind == models.AccountKindCreditCard {
		if input.CreditLimit.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "credit limit must not be negative")
		}
		if err := validateCreditDays(input.StatementDay, input.DueDay); err != nil {
			return nil, err
		}
	}
	if err := checkMoney(input.CreditLimit, input.OpeningBalance); err != nil {
		return nil, err
	}

	account := &models.Account{
		LedgerID:         ledgerID,
		Name:             name,
		Kind:             input.Kind,
		Balance:          decimal.Zero,
		ExcludeFromTotal: input.ExcludeFromTotal,
		SortOrder:        input.SortOrder,
		CreditLimit:      input.CreditLimit,
		StatementDay:     input.StatementDay,
		DueDay:           input.DueDay,
	}

	var opening *models.Transaction
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := requireLedger(tx, ledgerID); err != nil {
				return err
			}
			if err := tx.Create(account).Error; err != nil {
				return internal(err)
			}
			if input.OpeningBalance.IsZero() {
				return nil
			}

			opening = &models.Transaction{
				LedgerID:             ledgerID,
				Type:                 models.TransactionTypeAdjustment,
				Amount:               input.OpeningBalance,
				Date:                 time.Now().UTC(),
				DestinationAccountID: &account.ID,
				Note:                 openingBalanceNote,
				State:                models.TransactionStateApplied,
			}
			if err := tx.Create(opening).Error; err != nil {
				return internal(err)
			}
			if err := s.ApplyBalanceEffects(tx, opening); err != nil {
				return err
			}
			return tx.First(account, "id = ?", account.ID).Error
		})
	})
	if err != nil {
		return nil, internal(err)
	}

	if opening != nil {
		publish(s.events, events.AccountAdjusted, ledgerID, account.ID)
	}
	return account, nil
}

// GetLedgerAccounts lists a ledger's accounts by sort order.
func (s *accountService) GetLedgerAccounts(ledgerID string, includeArchived bool) ([]models.Account, error) {
	if err := requireLedger(s.db, ledgerID); err != nil {
		return nil, err
	}

	q := s.db.Where("ledger_id = ?", ledgerID)
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}

	var accounts []models.Account
	if err := q.Order("sort_order ASC, created_at ASC").Find(&accounts).Error; err != nil {
		return nil, internal(err)
	}
	return accounts, nil
}

// GetAccountByID returns an account if it belongs to the ledger.
func (s *accountService) GetAccountByID(ledgerID, accountID string) (*models.Account, error) {
	return findAccount(s.db, ledgerID, accountID)
}

func findAccount(db *gorm.DB, ledgerID, accountID string) (*models.Account, error) {
	var account models.Account
	if err := db.Where("id = ? AND ledger_id = ?", accountID, ledgerID).First(&account).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrAccountNotFound)
	}
	return &account, nil
}

// UpdateAccount updates descriptive fields. The balance is never updated here.
func (s *accountService) UpdateAccount(ledgerID, accountID string, update AccountUpdate) (*models.Account, error) {
	var account *models.Account
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			account, err = findAccount(tx, ledgerID, accountID)
			if err != nil {
				return err
			}

			updates := make(map[string]interface{})
			if update.Name != nil {
				name := strings.TrimSpace(*update.Name)
				if name == "" {
					return apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
				}
				updates["name"] = name
			}
			if update.ExcludeFromTotal != nil {
				updates["exclude_from_total"] = *update.ExcludeFromTotal
			}
			if update.SortOrder != nil {
				updates["sort_order"] = *update.SortOrder
			}
			if update.CreditLimit != nil || update.StatementDay != nil || update.DueDay != nil {
				if !account.IsCreditCard() {
					return apperrors.WithMessage(apperrors.ErrInvalidInput, "credit fields only apply to credit cards")
				}
				statementDay, dueDay := account.StatementDay, account.DueDay
				if update.StatementDay != nil {
					statementDay = *update.StatementDay
					updates["statement_day"] = statementDay
				}
				if update.DueDay != nil {
					dueDay = *update.DueDay
					updates["due_day"] = dueDay
				}
				if err := validateCreditDays(statementDay, dueDay); err != nil {
					return err
				}
				if update.CreditLimit != nil {
					if update.CreditLimit.IsNegative() {
						return apperrors.WithMessage(apperrors.ErrInvalidInput, "credit limit must not be negative")
					}
					if err := checkMoney(*update.CreditLimit); err != nil {
						return err
					}
					updates["credit_limit"] = *update.CreditLimit
				}
			}
			if len(updates) == 0 {
				return nil
			}

			if err := tx.Model(account).Updates(updates).Error; err != nil {
				return internal(err)
			}
			return tx.First(account, "id = ?", account.ID).Error
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	return account, nil
}

// SetAccountArchived archives or restores an account. Archived accounts keep
// their history but reject new transactions.
func (s *accountService) SetAccountArchived(ledgerID, accountID string, archived bool) (*models.Account, error) {
	var account *models.Account
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			account, err = findAccount(tx, ledgerID, accountID)
			if err != nil {
				return err
			}
			if err := tx.Model(account).Update("is_archived", archived).Error; err != nil {
				return internal(err)
			}
			account.IsArchived = archived
			return nil
		})
	})
	if err != nil {
		return nil, internal(err)
	}
	return account, nil
}

// DeleteAccount removes an account that no transaction references.
func (s *accountService) DeleteAccount(ledgerID, accountID string) error {
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			account, err := findAccount(tx, ledgerID, accountID)
			if err != nil {
				return err
			}

			var refs int64
			if err := tx.Model(&models.Transaction{}).
				Where("source_account_id = ? OR destination_account_id = ?", account.ID, account.ID).
				Count(&refs).Error; err != nil {
				return internal(err)
			}
			if refs > 0 {
				return apperrors.ErrAccountInUse
			}

			if err := tx.Delete(account).Error; err != nil {
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

// AdjustBalance records an adjustment that moves the account to target and
// applies it. The adjustment amount is target minus the current balance.
func (s *accountService) AdjustBalance(ledgerID, accountID string, target decimal.Decimal, date time.Time, note string) (*models.Transaction, error) {
	if err := checkMoney(target); err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = time.Now()
	}

	var adjustment *models.Transaction
	err := inLedgerLane(s.db, s.queue, ledgerID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			account, err := findAccount(tx, ledgerID, accountID)
			if err != nil {
				return err
			}
			if account.IsArchived {
				return apperrors.ErrAccountArchived
			}

			delta := target.Sub(account.Balance)
			if delta.IsZero() {
				return apperrors.ErrNoAdjustmentNeeded
			}

			adjustment = &models.Transaction{
				LedgerID:             ledgerID,
				Type:                 models.TransactionTypeAdjustment,
				Amount:               delta,
				Date:                 date.UTC(),
				DestinationAccountID: &account.ID,
				Note:                 note,
				State:                models.TransactionStateApplied,
			}
			if err := tx.Create(adjustment).Error; err != nil {
				return internal(err)
			}
			return s.ApplyBalanceEffects(tx, adjustment)
		})
	})
	if err != nil {
		return nil, internal(err)
	}

	publish(s.events, events.AccountAdjusted, ledgerID, accountID)
	return adjustment, nil
}

// GetAccountSummary totals the ledger's non-archived accounts. Assets are the
// net of every balance that counts toward totals; liabilities are the debt
// carried on those credit cards.
func (s *accountService) GetAccountSummary(ledgerID string) (*AccountSummary, error) {
	accounts, err := s.GetLedgerAccounts(ledgerID, false)
	if err != nil {
		return nil, err
	}

	summary := &AccountSummary{
		LedgerID:         ledgerID,
		TotalAssets:      decimal.Zero,
		TotalLiabilities: decimal.Zero,
		Accounts:         make([]AccountBalance, 0, len(accounts)),
	}
	for i := range accounts {
		a := &accounts[i]
		counts := a.CountsTowardTotal()
		if counts {
			summary.TotalAssets = summary.TotalAssets.Add(a.Balance)
			if a.IsCreditCard() && a.Balance.IsNegative() {
				summary.TotalLiabilities = summary.TotalLiabilities.Add(a.Balance.Neg())
			}
		}
		summary.Accounts = append(summary.Accounts, AccountBalance{
			AccountID:         a.ID,
			Name:              a.Name,
			Kind:              a.Kind,
			Balance:           a.Balance,
			AvailableBalance:  a.AvailableBalance(),
			CountsTowardTotal: counts,
		})
	}
	return summary, nil
}

// ApplyBalanceEffects adds txn's balance effects to its accounts using the
// caller's database transaction.
func (s *accountService) ApplyBalanceEffects(tx *gorm.DB, txn *models.Transaction) error {
	return applyEffects(tx, txn, false)
}

// RevertBalanceEffects removes txn's balance effects from its accounts.
func (s *accountService) RevertBalanceEffects(tx *gorm.DB, txn *models.Transaction) error {
	return applyEffects(tx, txn, true)
}

// applyEffects adds each effect to its account's balance with decimal
// arithmetic in Go. The row is read under FOR UPDATE where the database
// supports it; callers already hold the ledger's lane.
func applyEffects(tx *gorm.DB, txn *models.Transaction, negate bool) error {
	effects, err := txn.BalanceEffects()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvariantViolation, err)
	}
	for _, e := range effects {
		delta := e.Delta
		if negate {
			delta = delta.Neg()
		}

		var account models.Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "balance").
			Where("id = ? AND ledger_id = ?", e.AccountID, txn.LedgerID).
			First(&account).Error
		if err != nil {
			return notFoundOr(err, apperrors.ErrAccountNotFound)
		}

		err = tx.Model(&models.Account{}).
			Where("id = ?", account.ID).
			Update("balance", account.Balance.Add(delta)).Error
		if err != nil {
			return internal(err)
		}
	}
	return nil
}
