package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pocketbook/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Dec parses a decimal literal, panicking on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateTestLedger creates a non-default USD ledger with a unique name.
func CreateTestLedger(t *testing.T, db *gorm.DB) *models.Ledger {
	t.Helper()

	n := nextID()
	ledger := &models.Ledger{
		Name:         fmt.Sprintf("Ledger %d", n),
		CurrencyCode: "USD",
		SortOrder:    int(n),
	}
	if err := db.Create(ledger).Error; err != nil {
		t.Fatalf("failed to create test ledger: %v", err)
	}
	return ledger
}

// CreateTestAccount creates an account with the given kind and balance.
// The balance is written directly, as if earlier transactions had set it.
func CreateTestAccount(t *testing.T, db *gorm.DB, ledgerID string, kind models.AccountKind, balance string) *models.Account {
	t.Helper()

	account := &models.Account{
		LedgerID: ledgerID,
		Name:     fmt.Sprintf("%s %d", kind, nextID()),
		Kind:     kind,
		Balance:  Dec(balance),
	}
	if kind == models.AccountKindCreditCard {
		account.CreditLimit = Dec("1000")
		account.StatementDay = 1
		account.DueDay = 20
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCategory creates a category, optionally under parentID.
func CreateTestCategory(t *testing.T, db *gorm.DB, ledgerID string, kind models.CategoryKind, parentID *string) *models.Category {
	t.Helper()

	category := &models.Category{
		LedgerID: ledgerID,
		Name:     fmt.Sprintf("Category %d", nextID()),
		Kind:     kind,
		ParentID: parentID,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction stores a pending transaction without touching
// balances.
func CreateTestTransaction(t *testing.T, db *gorm.DB, txn *models.Transaction) *models.Transaction {
	t.Helper()

	if txn.Date.IsZero() {
		txn.Date = time.Now().UTC()
	}
	if txn.State == "" {
		txn.State = models.TransactionStatePending
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return txn
}

// CreateTestBudget creates an active monthly budget starting at start.
func CreateTestBudget(t *testing.T, db *gorm.DB, ledgerID, categoryID, amount string, start time.Time) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		LedgerID:   ledgerID,
		CategoryID: categoryID,
		Name:       fmt.Sprintf("Budget %d", nextID()),
		Amount:     Dec(amount),
		Period:     models.BudgetPeriodMonthly,
		StartDate:  start,
		EndDate:    models.PeriodEnd(models.BudgetPeriodMonthly, start),
		AnchorDay:  start.Day(),
		IsActive:   true,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestTag creates a tag with a unique name.
func CreateTestTag(t *testing.T, db *gorm.DB, ledgerID string) *models.Tag {
	t.Helper()

	tag := &models.Tag{
		LedgerID: ledgerID,
		Name:     fmt.Sprintf("tag-%d", nextID()),
	}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create test tag: %v", err)
	}
	return tag
}
