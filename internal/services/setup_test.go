package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pocketbook/internal/events"
	"pocketbook/internal/models"
	"pocketbook/internal/preferences"
	"pocketbook/internal/testutil"
	"pocketbook/internal/writer"
)

// testEnv wires every service against one isolated database.
type testEnv struct {
	db           *gorm.DB
	queue        *writer.Queue
	prefs        *preferences.MemoryStore
	events       *events.Recorder
	ledgers      LedgerServicer
	accounts     AccountServicer
	categories   CategoryServicer
	transactions TransactionServicer
	budgets      BudgetServicer
	tags         TagServicer
	exports      ExportServicer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	queue := writer.NewQueue()
	t.Cleanup(func() {
		queue.Close()
		testutil.TeardownTestDB(t, db)
	})

	recorder := &events.Recorder{}
	prefs := preferences.NewMemoryStore()
	accounts := NewAccountService(db, queue, recorder)

	return &testEnv{
		db:           db,
		queue:        queue,
		prefs:        prefs,
		events:       recorder,
		ledgers:      NewLedgerService(db, queue, prefs, recorder),
		accounts:     accounts,
		categories:   NewCategoryService(db, queue),
		transactions: NewTransactionService(db, queue, accounts, recorder),
		budgets:      NewBudgetService(db, queue, recorder, 2),
		tags:         NewTagService(db, queue),
		exports:      NewExportService(db),
	}
}

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return testutil.Dec(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// balanceOf reads an account's stored balance.
func balanceOf(t *testing.T, db *gorm.DB, accountID string) decimal.Decimal {
	t.Helper()
	var account models.Account
	if err := db.First(&account, "id = ?", accountID).Error; err != nil {
		t.Fatalf("failed to load account %s: %v", accountID, err)
	}
	return account.Balance
}

func assertBalance(t *testing.T, db *gorm.DB, accountID, want string) {
	t.Helper()
	testutil.AssertDecimal(t, balanceOf(t, db, accountID), want, "balance of "+accountID)
}

// expense creates and applies an expense through the engine.
func (e *testEnv) expense(t *testing.T, ledgerID, accountID, categoryID, amount string, when time.Time) *models.Transaction {
	t.Helper()
	input := TransactionInput{
		Type:            models.TransactionTypeExpense,
		Amount:          dec(amount),
		Date:            when,
		SourceAccountID: &accountID,
	}
	if categoryID != "" {
		input.CategoryID = &categoryID
	}
	txn, err := e.transactions.CreateTransaction(ledgerID, input)
	if err != nil {
		t.Fatalf("failed to create expense: %v", err)
	}
	return txn
}
