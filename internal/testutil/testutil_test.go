package testutil_test

import (
	"testing"
	"time"

	"pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	var count int64
	for _, table := range []string{"ledgers", "accounts", "categories", "tags", "transactions", "transaction_tags", "budgets", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDB_Isolated(t *testing.T) {
	first := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, first)
	second := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, second)

	testutil.CreateTestLedger(t, first)

	var count int64
	second.Model(&models.Ledger{}).Count(&count)
	if count != 0 {
		t.Errorf("expected databases to be isolated, found %d ledgers", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	ledger := testutil.CreateTestLedger(t, db)
	if ledger.ID == "" {
		t.Fatal("ledger should have an ID")
	}

	account := testutil.CreateTestAccount(t, db, ledger.ID, models.AccountKindCash, "50.25")
	testutil.AssertDecimal(t, account.Balance, "50.25", "balance")

	card := testutil.CreateTestAccount(t, db, ledger.ID, models.AccountKindCreditCard, "0")
	testutil.AssertDecimal(t, card.CreditLimit, "1000", "credit limit")

	parent := testutil.CreateTestCategory(t, db, ledger.ID, models.CategoryKindExpense, nil)
	child := testutil.CreateTestCategory(t, db, ledger.ID, models.CategoryKindExpense, &parent.ID)
	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Error("child should reference parent")
	}

	txn := testutil.CreateTestTransaction(t, db, &models.Transaction{
		LedgerID:        ledger.ID,
		Type:            models.TransactionTypeExpense,
		Amount:          testutil.Dec("10"),
		SourceAccountID: &account.ID,
		CategoryID:      &child.ID,
	})
	if txn.State != models.TransactionStatePending {
		t.Errorf("expected pending state, got %s", txn.State)
	}

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	budget := testutil.CreateTestBudget(t, db, ledger.ID, parent.ID, "300", start)
	if !budget.EndDate.Equal(start.AddDate(0, 1, 0)) {
		t.Errorf("expected end date one month after start, got %v", budget.EndDate)
	}

	tag := testutil.CreateTestTag(t, db, ledger.ID)
	if tag.Name == "" {
		t.Error("tag should have a name")
	}
}

func TestAssertAppError(t *testing.T) {
	testutil.AssertAppError(t, errors.ErrNotFound, "NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
