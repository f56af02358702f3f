package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"pocketbook/internal/models"
	"pocketbook/internal/testutil"
)

func TestCreateAccount(t *testing.T) {
	t.Run("opening_balance_is_an_applied_adjustment", func(t *testing.T) {
		env := newTestEnv(t)
		ledger := testutil.CreateTestLedger(t, env.db)

		account, err := env.accounts.CreateAccount(ledger.ID, AccountInput{
			Name:           "Checking",
			Kind:           models.AccountKindChecking,
			OpeningBalance: dec("250.75"),
		})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, account.Balance, "250.75", "balance")

		var opening models.Transaction
		if err := env.db.Where("destination_account_id = ?", account.ID).First(&opening).Error; err != nil {
			t.Fatalf("expected an opening adjustment: %v", err)
		}
		if opening.Type != models.TransactionTypeAdjustment || !opening.IsApplied() {
			t.Errorf("unexpected opening transaction: %+v", opening)
		}
		testutil.AssertDecimal(t, opening.Amount, "250.75", "opening amount")
	})

	t.Run("zero_opening_balance_writes_no_transaction", func(t *testing.T) {
		env := newTestEnv(t)
		ledger := testutil.CreateTestLedger(t, env.db)

		account, err := env.accounts.CreateAccount(ledger.ID, AccountInput{Name: "Wallet", Kind: models.AccountKindEWallet})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, account.Balance, "0", "balance")

		var count int64
		env.db.Model(&models.Transaction{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no transactions, got %d", count)
		}
	})

	t.Run("credit_card_keeps_credit_fields", func(t *testing.T) {
		env := newTestEnv(t)
		ledger := testutil.CreateTestLedger(t, env.db)

		card, err := env.accounts.CreateAccount(ledger.ID, AccountInput{
			Name:           "Visa",
			Kind:           models.AccountKindCreditCard,
			OpeningBalance: dec("-200"),
			CreditLimit:    dec("1500"),
			StatementDay:   5,
			DueDay:         25,
		})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, card.CreditLimit, "1500", "credit limit")
		testutil.AssertDecimal(t, card.AvailableBalance(), "1300", "available")
		if card.StatementDay != 5 || card.DueDay != 25 {
			t.Errorf("expected statement/due day 5/25, got %d/%d", card.StatementDay, card.DueDay)
		}
	})

	t.Run("cash_account_drops_credit_fields", func(t *testing.T) {
		env := newTestEnv(t)
		ledger := testutil.CreateTestLedger(t, env.db)

		cash, err := env.accounts.CreateAccount(ledger.ID, AccountInput{
			Name:         "Cash",
			Kind:         models.AccountKindCash,
			CreditLimit:  dec("500"),
			StatementDay: 3,
		})
		testutil.AssertNoError(t, err)
		if !cash.CreditLimit.IsZero() || cash.StatementDay != 0 {
			t.Errorf("expected credit fields to be cleared, got %s/%d", cash.CreditLimit, cash.StatementDay)
		}
	})

	t.Run("invalid_input", func(t *testing.T) {
		env := newTestEnv(t)
		ledger := testutil.CreateTestLedger(t, env.db)

		_, err := env.accounts.CreateAccount(ledger.ID, AccountInput{Name: " ", Kind: models.AccountKindCash})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		_, err = env.accounts.CreateAccount(ledger.ID, AccountInput{Name: "Bank", Kind: "savings"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		_, err = env.accounts.CreateAccount(ledger.ID, AccountInput{Name: "Card", Kind: models.AccountKindCreditCard, DueDay: 40})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		_, err = env.accounts.CreateAccount("missing", AccountInput{Name: "Cash", Kind: models.AccountKindCash})
		testutil.AssertAppError(t, err, "LEDGER_NOT_FOUND")
	})
}

func TestGetLedgerAccounts(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	other := testutil.CreateTestLedger(t, env.db)
	testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "0")
	archived := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindChecking, "0")
	testutil.CreateTestAccount(t, env.db, other.ID, models.AccountKindCash, "0")

	_, err := env.accounts.SetAccountArchived(ledger.ID, archived.ID, true)
	testutil.AssertNoError(t, err)

	visible, err := env.accounts.GetLedgerAccounts(ledger.ID, false)
	testutil.AssertNoError(t, err)
	if len(visible) != 1 {
		t.Errorf("expected 1 visible account, got %d", len(visible))
	}
	all, err := env.accounts.GetLedgerAccounts(ledger.ID, true)
	testutil.AssertNoError(t, err)
	if len(all) != 2 {
		t.Errorf("expected 2 accounts including archived, got %d", len(all))
	}

	_, err = env.accounts.GetAccountByID(other.ID, archived.ID)
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
}

func TestUpdateAccount(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	cash := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "10")
	card := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCreditCard, "0")

	t.Run("renames_without_touching_balance", func(t *testing.T) {
		name, exclude := "Pocket money", true
		updated, err := env.accounts.UpdateAccount(ledger.ID, cash.ID, AccountUpdate{Name: &name, ExcludeFromTotal: &exclude})
		testutil.AssertNoError(t, err)
		if updated.Name != name || !updated.ExcludeFromTotal {
			t.Errorf("unexpected account after update: %+v", updated)
		}
		testutil.AssertDecimal(t, updated.Balance, "10", "balance")
	})

	t.Run("credit_fields_on_card", func(t *testing.T) {
		limit, due := dec("2500"), 28
		updated, err := env.accounts.UpdateAccount(ledger.ID, card.ID, AccountUpdate{CreditLimit: &limit, DueDay: &due})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, updated.CreditLimit, "2500", "credit limit")
		if updated.DueDay != 28 {
			t.Errorf("expected due day 28, got %d", updated.DueDay)
		}
	})

	t.Run("credit_fields_on_cash", func(t *testing.T) {
		limit := dec("100")
		_, err := env.accounts.UpdateAccount(ledger.ID, cash.ID, AccountUpdate{CreditLimit: &limit})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("negative_limit", func(t *testing.T) {
		limit := dec("-1")
		_, err := env.accounts.UpdateAccount(ledger.ID, card.ID, AccountUpdate{CreditLimit: &limit})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestArchivedAccount(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	account := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "100")
	txn := env.expense(t, ledger.ID, account.ID, "", "40", date(2024, 2, 1))

	archived, err := env.accounts.SetAccountArchived(ledger.ID, account.ID, true)
	testutil.AssertNoError(t, err)
	if !archived.IsArchived {
		t.Fatal("expected account to be archived")
	}

	_, err = env.transactions.CreateTransaction(ledger.ID, TransactionInput{
		Type:            models.TransactionTypeExpense,
		Amount:          dec("1"),
		SourceAccountID: &account.ID,
	})
	testutil.AssertAppError(t, err, "ACCOUNT_ARCHIVED")

	_, err = env.accounts.AdjustBalance(ledger.ID, account.ID, dec("0"), date(2024, 2, 2), "")
	testutil.AssertAppError(t, err, "ACCOUNT_ARCHIVED")

	// History stays revertible.
	_, err = env.transactions.RevertTransaction(ledger.ID, txn.ID)
	testutil.AssertNoError(t, err)
	assertBalance(t, env.db, account.ID, "100")

	_, err = env.accounts.SetAccountArchived(ledger.ID, account.ID, false)
	testutil.AssertNoError(t, err)
	env.expense(t, ledger.ID, account.ID, "", "1", date(2024, 2, 3))
	assertBalance(t, env.db, account.ID, "99")
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	used := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "100")
	unused := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "0")
	env.expense(t, ledger.ID, used.ID, "", "5", date(2024, 1, 1))

	err := env.accounts.DeleteAccount(ledger.ID, used.ID)
	testutil.AssertAppError(t, err, "ACCOUNT_IN_USE")

	testutil.AssertNoError(t, env.accounts.DeleteAccount(ledger.ID, unused.ID))
	_, err = env.accounts.GetAccountByID(ledger.ID, unused.ID)
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")

	err = env.accounts.DeleteAccount(ledger.ID, unused.ID)
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
}

func TestAdjustBalance(t *testing.T) {
	t.Run("records_signed_delta", func(t *testing.T) {
		env := newTestEnv(t)
		ledger := testutil.CreateTestLedger(t, env.db)
		account := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "100")

		down, err := env.accounts.AdjustBalance(ledger.ID, account.ID, dec("82.5"), date(2024, 4, 1), "counted")
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, down.Amount, "-17.5", "adjustment amount")
		assertBalance(t, env.db, account.ID, "82.5")

		up, err := env.accounts.AdjustBalance(ledger.ID, account.ID, dec("90"), date(2024, 4, 2), "")
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, up.Amount, "7.5", "adjustment amount")
		assertBalance(t, env.db, account.ID, "90")

		_, err = env.transactions.RevertTransaction(ledger.ID, up.ID)
		testutil.AssertNoError(t, err)
		assertBalance(t, env.db, account.ID, "82.5")
	})

	t.Run("no_change_needed", func(t *testing.T) {
		env := newTestEnv(t)
		ledger := testutil.CreateTestLedger(t, env.db)
		account := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "100")

		_, err := env.accounts.AdjustBalance(ledger.ID, account.ID, dec("100.00"), date(2024, 4, 1), "")
		testutil.AssertAppError(t, err, "NO_ADJUSTMENT_NEEDED")
	})
}

func TestGetAccountSummary(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindChecking, "1200")
	testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "50")
	testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCreditCard, "-300")
	excluded := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindEWallet, "999")
	env.db.Model(excluded).Update("exclude_from_total", true)
	archived := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCreditCard, "-50")
	env.db.Model(archived).Update("is_archived", true)

	summary, err := env.accounts.GetAccountSummary(ledger.ID)
	testutil.AssertNoError(t, err)

	testutil.AssertDecimal(t, summary.TotalAssets, "950", "total assets")
	testutil.AssertDecimal(t, summary.TotalLiabilities, "300", "total liabilities")
	if len(summary.Accounts) != 4 {
		t.Fatalf("expected 4 non-archived accounts, got %d", len(summary.Accounts))
	}

	var card *AccountBalance
	for i := range summary.Accounts {
		if summary.Accounts[i].Kind == models.AccountKindCreditCard {
			card = &summary.Accounts[i]
		}
	}
	if card == nil {
		t.Fatal("expected the credit card in the summary")
	}
	testutil.AssertDecimal(t, card.AvailableBalance, "700", "card available balance")
}

func TestApplyBalanceEffectsRejectsForeignAccount(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	other := testutil.CreateTestLedger(t, env.db)
	foreign := testutil.CreateTestAccount(t, env.db, other.ID, models.AccountKindCash, "10")

	txn := &models.Transaction{
		LedgerID:             ledger.ID,
		Type:                 models.TransactionTypeIncome,
		Amount:               decimal.NewFromInt(5),
		DestinationAccountID: &foreign.ID,
	}
	err := env.accounts.ApplyBalanceEffects(env.db, txn)
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	assertBalance(t, env.db, foreign.ID, "10")
}
