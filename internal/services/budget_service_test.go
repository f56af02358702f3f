package services

import (
	"testing"
	"time"

	"pocketbook/internal/events"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/testutil"
)

func midnight(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateBudget(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	other := testutil.CreateTestLedger(t, env.db)
	food := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindExpense, nil)
	salary := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindIncome, nil)
	foreign := testutil.CreateTestCategory(t, env.db, other.ID, models.CategoryKindExpense, nil)

	t.Run("monthly", func(t *testing.T) {
		budget, err := env.budgets.CreateBudget(ledger.ID, BudgetInput{
			CategoryID: food.ID,
			Name:       "Groceries",
			Amount:     dec("500"),
			Period:     models.BudgetPeriodMonthly,
			StartDate:  midnight(2024, 1, 31),
		})
		testutil.AssertNoError(t, err)

		if !budget.IsActive {
			t.Error("expected budget to be active")
		}
		if !budget.EndDate.Equal(midnight(2024, 2, 29)) {
			t.Errorf("expected end clamped to the last day of February, got %s", budget.EndDate)
		}
		if budget.AnchorDay != 31 {
			t.Errorf("expected anchor day 31, got %d", budget.AnchorDay)
		}
		testutil.AssertDecimal(t, budget.RolloverAmount, "0", "rollover amount")
	})

	t.Run("defaults_to_current_month", func(t *testing.T) {
		budget, err := env.budgets.CreateBudget(ledger.ID, BudgetInput{
			CategoryID: food.ID,
			Name:       "This month",
			Amount:     dec("100"),
			Period:     models.BudgetPeriodMonthly,
		})
		testutil.AssertNoError(t, err)
		now := time.Now().UTC()
		if budget.StartDate.Day() != 1 || budget.StartDate.Month() != now.Month() {
			t.Errorf("expected start on the first of this month, got %s", budget.StartDate)
		}
	})

	t.Run("custom_window", func(t *testing.T) {
		end := midnight(2024, 7, 1)
		budget, err := env.budgets.CreateBudget(ledger.ID, BudgetInput{
			CategoryID: food.ID,
			Name:       "Holiday",
			Amount:     dec("2000"),
			Period:     models.BudgetPeriodCustom,
			StartDate:  midnight(2024, 6, 10),
			EndDate:    &end,
		})
		testutil.AssertNoError(t, err)
		if !budget.EndDate.Equal(end) {
			t.Errorf("expected custom end %s, got %s", end, budget.EndDate)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		before := midnight(2023, 12, 1)
		tests := []struct {
			name  string
			input BudgetInput
			code  string
		}{
			{"empty_name", BudgetInput{CategoryID: food.ID, Amount: dec("1"), Period: models.BudgetPeriodMonthly}, "INVALID_INPUT"},
			{"zero_amount", BudgetInput{CategoryID: food.ID, Name: "x", Amount: dec("0"), Period: models.BudgetPeriodMonthly}, "INVALID_AMOUNT"},
			{"amount_past_four_places", BudgetInput{CategoryID: food.ID, Name: "x", Amount: dec("10.00005"), Period: models.BudgetPeriodMonthly}, "INVALID_AMOUNT"},
			{"unknown_period", BudgetInput{CategoryID: food.ID, Name: "x", Amount: dec("1"), Period: "weekly"}, "INVALID_BUDGET_PERIOD"},
			{"custom_without_end", BudgetInput{CategoryID: food.ID, Name: "x", Amount: dec("1"), Period: models.BudgetPeriodCustom, StartDate: midnight(2024, 1, 1)}, "INVALID_BUDGET_PERIOD"},
			{"custom_end_before_start", BudgetInput{CategoryID: food.ID, Name: "x", Amount: dec("1"), Period: models.BudgetPeriodCustom, StartDate: midnight(2024, 1, 1), EndDate: &before}, "INVALID_BUDGET_PERIOD"},
			{"income_category", BudgetInput{CategoryID: salary.ID, Name: "x", Amount: dec("1"), Period: models.BudgetPeriodMonthly}, "CATEGORY_KIND_MISMATCH"},
			{"foreign_category", BudgetInput{CategoryID: foreign.ID, Name: "x", Amount: dec("1"), Period: models.BudgetPeriodMonthly}, "CROSS_LEDGER_REFERENCE"},
			{"missing_category", BudgetInput{CategoryID: "missing", Name: "x", Amount: dec("1"), Period: models.BudgetPeriodMonthly}, "CATEGORY_NOT_FOUND"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := env.budgets.CreateBudget(ledger.ID, tt.input)
				testutil.AssertAppError(t, err, tt.code)
			})
		}
	})
}

func TestGetLedgerBudgets(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	food := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindExpense, nil)
	testutil.CreateTestBudget(t, env.db, ledger.ID, food.ID, "100", midnight(2024, 1, 1))
	paused := testutil.CreateTestBudget(t, env.db, ledger.ID, food.ID, "200", midnight(2024, 1, 1))
	no := false
	_, err := env.budgets.UpdateBudget(ledger.ID, paused.ID, BudgetUpdate{IsActive: &no})
	testutil.AssertNoError(t, err)

	all, err := env.budgets.GetLedgerBudgets(ledger.ID, pagination.PageRequest{}, nil, nil)
	testutil.AssertNoError(t, err)
	if all.TotalItems != 2 {
		t.Errorf("expected 2 budgets, got %d", all.TotalItems)
	}
	if all.Data[0].Category == nil {
		t.Error("expected category to be preloaded")
	}

	yes := true
	active, err := env.budgets.GetLedgerBudgets(ledger.ID, pagination.PageRequest{}, &yes, nil)
	testutil.AssertNoError(t, err)
	if active.TotalItems != 1 {
		t.Errorf("expected 1 active budget, got %d", active.TotalItems)
	}

	yearly := models.BudgetPeriodYearly
	none, err := env.budgets.GetLedgerBudgets(ledger.ID, pagination.PageRequest{}, nil, &yearly)
	testutil.AssertNoError(t, err)
	if none.TotalItems != 0 || none.Data == nil {
		t.Errorf("expected an empty, non-nil page, got %+v", none)
	}
}

func TestUpdateBudget(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	food := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindExpense, nil)
	budget := testutil.CreateTestBudget(t, env.db, ledger.ID, food.ID, "100", midnight(2024, 1, 1))

	amount, name := dec("250"), "Food"
	updated, err := env.budgets.UpdateBudget(ledger.ID, budget.ID, BudgetUpdate{Amount: &amount, Name: &name})
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, updated.Amount, "250", "amount")
	if updated.Name != "Food" {
		t.Errorf("expected name Food, got %s", updated.Name)
	}

	end := midnight(2024, 3, 1)
	_, err = env.budgets.UpdateBudget(ledger.ID, budget.ID, BudgetUpdate{EndDate: &end})
	testutil.AssertAppError(t, err, "INVALID_BUDGET_PERIOD")

	negative := dec("-1")
	_, err = env.budgets.UpdateBudget(ledger.ID, budget.ID, BudgetUpdate{Amount: &negative})
	testutil.AssertAppError(t, err, "INVALID_AMOUNT")

	_, err = env.budgets.UpdateBudget(ledger.ID, "missing", BudgetUpdate{Amount: &amount})
	testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
}

func TestDeleteBudget(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	other := testutil.CreateTestLedger(t, env.db)
	food := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindExpense, nil)
	budget := testutil.CreateTestBudget(t, env.db, ledger.ID, food.ID, "100", midnight(2024, 1, 1))

	err := env.budgets.DeleteBudget(other.ID, budget.ID)
	testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")

	testutil.AssertNoError(t, env.budgets.DeleteBudget(ledger.ID, budget.ID))
	_, err = env.budgets.GetBudgetByID(ledger.ID, budget.ID)
	testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
}

func TestGetBudgetUsage(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, *models.Ledger, *models.Account, *models.Category, *models.Category) {
		env := newTestEnv(t)
		ledger := testutil.CreateTestLedger(t, env.db)
		account := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "10000")
		food := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindExpense, nil)
		coffee := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindExpense, &food.ID)
		return env, ledger, account, food, coffee
	}

	t.Run("parent_rolls_up_children", func(t *testing.T) {
		env, ledger, account, food, coffee := setup(t)
		dining := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindExpense, &food.ID)
		salary := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindIncome, nil)
		parent := testutil.CreateTestBudget(t, env.db, ledger.ID, food.ID, "1000", midnight(2024, 1, 1))
		child := testutil.CreateTestBudget(t, env.db, ledger.ID, coffee.ID, "100", midnight(2024, 1, 1))

		env.expense(t, ledger.ID, account.ID, food.ID, "10", date(2024, 1, 3))
		env.expense(t, ledger.ID, account.ID, coffee.ID, "4", date(2024, 1, 4))
		env.expense(t, ledger.ID, account.ID, dining.ID, "30", date(2024, 1, 5))

		// Ignored: income, reverted, uncategorised and out-of-window entries.
		_, err := env.transactions.CreateTransaction(ledger.ID, TransactionInput{
			Type:                 models.TransactionTypeIncome,
			Amount:               dec("5000"),
			Date:                 date(2024, 1, 6),
			DestinationAccountID: &account.ID,
			CategoryID:           &salary.ID,
		})
		testutil.AssertNoError(t, err)
		reverted := env.expense(t, ledger.ID, account.ID, coffee.ID, "99", date(2024, 1, 7))
		_, err = env.transactions.RevertTransaction(ledger.ID, reverted.ID)
		testutil.AssertNoError(t, err)
		env.expense(t, ledger.ID, account.ID, "", "77", date(2024, 1, 8))
		env.expense(t, ledger.ID, account.ID, coffee.ID, "55", date(2024, 2, 1))
		env.expense(t, ledger.ID, account.ID, coffee.ID, "66", date(2023, 12, 31))

		now := date(2024, 1, 10)
		parentUsage, err := env.budgets.GetBudgetUsage(ledger.ID, parent.ID, now)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, parentUsage.Used, "44", "parent used")

		childUsage, err := env.budgets.GetBudgetUsage(ledger.ID, child.ID, now)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, childUsage.Used, "4", "child used")
	})

	t.Run("status_bands", func(t *testing.T) {
		tests := []struct {
			spent  string
			status models.BudgetStatus
			over   bool
		}{
			{"0", models.BudgetStatusSafe, false},
			{"79.999", models.BudgetStatusSafe, false},
			{"80", models.BudgetStatusCaution, false},
			{"89.999", models.BudgetStatusCaution, false},
			{"90", models.BudgetStatusWarning, false},
			{"99.999", models.BudgetStatusWarning, false},
			{"100", models.BudgetStatusExceeded, true},
			{"130", models.BudgetStatusExceeded, true},
		}
		for _, tt := range tests {
			t.Run(tt.spent, func(t *testing.T) {
				env, ledger, account, food, _ := setup(t)
				budget := testutil.CreateTestBudget(t, env.db, ledger.ID, food.ID, "100", midnight(2024, 1, 1))
				if tt.spent != "0" {
					env.expense(t, ledger.ID, account.ID, food.ID, tt.spent, date(2024, 1, 2))
				}

				usage, err := env.budgets.GetBudgetUsage(ledger.ID, budget.ID, date(2024, 1, 15))
				testutil.AssertNoError(t, err)
				if usage.Status != tt.status || usage.IsOverBudget != tt.over {
					t.Errorf("spent %s: expected %s/%v, got %s/%v", tt.spent, tt.status, tt.over, usage.Status, usage.IsOverBudget)
				}
			})
		}
	})

	t.Run("daily_average", func(t *testing.T) {
		env, ledger, account, food, _ := setup(t)
		budget := testutil.CreateTestBudget(t, env.db, ledger.ID, food.ID, "400", midnight(2024, 1, 1))
		env.expense(t, ledger.ID, account.ID, food.ID, "300", date(2024, 1, 2))

		usage, err := env.budgets.GetBudgetUsage(ledger.ID, budget.ID, midnight(2024, 1, 22))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, usage.Remaining, "100", "remaining")
		testutil.AssertDecimal(t, usage.Progress, "0.75", "progress")
		if usage.RemainingDays != 10 {
			t.Errorf("expected 10 remaining days, got %d", usage.RemainingDays)
		}
		testutil.AssertDecimal(t, usage.DailyAverage, "10", "daily average")
	})

	t.Run("not_found", func(t *testing.T) {
		env, ledger, _, _, _ := setup(t)
		_, err := env.budgets.GetBudgetUsage(ledger.ID, "missing", time.Now())
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
	})
}

func TestRolloverBudget(t *testing.T) {
	setup := func(t *testing.T, rollover bool) (*testEnv, *models.Ledger, *models.Account, *models.Category, *models.Budget) {
		env := newTestEnv(t)
		ledger := testutil.CreateTestLedger(t, env.db)
		account := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "10000")
		food := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindExpense, nil)
		budget := testutil.CreateTestBudget(t, env.db, ledger.ID, food.ID, "1000", midnight(2024, 1, 1))
		env.db.Model(budget).Update("rollover_enabled", rollover)
		return env, ledger, account, food, budget
	}

	t.Run("carries_remainder", func(t *testing.T) {
		env, ledger, account, food, budget := setup(t, true)
		env.expense(t, ledger.ID, account.ID, food.ID, "600", date(2024, 1, 20))

		rolled, err := env.budgets.RolloverBudget(ledger.ID, budget.ID)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, rolled.RolloverAmount, "400", "rollover amount")
		if !rolled.StartDate.Equal(midnight(2024, 2, 1)) || !rolled.EndDate.Equal(midnight(2024, 3, 1)) {
			t.Errorf("expected February window, got %s - %s", rolled.StartDate, rolled.EndDate)
		}

		usage, err := env.budgets.GetBudgetUsage(ledger.ID, budget.ID, midnight(2024, 2, 2))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, usage.Used, "0", "used in new window")
		testutil.AssertDecimal(t, usage.Remaining, "1400", "remaining in new window")
		if types := env.events.Types(); types[len(types)-1] != events.BudgetRolledOver {
			t.Errorf("expected budget.rolled_over event, got %v", types)
		}
	})

	t.Run("overspent_carries_nothing", func(t *testing.T) {
		env, ledger, account, food, budget := setup(t, true)
		env.expense(t, ledger.ID, account.ID, food.ID, "1200", date(2024, 1, 20))

		rolled, err := env.budgets.RolloverBudget(ledger.ID, budget.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, rolled.RolloverAmount, "0", "rollover amount")
		if !rolled.StartDate.Equal(midnight(2024, 2, 1)) {
			t.Errorf("expected window to advance, got %s", rolled.StartDate)
		}
	})

	t.Run("disabled_is_a_noop", func(t *testing.T) {
		env, ledger, account, food, budget := setup(t, false)
		env.expense(t, ledger.ID, account.ID, food.ID, "100", date(2024, 1, 20))

		rolled, err := env.budgets.RolloverBudget(ledger.ID, budget.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, rolled.RolloverAmount, "0", "rollover amount")
		if !rolled.StartDate.Equal(midnight(2024, 1, 1)) {
			t.Errorf("expected window unchanged, got %s", rolled.StartDate)
		}
		for _, typ := range env.events.Types() {
			if typ == events.BudgetRolledOver {
				t.Error("expected no rollover event")
			}
		}
	})
}

func TestRolloverDueBudgets(t *testing.T) {
	env := newTestEnv(t)

	var budgets []*models.Budget
	for i := 0; i < 3; i++ {
		ledger := testutil.CreateTestLedger(t, env.db)
		account := testutil.CreateTestAccount(t, env.db, ledger.ID, models.AccountKindCash, "10000")
		food := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindExpense, nil)
		budget := testutil.CreateTestBudget(t, env.db, ledger.ID, food.ID, "500", midnight(2024, 1, 1))
		env.db.Model(budget).Update("rollover_enabled", true)
		env.expense(t, ledger.ID, account.ID, food.ID, "200", date(2024, 1, 10))
		budgets = append(budgets, budget)
	}

	// Not due: rollover disabled, and a window that has not ended.
	first := budgets[0]
	testutil.CreateTestBudget(t, env.db, first.LedgerID, first.CategoryID, "50", midnight(2024, 1, 1))
	current := testutil.CreateTestBudget(t, env.db, first.LedgerID, first.CategoryID, "50", midnight(2024, 4, 1))
	env.db.Model(current).Update("rollover_enabled", true)

	now := date(2024, 4, 15)
	count, err := env.budgets.RolloverDueBudgets(now)
	testutil.AssertNoError(t, err)
	if count != 9 {
		t.Errorf("expected 3 rollovers for each of 3 budgets, got %d", count)
	}

	for _, b := range budgets {
		rolled, err := env.budgets.GetBudgetByID(b.LedgerID, b.ID)
		testutil.AssertNoError(t, err)
		if !rolled.Contains(now) {
			t.Errorf("expected window to contain %s, got %s - %s", now, rolled.StartDate, rolled.EndDate)
		}
		// January leaves 300; each empty window after it carries its whole cap.
		testutil.AssertDecimal(t, rolled.RolloverAmount, "1300", "rollover amount")
	}

	again, err := env.budgets.RolloverDueBudgets(now)
	testutil.AssertNoError(t, err)
	if again != 0 {
		t.Errorf("expected nothing left to roll, got %d", again)
	}

	rolledEvents := 0
	for _, typ := range env.events.Types() {
		if typ == events.BudgetRolledOver {
			rolledEvents++
		}
	}
	if rolledEvents != 3 {
		t.Errorf("expected one event per budget, got %d", rolledEvents)
	}
}

func TestRolloverDueBudgets_MonthEndWindows(t *testing.T) {
	env := newTestEnv(t)
	ledger := testutil.CreateTestLedger(t, env.db)
	food := testutil.CreateTestCategory(t, env.db, ledger.ID, models.CategoryKindExpense, nil)

	budget, err := env.budgets.CreateBudget(ledger.ID, BudgetInput{
		CategoryID:      food.ID,
		Name:            "Month end",
		Amount:          dec("100"),
		Period:          models.BudgetPeriodMonthly,
		StartDate:       midnight(2025, 1, 31),
		RolloverEnabled: true,
	})
	testutil.AssertNoError(t, err)

	count, err := env.budgets.RolloverDueBudgets(midnight(2025, 5, 15))
	testutil.AssertNoError(t, err)
	if count != 3 {
		t.Errorf("expected 3 rollovers, got %d", count)
	}

	rolled, err := env.budgets.GetBudgetByID(ledger.ID, budget.ID)
	testutil.AssertNoError(t, err)
	if !rolled.StartDate.Equal(midnight(2025, 4, 30)) || !rolled.EndDate.Equal(midnight(2025, 5, 31)) {
		t.Errorf("expected window [2025-04-30, 2025-05-31), got [%s, %s)", rolled.StartDate, rolled.EndDate)
	}
}
