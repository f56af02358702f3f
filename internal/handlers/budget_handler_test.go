package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/services"
)

// --- mock budget service ---

type mockBudgetService struct {
	createBudgetFn       func(ledgerID string, input services.BudgetInput) (*models.Budget, error)
	getLedgerBudgetsFn   func(ledgerID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn      func(ledgerID, budgetID string) (*models.Budget, error)
	updateBudgetFn       func(ledgerID, budgetID string, update services.BudgetUpdate) (*models.Budget, error)
	deleteBudgetFn       func(ledgerID, budgetID string) error
	getBudgetUsageFn     func(ledgerID, budgetID string, now time.Time) (*models.BudgetUsage, error)
	rolloverBudgetFn     func(ledgerID, budgetID string) (*models.Budget, error)
	rolloverDueBudgetsFn func(now time.Time) (int, error)
}

func (m *mockBudgetService) CreateBudget(ledgerID string, input services.BudgetInput) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(ledgerID, input)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetLedgerBudgets(ledgerID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
	if m.getLedgerBudgetsFn != nil {
		return m.getLedgerBudgetsFn(ledgerID, page, isActive, period)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudgetByID(ledgerID, budgetID string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(ledgerID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(ledgerID, budgetID string, update services.BudgetUpdate) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(ledgerID, budgetID, update)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeleteBudget(ledgerID, budgetID string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(ledgerID, budgetID)
	}
	return nil
}

func (m *mockBudgetService) GetBudgetUsage(ledgerID, budgetID string, now time.Time) (*models.BudgetUsage, error) {
	if m.getBudgetUsageFn != nil {
		return m.getBudgetUsageFn(ledgerID, budgetID, now)
	}
	return &models.BudgetUsage{}, nil
}

func (m *mockBudgetService) RolloverBudget(ledgerID, budgetID string) (*models.Budget, error) {
	if m.rolloverBudgetFn != nil {
		return m.rolloverBudgetFn(ledgerID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) RolloverDueBudgets(now time.Time) (int, error) {
	if m.rolloverDueBudgetsFn != nil {
		return m.rolloverDueBudgetsFn(now)
	}
	return 0, nil
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	budgets := r.Group("/ledgers/:ledgerID/budgets")
	budgets.POST("", handler.CreateBudget)
	budgets.GET("", handler.GetBudgets)
	budgets.GET("/:budgetID", handler.GetBudget)
	budgets.PUT("/:budgetID", handler.UpdateBudget)
	budgets.DELETE("/:budgetID", handler.DeleteBudget)
	budgets.GET("/:budgetID/usage", handler.GetBudgetUsage)
	budgets.POST("/:budgetID/rollover", handler.RolloverBudget)
	return r
}

func TestBudgetHandler_CreateBudget(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var got services.BudgetInput
		svc := &mockBudgetService{
			createBudgetFn: func(ledgerID string, input services.BudgetInput) (*models.Budget, error) {
				got = input
				return &models.Budget{
					Base:     models.Base{ID: testOtherID},
					LedgerID: ledgerID,
					Name:     input.Name,
					Amount:   input.Amount,
					Period:   input.Period,
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(svc, audit))

		rec := doRequest(r, "POST", ledgerPath("/budgets"),
			`{"category_id":"`+testOtherID+`","name":"Groceries","amount":"400.00","period":"monthly","start_date":"2024-01-01","rollover_enabled":true}`)

		assertStatus(t, rec, http.StatusCreated)
		if !got.Amount.Equal(decimal.NewFromInt(400)) || !got.RolloverEnabled {
			t.Errorf("unexpected input: %+v", got)
		}
		if !got.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected start date %v", got.StartDate)
		}
		if got.EndDate != nil {
			t.Errorf("expected no end date, got %v", got.EndDate)
		}
		budget := parseJSON(t, rec)["budget"].(map[string]interface{})
		if budget["amount"] != "400" {
			t.Errorf("expected amount \"400\", got %v", budget["amount"])
		}
		if got := audit.actions(); len(got) != 1 || got[0] != "CREATE_BUDGET" {
			t.Errorf("unexpected audit actions: %v", got)
		}
	})

	t.Run("passes end date for custom budgets", func(t *testing.T) {
		var got services.BudgetInput
		svc := &mockBudgetService{
			createBudgetFn: func(_ string, input services.BudgetInput) (*models.Budget, error) {
				got = input
				return &models.Budget{}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", ledgerPath("/budgets"),
			`{"category_id":"`+testOtherID+`","name":"Trip","amount":1500,"period":"custom","start_date":"2024-06-01","end_date":"2024-06-15"}`)

		assertStatus(t, rec, http.StatusCreated)
		if got.EndDate == nil || !got.EndDate.Equal(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected end date %v", got.EndDate)
		}
	})

	invalid := []struct {
		name string
		body string
	}{
		{"zero amount", `{"category_id":"` + testOtherID + `","name":"Food","amount":"0","period":"monthly"}`},
		{"negative amount", `{"category_id":"` + testOtherID + `","name":"Food","amount":"-10","period":"monthly"}`},
		{"unknown period", `{"category_id":"` + testOtherID + `","name":"Food","amount":10,"period":"weekly"}`},
		{"missing category", `{"name":"Food","amount":10,"period":"monthly"}`},
		{"bad start date", `{"category_id":"` + testOtherID + `","name":"Food","amount":10,"period":"monthly","start_date":"January"}`},
	}
	for _, tc := range invalid {
		t.Run("returns 400 on "+tc.name, func(t *testing.T) {
			r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

			rec := doRequest(r, "POST", ledgerPath("/budgets"), tc.body)

			assertStatus(t, rec, http.StatusBadRequest)
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}

	t.Run("returns 422 when the category is not an expense category", func(t *testing.T) {
		svc := &mockBudgetService{
			createBudgetFn: func(string, services.BudgetInput) (*models.Budget, error) {
				return nil, apperrors.ErrCategoryKindMismatch
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", ledgerPath("/budgets"),
			`{"category_id":"`+testOtherID+`","name":"Salary","amount":10,"period":"monthly"}`)

		assertStatus(t, rec, http.StatusUnprocessableEntity)
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_KIND_MISMATCH")
	})
}

func TestBudgetHandler_GetBudgets(t *testing.T) {
	t.Run("passes filters to service", func(t *testing.T) {
		var gotActive *bool
		var gotPeriod *models.BudgetPeriod
		svc := &mockBudgetService{
			getLedgerBudgetsFn: func(_ string, _ pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
				gotActive, gotPeriod = isActive, period
				resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", ledgerPath("/budgets?is_active=true&period=yearly"), "")

		assertStatus(t, rec, http.StatusOK)
		if gotActive == nil || !*gotActive {
			t.Errorf("expected is_active=true, got %v", gotActive)
		}
		if gotPeriod == nil || *gotPeriod != models.BudgetPeriodYearly {
			t.Errorf("expected yearly, got %v", gotPeriod)
		}
		if data, ok := parseJSON(t, rec)["data"].([]interface{}); !ok || len(data) != 0 {
			t.Errorf("expected empty data array, got %v", data)
		}
	})

	t.Run("returns 400 on unknown period", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", ledgerPath("/budgets?period=weekly"), "")

		assertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("passes changed fields", func(t *testing.T) {
		var got services.BudgetUpdate
		svc := &mockBudgetService{
			updateBudgetFn: func(_, budgetID string, update services.BudgetUpdate) (*models.Budget, error) {
				got = update
				return &models.Budget{Base: models.Base{ID: budgetID}, Amount: decimal.NewFromInt(250)}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", ledgerPath("/budgets/"+testOtherID), `{"amount":"250","is_active":false}`)

		assertStatus(t, rec, http.StatusOK)
		if got.Amount == nil || !got.Amount.Equal(decimal.NewFromInt(250)) {
			t.Errorf("unexpected amount %v", got.Amount)
		}
		if got.IsActive == nil || *got.IsActive {
			t.Errorf("expected is_active=false, got %v", got.IsActive)
		}
		if got.Name != nil || got.EndDate != nil {
			t.Error("expected untouched fields to stay nil")
		}
	})

	t.Run("returns 400 on negative amount", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", ledgerPath("/budgets/"+testOtherID), `{"amount":"-1"}`)

		assertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestBudgetHandler_GetBudget(t *testing.T) {
	svc := &mockBudgetService{
		getBudgetByIDFn: func(string, string) (*models.Budget, error) { return nil, apperrors.ErrBudgetNotFound },
	}
	r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "GET", ledgerPath("/budgets/"+testOtherID), "")

	assertStatus(t, rec, http.StatusNotFound)
	assertErrorCode(t, parseJSON(t, rec), "BUDGET_NOT_FOUND")
}

func TestBudgetHandler_GetBudgetUsage(t *testing.T) {
	t.Run("evaluates at the requested time", func(t *testing.T) {
		var gotNow time.Time
		svc := &mockBudgetService{
			getBudgetUsageFn: func(_, budgetID string, now time.Time) (*models.BudgetUsage, error) {
				gotNow = now
				return &models.BudgetUsage{
					BudgetID: budgetID,
					Used:     decimal.NewFromInt(360),
					Status:   models.BudgetStatusWarning,
				}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", ledgerPath("/budgets/"+testOtherID+"/usage?at=2024-01-15"), "")

		assertStatus(t, rec, http.StatusOK)
		if !gotNow.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected evaluation time %v", gotNow)
		}
		usage := parseJSON(t, rec)["usage"].(map[string]interface{})
		if usage["status"] != "warning" || usage["used"] != "360" {
			t.Errorf("unexpected usage: %v", usage)
		}
	})

	t.Run("defaults to now", func(t *testing.T) {
		var gotNow time.Time
		svc := &mockBudgetService{
			getBudgetUsageFn: func(_, _ string, now time.Time) (*models.BudgetUsage, error) {
				gotNow = now
				return &models.BudgetUsage{}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", ledgerPath("/budgets/"+testOtherID+"/usage"), "")

		assertStatus(t, rec, http.StatusOK)
		if time.Since(gotNow) > time.Minute {
			t.Errorf("expected current time, got %v", gotNow)
		}
	})

	t.Run("returns 400 on bad time", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", ledgerPath("/budgets/"+testOtherID+"/usage?at=soon"), "")

		assertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestBudgetHandler_RolloverBudget(t *testing.T) {
	svc := &mockBudgetService{
		rolloverBudgetFn: func(_, budgetID string) (*models.Budget, error) {
			return &models.Budget{Base: models.Base{ID: budgetID}, RolloverAmount: decimal.RequireFromString("42.5")}, nil
		},
	}
	audit := &mockAuditService{}
	r := setupBudgetRouter(NewBudgetHandler(svc, audit))

	rec := doRequest(r, "POST", ledgerPath("/budgets/"+testOtherID+"/rollover"), "")

	assertStatus(t, rec, http.StatusOK)
	if len(audit.entries) != 1 || audit.entries[0].action != "ROLLOVER_BUDGET" {
		t.Fatalf("unexpected audit entries: %+v", audit.entries)
	}
	if audit.entries[0].changes["rollover_amount"] != "42.5" {
		t.Errorf("unexpected audit changes: %v", audit.entries[0].changes)
	}
}

func TestBudgetHandler_DeleteBudget(t *testing.T) {
	audit := &mockAuditService{}
	r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, audit))

	rec := doRequest(r, "DELETE", ledgerPath("/budgets/"+testOtherID), "")

	assertStatus(t, rec, http.StatusOK)
	if got := audit.actions(); len(got) != 1 || got[0] != "DELETE_BUDGET" {
		t.Errorf("unexpected audit actions: %v", got)
	}
}
