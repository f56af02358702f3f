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

// --- mock transaction service ---

type mockTransactionService struct {
	createTransactionFn     func(ledgerID string, input services.TransactionInput) (*models.Transaction, error)
	getLedgerTransactionsFn func(ledgerID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	getTransactionByIDFn    func(ledgerID, transactionID string) (*models.Transaction, error)
	applyTransactionFn      func(ledgerID, transactionID string) (*models.Transaction, error)
	revertTransactionFn     func(ledgerID, transactionID string) (*models.Transaction, error)
	updateTransactionFn     func(ledgerID, transactionID string, input services.TransactionInput) (*models.Transaction, error)
	reviseTransactionFn     func(ledgerID, transactionID string, input services.TransactionInput) (*models.Transaction, error)
	deleteTransactionFn     func(ledgerID, transactionID string) error
}

func (m *mockTransactionService) CreateTransaction(ledgerID string, input services.TransactionInput) (*models.Transaction, error) {
	if m.createTransactionFn != nil {
		return m.createTransactionFn(ledgerID, input)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) GetLedgerTransactions(ledgerID string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if m.getLedgerTransactionsFn != nil {
		return m.getLedgerTransactionsFn(ledgerID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Transaction{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockTransactionService) GetTransactionByID(ledgerID, transactionID string) (*models.Transaction, error) {
	if m.getTransactionByIDFn != nil {
		return m.getTransactionByIDFn(ledgerID, transactionID)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) ApplyTransaction(ledgerID, transactionID string) (*models.Transaction, error) {
	if m.applyTransactionFn != nil {
		return m.applyTransactionFn(ledgerID, transactionID)
	}
	return &models.Transaction{State: models.TransactionStateApplied}, nil
}

func (m *mockTransactionService) RevertTransaction(ledgerID, transactionID string) (*models.Transaction, error) {
	if m.revertTransactionFn != nil {
		return m.revertTransactionFn(ledgerID, transactionID)
	}
	return &models.Transaction{State: models.TransactionStateReverted}, nil
}

func (m *mockTransactionService) UpdateTransaction(ledgerID, transactionID string, input services.TransactionInput) (*models.Transaction, error) {
	if m.updateTransactionFn != nil {
		return m.updateTransactionFn(ledgerID, transactionID, input)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) ReviseTransaction(ledgerID, transactionID string, input services.TransactionInput) (*models.Transaction, error) {
	if m.reviseTransactionFn != nil {
		return m.reviseTransactionFn(ledgerID, transactionID, input)
	}
	return &models.Transaction{}, nil
}

func (m *mockTransactionService) DeleteTransaction(ledgerID, transactionID string) error {
	if m.deleteTransactionFn != nil {
		return m.deleteTransactionFn(ledgerID, transactionID)
	}
	return nil
}

var _ services.TransactionServicer = (*mockTransactionService)(nil)

func setupTransactionRouter(handler *TransactionHandler) *gin.Engine {
	r := gin.New()
	transactions := r.Group("/ledgers/:ledgerID/transactions")
	transactions.POST("", handler.CreateTransaction)
	transactions.GET("", handler.GetTransactions)
	transactions.GET("/:transactionID", handler.GetTransaction)
	transactions.PUT("/:transactionID", handler.UpdateTransaction)
	transactions.DELETE("/:transactionID", handler.DeleteTransaction)
	transactions.POST("/:transactionID/apply", handler.ApplyTransaction)
	transactions.POST("/:transactionID/revert", handler.RevertTransaction)
	transactions.POST("/:transactionID/revise", handler.ReviseTransaction)
	return r
}

func TestTransactionHandler_CreateTransaction(t *testing.T) {
	t.Run("returns 201 for an expense", func(t *testing.T) {
		var got services.TransactionInput
		svc := &mockTransactionService{
			createTransactionFn: func(ledgerID string, input services.TransactionInput) (*models.Transaction, error) {
				got = input
				return &models.Transaction{
					Base:            models.Base{ID: testOtherID},
					LedgerID:        ledgerID,
					Type:            input.Type,
					Amount:          input.Amount,
					SourceAccountID: input.SourceAccountID,
					State:           models.TransactionStateApplied,
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupTransactionRouter(NewTransactionHandler(svc, audit))

		rec := doRequest(r, "POST", ledgerPath("/transactions"),
			`{"type":"expense","amount":"4.50","date":"2024-05-02T08:30:00+02:00","source_account_id":"`+testOtherID+`","tag_ids":["`+testLedgerID+`"]}`)

		assertStatus(t, rec, http.StatusCreated)
		if !got.Amount.Equal(decimal.RequireFromString("4.5")) {
			t.Errorf("expected amount 4.5, got %s", got.Amount)
		}
		if !got.Date.Equal(time.Date(2024, 5, 2, 6, 30, 0, 0, time.UTC)) {
			t.Errorf("expected date converted to UTC, got %v", got.Date)
		}
		if got.SourceAccountID == nil || *got.SourceAccountID != testOtherID {
			t.Errorf("expected source account, got %v", got.SourceAccountID)
		}
		if len(got.TagIDs) != 1 {
			t.Errorf("expected 1 tag id, got %v", got.TagIDs)
		}
		txn := parseJSON(t, rec)["transaction"].(map[string]interface{})
		if txn["amount"] != "4.5" || txn["state"] != "applied" {
			t.Errorf("unexpected transaction: %v", txn)
		}
		if len(audit.entries) != 1 || audit.entries[0].changes["amount"] != "4.5" {
			t.Errorf("unexpected audit entries: %+v", audit.entries)
		}
	})

	t.Run("leaves the date to the service when omitted", func(t *testing.T) {
		var got services.TransactionInput
		svc := &mockTransactionService{
			createTransactionFn: func(_ string, input services.TransactionInput) (*models.Transaction, error) {
				got = input
				return &models.Transaction{}, nil
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", ledgerPath("/transactions"),
			`{"type":"adjustment","amount":-3,"destination_account_id":"`+testOtherID+`"}`)

		assertStatus(t, rec, http.StatusCreated)
		if !got.Date.IsZero() {
			t.Errorf("expected zero date, got %v", got.Date)
		}
		if !got.Amount.Equal(decimal.NewFromInt(-3)) {
			t.Errorf("expected signed adjustment amount, got %s", got.Amount)
		}
	})

	t.Run("returns 400 on unknown type", func(t *testing.T) {
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", ledgerPath("/transactions"), `{"type":"investment","amount":5}`)

		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on malformed account ID", func(t *testing.T) {
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", ledgerPath("/transactions"), `{"type":"expense","amount":5,"source_account_id":"7"}`)

		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("returns 400 on malformed date", func(t *testing.T) {
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", ledgerPath("/transactions"), `{"type":"expense","amount":5,"date":"02/05/2024"}`)

		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("surfaces shape errors from the service", func(t *testing.T) {
		svc := &mockTransactionService{
			createTransactionFn: func(string, services.TransactionInput) (*models.Transaction, error) {
				return nil, apperrors.ErrSameAccountTransfer
			},
		}
		audit := &mockAuditService{}
		r := setupTransactionRouter(NewTransactionHandler(svc, audit))

		rec := doRequest(r, "POST", ledgerPath("/transactions"),
			`{"type":"transfer","amount":5,"source_account_id":"`+testOtherID+`","destination_account_id":"`+testOtherID+`"}`)

		assertStatus(t, rec, http.StatusUnprocessableEntity)
		assertErrorCode(t, parseJSON(t, rec), "SAME_ACCOUNT_TRANSFER")
		if len(audit.entries) != 0 {
			t.Error("expected no audit entry")
		}
	})
}

func TestTransactionHandler_GetTransactions(t *testing.T) {
	t.Run("passes filters to service", func(t *testing.T) {
		var gotFilter services.TransactionFilter
		var gotPage pagination.PageRequest
		svc := &mockTransactionService{
			getLedgerTransactionsFn: func(_ string, page pagination.PageRequest, filter services.TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
				gotPage, gotFilter = page, filter
				resp := pagination.NewPageResponse([]models.Transaction{{}}, 1, 10, 1)
				return &resp, nil
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", ledgerPath("/transactions?page_size=10&from_date=2024-01-01&to_date=2024-01-31&type=expense&state=applied&account_id="+testOtherID), "")

		assertStatus(t, rec, http.StatusOK)
		if gotPage.PageSize != 10 {
			t.Errorf("expected page size 10, got %d", gotPage.PageSize)
		}
		if gotFilter.FromDate == nil || !gotFilter.FromDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected from_date %v", gotFilter.FromDate)
		}
		if gotFilter.ToDate == nil || gotFilter.ToDate.Day() != 31 {
			t.Errorf("unexpected to_date %v", gotFilter.ToDate)
		}
		if gotFilter.Type == nil || *gotFilter.Type != models.TransactionTypeExpense {
			t.Errorf("unexpected type %v", gotFilter.Type)
		}
		if gotFilter.State == nil || *gotFilter.State != models.TransactionStateApplied {
			t.Errorf("unexpected state %v", gotFilter.State)
		}
		if gotFilter.AccountID == nil || *gotFilter.AccountID != testOtherID {
			t.Errorf("unexpected account %v", gotFilter.AccountID)
		}
		if gotFilter.CategoryID != nil || gotFilter.TagID != nil {
			t.Error("expected unset filters to stay nil")
		}
	})

	invalid := []struct {
		name  string
		query string
	}{
		{"bad from_date", "?from_date=last-week"},
		{"reversed range", "?from_date=2024-02-01&to_date=2024-01-01"},
		{"bad type", "?type=refund"},
		{"bad state", "?state=settled"},
		{"bad tag", "?tag_id=12"},
		{"bad page", "?page=0"},
	}
	for _, tc := range invalid {
		t.Run("returns 400 on "+tc.name, func(t *testing.T) {
			r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, &mockAuditService{}))

			rec := doRequest(r, "GET", ledgerPath("/transactions"+tc.query), "")

			assertStatus(t, rec, http.StatusBadRequest)
		})
	}
}

func TestTransactionHandler_GetTransaction(t *testing.T) {
	svc := &mockTransactionService{
		getTransactionByIDFn: func(string, string) (*models.Transaction, error) {
			return nil, apperrors.ErrTransactionNotFound
		},
	}
	r := setupTransactionRouter(NewTransactionHandler(svc, &mockAuditService{}))

	rec := doRequest(r, "GET", ledgerPath("/transactions/"+testOtherID), "")

	assertStatus(t, rec, http.StatusNotFound)
	assertErrorCode(t, parseJSON(t, rec), "TRANSACTION_NOT_FOUND")
}

func TestTransactionHandler_StateTransitions(t *testing.T) {
	t.Run("apply and revert are audited", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, audit))

		rec := doRequest(r, "POST", ledgerPath("/transactions/"+testOtherID+"/revert"), "")
		assertStatus(t, rec, http.StatusOK)
		if state := parseJSON(t, rec)["transaction"].(map[string]interface{})["state"]; state != "reverted" {
			t.Errorf("expected reverted, got %v", state)
		}

		rec = doRequest(r, "POST", ledgerPath("/transactions/"+testOtherID+"/apply"), "")
		assertStatus(t, rec, http.StatusOK)

		got := audit.actions()
		if len(got) != 2 || got[0] != "REVERT_TRANSACTION" || got[1] != "APPLY_TRANSACTION" {
			t.Errorf("unexpected audit actions: %v", got)
		}
	})

	t.Run("returns 409 when applying twice", func(t *testing.T) {
		svc := &mockTransactionService{
			applyTransactionFn: func(string, string) (*models.Transaction, error) {
				return nil, apperrors.ErrTransactionApplied
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", ledgerPath("/transactions/"+testOtherID+"/apply"), "")

		assertStatus(t, rec, http.StatusConflict)
		assertErrorCode(t, parseJSON(t, rec), "TRANSACTION_ALREADY_APPLIED")
	})
}

func TestTransactionHandler_UpdateAndRevise(t *testing.T) {
	t.Run("update rejects applied transactions", func(t *testing.T) {
		svc := &mockTransactionService{
			updateTransactionFn: func(string, string, services.TransactionInput) (*models.Transaction, error) {
				return nil, apperrors.ErrTransactionStillApplied
			},
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", ledgerPath("/transactions/"+testOtherID),
			`{"type":"income","amount":10,"destination_account_id":"`+testOtherID+`"}`)

		assertStatus(t, rec, http.StatusConflict)
		assertErrorCode(t, parseJSON(t, rec), "TRANSACTION_STILL_APPLIED")
	})

	t.Run("revise passes the new fields", func(t *testing.T) {
		var gotID string
		var got services.TransactionInput
		svc := &mockTransactionService{
			reviseTransactionFn: func(_, transactionID string, input services.TransactionInput) (*models.Transaction, error) {
				gotID, got = transactionID, input
				return &models.Transaction{Base: models.Base{ID: transactionID}, Amount: input.Amount}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupTransactionRouter(NewTransactionHandler(svc, audit))

		rec := doRequest(r, "POST", ledgerPath("/transactions/"+testOtherID+"/revise"),
			`{"type":"income","amount":"12.25","destination_account_id":"`+testOtherID+`","note":"bonus"}`)

		assertStatus(t, rec, http.StatusOK)
		if gotID != testOtherID || got.Note != "bonus" || got.Type != models.TransactionTypeIncome {
			t.Errorf("unexpected revise args: %s %+v", gotID, got)
		}
		if got := audit.actions(); len(got) != 1 || got[0] != "REVISE_TRANSACTION" {
			t.Errorf("unexpected audit actions: %v", got)
		}
	})
}

func TestTransactionHandler_DeleteTransaction(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupTransactionRouter(NewTransactionHandler(&mockTransactionService{}, audit))

		rec := doRequest(r, "DELETE", ledgerPath("/transactions/"+testOtherID), "")

		assertStatus(t, rec, http.StatusOK)
		if len(audit.entries) != 1 || audit.entries[0].resourceID != testOtherID {
			t.Errorf("unexpected audit entries: %+v", audit.entries)
		}
	})

	t.Run("returns 409 while applied", func(t *testing.T) {
		svc := &mockTransactionService{
			deleteTransactionFn: func(string, string) error { return apperrors.ErrTransactionStillApplied },
		}
		r := setupTransactionRouter(NewTransactionHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "DELETE", ledgerPath("/transactions/"+testOtherID), "")

		assertStatus(t, rec, http.StatusConflict)
	})
}
