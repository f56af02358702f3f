package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
)

// LedgerInput holds the fields for creating a ledger.
type LedgerInput struct {
	Name         string
	CurrencyCode string
	SortOrder    int
}

// LedgerUpdate holds the optional fields for updating a ledger.
type LedgerUpdate struct {
	Name         *string
	CurrencyCode *string
	SortOrder    *int
	IsArchived   *bool
}

// LedgerServicer defines the contract for the ledger registry.
type LedgerServicer interface {
	CreateLedger(input LedgerInput) (*models.Ledger, error)
	GetLedgers(includeArchived bool) ([]models.Ledger, error)
	GetLedgerByID(ledgerID string) (*models.Ledger, error)
	UpdateLedger(ledgerID string, update LedgerUpdate) (*models.Ledger, error)
	SetDefaultLedger(ledgerID string) (*models.Ledger, error)
	DeleteLedger(ctx context.Context, ledgerID string) error
	ResolveCurrentLedger(ctx context.Context) (*models.Ledger, error)
	SetCurrentLedger(ctx context.Context, ledgerID string) (*models.Ledger, error)
	VerifyInvariants() error
}

// AccountInput holds the fields for creating an account.
type AccountInput struct {
	Name             string
	Kind             models.AccountKind
	OpeningBalance   decimal.Decimal
	CreditLimit      decimal.Decimal
	StatementDay     int
	DueDay           int
	ExcludeFromTotal bool
	SortOrder        int
}

// AccountUpdate holds the optional fields for updating an account.
type AccountUpdate struct {
	Name             *string
	ExcludeFromTotal *bool
	SortOrder        *int
	CreditLimit      *decimal.Decimal
	StatementDay     *int
	DueDay           *int
}

// AccountBalance is one account's line in an AccountSummary.
type AccountBalance struct {
	AccountID         string             `json:"account_id"`
	Name              string             `json:"name"`
	Kind              models.AccountKind `json:"kind"`
	Balance           decimal.Decimal    `json:"balance"`
	AvailableBalance  decimal.Decimal    `json:"available_balance"`
	CountsTowardTotal bool               `json:"counts_toward_total"`
}

// AccountSummary aggregates balances across a ledger's accounts.
type AccountSummary struct {
	LedgerID         string           `json:"ledger_id"`
	TotalAssets      decimal.Decimal  `json:"total_assets"`
	TotalLiabilities decimal.Decimal  `json:"total_liabilities"`
	Accounts         []AccountBalance `json:"accounts"`
}

// AccountServicer defines the contract for accounts and their balances.
type AccountServicer interface {
	CreateAccount(ledgerID string, input AccountInput) (*models.Account, error)
	GetLedgerAccounts(ledgerID string, includeArchived bool) ([]models.Account, error)
	GetAccountByID(ledgerID, accountID string) (*models.Account, error)
	UpdateAccount(ledgerID, accountID string, update AccountUpdate) (*models.Account, error)
	SetAccountArchived(ledgerID, accountID string, archived bool) (*models.Account, error)
	DeleteAccount(ledgerID, accountID string) error
	AdjustBalance(ledgerID, accountID string, target decimal.Decimal, date time.Time, note string) (*models.Transaction, error)
	GetAccountSummary(ledgerID string) (*AccountSummary, error)
	ApplyBalanceEffects(tx *gorm.DB, txn *models.Transaction) error
	RevertBalanceEffects(tx *gorm.DB, txn *models.Transaction) error
}

// CategoryInput holds the fields for creating a category.
type CategoryInput struct {
	Name          string
	Kind          models.CategoryKind
	ParentID      *string
	Icon          string
	Color         string
	IsQuickSelect bool
	IsHidden      bool
	SortOrder     int
}

// CategoryUpdate holds the optional fields for updating a category.
// ParentID moves the category under another root; ClearParent makes it a root.
type CategoryUpdate struct {
	Name          *string
	Icon          *string
	Color         *string
	IsQuickSelect *bool
	IsHidden      *bool
	SortOrder     *int
	ParentID      *string
	ClearParent   bool
}

// CategoryServicer defines the contract for the category tree.
type CategoryServicer interface {
	CreateCategory(ledgerID string, input CategoryInput) (*models.Category, error)
	GetCategoryTree(ledgerID string, kind *models.CategoryKind, includeHidden bool) ([]models.BranchScope, error)
	GetCategoryByID(ledgerID, categoryID string) (*models.Category, error)
	UpdateCategory(ledgerID, categoryID string, update CategoryUpdate) (*models.Category, error)
	DeleteCategory(ledgerID, categoryID string) error
	GetCategoryScope(ledgerID, categoryID string) (models.CategoryScope, error)
	GetCategoryTransactions(ledgerID, categoryID string, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	FullPath(ledgerID, categoryID string) (string, error)
}

// TransactionInput holds the caller-supplied fields of a transaction. Amount
// is a positive magnitude except for adjustments, where it is the signed
// delta.
type TransactionInput struct {
	Type                 models.TransactionType
	Amount               decimal.Decimal
	Date                 time.Time
	SourceAccountID      *string
	DestinationAccountID *string
	CategoryID           *string
	Note                 string
	TagIDs               []string
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	State      *models.TransactionState
	CategoryID *string
	AccountID  *string
	TagID      *string
}

// TransactionServicer defines the contract for the transaction engine.
type TransactionServicer interface {
	CreateTransaction(ledgerID string, input TransactionInput) (*models.Transaction, error)
	GetLedgerTransactions(ledgerID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(ledgerID, transactionID string) (*models.Transaction, error)
	ApplyTransaction(ledgerID, transactionID string) (*models.Transaction, error)
	RevertTransaction(ledgerID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(ledgerID, transactionID string, input TransactionInput) (*models.Transaction, error)
	ReviseTransaction(ledgerID, transactionID string, input TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ledgerID, transactionID string) error
}

// BudgetInput holds the fields for creating a budget. EndDate is required
// for custom budgets and ignored otherwise.
type BudgetInput struct {
	CategoryID      string
	Name            string
	Amount          decimal.Decimal
	Period          models.BudgetPeriod
	StartDate       time.Time
	EndDate         *time.Time
	RolloverEnabled bool
}

// BudgetUpdate holds the optional fields for updating a budget. EndDate may
// only be changed on custom budgets.
type BudgetUpdate struct {
	Name            *string
	Amount          *decimal.Decimal
	EndDate         *time.Time
	RolloverEnabled *bool
	IsActive        *bool
}

// BudgetServicer defines the contract for the budget tracker.
type BudgetServicer interface {
	CreateBudget(ledgerID string, input BudgetInput) (*models.Budget, error)
	GetLedgerBudgets(ledgerID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(ledgerID, budgetID string) (*models.Budget, error)
	UpdateBudget(ledgerID, budgetID string, update BudgetUpdate) (*models.Budget, error)
	DeleteBudget(ledgerID, budgetID string) error
	GetBudgetUsage(ledgerID, budgetID string, now time.Time) (*models.BudgetUsage, error)
	RolloverBudget(ledgerID, budgetID string) (*models.Budget, error)
	RolloverDueBudgets(now time.Time) (int, error)
}

// TagServicer defines the contract for transaction tags.
type TagServicer interface {
	CreateTag(ledgerID, name, color string) (*models.Tag, error)
	GetLedgerTags(ledgerID string) ([]models.Tag, error)
	GetTagByID(ledgerID, tagID string) (*models.Tag, error)
	UpdateTag(ledgerID, tagID string, name, color *string) (*models.Tag, error)
	DeleteTag(ledgerID, tagID string) error
}

// ExportRow is one transaction as seen by export collaborators.
type ExportRow struct {
	TransactionID string                 `json:"transaction_id"`
	Date          time.Time              `json:"date"`
	Type          models.TransactionType `json:"type"`
	Category      string                 `json:"category"`
	Account       string                 `json:"account"`
	Amount        decimal.Decimal        `json:"amount"`
	Note          string                 `json:"note"`
}

// ExportServicer defines the read-only export projection.
type ExportServicer interface {
	ExportRows(ledgerID string, from, to *time.Time) ([]ExportRow, error)
}

// AuthServicer verifies the owner's access key.
type AuthServicer interface {
	Authenticate(accessKey string) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ledgerID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
