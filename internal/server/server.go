// Package server wires the services and HTTP handlers into a gin router.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "pocketbook/internal/docs" // swagger docs
	"pocketbook/internal/events"
	"pocketbook/internal/handlers"
	"pocketbook/internal/middleware"
	"pocketbook/internal/preferences"
	"pocketbook/internal/services"
	"pocketbook/internal/writer"
)

// Deps are the shared resources the services are built on.
type Deps struct {
	DB                  *gorm.DB
	Queue               *writer.Queue
	Preferences         preferences.Store
	Publisher           events.Publisher
	AccessKeyHash       string
	RolloverConcurrency int
}

// Services holds one instance of every service.
type Services struct {
	Ledger      services.LedgerServicer
	Account     services.AccountServicer
	Category    services.CategoryServicer
	Transaction services.TransactionServicer
	Budget      services.BudgetServicer
	Tag         services.TagServicer
	Export      services.ExportServicer
	Auth        services.AuthServicer
	Audit       services.AuditServicer
}

// NewServices builds the services from deps.
func NewServices(deps Deps) *Services {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	prefs := deps.Preferences
	if prefs == nil {
		prefs = preferences.NewMemoryStore()
	}

	accountService := services.NewAccountService(deps.DB, deps.Queue, publisher)
	return &Services{
		Ledger:      services.NewLedgerService(deps.DB, deps.Queue, prefs, publisher),
		Account:     accountService,
		Category:    services.NewCategoryService(deps.DB, deps.Queue),
		Transaction: services.NewTransactionService(deps.DB, deps.Queue, accountService, publisher),
		Budget:      services.NewBudgetService(deps.DB, deps.Queue, publisher, deps.RolloverConcurrency),
		Tag:         services.NewTagService(deps.DB, deps.Queue),
		Export:      services.NewExportService(deps.DB),
		Auth:        services.NewAuthService(deps.AccessKeyHash),
		Audit:       services.NewAuditService(deps.DB),
	}
}

// RouterConfig holds the HTTP settings of NewRouter.
type RouterConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig, svc *Services) *gin.Engine {
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Audit, cfg.JWTSecret, cfg.TokenTTL)
	ledgerHandler := handlers.NewLedgerHandler(svc.Ledger, svc.Audit)
	accountHandler := handlers.NewAccountHandler(svc.Account, svc.Audit)
	categoryHandler := handlers.NewCategoryHandler(svc.Category, svc.Audit)
	transactionHandler := handlers.NewTransactionHandler(svc.Transaction, svc.Audit)
	budgetHandler := handlers.NewBudgetHandler(svc.Budget, svc.Audit)
	tagHandler := handlers.NewTagHandler(svc.Tag, svc.Audit)
	exportHandler := handlers.NewExportHandler(svc.Export)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	v1.POST("/auth/token", authHandler.IssueToken)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	ledgers := protected.Group("/ledgers")
	ledgers.POST("", ledgerHandler.CreateLedger)
	ledgers.GET("", ledgerHandler.GetLedgers)
	ledgers.GET("/current", ledgerHandler.GetCurrentLedger)
	ledgers.GET("/:ledgerID", ledgerHandler.GetLedger)
	ledgers.PUT("/:ledgerID", ledgerHandler.UpdateLedger)
	ledgers.DELETE("/:ledgerID", ledgerHandler.DeleteLedger)
	ledgers.POST("/:ledgerID/default", ledgerHandler.SetDefaultLedger)
	ledgers.POST("/:ledgerID/current", ledgerHandler.SetCurrentLedger)
	ledgers.GET("/:ledgerID/export", exportHandler.ExportTransactions)

	accounts := ledgers.Group("/:ledgerID/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.GetAccounts)
	accounts.GET("/summary", accountHandler.GetAccountSummary)
	accounts.GET("/:accountID", accountHandler.GetAccount)
	accounts.PUT("/:accountID", accountHandler.UpdateAccount)
	accounts.DELETE("/:accountID", accountHandler.DeleteAccount)
	accounts.PUT("/:accountID/archive", accountHandler.SetAccountArchived)
	accounts.POST("/:accountID/adjust", accountHandler.AdjustBalance)

	categories := ledgers.Group("/:ledgerID/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategoryTree)
	categories.GET("/:categoryID", categoryHandler.GetCategory)
	categories.PUT("/:categoryID", categoryHandler.UpdateCategory)
	categories.DELETE("/:categoryID", categoryHandler.DeleteCategory)
	categories.GET("/:categoryID/transactions", categoryHandler.GetCategoryTransactions)

	transactions := ledgers.Group("/:ledgerID/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetTransactions)
	transactions.GET("/:transactionID", transactionHandler.GetTransaction)
	transactions.PUT("/:transactionID", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:transactionID", transactionHandler.DeleteTransaction)
	transactions.POST("/:transactionID/apply", transactionHandler.ApplyTransaction)
	transactions.POST("/:transactionID/revert", transactionHandler.RevertTransaction)
	transactions.POST("/:transactionID/revise", transactionHandler.ReviseTransaction)

	budgets := ledgers.Group("/:ledgerID/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/:budgetID", budgetHandler.GetBudget)
	budgets.PUT("/:budgetID", budgetHandler.UpdateBudget)
	budgets.DELETE("/:budgetID", budgetHandler.DeleteBudget)
	budgets.GET("/:budgetID/usage", budgetHandler.GetBudgetUsage)
	budgets.POST("/:budgetID/rollover", budgetHandler.RolloverBudget)

	tags := ledgers.Group("/:ledgerID/tags")
	tags.POST("", tagHandler.CreateTag)
	tags.GET("", tagHandler.GetTags)
	tags.GET("/:tagID", tagHandler.GetTag)
	tags.PUT("/:tagID", tagHandler.UpdateTag)
	tags.DELETE("/:tagID", tagHandler.DeleteTag)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
