// Package server assembles services, handlers and middleware into the HTTP
// application.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"teymia/internal/currency"
	_ "teymia/internal/docs" // Import swagger docs
	apperrors "teymia/internal/errors"
	"teymia/internal/handlers"
	"teymia/internal/middleware"
	"teymia/internal/services"
)

// Options holds everything the application needs from the outside.
type Options struct {
	DB             *gorm.DB
	Converter      *currency.Converter
	Issuer         *middleware.TokenIssuer
	APIKey         string
	Location       *time.Location
	RequestTimeout time.Duration
}

// App is the wired application.
type App struct {
	Router     *gin.Engine
	Currencies services.CurrencyServicer
}

// New wires services and handlers and registers every route.
func New(opts Options) *App {
	db := opts.DB
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	// Services
	auditService := services.NewAuditService()
	ledger := services.NewLedgerService(db, auditService)
	accountService := services.NewAccountService(db, ledger, auditService)
	categoryService := services.NewCategoryService(db)
	currencyService := services.NewCurrencyService(db, opts.Converter)
	budgetService := services.NewBudgetService(db, opts.Converter, loc)
	reportService := services.NewReportService(db, opts.Converter, currencyService, loc)

	// Handlers
	authHandler := handlers.NewAuthHandler(opts.Issuer)
	accountHandler := handlers.NewAccountHandler(accountService, reportService, loc)
	transactionHandler := handlers.NewTransactionHandler(ledger, reportService, loc)
	categoryHandler := handlers.NewCategoryHandler(categoryService, reportService, loc)
	currencyHandler := handlers.NewCurrencyHandler(currencyService, opts.RequestTimeout)
	budgetHandler := handlers.NewBudgetHandler(budgetService)
	reportHandler := handlers.NewReportHandler(reportService, loc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.ErrNotFound)
	})

	v1 := router.Group("/api/v1")

	// Token exchange
	v1.POST("/auth/token", middleware.APIKeyMiddleware(opts.APIKey), authHandler.IssueToken)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(opts.Issuer))

	accounts := protected.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.ListAccounts)
	accounts.PUT("/reorder", accountHandler.ReorderAccounts)
	accounts.GET("/:id", accountHandler.GetAccountByID)
	accounts.PUT("/:id", accountHandler.UpdateAccount)
	accounts.DELETE("/:id", accountHandler.DeleteAccount)
	accounts.POST("/:id/default", accountHandler.SetDefaultAccount)
	accounts.GET("/:id/transactions", accountHandler.GetAccountTransactions)
	accounts.GET("/:id/days", accountHandler.GetAccountDays)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.POST("/transfer", transactionHandler.CreateTransfer)
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)
	transactions.POST("/:id/hidden", transactionHandler.SetHidden)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.ListCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)
	categories.GET("/:id/transactions", categoryHandler.GetCategoryTransactions)

	currencies := protected.Group("/currencies")
	currencies.GET("", currencyHandler.ListCurrencies)
	currencies.GET("/search", currencyHandler.SearchCurrencies)
	currencies.GET("/convert", currencyHandler.Convert)
	currencies.GET("/rates", currencyHandler.GetRates)
	currencies.POST("/refresh", currencyHandler.RefreshRates)
	currencies.GET("/default", currencyHandler.GetDefaultCurrency)
	currencies.PUT("/default", currencyHandler.SetDefaultCurrency)
	currencies.GET("/:code", currencyHandler.GetCurrency)

	budgets := protected.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)
	budgets.GET("/:id/progress", budgetHandler.GetBudgetProgress)

	reports := protected.Group("/reports")
	reports.GET("/days", reportHandler.GetDaySummaries)
	reports.GET("/categories", reportHandler.GetCategorySummary)

	return &App{Router: router, Currencies: currencyService}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
