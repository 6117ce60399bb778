package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"teymia/internal/pagination"
	"teymia/internal/services"
)

// AccountHandler handles account-related requests.
type AccountHandler struct {
	accountService services.AccountServicer
	reportService  services.ReportServicer
	loc            *time.Location
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.AccountServicer, reportService services.ReportServicer, loc *time.Location) *AccountHandler {
	return &AccountHandler{accountService: accountService, reportService: reportService, loc: loc}
}

// CreateAccountRequest represents the request payload for opening an account
type CreateAccountRequest struct {
	Name           string          `json:"name" binding:"required,min=1,max=100"`
	CurrencyCode   string          `json:"currency_code" binding:"required,currency_code"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Icon           string          `json:"icon" binding:"max=50"`
	Color          string          `json:"color" binding:"omitempty,hex_color"`
}

// UpdateAccountRequest represents the request payload for updating an account.
type UpdateAccountRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=100"`
	Icon  *string `json:"icon" binding:"omitempty,max=50"`
	Color *string `json:"color" binding:"omitempty,hex_color"`
}

// ReorderAccountsRequest lists account IDs in their new display order.
type ReorderAccountsRequest struct {
	AccountIDs []string `json:"account_ids" binding:"required,min=1,dive,uuid"`
}

// CreateAccount handles POST /accounts.
// @Summary     Open an account
// @Description Open an account in a catalog currency with an optional initial balance
// @Tags        accounts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateAccountRequest true "Account details"
// @Success     201 {object} map[string]models.Account "Account created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts [post]
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	account, err := h.accountService.CreateAccount(services.AccountInput{
		Name:           req.Name,
		CurrencyCode:   req.CurrencyCode,
		InitialBalance: req.InitialBalance,
		Icon:           req.Icon,
		Color:          req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// ListAccounts handles GET /accounts.
// @Summary     List accounts
// @Description List every account in display order
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string][]models.Account "Accounts"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts [get]
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountService.ListAccounts()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// GetAccountByID handles GET /accounts/:id.
// @Summary     Get account by ID
// @Description Get a specific account by ID
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Account ID"
// @Success     200 {object} map[string]models.Account "Account details"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id} [get]
func (h *AccountHandler) GetAccountByID(c *gin.Context) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.accountService.GetAccountByID(accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// UpdateAccount handles PUT /accounts/:id.
// @Summary     Update an account
// @Description Update an account's name, icon or color
// @Tags        accounts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Account ID"
// @Param       request body UpdateAccountRequest true "Fields to update"
// @Success     200 {object} map[string]models.Account "Account updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id} [put]
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	account, err := h.accountService.UpdateAccount(accountID, services.AccountUpdateFields{
		Name:  req.Name,
		Icon:  req.Icon,
		Color: req.Color,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// ReorderAccounts handles PUT /accounts/reorder.
// @Summary     Reorder accounts
// @Description Set the display order of accounts
// @Tags        accounts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ReorderAccountsRequest true "Account IDs in display order"
// @Success     200 {object} map[string][]models.Account "Accounts in new order"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/reorder [put]
func (h *AccountHandler) ReorderAccounts(c *gin.Context) {
	var req ReorderAccountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	accounts, err := h.accountService.ReorderAccounts(req.AccountIDs)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// SetDefaultAccount handles POST /accounts/:id/default.
// @Summary     Set the default account
// @Description Mark an account as the default for new transactions
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Account ID"
// @Success     200 {object} map[string]models.Account "Default account"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/default [post]
func (h *AccountHandler) SetDefaultAccount(c *gin.Context) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.accountService.SetDefaultAccount(accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// DeleteAccount handles DELETE /accounts/:id. Every transaction touching the
// account goes with it.
// @Summary     Delete an account
// @Description Delete an account and every transaction touching it, reverting transfers on the other side
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Account ID"
// @Success     200 {object} map[string]string "Account deleted"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id} [delete]
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.accountService.DeleteAccount(accountID); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

// GetAccountTransactions handles GET /accounts/:id/transactions. Account
// history includes hidden transactions.
// @Summary     Get account transactions
// @Description Get a paginated history of an account, hidden transactions included
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Account ID"
// @Param       from_date   query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date     query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Param       type        query string false "Filter by type (income/expense/transfer)"
// @Param       category_id query string false "Filter by category ID"
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/transactions [get]
func (h *AccountHandler) GetAccountTransactions(c *gin.Context) {
	filter, ok := h.accountFilter(c)
	if !ok {
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	result, err := h.reportService.ListTransactions(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAccountDays handles GET /accounts/:id/days: the account's history
// grouped by day with per-day totals in the account's currency.
// @Summary     Get account days
// @Description Get an account's history grouped by day with totals in the account currency
// @Tags        accounts
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Account ID"
// @Param       from_date   query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date     query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Param       type        query string false "Filter by type (income/expense/transfer)"
// @Param       category_id query string false "Filter by category ID"
// @Success     200 {object} map[string][]services.DaySummary "Day summaries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/days [get]
func (h *AccountHandler) GetAccountDays(c *gin.Context) {
	filter, ok := h.accountFilter(c)
	if !ok {
		return
	}

	days, err := h.reportService.GetDaySummaries(filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

func (h *AccountHandler) accountFilter(c *gin.Context) (services.TransactionFilter, bool) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return services.TransactionFilter{}, false
	}

	filter, err := parseTransactionFilter(c, h.loc)
	if err != nil {
		respondWithError(c, err)
		return filter, false
	}
	filter.AccountID = &accountID
	filter.IncludeHidden = true
	return filter, true
}
