package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "teymia/internal/errors"
	"teymia/internal/models"
	"teymia/internal/pagination"
	"teymia/internal/services"
)

// TransactionHandler handles transaction-related requests. Writes go
// through the ledger; lists come from the report service.
type TransactionHandler struct {
	ledger        services.LedgerServicer
	reportService services.ReportServicer
	loc           *time.Location
	now           func() time.Time
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledger services.LedgerServicer, reportService services.ReportServicer, loc *time.Location) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, reportService: reportService, loc: loc, now: time.Now}
}

// CreateTransactionRequest represents the request payload for recording
// income or an expense. Amount is a positive magnitude.
type CreateTransactionRequest struct {
	AccountID  string                 `json:"account_id" binding:"required,uuid"`
	CategoryID string                 `json:"category_id" binding:"required,uuid"`
	Type       models.TransactionType `json:"type" binding:"required,oneof=income expense"`
	Amount     decimal.Decimal        `json:"amount"`
	Note       string                 `json:"note" binding:"max=500"`
	Date       *string                `json:"date"`
}

// CreateTransferRequest represents the request payload for creating a transfer
type CreateTransferRequest struct {
	FromAccountID string          `json:"from_account_id" binding:"required,uuid"`
	ToAccountID   string          `json:"to_account_id" binding:"required,uuid"`
	Amount        decimal.Decimal `json:"amount"`
	Note          string          `json:"note" binding:"max=500"`
	Date          *string         `json:"date"`
}

// UpdateTransactionRequest represents an edit. Omitted fields keep their
// current value.
type UpdateTransactionRequest struct {
	Type        *models.TransactionType `json:"type" binding:"omitempty,transaction_type"`
	Amount      *decimal.Decimal        `json:"amount"`
	AccountID   *string                 `json:"account_id" binding:"omitempty,uuid"`
	ToAccountID *string                 `json:"to_account_id" binding:"omitempty,uuid"`
	CategoryID  *string                 `json:"category_id" binding:"omitempty,uuid"`
	Note        *string                 `json:"note" binding:"omitempty,max=500"`
	Date        *string                 `json:"date"`
}

// SetHiddenRequest toggles a transaction's visibility.
type SetHiddenRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

// CreateTransaction handles POST /transactions.
// @Summary     Record income or an expense
// @Description Record an income or expense transaction and update the account balance
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} map[string]models.Transaction "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	date, err := h.date(req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	record := h.ledger.RecordExpense
	if req.Type == models.TransactionTypeIncome {
		record = h.ledger.RecordIncome
	}
	transaction, err := record(req.AccountID, req.CategoryID, req.Amount, req.Note, date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// CreateTransfer handles POST /transactions/transfer.
// @Summary     Record a transfer
// @Description Move an amount from one account to another
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransferRequest true "Transfer details"
// @Success     201 {object} map[string]models.Transaction "Transfer created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/transfer [post]
func (h *TransactionHandler) CreateTransfer(c *gin.Context) {
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	date, err := h.date(req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.ledger.RecordTransfer(req.FromAccountID, req.ToAccountID, req.Amount, req.Note, date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// ListTransactions handles GET /transactions. Hidden transactions are left
// out unless include_hidden=true.
// @Summary     List transactions
// @Description Get a paginated, filtered list of transactions
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       from_date   query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date     query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Param       type        query string false "Filter by type (income/expense/transfer)"
// @Param       account_id  query string false "Filter by account ID"
// @Param       category_id query string false "Filter by category ID"
// @Param       include_hidden query bool false "Include hidden transactions"
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	filter, err := parseTransactionFilter(c, h.loc)
	if err != nil {
		respondWithError(c, err)
		return
	}
	filter.IncludeHidden = c.Query("include_hidden") == "true"

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

// GetTransactionByID handles GET /transactions/:id.
// @Summary     Get transaction by ID
// @Description Get a specific transaction by ID
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} map[string]models.Transaction "Transaction details"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.ledger.GetTransactionByID(transactionID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransaction handles PUT /transactions/:id.
// @Summary     Update a transaction
// @Description Edit a transaction, reverting its old balance effect and applying the new one
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Fields to update"
// @Success     200 {object} map[string]models.Transaction "Transaction updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	update := services.TransactionUpdate{
		Type:        req.Type,
		Amount:      req.Amount,
		AccountID:   req.AccountID,
		ToAccountID: req.ToAccountID,
		CategoryID:  req.CategoryID,
		Note:        req.Note,
	}
	if req.Date != nil {
		date, err := parseFlexibleTime(*req.Date, h.loc)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		update.Date = &date
	}

	transaction, err := h.ledger.UpdateTransaction(transactionID, update)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction handles DELETE /transactions/:id.
// @Summary     Delete a transaction
// @Description Delete a transaction and revert its balance effect
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} map[string]string "Transaction deleted"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.ledger.DeleteTransaction(transactionID); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted successfully"})
}

// SetHidden handles POST /transactions/:id/hidden.
// @Summary     Hide or show a transaction
// @Description Toggle whether a transaction appears in default lists
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Param       request body SetHiddenRequest true "Visibility"
// @Success     200 {object} map[string]models.Transaction "Transaction updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id}/hidden [post]
func (h *TransactionHandler) SetHidden(c *gin.Context) {
	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetHiddenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	transaction, err := h.ledger.SetHidden(transactionID, *req.Hidden)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// date parses an optional request date, defaulting to now.
func (h *TransactionHandler) date(s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return h.now(), nil
	}
	t, err := parseFlexibleTime(*s, h.loc)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return t, nil
}
