package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "teymia/internal/errors"
	"teymia/internal/models"
	"teymia/internal/query"
	"teymia/internal/services"
)

// ReportHandler serves grouped and aggregated views of the ledger.
type ReportHandler struct {
	reportService services.ReportServicer
	loc           *time.Location
	now           func() time.Time
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.ReportServicer, loc *time.Location) *ReportHandler {
	return &ReportHandler{reportService: reportService, loc: loc, now: time.Now}
}

// GetDaySummaries handles GET /reports/days.
// @Summary     Get day summaries
// @Description Group transactions by day with totals in the default currency, transfers excluded
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       from_date   query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date     query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Param       type        query string false "Filter by type (income/expense/transfer)"
// @Param       account_id  query string false "Filter by account ID"
// @Param       category_id query string false "Filter by category ID"
// @Param       period      query string false "Current weekly/monthly/yearly window, not combined with dates"
// @Success     200 {object} map[string][]services.DaySummary "Day summaries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/days [get]
func (h *ReportHandler) GetDaySummaries(c *gin.Context) {
	filter, err := h.filter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	days, err := h.reportService.GetDaySummaries(filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

// GetCategorySummary handles GET /reports/categories.
// @Summary     Get category summary
// @Description Sum transactions per category in the default currency, largest first
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       from_date   query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to_date     query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Param       type        query string false "Filter by type (income/expense/transfer)"
// @Param       account_id  query string false "Filter by account ID"
// @Param       category_id query string false "Filter by category ID"
// @Param       period      query string false "Current weekly/monthly/yearly window, not combined with dates"
// @Success     200 {object} map[string]services.CategorySummary "Category summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/categories [get]
func (h *ReportHandler) GetCategorySummary(c *gin.Context) {
	filter, err := h.filter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.reportService.GetCategorySummary(filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// filter reads the usual transaction filter. ?period=weekly|monthly|yearly
// selects the window containing today and cannot be combined with dates.
func (h *ReportHandler) filter(c *gin.Context) (services.TransactionFilter, error) {
	filter, err := parseTransactionFilter(c, h.loc)
	if err != nil {
		return filter, err
	}

	v := c.Query("period")
	if v == "" {
		return filter, nil
	}
	if filter.FromDate != nil || filter.ToDate != nil {
		return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "period cannot be combined with from_date or to_date")
	}

	period := models.BudgetPeriod(v)
	switch period {
	case models.BudgetPeriodWeekly, models.BudgetPeriodMonthly, models.BudgetPeriodYearly:
	default:
		return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid period, must be weekly, monthly or yearly")
	}

	start, end := query.PeriodRange(period, h.now().In(h.loc))
	filter.FromDate, filter.ToDate = &start, &end
	return filter, nil
}
