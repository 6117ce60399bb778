package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "teymia/internal/errors"
	"teymia/internal/models"
	"teymia/internal/services"
)

// CurrencyHandler serves the currency catalog, the default currency and
// rate refreshes.
type CurrencyHandler struct {
	currencyService services.CurrencyServicer
	refreshTimeout  time.Duration
}

// NewCurrencyHandler creates a new CurrencyHandler. Synchronous refreshes
// are bounded by refreshTimeout.
func NewCurrencyHandler(currencyService services.CurrencyServicer, refreshTimeout time.Duration) *CurrencyHandler {
	return &CurrencyHandler{currencyService: currencyService, refreshTimeout: refreshTimeout}
}

// SetDefaultCurrencyRequest selects the default currency.
type SetDefaultCurrencyRequest struct {
	CurrencyCode string `json:"currency_code" binding:"required,currency_code"`
}

// ListCurrencies handles GET /currencies, optionally filtered by ?kind=.
// @Summary     List currencies
// @Description List the currency catalog
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Param       kind query string false "Filter by kind (fiat/crypto)"
// @Success     200 {object} map[string][]models.Currency "Currencies"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies [get]
func (h *CurrencyHandler) ListCurrencies(c *gin.Context) {
	kind, err := parseKind(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	currencies, err := h.currencyService.ListCurrencies(kind)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currencies": currencies})
}

// SearchCurrencies handles GET /currencies/search?q=.
// @Summary     Search currencies
// @Description Search the catalog by code or name, exact code match first
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Param       q    query string false "Search text"
// @Param       kind query string false "Filter by kind (fiat/crypto)"
// @Success     200 {object} map[string][]models.Currency "Matching currencies"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/search [get]
func (h *CurrencyHandler) SearchCurrencies(c *gin.Context) {
	kind, err := parseKind(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	currencies, err := h.currencyService.SearchCurrencies(c.Query("q"), kind)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currencies": currencies})
}

// GetCurrency handles GET /currencies/:code.
// @Summary     Get currency by code
// @Description Get a catalog currency by its code
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Param       code path string true "Currency code"
// @Success     200 {object} map[string]models.Currency "Currency details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Currency not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/{code} [get]
func (h *CurrencyHandler) GetCurrency(c *gin.Context) {
	cur, err := h.currencyService.GetCurrency(c.Param("code"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": cur})
}

// GetDefaultCurrency handles GET /currencies/default.
// @Summary     Get the default currency
// @Description Get the currency used for app-wide totals
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]models.Currency "Default currency"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/default [get]
func (h *CurrencyHandler) GetDefaultCurrency(c *gin.Context) {
	cur, err := h.currencyService.GetDefaultCurrency()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": cur})
}

// SetDefaultCurrency handles PUT /currencies/default. Aggregates are shown
// in the new currency, so a rate refresh is started in the background.
// @Summary     Set the default currency
// @Description Change the currency used for app-wide totals and refresh rates in the background
// @Tags        currencies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body SetDefaultCurrencyRequest true "Currency code"
// @Success     200 {object} map[string]models.Currency "Default currency"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/default [put]
func (h *CurrencyHandler) SetDefaultCurrency(c *gin.Context) {
	var req SetDefaultCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, invalidInput(err))
		return
	}

	cur, err := h.currencyService.SetDefaultCurrency(req.CurrencyCode)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.currencyService.RefreshRatesAsync(false)

	c.JSON(http.StatusOK, gin.H{"currency": cur})
}

// Convert handles GET /currencies/convert?amount=&from=&to=.
// @Summary     Convert an amount
// @Description Convert an amount between currencies using the cached rates
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Param       amount query string true "Amount"
// @Param       from   query string true "Source currency code"
// @Param       to     query string true "Target currency code"
// @Success     200 {object} map[string]services.Conversion "Conversion"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/convert [get]
func (h *CurrencyHandler) Convert(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid amount"))
		return
	}
	from, to := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "from and to are required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversion": h.currencyService.Convert(amount, from, to)})
}

// GetRates handles GET /currencies/rates.
// @Summary     Get cached rates
// @Description Get the cached rate table and when it was last refreshed
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]services.RateStatus "Rate table"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/rates [get]
func (h *CurrencyHandler) GetRates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rates": h.currencyService.RateStatus()})
}

// RefreshRates handles POST /currencies/refresh. With ?async=true the
// refresh runs in the background and 202 is returned at once.
// @Summary     Refresh rates
// @Description Refresh rates for every account currency against the default currency
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Param       force query bool false "Refresh even when rates are fresh"
// @Param       async query bool false "Run in the background"
// @Success     200 {object} map[string]services.RateStatus "Rate table"
// @Success     202 {object} map[string]string "Refresh started"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies/refresh [post]
func (h *CurrencyHandler) RefreshRates(c *gin.Context) {
	force := c.Query("force") == "true"

	if c.Query("async") == "true" {
		h.currencyService.RefreshRatesAsync(force)
		c.JSON(http.StatusAccepted, gin.H{"message": "Rate refresh started"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.refreshTimeout)
	defer cancel()

	status, err := h.currencyService.RefreshRates(ctx, force)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rates": status})
}

func parseKind(c *gin.Context) (*models.CurrencyKind, error) {
	v := c.Query("kind")
	if v == "" {
		return nil, nil
	}
	kind := models.CurrencyKind(v)
	if kind != models.CurrencyKindFiat && kind != models.CurrencyKindCrypto {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid kind, must be fiat or crypto")
	}
	return &kind, nil
}
