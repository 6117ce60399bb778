package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	yahooChartURL    = "https://query1.finance.yahoo.com/v8/finance/chart"
	yahooUA          = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
	yahooConcurrency = 4
)

// yahooChartResponse is the subset of the v8 chart API response we read.
type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *yahooChartError   `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
}

type yahooChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// YahooRateSource fetches exchange rates from the Yahoo Finance chart API.
// Fiat pairs use "EURUSD=X" tickers; crypto assets use "BTC-USD".
type YahooRateSource struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	crypto     map[string]bool
}

// NewYahooRateSource creates a Yahoo source. cryptoCodes lists the codes
// that must be quoted with crypto tickers.
func NewYahooRateSource(httpClient *http.Client, baseURL string, cryptoCodes []string) *YahooRateSource {
	if baseURL == "" {
		baseURL = yahooChartURL
	}
	crypto := make(map[string]bool, len(cryptoCodes))
	for _, c := range cryptoCodes {
		crypto[strings.ToUpper(c)] = true
	}
	return &YahooRateSource{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		crypto:     crypto,
	}
}

// Name returns the provider's display name.
func (y *YahooRateSource) Name() string { return "Yahoo Finance" }

// ticker returns the Yahoo symbol quoting code in base.
func (y *YahooRateSource) ticker(base, code string) string {
	if y.crypto[code] {
		return code + "-" + base
	}
	return code + base + "=X"
}

// FetchRates fetches all pairs concurrently. Rates that succeed are returned
// even if others fail; failures are joined into the returned error.
func (y *YahooRateSource) FetchRates(ctx context.Context, base string, codes []string) (map[string]decimal.Decimal, error) {
	base = strings.ToUpper(base)

	var (
		mu    sync.Mutex
		rates = make(map[string]decimal.Decimal, len(codes))
		errs  []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(yahooConcurrency)
	for _, code := range codes {
		code = strings.ToUpper(code)
		if code == base {
			mu.Lock()
			rates[code] = decimal.NewFromInt(1)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			rate, err := y.fetchRate(gctx, y.ticker(base, code))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, &PairError{Base: base, Code: code, Err: err})
				return nil
			}
			rates[code] = rate
			return nil
		})
	}
	_ = g.Wait()

	return rates, errors.Join(errs...)
}

// fetchRate fetches the last price for a single ticker.
func (y *YahooRateSource) fetchRate(ctx context.Context, ticker string) (decimal.Decimal, error) {
	url := y.baseURL + "/" + ticker + "?interval=1d&range=1d"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("building forex request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUA)

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("forex http request for %s: %w", ticker, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("forex request for %s: unexpected status %d", ticker, resp.StatusCode)
	}

	var chartResp yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartResp); err != nil {
		return decimal.Zero, fmt.Errorf("decoding forex response for %s: %w", ticker, err)
	}

	if chartResp.Chart.Error != nil {
		return decimal.Zero, fmt.Errorf("forex chart error for %s: %s: %s", ticker, chartResp.Chart.Error.Code, chartResp.Chart.Error.Description)
	}

	if len(chartResp.Chart.Result) == 0 {
		return decimal.Zero, fmt.Errorf("no forex results for %s", ticker)
	}

	price := chartResp.Chart.Result[0].Meta.RegularMarketPrice
	if price <= 0 {
		return decimal.Zero, fmt.Errorf("invalid forex rate for %s: %f", ticker, price)
	}

	return decimal.NewFromFloat(price), nil
}
