package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

// chartResponse builds a v8 chart JSON response for a single symbol.
func chartResponse(symbol string, price float64) yahooChartResponse {
	var resp yahooChartResponse
	var result yahooChartResult
	result.Meta.Symbol = symbol
	result.Meta.RegularMarketPrice = price
	resp.Chart.Result = []yahooChartResult{result}
	return resp
}

// chartErrorResponse builds a v8 chart error JSON response.
func chartErrorResponse(code, description string) yahooChartResponse {
	var resp yahooChartResponse
	resp.Chart.Error = &yahooChartError{Code: code, Description: description}
	return resp
}

// newChartMockServer serves chart responses per ticker. Tickers not in the
// map get a chart error.
func newChartMockServer(rateMap map[string]float64, hits *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		ticker := strings.TrimPrefix(r.URL.Path, "/")
		w.Header().Set("Content-Type", "application/json")

		rate, ok := rateMap[ticker]
		if !ok {
			_ = json.NewEncoder(w).Encode(chartErrorResponse("Not Found", "No data found for "+ticker))
			return
		}
		_ = json.NewEncoder(w).Encode(chartResponse(ticker, rate))
	}))
}

func TestYahooRateSource_Ticker(t *testing.T) {
	y := NewYahooRateSource(http.DefaultClient, "", []string{"btc"})

	tests := []struct {
		base, code, want string
	}{
		{"USD", "EUR", "EURUSD=X"},
		{"EUR", "JPY", "JPYEUR=X"},
		{"USD", "BTC", "BTC-USD"},
	}
	for _, tt := range tests {
		if got := y.ticker(tt.base, tt.code); got != tt.want {
			t.Errorf("ticker(%q, %q) = %q, want %q", tt.base, tt.code, got, tt.want)
		}
	}
}

func TestYahooRateSource_FetchRates_Success(t *testing.T) {
	server := newChartMockServer(map[string]float64{
		"EURUSD=X": 1.08,
		"GBPUSD=X": 1.27,
		"BTC-USD":  65000,
	}, nil)
	defer server.Close()

	y := NewYahooRateSource(server.Client(), server.URL, []string{"BTC"})

	rates, err := y.FetchRates(context.Background(), "usd", []string{"EUR", "gbp", "BTC", "USD"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{"EUR": "1.08", "GBP": "1.27", "BTC": "65000", "USD": "1"}
	if len(rates) != len(want) {
		t.Fatalf("got %d rates, want %d", len(rates), len(want))
	}
	for code, w := range want {
		got, ok := rates[code]
		if !ok {
			t.Errorf("missing rate for %s", code)
			continue
		}
		if !got.Equal(decimal.RequireFromString(w)) {
			t.Errorf("rate[%s] = %s, want %s", code, got, w)
		}
	}
}

func TestYahooRateSource_FetchRates_BaseNotRequested(t *testing.T) {
	var hits atomic.Int32
	server := newChartMockServer(map[string]float64{}, &hits)
	defer server.Close()

	y := NewYahooRateSource(server.Client(), server.URL, nil)

	rates, err := y.FetchRates(context.Background(), "USD", []string{"USD"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rates["USD"].Equal(decimal.NewFromInt(1)) {
		t.Errorf("rate[USD] = %s, want 1", rates["USD"])
	}
	if hits.Load() != 0 {
		t.Errorf("expected no HTTP calls for the base currency, got %d", hits.Load())
	}
}

func TestYahooRateSource_FetchRates_PartialFailure(t *testing.T) {
	server := newChartMockServer(map[string]float64{
		"EURUSD=X": 1.08,
	}, nil)
	defer server.Close()

	y := NewYahooRateSource(server.Client(), server.URL, nil)

	rates, err := y.FetchRates(context.Background(), "USD", []string{"EUR", "XYZ"})
	if err == nil {
		t.Fatal("expected error for failed pair")
	}

	var pairErr *PairError
	if !errors.As(err, &pairErr) {
		t.Fatalf("expected PairError, got %T", err)
	}
	if pairErr.Code != "XYZ" || pairErr.Base != "USD" {
		t.Errorf("PairError = %s/%s, want XYZ/USD", pairErr.Code, pairErr.Base)
	}

	if len(rates) != 1 {
		t.Fatalf("got %d rates, want 1", len(rates))
	}
	if !rates["EUR"].Equal(decimal.RequireFromString("1.08")) {
		t.Errorf("rate[EUR] = %s, want 1.08", rates["EUR"])
	}
}

func TestYahooRateSource_FetchRates_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	y := NewYahooRateSource(server.Client(), server.URL, nil)

	rates, err := y.FetchRates(context.Background(), "USD", []string{"EUR"})
	if err == nil {
		t.Fatal("expected error for HTTP 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %q, want it to mention status 429", err)
	}
	if len(rates) != 0 {
		t.Errorf("got %d rates, want 0", len(rates))
	}
}

func TestYahooRateSource_FetchRates_ZeroPrice(t *testing.T) {
	server := newChartMockServer(map[string]float64{"EURUSD=X": 0}, nil)
	defer server.Close()

	y := NewYahooRateSource(server.Client(), server.URL, nil)

	_, err := y.FetchRates(context.Background(), "USD", []string{"EUR"})
	if err == nil {
		t.Fatal("expected error for zero rate")
	}
}

func TestYahooRateSource_FetchRates_Concurrent(t *testing.T) {
	var hits atomic.Int32
	rateMap := map[string]float64{}
	codes := []string{"EUR", "GBP", "JPY", "CHF", "CAD", "AUD", "SGD", "MYR"}
	for _, c := range codes {
		rateMap[c+"USD=X"] = 0.5
	}
	server := newChartMockServer(rateMap, &hits)
	defer server.Close()

	y := NewYahooRateSource(server.Client(), server.URL, nil)

	rates, err := y.FetchRates(context.Background(), "USD", codes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rates) != len(codes) {
		t.Errorf("got %d rates, want %d", len(rates), len(codes))
	}
	if int(hits.Load()) != len(codes) {
		t.Errorf("server hit %d times, want %d", hits.Load(), len(codes))
	}
}

func TestYahooRateSource_Name(t *testing.T) {
	y := NewYahooRateSource(http.DefaultClient, "", nil)
	if y.Name() != "Yahoo Finance" {
		t.Errorf("Name() = %q, want %q", y.Name(), "Yahoo Finance")
	}
}
