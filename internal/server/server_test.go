package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"teymia/internal/currency"
	"teymia/internal/logger"
	"teymia/internal/middleware"
	"teymia/internal/models"
	"teymia/internal/provider"
	"teymia/internal/services"
	"teymia/internal/testutil"
	"teymia/internal/validator"
)

const testAPIKey = "test-api-key"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
	os.Exit(m.Run())
}

// testApp holds the full application stack over an isolated in-memory store.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	token  string
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	if err := services.NewBootstrapper(db, "USD").Seed(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	rates := map[string]decimal.Decimal{"EUR": decimal.RequireFromString("1.1")}
	converter := currency.NewConverter(provider.NewStaticRateSource("USD", rates), "USD", time.Hour)
	converter.SetRates("USD", rates)

	app := New(Options{
		DB:             db,
		Converter:      converter,
		Issuer:         middleware.NewTokenIssuer("integration-secret", time.Hour),
		APIKey:         testAPIKey,
		Location:       time.UTC,
		RequestTimeout: time.Second,
	})
	return &testApp{DB: db, Router: app.Router}
}

// request makes an HTTP request with the app's bearer token, if any.
func (app *testApp) request(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if app.token != "" {
		req.Header.Set("Authorization", "Bearer "+app.token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// login exchanges the API key for a token and keeps it for later requests.
func (app *testApp) login(t *testing.T) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/auth/token", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("token exchange failed: %d %s", rec.Code, rec.Body.String())
	}
	app.token = parseJSON(t, rec)["token"].(string)
}

// mustStatus fails unless rec has the wanted status and returns the body.
func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) map[string]interface{} {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertAmount(t *testing.T, label string, got interface{}, want string) {
	t.Helper()
	s, ok := got.(string)
	if !ok {
		t.Fatalf("%s: expected decimal string, got %T %v", label, got, got)
	}
	if !decimal.RequireFromString(s).Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s: expected %s, got %s", label, want, s)
	}
}

func (app *testApp) categoryID(t *testing.T, name string) string {
	t.Helper()
	var c models.Category
	if err := app.DB.Where("name = ?", name).First(&c).Error; err != nil {
		t.Fatalf("category %q not seeded: %v", name, err)
	}
	return c.ID
}

func (app *testApp) mainAccountID(t *testing.T) string {
	t.Helper()
	var a models.Account
	if err := app.DB.Where("is_default = ?", true).First(&a).Error; err != nil {
		t.Fatalf("main account not seeded: %v", err)
	}
	return a.ID
}

func (app *testApp) balance(t *testing.T, accountID string) interface{} {
	t.Helper()
	body := mustStatus(t, app.request("GET", "/api/v1/accounts/"+accountID, ""), http.StatusOK)
	return body["account"].(map[string]interface{})["balance"]
}

func TestAuthFlow(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/v1/accounts", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest("POST", "/api/v1/auth/token", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", rec.Code)
	}

	app.login(t)
	body := mustStatus(t, app.request("GET", "/api/v1/accounts", ""), http.StatusOK)
	accounts := body["accounts"].([]interface{})
	if len(accounts) != 1 || accounts[0].(map[string]interface{})["name"] != services.MainAccountName {
		t.Errorf("expected the seeded main account, got %v", accounts)
	}

	mustStatus(t, app.request("GET", "/api/health", ""), http.StatusOK)

	body = mustStatus(t, app.request("GET", "/api/v1/nope", ""), http.StatusNotFound)
	if body["error"].(map[string]interface{})["code"] != "NOT_FOUND" {
		t.Errorf("unexpected 404 body %v", body)
	}
}

func TestLedgerFlow_RecordEditDelete(t *testing.T) {
	app := setupApp(t)
	app.login(t)

	mainID := app.mainAccountID(t)
	salaryID := app.categoryID(t, "Salary")
	groceriesID := app.categoryID(t, "Groceries")

	// Step 1: open a EUR account with an opening balance.
	body := mustStatus(t, app.request("POST", "/api/v1/accounts",
		`{"name":"Travel","currency_code":"EUR","initial_balance":"20"}`), http.StatusCreated)
	travel := body["account"].(map[string]interface{})
	travelID := travel["id"].(string)
	assertAmount(t, "travel opening", travel["balance"], "20")

	// Step 2: income, expense and a transfer.
	mustStatus(t, app.request("POST", "/api/v1/transactions", fmt.Sprintf(
		`{"account_id":%q,"category_id":%q,"type":"income","amount":"1000","date":"2024-03-05"}`, mainID, salaryID)), http.StatusCreated)

	body = mustStatus(t, app.request("POST", "/api/v1/transactions", fmt.Sprintf(
		`{"account_id":%q,"category_id":%q,"type":"expense","amount":"30","note":"market","date":"2024-03-05"}`, mainID, groceriesID)), http.StatusCreated)
	expense := body["transaction"].(map[string]interface{})
	assertAmount(t, "stored expense", expense["amount"], "-30")

	body = mustStatus(t, app.request("POST", "/api/v1/transactions/transfer", fmt.Sprintf(
		`{"from_account_id":%q,"to_account_id":%q,"amount":"100","date":"2024-03-06"}`, mainID, travelID)), http.StatusCreated)
	transferID := body["transaction"].(map[string]interface{})["id"].(string)

	assertAmount(t, "main after writes", app.balance(t, mainID), "870")
	assertAmount(t, "travel after transfer", app.balance(t, travelID), "120")

	// Step 3: editing the expense reverts then reapplies it.
	mustStatus(t, app.request("PUT", "/api/v1/transactions/"+expense["id"].(string), `{"amount":"50"}`), http.StatusOK)
	assertAmount(t, "main after edit", app.balance(t, mainID), "850")

	// Step 4: deleting the transfer restores both sides.
	mustStatus(t, app.request("DELETE", "/api/v1/transactions/"+transferID, ""), http.StatusOK)
	assertAmount(t, "main after delete", app.balance(t, mainID), "950")
	assertAmount(t, "travel after delete", app.balance(t, travelID), "20")

	// Step 5: the March category summary reflects the edit.
	body = mustStatus(t, app.request("GET", "/api/v1/reports/categories?from_date=2024-03-01&to_date=2024-03-31", ""), http.StatusOK)
	summary := body["summary"].(map[string]interface{})
	assertAmount(t, "income", summary["income"], "1000")
	assertAmount(t, "expense", summary["expense"], "50")
	if summary["currency_code"] != "USD" {
		t.Errorf("expected USD summary, got %v", summary["currency_code"])
	}

	// Step 6: the account history lists both remaining transactions.
	body = mustStatus(t, app.request("GET", "/api/v1/accounts/"+mainID+"/transactions", ""), http.StatusOK)
	if body["total_items"].(float64) != 2 {
		t.Errorf("expected 2 transactions, got %v", body["total_items"])
	}
}

func TestLedgerFlow_HiddenAndTransferErrors(t *testing.T) {
	app := setupApp(t)
	app.login(t)

	mainID := app.mainAccountID(t)
	groceriesID := app.categoryID(t, "Groceries")

	body := mustStatus(t, app.request("POST", "/api/v1/transactions", fmt.Sprintf(
		`{"account_id":%q,"category_id":%q,"type":"expense","amount":"12"}`, mainID, groceriesID)), http.StatusCreated)
	txID := body["transaction"].(map[string]interface{})["id"].(string)

	mustStatus(t, app.request("POST", "/api/v1/transactions/"+txID+"/hidden", `{"hidden":true}`), http.StatusOK)

	body = mustStatus(t, app.request("GET", "/api/v1/transactions", ""), http.StatusOK)
	if body["total_items"].(float64) != 0 {
		t.Errorf("hidden transaction should not be listed, got %v", body["total_items"])
	}
	body = mustStatus(t, app.request("GET", "/api/v1/transactions?include_hidden=true", ""), http.StatusOK)
	if body["total_items"].(float64) != 1 {
		t.Errorf("expected hidden transaction with include_hidden, got %v", body["total_items"])
	}
	// Hidden transactions still count toward the balance.
	assertAmount(t, "main balance", app.balance(t, mainID), "-12")

	body = mustStatus(t, app.request("POST", "/api/v1/transactions/transfer", fmt.Sprintf(
		`{"from_account_id":%q,"to_account_id":%q,"amount":"5"}`, mainID, mainID)), http.StatusBadRequest)
	if body["error"].(map[string]interface{})["code"] != "SAME_ACCOUNT_TRANSFER" {
		t.Errorf("unexpected error %v", body)
	}
}

func TestBudgetFlow_GroupIncludesChildren(t *testing.T) {
	app := setupApp(t)
	app.login(t)

	mainID := app.mainAccountID(t)
	foodID := app.categoryID(t, "Food & Drinks")
	coffeeID := app.categoryID(t, "Coffee")

	body := mustStatus(t, app.request("POST", "/api/v1/budgets", fmt.Sprintf(
		`{"name":"Food","category_id":%q,"currency_code":"USD","limit_amount":"200","period":"monthly"}`, foodID)), http.StatusCreated)
	budgetID := body["budget"].(map[string]interface{})["id"].(string)

	mustStatus(t, app.request("POST", "/api/v1/transactions", fmt.Sprintf(
		`{"account_id":%q,"category_id":%q,"type":"expense","amount":"40"}`, mainID, coffeeID)), http.StatusCreated)

	body = mustStatus(t, app.request("GET", "/api/v1/budgets/"+budgetID+"/progress", ""), http.StatusOK)
	progress := body["progress"].(map[string]interface{})
	assertAmount(t, "spent", progress["spent"], "40")
	assertAmount(t, "remaining", progress["remaining"], "160")
	if progress["percentage"].(float64) != 20 {
		t.Errorf("expected 20%%, got %v", progress["percentage"])
	}

	// Seeded categories are protected.
	body = mustStatus(t, app.request("DELETE", "/api/v1/categories/"+foodID, ""), http.StatusConflict)
	if body["error"].(map[string]interface{})["code"] != "CATEGORY_PROTECTED" {
		t.Errorf("unexpected error %v", body)
	}
}

func TestCurrencyFlow(t *testing.T) {
	app := setupApp(t)
	app.login(t)

	body := mustStatus(t, app.request("GET", "/api/v1/currencies/convert?amount=10&from=EUR&to=USD", ""), http.StatusOK)
	conversion := body["conversion"].(map[string]interface{})
	assertAmount(t, "converted", conversion["result"], "11")

	body = mustStatus(t, app.request("GET", "/api/v1/currencies/default", ""), http.StatusOK)
	if body["currency"].(map[string]interface{})["code"] != "USD" {
		t.Errorf("expected USD default, got %v", body)
	}

	mustStatus(t, app.request("PUT", "/api/v1/currencies/default", `{"currency_code":"EUR"}`), http.StatusOK)
	body = mustStatus(t, app.request("GET", "/api/v1/currencies/default", ""), http.StatusOK)
	if body["currency"].(map[string]interface{})["code"] != "EUR" {
		t.Errorf("expected EUR default, got %v", body)
	}
}

func TestSwaggerDocs_CoverEveryRoute(t *testing.T) {
	app := setupApp(t)

	body := mustStatus(t, app.request("GET", "/swagger/doc.json", ""), http.StatusOK)
	if body["basePath"] != "/api/v1" {
		t.Errorf("expected basePath /api/v1, got %v", body["basePath"])
	}
	paths := body["paths"].(map[string]interface{})

	for _, route := range app.Router.Routes() {
		if !strings.HasPrefix(route.Path, "/api/v1/") {
			continue
		}
		path := strings.TrimPrefix(route.Path, "/api/v1")
		segments := strings.Split(path, "/")
		for i, s := range segments {
			if strings.HasPrefix(s, ":") {
				segments[i] = "{" + s[1:] + "}"
			}
		}
		path = strings.Join(segments, "/")

		ops, ok := paths[path].(map[string]interface{})
		if !ok {
			t.Errorf("route %s %s is not documented", route.Method, route.Path)
			continue
		}
		if _, ok := ops[strings.ToLower(route.Method)]; !ok {
			t.Errorf("route %s %s is missing its %s operation", route.Method, route.Path, route.Method)
		}
	}
}
