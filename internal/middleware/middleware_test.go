package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "teymia/internal/errors"
	"teymia/internal/logger"
	"teymia/internal/uuid"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	os.Exit(m.Run())
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected error object in response")
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		configuredKey string
		requestKey    string
		wantStatus    int
	}{
		{name: "valid_api_key", configuredKey: "secret-key", requestKey: "secret-key", wantStatus: http.StatusOK},
		{name: "invalid_api_key", configuredKey: "secret-key", requestKey: "wrong-key", wantStatus: http.StatusUnauthorized},
		{name: "missing_api_key", configuredKey: "secret-key", requestKey: "", wantStatus: http.StatusUnauthorized},
		{name: "partial_match_rejected", configuredKey: "secret-key", requestKey: "secret", wantStatus: http.StatusUnauthorized},
		{name: "empty_configured_key", configuredKey: "", requestKey: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/test", APIKeyMiddleware(tt.configuredKey), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			req := httptest.NewRequest(http.MethodPost, "/test", http.NoBody)
			if tt.requestKey != "" {
				req.Header.Set("X-API-Key", tt.requestKey)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				if code := errorCode(t, rec); code != "INVALID_API_KEY" {
					t.Errorf("error code = %q, want INVALID_API_KEY", code)
				}
			}
		})
	}
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	t.Run("round_trip", func(t *testing.T) {
		token, expires, err := issuer.Issue("api-client")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if time.Until(expires) <= 0 {
			t.Errorf("expected expiry in the future, got %v", expires)
		}
		claims, err := issuer.Validate(token)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if claims.Subject != "api-client" {
			t.Errorf("subject = %q, want api-client", claims.Subject)
		}
	})

	t.Run("wrong_secret", func(t *testing.T) {
		token, _, err := NewTokenIssuer("other-secret", time.Hour).Issue("x")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := issuer.Validate(token); err == nil {
			t.Error("expected token signed with another secret to be rejected")
		}
	})

	t.Run("expired", func(t *testing.T) {
		past := NewTokenIssuer("test-secret", time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := past.Issue("x")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := issuer.Validate(token); err == nil {
			t.Error("expected expired token to be rejected")
		}
	})
}

func TestAuthMiddleware(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	valid, _, err := issuer.Issue("api-client")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid_token", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "missing_header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Token " + valid, wantStatus: http.StatusUnauthorized},
		{name: "garbage_token", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/test", AuthMiddleware(issuer), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"subject": c.GetString(SubjectKey)})
			})

			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if got := parseBody(t, rec)["subject"]; got != "api-client" {
					t.Errorf("subject = %v, want api-client", got)
				}
				return
			}
			if code := errorCode(t, rec); code != "UNAUTHORIZED" {
				t.Errorf("error code = %q, want UNAUTHORIZED", code)
			}
		})
	}
}

func TestRequestLogging(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	t.Run("generates_id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
		if !uuid.IsValid(rec.Header().Get("X-Request-ID")) {
			t.Errorf("expected a generated request ID, got %q", rec.Header().Get("X-Request-ID"))
		}
	})

	t.Run("reuses_client_id", func(t *testing.T) {
		id := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set("X-Request-ID", id)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != id {
			t.Errorf("request ID = %q, want %q", got, id)
		}
	})
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) { _ = c.Error(apperrors.ErrBudgetNotFound) })
	r.GET("/raw", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", http.NoBody))
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "BUDGET_NOT_FOUND" {
		t.Errorf("unexpected app error response: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raw", http.NoBody))
	if rec.Code != http.StatusInternalServerError || errorCode(t, rec) != "INTERNAL_ERROR" {
		t.Errorf("unexpected raw error response: %d %s", rec.Code, rec.Body.String())
	}

	t.Run("written_response_kept", func(t *testing.T) {
		r := gin.New()
		r.Use(RequestLogging(), ErrorHandler())
		r.POST("/written", func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"ok": true})
			_ = c.Error(apperrors.Wrap(apperrors.ErrInternalServer, errors.New("late failure")))
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/written", http.NoBody))
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected the handler's 201, got %d", rec.Code)
		}
		if body := parseBody(t, rec); body["ok"] != true || body["error"] != nil {
			t.Errorf("expected the handler's body only, got %v", body)
		}
	})
}
