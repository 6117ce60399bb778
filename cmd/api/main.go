package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"teymia/internal/config"
	"teymia/internal/currency"
	"teymia/internal/database"
	"teymia/internal/logger"
	"teymia/internal/middleware"
	"teymia/internal/models"
	"teymia/internal/provider"
	"teymia/internal/server"
	"teymia/internal/services"
	"teymia/internal/validator"
)

// @title           Teymia API
// @version         1.0
// @description     Teymia is a personal finance ledger: accounts in many currencies, categorized income and expenses, transfers, budgets and reports.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	db := dbManager.DB()
	if err := services.NewBootstrapper(db, appConfig.BaseCurrency).Seed(); err != nil {
		return fmt.Errorf("failed to seed defaults: %w", err)
	}

	validator.Register()

	converter := currency.NewConverter(rateSource(appConfig), appConfig.BaseCurrency, appConfig.RateStaleness)
	converter.SetAsyncTimeout(appConfig.RequestTimeout)

	app := server.New(server.Options{
		DB:             db,
		Converter:      converter,
		Issuer:         middleware.NewTokenIssuer(appConfig.JWTSecret, appConfig.JWTExpirationDur),
		APIKey:         appConfig.APIKey,
		Location:       appConfig.Location,
		RequestTimeout: appConfig.RequestTimeout,
	})
	if appConfig.APIKey == "" {
		log.Warn("API_KEY is not set; token exchange is disabled")
	}

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("Starting Teymia backend server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		refreshRates(ctx, app.Currencies, appConfig.RateRefreshInterval)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server stopped gracefully")
	return nil
}

// rateSource builds the configured source. The static source has no rates,
// so every conversion falls back to the unconverted amount.
func rateSource(cfg *config.Config) provider.RateSource {
	if cfg.RateSource == config.RateSourceStatic {
		return provider.NewStaticRateSource(cfg.BaseCurrency, map[string]decimal.Decimal{})
	}

	crypto := models.CurrencyKindCrypto
	var cryptoCodes []string
	for _, c := range currency.List(&crypto) {
		cryptoCodes = append(cryptoCodes, c.Code)
	}
	client := &http.Client{Timeout: cfg.RequestTimeout}
	return provider.NewYahooRateSource(client, cfg.RateSourceURL, cryptoCodes)
}

// refreshRates starts a refresh at boot and then on every tick until ctx
// is done. Fresh tables are left alone.
func refreshRates(ctx context.Context, currencies services.CurrencyServicer, interval time.Duration) {
	currencies.RefreshRatesAsync(false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			currencies.RefreshRatesAsync(false)
		}
	}
}
